package normalize

import (
	"strings"
)

const fence = "```"

// DefaultLanguages is the language allow-list used when none is configured.
var DefaultLanguages = []string{
	"python", "java", "javascript", "js", "jsx", "ts", "tsx", "typescript",
	"c", "cpp", "csharp", "go", "rust", "dart", "scala", "swift", "kotlin",
	"html", "css", "ruby", "php", "script", "groovy", "lua", "perl",
	"bash", "sh", "shell", "powershell", "elixir", "haskell", "clojure",
	"r", "vb", "ada", "forth", "cobol", "julia", "racket", "nim", "d",
	"json", "yaml", "sql", "gitignore",
}

// Normalizer strips model output down to code. The zero value knows no
// languages; use New.
type Normalizer struct {
	languages []string
}

// New returns a Normalizer that recognizes the given language tags. An empty
// list selects DefaultLanguages.
func New(languages []string) *Normalizer {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	langs := make([]string, 0, len(languages))
	for _, l := range languages {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return &Normalizer{languages: langs}
}

// Languages returns the allow-list in match order.
func (n *Normalizer) Languages() []string {
	return append([]string(nil), n.languages...)
}

func (n *Normalizer) language(token string) (string, bool) {
	for _, l := range n.languages {
		if token == l {
			return l, true
		}
	}
	return "", false
}

// StripFence extracts the payload between the first and the last triple
// backtick of raw. It returns raw unchanged when there is no such pair.
//
// Supported shapes:
//
//	```\ncode\n```
//	```go\ncode\n```
//	```code```
func (n *Normalizer) StripFence(raw string) (content, lang string) {
	first := strings.Index(raw, fence)
	last := strings.LastIndex(raw, fence)
	if first == -1 || first >= last {
		return raw, ""
	}
	// Overlapping markers such as "````" leave nothing between them.
	if first+len(fence) > last {
		return raw, ""
	}

	between := raw[first+len(fence) : last]
	if strings.HasPrefix(between, "\n") {
		between = between[1:]
		return strings.TrimSuffix(between, "\n"), ""
	}

	token := between
	if i := strings.IndexAny(between, " \t\r\n"); i != -1 {
		token = between[:i]
	}
	if l, ok := n.language(token); ok {
		lang = l
		between = strings.TrimLeft(between[len(token):], " \t")
	}
	if strings.HasPrefix(between, "\n") && strings.HasSuffix(between, "\n") {
		if len(between) == 1 {
			between = ""
		} else {
			between = between[1 : len(between)-1]
		}
	}
	return between, lang
}
