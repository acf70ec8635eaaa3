package normalize

// Snapshot is an immutable capture of a selection together with everything
// needed to fit a replacement back into it.
type Snapshot struct {
	// Original is the selection exactly as it was read.
	Original string
	Framing
	// Indent is the common indent of the core.
	Indent string
	// Dedented is the core without Indent; this is what the model sees.
	Dedented string
}

// Capture normalizes a selection read from a document.
func Capture(original string) Snapshot {
	f := StripFraming(original)
	indent := CommonIndent(f.Core)
	return Snapshot{
		Original: original,
		Framing:  f,
		Indent:   indent,
		Dedented: StripIndent(f.Core, indent),
	}
}

// Fenced returns the dedented core wrapped in a bare code fence.
func (s Snapshot) Fenced() string {
	return fence + "\n" + s.Dedented + "\n" + fence
}

// Reframe turns a model's answer into a core comparable with s.Core: the fence
// and language tag are stripped and the common indent is restored.
func (n *Normalizer) Reframe(s Snapshot, candidate string) string {
	content, _ := n.StripFence(candidate)
	return RestoreIndent(content, s.Indent)
}
