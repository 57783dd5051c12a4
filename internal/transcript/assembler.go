package transcript

import "strings"

// Assembler accumulates finalized text fragments per speaker and yields a
// completed line when a sentence boundary fires. It performs no punctuation
// inference of its own; boundary detection belongs to the protocol layer.
type Assembler struct {
	buffers map[string]string
}

// NewAssembler creates an empty assembler
func NewAssembler() *Assembler {
	return &Assembler{buffers: make(map[string]string)}
}

// Append adds a text fragment to the speaker's in-progress sentence.
// Fragments are joined with a single space. Empty fragments are ignored.
func (a *Assembler) Append(speaker, fragment string) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return
	}

	if buf := a.buffers[speaker]; buf != "" {
		a.buffers[speaker] = buf + " " + fragment
	} else {
		a.buffers[speaker] = fragment
	}
}

// Boundary returns the speaker's accumulated sentence and clears the buffer.
// The second return value is false when there is nothing buffered.
func (a *Assembler) Boundary(speaker string) (string, bool) {
	sentence := strings.TrimSpace(a.buffers[speaker])
	delete(a.buffers, speaker)
	if sentence == "" {
		return "", false
	}
	return sentence, true
}
