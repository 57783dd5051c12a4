package transcript

import "strings"

// speakerPrefix is the display convention some clients prepend to raw labels.
const speakerPrefix = "Speaker "

// FormatLine renders a finalized sentence as a transcript line
func FormatLine(speaker, sentence string) string {
	return speaker + ": " + sentence
}

// ResolveLine rewrites the speaker label of a transcript line using the
// session's name map. A line is expected in the form "<label>: <text>"; the
// label is everything before the first ": ", optionally preceded by the
// "Speaker " display convention. Lines without a label, or with an unmapped
// label, are returned unchanged, which makes resolution idempotent as long as
// display names are not themselves used as raw labels.
func ResolveLine(line string, names map[string]string) string {
	if len(names) == 0 {
		return line
	}

	idx := strings.Index(line, ": ")
	if idx < 0 {
		return line
	}

	label := line[:idx]
	rest := line[idx+2:]

	if resolved := ResolveSpeaker(label, names); resolved != label {
		return resolved + ": " + rest
	}

	return line
}

// ResolveSpeaker maps a raw speaker label to its display name, accepting the
// "Speaker " convention prefix. Unmapped labels are returned unchanged.
func ResolveSpeaker(label string, names map[string]string) string {
	if name := names[label]; name != "" {
		return name
	}
	if trimmed := strings.TrimPrefix(label, speakerPrefix); trimmed != label {
		if name := names[trimmed]; name != "" {
			return name
		}
	}
	return label
}
