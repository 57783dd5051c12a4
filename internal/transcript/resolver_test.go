package transcript

import "testing"

func TestResolveLine(t *testing.T) {
	names := map[string]string{"1": "Alice", "2": "Bob"}

	tests := []struct {
		name string
		line string
		want string
	}{
		{"raw label", "1: Hello world.", "Alice: Hello world."},
		{"display convention", "Speaker 2: Sounds good.", "Bob: Sounds good."},
		{"unmapped label", "3: Who am I?", "3: Who am I?"},
		{"no label", "just some text", "just some text"},
		{"colon in body only rewrites prefix", "1: the ratio is 2: 1", "Alice: the ratio is 2: 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveLine(tt.line, names); got != tt.want {
				t.Errorf("ResolveLine(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

func TestResolveLine_Idempotent(t *testing.T) {
	names := map[string]string{"1": "Alice"}

	once := ResolveLine("1: Hello world.", names)
	twice := ResolveLine(once, names)

	if once != twice {
		t.Errorf("Resolution is not idempotent: %q vs %q", once, twice)
	}
}

func TestResolveLine_EmptyMap(t *testing.T) {
	line := "1: Hello."
	if got := ResolveLine(line, nil); got != line {
		t.Errorf("Expected line unchanged with nil map, got %q", got)
	}
}

func TestResolveLine_EmptyName(t *testing.T) {
	// A blanked-out name must not produce an empty label
	names := map[string]string{"1": ""}
	line := "1: Hello."
	if got := ResolveLine(line, names); got != line {
		t.Errorf("Expected line unchanged for empty display name, got %q", got)
	}
}

func TestFormatLine(t *testing.T) {
	if got := FormatLine("1", "Hello world."); got != "1: Hello world." {
		t.Errorf("FormatLine = %q", got)
	}
}
