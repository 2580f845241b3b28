package config

import "testing"

func TestExpandEnv(t *testing.T) {
	t.Setenv("SIFT_SET", "value")
	t.Setenv("SIFT_EMPTY", "")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"set var", "x: ${SIFT_SET}", "x: value"},
		{"unset var", "x: ${SIFT_NEVER_SET}", "x: "},
		{"unset with default", "x: ${SIFT_NEVER_SET:-fallback}", "x: fallback"},
		{"empty uses default", "x: ${SIFT_EMPTY:-fallback}", "x: fallback"},
		{"set ignores default", "x: ${SIFT_SET:-fallback}", "x: value"},
		{"multiple", "${SIFT_SET}/${SIFT_NEVER_SET:-d}", "value/d"},
		{"no pattern", "plain text $NOT_BRACED", "plain text $NOT_BRACED"},
		{"default with path", "${SIFT_NEVER_SET:-/var/lib/sift}", "/var/lib/sift"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandEnv(tt.input); got != tt.want {
				t.Errorf("ExpandEnv(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
