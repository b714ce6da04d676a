package language

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"de", "de", true},
		{" DE ", "de", true},
		{"en-US", "en-us", true},
		{"de_AT", "de-at", true},
		{"German", "de", true},
		{"Deutsch", "de", true},
		{"français", "fr", true},
		{"", "", false},
		{"und", "", false},
		{"not a language", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := Normalize(tt.input)
			if got != tt.want || ok != tt.ok {
				t.Fatalf("Normalize(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"de", "German"},
		{"fr", "French"},
		{"english", "English"},
		{"", "Unknown"},
		{"??", "??"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := DisplayName(tt.input); got != tt.want {
				t.Fatalf("DisplayName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
