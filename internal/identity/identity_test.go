package identity

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase passthrough", "a@x.com", "a@x.com"},
		{"uppercase local part", "Alice@x.com", "alice@x.com"},
		{"uppercase domain", "alice@EXAMPLE.COM", "alice@example.com"},
		{"surrounding whitespace", "  bob@x.com\n", "bob@x.com"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValid(t *testing.T) {
	valid := []string{
		"a@x.com",
		"first.last@example.co.uk",
		"user+tag@example.com",
		"  padded@example.com  ", // trimmed before matching
	}
	for _, email := range valid {
		if !Valid(email) {
			t.Errorf("Valid(%q) = false, want true", email)
		}
	}

	invalid := []string{
		"",
		"not-an-email",
		"@example.com",
		"user@",
		"user@example",
		"user@example.c",
		"../etc/passwd",
		"user name@example.com",
	}
	for _, email := range invalid {
		if Valid(email) {
			t.Errorf("Valid(%q) = true, want false", email)
		}
	}
}
