package security

import "testing"

// TestSanitizeText は全HTMLタグが除去されることをテストする。
func TestSanitizeText(t *testing.T) {
	s := NewProfileSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "Ann", "Ann"},
		{"empty", "", ""},
		{"script tag", `Ann<script>alert(1)</script>`, "Ann"},
		{"img onerror", `<img src=x onerror=alert(1)>Ann`, "Ann"},
		{"formatting tags stripped", "<b>Ann</b> <i>Lee</i>", "Ann Lee"},
		{"surrounding whitespace", "  Ann  ", "Ann"},
		{"anchor stripped keeps text", `<a href="https://evil.example">Ann</a>`, "Ann"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.SanitizeText(tt.input); got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestSanitizeText_Idempotent は同一入力に対する冪等性をテストする。
func TestSanitizeText_Idempotent(t *testing.T) {
	s := NewProfileSanitizer()

	input := `<p>hello</p> world`
	once := s.SanitizeText(input)
	twice := s.SanitizeText(once)
	if once != twice {
		t.Errorf("expected idempotent sanitization, got %q then %q", once, twice)
	}
}
