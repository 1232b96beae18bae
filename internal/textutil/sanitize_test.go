package textutil

import "testing"

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  report.pdf ", "report.pdf"},
		{"a/b\\c:d*e", "a-b-c-d-e"},
		{`what?"<>|`, "what"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeFileName(tt.in); got != tt.want {
			t.Errorf("sanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFolderName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"invoices", "Invoices"},
		{"tax   forms", "Tax Forms"},
		{"IRS docs", "IRS Docs"},
		{"..", ""},
		{" .hidden. ", "Hidden"},
		{"Notes/2024", "Notes-2024"},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := SanitizeFolderName(tt.in); got != tt.want {
			t.Errorf("SanitizeFolderName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEqualFold(t *testing.T) {
	if !EqualFold("Caf\u00e9", "cafe\u0301") {
		t.Fatal("expected composed and decomposed forms to match")
	}
	if EqualFold("Images", "Video") {
		t.Fatal("expected different labels to differ")
	}
}

func TestSanitizeSegmentKeepsCase(t *testing.T) {
	cases := map[string]string{
		"video":       "video",
		"  My  Docs ": "My Docs",
		"a/b":         "a-b",
		"..":          "",
		"...hidden":   "hidden",
	}
	for input, want := range cases {
		if got := SanitizeSegment(input); got != want {
			t.Errorf("SanitizeSegment(%q) = %q, want %q", input, got, want)
		}
	}
}
