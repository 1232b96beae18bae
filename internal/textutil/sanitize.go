package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
	"\x00", "",
)

var titleCaser = cases.Title(language.Und, cases.NoLower)

// sanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. The result is NFC-normalized and trimmed.
func sanitizeFileName(name string) string {
	name = strings.TrimSpace(norm.NFC.String(name))
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

// SanitizeSegment turns a label into a single safe path segment without
// changing its case. Internal whitespace is collapsed, leading/trailing dots
// are dropped and the result is capped at 64 runes. It returns "" when
// nothing usable remains.
func SanitizeSegment(name string) string {
	cleaned := sanitizeFileName(name)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	cleaned = strings.Trim(cleaned, ". ")
	if cleaned == "" {
		return ""
	}
	const maxLen = 64
	if runes := []rune(cleaned); len(runes) > maxLen {
		cleaned = strings.TrimSpace(string(runes[:maxLen]))
	}
	return cleaned
}

// SanitizeFolderName is SanitizeSegment plus title-casing of lowercase
// words ("tax forms" -> "Tax Forms"). Used for model-proposed sub-folders.
func SanitizeFolderName(name string) string {
	cleaned := SanitizeSegment(name)
	if cleaned == "" {
		return ""
	}
	return titleCaser.String(cleaned)
}

// EqualFold reports whether two labels name the same folder, ignoring case
// and Unicode normalization differences.
func EqualFold(a, b string) bool {
	return strings.EqualFold(norm.NFC.String(strings.TrimSpace(a)), norm.NFC.String(strings.TrimSpace(b)))
}
