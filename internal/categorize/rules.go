package categorize

import (
	"strings"

	"declutter/internal/scanner"
)

var extensionGroups = map[string][]string{
	"Images":     {"jpg", "jpeg", "png", "gif", "bmp", "svg", "webp", "ico", "tiff", "tif", "raw", "heic", "heif"},
	"Documents":  {"pdf", "doc", "docx", "txt", "rtf", "odt", "xls", "xlsx", "ppt", "pptx", "csv", "md", "epub"},
	"Installers": {"exe", "msi", "dmg", "deb", "rpm", "app", "appimage", "pkg", "snap"},
	"Music":      {"mp3", "wav", "flac", "aac", "ogg", "wma", "m4a", "opus", "aiff"},
	"Video":      {"mp4", "mkv", "avi", "mov", "wmv", "flv", "webm", "m4v", "mpeg", "mpg"},
	"Archives":   {"zip", "tar", "gz", "rar", "7z", "bz2", "xz", "tgz", "zst"},
	"Code": {
		"rs", "py", "js", "ts", "java", "c", "cpp", "h", "hpp", "go", "rb", "php", "html", "css",
		"json", "yaml", "yml", "toml", "xml", "sh", "bash", "sql",
	},
}

var extensionMap = buildExtensionMap()

func buildExtensionMap() map[string]string {
	m := make(map[string]string)
	for category, exts := range extensionGroups {
		for _, ext := range exts {
			m[ext] = category
		}
	}
	return m
}

// ByExtension returns the built-in category for the file name's extension.
func ByExtension(name string) (string, bool) {
	ext := scanner.Extension(name)
	if ext == "" {
		return "", false
	}
	category, ok := extensionMap[ext]
	return category, ok
}

// Match finds category in allowed, ignoring case, and returns the allowed
// spelling.
func Match(category string, allowed []string) (string, bool) {
	category = strings.TrimSpace(category)
	if category == "" {
		return "", false
	}
	for _, candidate := range allowed {
		if strings.EqualFold(candidate, category) {
			return candidate, true
		}
	}
	return "", false
}

// Offline categorizes name without the service: the extension map when its
// category is allowed, otherwise Misc.
func Offline(name string, allowed []string) Result {
	if category, ok := ByExtension(name); ok {
		if matched, ok := Match(category, allowed); ok {
			return Success(Categorization{Category: matched}, SourceExtension)
		}
	}
	return Success(Categorization{Category: miscFor(allowed)}, SourceFallback)
}

// Fallback degrades an unusable service answer to the offline rules.
func Fallback(name string, allowed []string, reason string, err error) Result {
	offline := Offline(name, allowed)
	return Degraded(offline.Categorization, offline.Source, reason, err)
}

func miscFor(allowed []string) string {
	if matched, ok := Match(MiscCategory, allowed); ok {
		return matched
	}
	return MiscCategory
}
