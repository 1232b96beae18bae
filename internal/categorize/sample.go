package categorize

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"declutter/internal/scanner"
)

// SampleChars is the number of characters sent for deep inspection.
const SampleChars = 1000

var textExtensions = map[string]struct{}{}

func init() {
	for _, ext := range []string{
		"txt", "md", "rs", "py", "js", "ts", "jsx", "tsx", "html", "css", "json", "xml", "csv",
		"yaml", "yml", "toml", "ini", "cfg", "conf", "log", "sh", "bat", "ps1", "sql", "c", "cpp",
		"h", "hpp", "java", "go", "rb", "php", "swift", "kt", "scala", "lua", "r", "m",
	} {
		textExtensions[ext] = struct{}{}
	}
}

// IsTextFile reports whether the file name has a recognized text extension.
func IsTextFile(name string) bool {
	_, ok := textExtensions[scanner.Extension(name)]
	return ok
}

// ReadSample returns up to maxChars characters from the start of path.
// Files that are not valid UTF-8 or contain NUL bytes yield an empty sample.
func ReadSample(path string, maxChars int) (string, error) {
	if maxChars <= 0 {
		maxChars = SampleChars
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open sample: %w", err)
	}
	defer f.Close()

	buf, err := io.ReadAll(io.LimitReader(f, int64(maxChars*utf8.UTFMax)))
	if err != nil {
		return "", fmt.Errorf("read sample: %w", err)
	}
	if bytes.IndexByte(buf, 0) >= 0 {
		return "", nil
	}

	var out []rune
	for len(buf) > 0 && len(out) < maxChars {
		r, size := utf8.DecodeRune(buf)
		if r == utf8.RuneError && size <= 1 {
			if !utf8.FullRune(buf) {
				break
			}
			return "", nil
		}
		out = append(out, r)
		buf = buf[size:]
	}
	return string(out), nil
}
