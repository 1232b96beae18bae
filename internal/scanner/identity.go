package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileIdentity is the metadata fingerprint of a file at scan time.
// Modification time is truncated to whole seconds because persisted cache
// entries only store Unix seconds.
type FileIdentity struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Equal reports whether two identities describe the same file content
// snapshot. Content itself is never compared.
func (id FileIdentity) Equal(other FileIdentity) bool {
	return id.Path == other.Path &&
		id.Size == other.Size &&
		id.ModTime.Unix() == other.ModTime.Unix()
}

// Name returns the base name of the file.
func (id FileIdentity) Name() string {
	return filepath.Base(id.Path)
}

// Ext returns the lower-case extension without the leading dot.
func (id FileIdentity) Ext() string {
	return Extension(id.Path)
}

// Stat captures the identity of path as it is now.
func Stat(path string) (FileIdentity, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return FileIdentity{}, fmt.Errorf("resolve path: %w", err)
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return FileIdentity{}, err
	}
	return identityFromInfo(abs, info), nil
}

func identityFromInfo(path string, info os.FileInfo) FileIdentity {
	return FileIdentity{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime().Truncate(time.Second),
	}
}
