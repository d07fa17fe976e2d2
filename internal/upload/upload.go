package upload

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
)

// allowedExtensions is a literal allow-list, matched case-sensitively:
// "JPG" passes but "Jpg" does not.
var allowedExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"gif":  {},
	"JPG":  {},
}

// Store saves product images under a single directory.
type Store struct {
	Dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("upload: cannot create directory %s: %w", dir, err)
	}
	return &Store{Dir: dir}, nil
}

// Allowed reports whether the filename carries one of the accepted
// extensions.
func Allowed(filename string) bool {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 {
		return false
	}
	_, ok := allowedExtensions[filename[i+1:]]
	return ok
}

// SecureFilename strips any path components and every character outside
// [A-Za-z0-9._-], so the stored name is safe to join with the upload
// directory.
func SecureFilename(name string) string {
	name = filepath.Base(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		}
	}

	cleaned := strings.Trim(b.String(), "._-")
	return cleaned
}

// Save writes the uploaded file and returns the stored filename. Files with
// a disallowed extension are silently skipped and an empty name is returned.
func (s *Store) Save(fh *multipart.FileHeader) (string, error) {
	if fh == nil || !Allowed(fh.Filename) {
		return "", nil
	}

	name := SecureFilename(fh.Filename)
	if name == "" {
		return "", nil
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("upload: cannot open uploaded file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(s.Dir, name))
	if err != nil {
		return "", fmt.Errorf("upload: cannot create %s: %w", name, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("upload: cannot write %s: %w", name, err)
	}
	return name, nil
}

// Remove deletes a stored image. A missing file is not an error, the image
// may never have been written.
func (s *Store) Remove(name string) error {
	if name == "" {
		return nil
	}
	if err := os.Remove(filepath.Join(s.Dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("upload: cannot remove %s: %w", name, err)
	}
	return nil
}

func (s *Store) Exists(name string) bool {
	if name == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(s.Dir, name))
	return err == nil
}
