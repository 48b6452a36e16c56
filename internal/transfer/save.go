package transfer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/Tayyab-Ali-786/Chattify/internal/utils"
)

const fallbackName = "download"

// Save writes f into dir under a name that does not clobber existing files
// and returns the path written.
func Save(dir string, f *File) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", NewError("create output dir", err)
	}

	path := utils.GetUniqueFilename(filepath.Join(dir, SafeName(f.Name)))
	if err := os.WriteFile(path, f.Data, 0o644); err != nil {
		return "", NewFileError("save", path, err)
	}
	return path, nil
}

// SafeName strips any directory components and control characters a peer
// put into a file name.
func SafeName(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." || name == ".." || name == "" {
		return fallbackName
	}
	return name
}

// Describe renders a short human summary of a file.
func Describe(name string, size int64) string {
	return fmt.Sprintf("%s (%s)", name, utils.FormatSize(size))
}
