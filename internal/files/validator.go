package files

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/Tayyab-Ali-786/Chattify/internal/transfer"
)

var (
	ErrNoFiles     = errors.New("no files specified")
	ErrNotFound    = errors.New("file does not exist")
	ErrIsDirectory = errors.New("is a directory")
)

// FileInfo holds information about a file to be sent
type FileInfo struct {
	// Path is the absolute path to the file
	Path string

	// Name is the filename (without directory)
	Name string

	Size int64

	// Type is the MIME type, application/octet-stream when unknown
	Type string
}

// Meta returns what the data channel announces before the content.
func (f FileInfo) Meta() transfer.Meta {
	return transfer.Meta{Name: f.Name, Size: f.Size, MimeType: f.Type}
}

// ValidateFiles checks that every path is a readable regular file. All
// failures are reported together.
func ValidateFiles(paths []string) ([]FileInfo, error) {
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}

	var infos []FileInfo
	var errs []error

	for _, path := range paths {
		info, err := Inspect(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		infos = append(infos, info)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("file validation failed: %w", errors.Join(errs...))
	}
	return infos, nil
}

// Inspect checks a single file and returns its info. Empty files are fine.
func Inspect(path string) (FileInfo, error) {
	path = expandHome(path)

	absPath, err := filepath.Abs(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("%s: failed to get absolute path: %w", path, err)
	}

	stat, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return FileInfo{}, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return FileInfo{}, fmt.Errorf("%s: failed to stat file: %w", path, err)
	}
	if stat.IsDir() {
		return FileInfo{}, fmt.Errorf("%s: %w", path, ErrIsDirectory)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return FileInfo{}, fmt.Errorf("%s: cannot open file (check permissions): %w", path, err)
	}
	file.Close()

	mimeType := mime.TypeByExtension(filepath.Ext(absPath))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	return FileInfo{
		Path: absPath,
		Name: filepath.Base(absPath),
		Size: stat.Size(),
		Type: mimeType,
	}, nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// GetTotalSize returns the total size of all files
func GetTotalSize(infos []FileInfo) int64 {
	var total int64
	for _, file := range infos {
		total += file.Size
	}
	return total
}
