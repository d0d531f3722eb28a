package enroll

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path"
	"path/filepath"
	"strconv"
)

// File is one selected file. Path is slash separated and relative to the
// picked folder's parent, the way a browser folder picker reports it
// (e.g. "photos/SE12345/front.jpg").
type File struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`

	open func() (io.ReadCloser, error)
}

// NewFile builds a File whose content comes from open
func NewFile(relPath string, size int64, contentType string, open func() (io.ReadCloser, error)) File {
	return File{
		Name:        path.Base(relPath),
		Path:        relPath,
		Size:        size,
		ContentType: contentType,
		open:        open,
	}
}

// BytesFile builds an in-memory File
func BytesFile(relPath, contentType string, data []byte) File {
	return NewFile(relPath, int64(len(data)), contentType, func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	})
}

// Open returns the file content
func (f File) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, fmt.Errorf("%s: no content", f.Path)
	}
	return f.open()
}

// LoadFile builds a File for a single file on disk
func LoadFile(p string) (File, error) {
	info, err := os.Stat(p)
	if err != nil {
		return File{}, err
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", p)
	}
	return diskFile(p, filepath.Base(p), info.Size()), nil
}

// LoadDir collects every regular file under root. Relative paths start with
// root's base name, so a file at root/SE1/a.jpg is reported as
// "<base>/SE1/a.jpg".
func LoadDir(root string) ([]File, error) {
	base := filepath.Base(filepath.Clean(root))
	var files []File
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, diskFile(p, path.Join(base, filepath.ToSlash(rel)), info.Size()))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func diskFile(p, relPath string, size int64) File {
	return NewFile(relPath, size, "", func() (io.ReadCloser, error) {
		return os.Open(p)
	})
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize renders a byte count as the wizard shows it ("1.5 KB")
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	v := float64(bytes)
	i := 0
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}
