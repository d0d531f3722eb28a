package enroll

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/faceattend/attendance-console/internal/backend"
)

const uploadPrefix = "images_"

var (
	idEscaper   = strings.NewReplacer("%", "%25", "_", "%5F")
	idUnescaper = strings.NewReplacer("%25", "%", "%5F", "_")
)

// ErrBadUploadName is returned by ParseUploadName for names it did not produce
var ErrBadUploadName = errors.New("not an image upload name")

// StudentFolder returns the immediate parent folder of a relative path,
// which names the student the image belongs to.
func StudentFolder(relPath string) (string, bool) {
	parts := strings.Split(relPath, "/")
	if len(parts) < 2 {
		return "", false
	}
	return parts[len(parts)-2], true
}

// UploadName encodes the student folder, the file's position in the
// selection and its original name into the outgoing filename:
// images_{studentId}_{index}_{originalName}. "%" and "_" in the student id
// are percent-escaped so distinct inputs never collide.
func UploadName(studentID string, index int, originalName string) string {
	return fmt.Sprintf("%s%s_%d_%s", uploadPrefix, idEscaper.Replace(studentID), index, originalName)
}

// ParseUploadName inverts UploadName
func ParseUploadName(name string) (studentID string, index int, originalName string, err error) {
	rest, ok := strings.CutPrefix(name, uploadPrefix)
	if !ok {
		return "", 0, "", ErrBadUploadName
	}
	id, rest, ok := strings.Cut(rest, "_")
	if !ok {
		return "", 0, "", ErrBadUploadName
	}
	num, original, ok := strings.Cut(rest, "_")
	if !ok || num == "" {
		return "", 0, "", ErrBadUploadName
	}
	index, err = strconv.Atoi(num)
	if err != nil || index < 0 || strconv.Itoa(index) != num {
		return "", 0, "", ErrBadUploadName
	}
	return idUnescaper.Replace(id), index, original, nil
}

// UploadParts renames every image for the upload. Files without a parent
// folder are skipped; indexes keep their position in the full selection.
func UploadParts(files []File) []backend.Part {
	parts := make([]backend.Part, 0, len(files))
	for i, f := range files {
		student, ok := StudentFolder(f.Path)
		if !ok {
			continue
		}
		parts = append(parts, backend.Part{
			Filename:    UploadName(student, i, path.Base(f.Path)),
			ContentType: f.ContentType,
			Open:        f.Open,
		})
	}
	return parts
}

// FolderSummary counts the distinct student folders in a selection
type FolderSummary struct {
	Folders int `json:"folders"`
	Images  int `json:"images"`
}

// String renders the summary as "N folders, M images"
func (s FolderSummary) String() string {
	return fmt.Sprintf("%d folders, %d images", s.Folders, s.Images)
}

// Summarize groups files by student folder. It does not check that folders
// are non-empty or that images are well-formed.
func Summarize(files []File) FolderSummary {
	folders := make(map[string]struct{})
	for _, f := range files {
		if student, ok := StudentFolder(f.Path); ok {
			folders[student] = struct{}{}
		}
	}
	return FolderSummary{Folders: len(folders), Images: len(files)}
}
