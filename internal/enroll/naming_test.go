package enroll

import (
	"errors"
	"io"
	"testing"
)

func TestUploadNameFormat(t *testing.T) {
	t.Parallel()

	if got := UploadName("SE12345", 3, "front.jpg"); got != "images_SE12345_3_front.jpg" {
		t.Fatalf("unexpected name %q", got)
	}
}

func TestUploadNameIsInjective(t *testing.T) {
	t.Parallel()

	type triple struct {
		id    string
		index int
		name  string
	}
	// these pairs collide under naive underscore joining
	inputs := []triple{
		{"a_1", 2, "x.jpg"},
		{"a", 1, "2_x.jpg"},
		{"a%5F1", 2, "x.jpg"},
		{"a%", 2, "x.jpg"},
		{"a", 12, "x.jpg"},
		{"a", 1, "2x.jpg"},
		{"", 0, "x.jpg"},
		{"_", 0, "x.jpg"},
	}

	seen := map[string]triple{}
	for _, in := range inputs {
		name := UploadName(in.id, in.index, in.name)
		if prev, ok := seen[name]; ok {
			t.Fatalf("%+v and %+v both produce %q", prev, in, name)
		}
		seen[name] = in

		id, index, orig, err := ParseUploadName(name)
		if err != nil {
			t.Fatalf("ParseUploadName(%q) failed: %v", name, err)
		}
		if id != in.id || index != in.index || orig != in.name {
			t.Fatalf("round trip of %+v gave (%q, %d, %q)", in, id, index, orig)
		}
	}
}

func TestParseUploadNameRejectsForeignNames(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"photo.jpg", "images_SE1", "images_SE1_x_a.jpg", "images_SE1_-1_a.jpg", "images_SE1_01_a.jpg"} {
		if _, _, _, err := ParseUploadName(name); !errors.Is(err, ErrBadUploadName) {
			t.Fatalf("ParseUploadName(%q): expected ErrBadUploadName, got %v", name, err)
		}
	}
}

func TestUploadPartsSkipsFilesWithoutFolder(t *testing.T) {
	t.Parallel()

	files := []File{
		BytesFile("photos/SE1/a.jpg", "image/jpeg", []byte("a")),
		BytesFile("loose.jpg", "image/jpeg", []byte("b")),
		BytesFile("photos/SE2/b.png", "", []byte("c")),
	}
	parts := UploadParts(files)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if parts[0].Filename != "images_SE1_0_a.jpg" || parts[1].Filename != "images_SE2_2_b.png" {
		t.Fatalf("unexpected names %q, %q", parts[0].Filename, parts[1].Filename)
	}
	if parts[0].ContentType != "image/jpeg" {
		t.Fatalf("expected content type to carry over, got %q", parts[0].ContentType)
	}

	rc, err := parts[1].Open()
	if err != nil {
		t.Fatalf("open part: %v", err)
	}
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	if string(b) != "c" {
		t.Fatalf("expected part content %q, got %q", "c", b)
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	files := []File{
		BytesFile("photos/SE1/a.jpg", "", nil),
		BytesFile("photos/SE1/b.jpg", "", nil),
		BytesFile("photos/SE2/a.jpg", "", nil),
		BytesFile("stray.jpg", "", nil),
	}
	sum := Summarize(files)
	if sum.Folders != 2 || sum.Images != 4 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if sum.String() != "2 folders, 4 images" {
		t.Fatalf("unexpected text %q", sum.String())
	}
}

func TestStudentFolder(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"photos/SE1/a.jpg":       "SE1",
		"SE1/a.jpg":              "SE1",
		"root/class/SE9/img.png": "SE9",
	}
	for in, want := range cases {
		got, ok := StudentFolder(in)
		if !ok || got != want {
			t.Fatalf("StudentFolder(%q): expected %q, got %q (%v)", in, want, got, ok)
		}
	}
	if _, ok := StudentFolder("a.jpg"); ok {
		t.Fatal("expected no folder for a bare file name")
	}
}
