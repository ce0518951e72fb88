package media

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, n := range names {
		p := filepath.Join(root, n)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	touch(t, root,
		"b.mkv", "a.MP4", "notes.txt",
		"pics/one.JPG", "pics/two.webp",
		".cache/hidden.mp4", "deep/er/clip.webm",
	)

	res, err := Scan(root, 0)
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	want := []string{
		filepath.Join(root, "a.MP4"),
		filepath.Join(root, "b.mkv"),
		filepath.Join(root, "deep/er/clip.webm"),
		filepath.Join(root, "pics/one.JPG"),
		filepath.Join(root, "pics/two.webp"),
	}
	if len(res.Files) != len(want) {
		t.Fatalf("Scan() files = %v, want %v", res.Files, want)
	}
	for i := range want {
		if res.Files[i] != want[i] {
			t.Errorf("Files[%d] = %q, want %q", i, res.Files[i], want[i])
		}
	}
	if res.Videos != 3 || res.Images != 2 {
		t.Errorf("videos=%d images=%d, want 3 and 2", res.Videos, res.Images)
	}
}

func TestScan_Limit(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "1.mp4", "2.mp4", "3.mp4")
	res, err := Scan(root, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Files) != 2 || !res.Truncated {
		t.Errorf("Scan(limit 2) = %d files, truncated=%v", len(res.Files), res.Truncated)
	}
}

func TestScan_SingleFileAndEmpty(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "clip.mov", "readme.md")

	res, err := Scan(filepath.Join(root, "clip.mov"), 0)
	if err != nil || len(res.Files) != 1 {
		t.Errorf("Scan(file) = %v, %v", res.Files, err)
	}
	if _, err := Scan(filepath.Join(root, "readme.md"), 0); !errors.Is(err, ErrNoMedia) {
		t.Errorf("Scan(non-media) error = %v, want ErrNoMedia", err)
	}
	empty := t.TempDir()
	if _, err := Scan(empty, 0); !errors.Is(err, ErrNoMedia) {
		t.Errorf("Scan(empty) error = %v, want ErrNoMedia", err)
	}
	if _, err := Scan(filepath.Join(root, "missing"), 0); err == nil {
		t.Error("Scan(missing) should fail")
	}
}

func TestDefaultSource(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	os.MkdirAll(filepath.Join(home, "Movies"), 0755)
	if got := DefaultSource(); got != filepath.Join(home, "Movies") {
		t.Errorf("DefaultSource() = %q, want ~/Movies", got)
	}
	os.MkdirAll(filepath.Join(home, "Videos"), 0755)
	if got := DefaultSource(); got != filepath.Join(home, "Videos") {
		t.Errorf("DefaultSource() = %q, want ~/Videos", got)
	}
}

func TestScan_RelativeSourceIsAbsolute(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "a.mp4", "sub/b.png")
	t.Chdir(root)

	res, err := Scan(".", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Files) != 2 {
		t.Fatalf("Scan(.) = %v, want 2 files", res.Files)
	}
	for _, f := range res.Files {
		if !filepath.IsAbs(f) {
			t.Errorf("Scan(.) returned relative path %q", f)
		}
	}
	if res.Files[0] != filepath.Join(root, "a.mp4") {
		t.Errorf("Files[0] = %q, want %q", res.Files[0], filepath.Join(root, "a.mp4"))
	}

	single, err := Scan("a.mp4", 0)
	if err != nil || len(single.Files) != 1 || !filepath.IsAbs(single.Files[0]) {
		t.Errorf("Scan(a.mp4) = %v, %v", single.Files, err)
	}
}
