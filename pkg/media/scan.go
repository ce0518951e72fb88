// Package media finds the files a wall plays.
package media

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultLimit caps how many files one scan collects.
const DefaultLimit = 20000

var ErrNoMedia = errors.New("no media files found")

var videoExts = map[string]bool{
	"mkv": true, "mp4": true, "avi": true, "mov": true, "m4v": true, "flv": true,
	"wmv": true, "mpg": true, "mpeg": true, "ts": true, "ogv": true, "webm": true,
}

var imageExts = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "webp": true, "avif": true,
	"bmp": true, "tif": true, "tiff": true, "gif": true,
}

func ext(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

func IsVideo(path string) bool { return videoExts[ext(path)] }
func IsImage(path string) bool { return imageExts[ext(path)] }
func IsMedia(path string) bool { return IsVideo(path) || IsImage(path) }

// Result is a sorted scan.
type Result struct {
	Files  []string
	Videos int
	Images int
	// Truncated is set when the limit stopped the walk early.
	Truncated bool
}

// Scan walks source (a directory or a single file) for media files. Dot directories
// are skipped; unreadable subtrees are ignored. limit <= 0 means DefaultLimit.
// Files are always absolute so later renames can find them by path.
func Scan(source string, limit int) (Result, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	var res Result

	abs, err := filepath.Abs(source)
	if err != nil {
		return res, fmt.Errorf("scan %s: %w", source, err)
	}
	source = abs

	info, err := os.Stat(source)
	if err != nil {
		return res, fmt.Errorf("scan %s: %w", source, err)
	}
	if !info.IsDir() {
		if !IsMedia(source) {
			return res, fmt.Errorf("%w: %s is not a media file", ErrNoMedia, source)
		}
		res.add(source)
		return res, nil
	}

	errLimit := errors.New("limit")
	err = filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != source {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != source && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !IsMedia(path) {
			return nil
		}
		if len(res.Files) >= limit {
			res.Truncated = true
			return errLimit
		}
		res.add(path)
		return nil
	})
	if err != nil && !errors.Is(err, errLimit) {
		return res, fmt.Errorf("scan %s: %w", source, err)
	}
	if len(res.Files) == 0 {
		return res, fmt.Errorf("%w in %s", ErrNoMedia, source)
	}
	sort.Strings(res.Files)
	return res, nil
}

func (r *Result) add(path string) {
	r.Files = append(r.Files, path)
	if IsVideo(path) {
		r.Videos++
	} else {
		r.Images++
	}
}

// DefaultSource is the first existing of ~/Videos, ~/Movies, ~/Media, /media and ~.
func DefaultSource() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/media"
	}
	for _, dir := range []string{
		filepath.Join(home, "Videos"),
		filepath.Join(home, "Movies"),
		filepath.Join(home, "Media"),
		"/media",
	} {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return home
}
