// Package storage maps submissions onto the media directory and performs the
// filesystem operations the capture and export flows depend on.
//
// File names are a contract with the capture client: face images are stored as
// q{n}_face.png and video segments as q{n}_segment.<ext>. The export step
// locates media by these names alone, and segment order is recovered by
// sorting on them.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	imagesDir   = "images"
	segmentsDir = "segments"
	videosDir   = "videos"

	// MaxQuestionIndex is the highest question index a media name may carry.
	MaxQuestionIndex = 5
)

// MediaKind classifies uploaded media.
type MediaKind string

const (
	// KindImage is a captured face image.
	KindImage MediaKind = "image"
	// KindVideo is a per-question video segment.
	KindVideo MediaKind = "video"
)

// ErrInvalidMediaName indicates a file name that breaks the naming convention.
var ErrInvalidMediaName = errors.New("media file name does not follow naming convention")

var (
	imageNamePattern   = regexp.MustCompile(`^q([1-9][0-9]*)_face\.png$`)
	segmentNamePattern = regexp.MustCompile(`^q([1-9][0-9]*)_segment\.([A-Za-z0-9]{1,8})$`)
)

// Layout resolves canonical paths below a media root directory.
type Layout struct {
	root string
}

// NewLayout returns a layout rooted at root.
func NewLayout(root string) Layout {
	return Layout{root: filepath.Clean(root)}
}

// Root returns the media root directory.
func (l Layout) Root() string {
	return l.root
}

// SubmissionRoot returns the directory holding all media of a submission.
func (l Layout) SubmissionRoot(id uint) string {
	return filepath.Join(l.root, fmt.Sprintf("submission_%d", id))
}

// ImagesDir returns the directory for face images.
func (l Layout) ImagesDir(id uint) string {
	return filepath.Join(l.SubmissionRoot(id), imagesDir)
}

// SegmentsDir returns the directory for recorded video segments.
func (l Layout) SegmentsDir(id uint) string {
	return filepath.Join(l.SubmissionRoot(id), segmentsDir)
}

// VideosDir returns the directory reserved for derived videos.
func (l Layout) VideosDir(id uint) string {
	return filepath.Join(l.SubmissionRoot(id), videosDir)
}

// ImagePath returns the canonical face image path for a question index.
func (l Layout) ImagePath(id uint, question int) string {
	return filepath.Join(l.ImagesDir(id), ImageFileName(question))
}

// SegmentPath returns the path a segment with the given extension is stored at.
func (l Layout) SegmentPath(id uint, question int, ext string) string {
	return filepath.Join(l.SegmentsDir(id), SegmentFileName(question, ext))
}

// MediaPath returns where an uploaded file of the given kind is stored.
func (l Layout) MediaPath(id uint, kind MediaKind, name string) (string, error) {
	if _, err := ParseMediaName(kind, name); err != nil {
		return "", err
	}

	switch kind {
	case KindImage:
		return filepath.Join(l.ImagesDir(id), name), nil
	case KindVideo:
		return filepath.Join(l.SegmentsDir(id), name), nil
	default:
		return "", fmt.Errorf("unknown media kind %q", kind)
	}
}

// SegmentPaths lists the video segments of a submission sorted by file name.
// A missing segments directory yields an empty list.
func (l Layout) SegmentPaths(id uint) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(l.SegmentsDir(id), "q*_segment.*"))
	if err != nil {
		return nil, err
	}

	segments := make([]string, 0, len(matches))
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		segments = append(segments, match)
	}

	SortByFileName(segments)
	return segments, nil
}

// RemoveStaleSegments deletes segments recorded for question under any name
// other than keep, so a re-upload with a different container replaces the
// earlier take instead of being concatenated after it.
func (l Layout) RemoveStaleSegments(id uint, question int, keep string) error {
	pattern := filepath.Join(l.SegmentsDir(id), fmt.Sprintf("q%d_segment.*", question))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}
	for _, match := range matches {
		if filepath.Base(match) == keep {
			continue
		}
		if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// ExportFileName returns the artifact name for a submission export.
func ExportFileName(id uint) string {
	return fmt.Sprintf("submission_%d_export.zip", id)
}

// ExportArtifactPath returns where the published export archive lives.
func (l Layout) ExportArtifactPath(id uint) string {
	return filepath.Join(l.SubmissionRoot(id), ExportFileName(id))
}

// EnsureSubmissionDirs creates the submission directory tree. Existing
// directories are left untouched.
func (l Layout) EnsureSubmissionDirs(id uint) (string, error) {
	base := l.SubmissionRoot(id)
	for _, dir := range []string{base, l.ImagesDir(id), l.SegmentsDir(id), l.VideosDir(id)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return base, nil
}

// RemoveSubmission deletes every file stored for a submission.
func (l Layout) RemoveSubmission(id uint) error {
	return os.RemoveAll(l.SubmissionRoot(id))
}

// ImageFileName returns the canonical face image name for a question.
func ImageFileName(question int) string {
	return fmt.Sprintf("q%d_face.png", question)
}

// SegmentFileName returns the canonical segment name for a question.
func SegmentFileName(question int, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	return fmt.Sprintf("q%d_segment.%s", question, ext)
}

// ParseMediaName validates name against the convention for kind and returns
// the embedded question index.
func ParseMediaName(kind MediaKind, name string) (int, error) {
	if name != filepath.Base(name) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMediaName, name)
	}

	var pattern *regexp.Regexp
	switch kind {
	case KindImage:
		pattern = imageNamePattern
	case KindVideo:
		pattern = segmentNamePattern
	default:
		return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidMediaName, kind)
	}

	match := pattern.FindStringSubmatch(name)
	if match == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMediaName, name)
	}

	question, err := strconv.Atoi(match[1])
	if err != nil || question > MaxQuestionIndex {
		return 0, fmt.Errorf("%w: question index out of range in %q", ErrInvalidMediaName, name)
	}

	return question, nil
}

// SortByFileName orders paths by base name, then by full path.
func SortByFileName(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		bi, bj := filepath.Base(paths[i]), filepath.Base(paths[j])
		if bi != bj {
			return bi < bj
		}
		return paths[i] < paths[j]
	})
}
