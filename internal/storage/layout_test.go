package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLayoutPaths(t *testing.T) {
	layout := NewLayout("/srv/media/")

	require.Equal(t, "/srv/media/submission_7", layout.SubmissionRoot(7))
	require.Equal(t, "/srv/media/submission_7/images/q3_face.png", layout.ImagePath(7, 3))
	require.Equal(t, "/srv/media/submission_7/segments/q2_segment.webm", layout.SegmentPath(7, 2, ".webm"))
	require.Equal(t, "/srv/media/submission_7/submission_7_export.zip", layout.ExportArtifactPath(7))
	require.Equal(t, "submission_7_export.zip", ExportFileName(7))
}

func TestEnsureSubmissionDirsIsIdempotent(t *testing.T) {
	layout := NewLayout(t.TempDir())

	base, err := layout.EnsureSubmissionDirs(1)
	require.NoError(t, err)
	require.DirExists(t, filepath.Join(base, "images"))
	require.DirExists(t, filepath.Join(base, "segments"))
	require.DirExists(t, filepath.Join(base, "videos"))

	require.NoError(t, os.WriteFile(layout.ImagePath(1, 1), []byte("png"), 0o644))

	again, err := layout.EnsureSubmissionDirs(1)
	require.NoError(t, err)
	require.Equal(t, base, again)
	require.FileExists(t, layout.ImagePath(1, 1))
}

func TestEnsureSubmissionDirsFailsWhenRootIsAFile(t *testing.T) {
	root := filepath.Join(t.TempDir(), "media")
	require.NoError(t, os.WriteFile(root, []byte("not a dir"), 0o644))

	_, err := NewLayout(root).EnsureSubmissionDirs(1)
	require.Error(t, err)
}

func TestSegmentPathsSortsByFileName(t *testing.T) {
	layout := NewLayout(t.TempDir())
	_, err := layout.EnsureSubmissionDirs(4)
	require.NoError(t, err)

	for _, name := range []string{"q1_segment.webm", "q3_segment.webm", "q2_segment.mp4", "notes.txt", "q4_face.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(layout.SegmentsDir(4), name), []byte(name), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(layout.SegmentsDir(4), "q5_segment.dir"), 0o755))

	segments, err := layout.SegmentPaths(4)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(layout.SegmentsDir(4), "q1_segment.webm"),
		filepath.Join(layout.SegmentsDir(4), "q2_segment.mp4"),
		filepath.Join(layout.SegmentsDir(4), "q3_segment.webm"),
	}, segments)
}

func TestRemoveStaleSegmentsKeepsOnlyNamedTake(t *testing.T) {
	layout := NewLayout(t.TempDir())
	_, err := layout.EnsureSubmissionDirs(6)
	require.NoError(t, err)

	for _, name := range []string{"q1_segment.webm", "q1_segment.mp4", "q10_segment.webm", "q2_segment.webm"} {
		require.NoError(t, os.WriteFile(filepath.Join(layout.SegmentsDir(6), name), []byte(name), 0o644))
	}

	require.NoError(t, layout.RemoveStaleSegments(6, 1, "q1_segment.mp4"))

	segments, err := layout.SegmentPaths(6)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(layout.SegmentsDir(6), "q10_segment.webm"),
		filepath.Join(layout.SegmentsDir(6), "q1_segment.mp4"),
		filepath.Join(layout.SegmentsDir(6), "q2_segment.webm"),
	}, segments)

	require.NoError(t, NewLayout(t.TempDir()).RemoveStaleSegments(9, 1, "q1_segment.webm"))
}

func TestSegmentPathsEmptyWhenDirectoryMissing(t *testing.T) {
	segments, err := NewLayout(t.TempDir()).SegmentPaths(99)
	require.NoError(t, err)
	require.Empty(t, segments)
}

func TestParseMediaName(t *testing.T) {
	question, err := ParseMediaName(KindImage, "q4_face.png")
	require.NoError(t, err)
	require.Equal(t, 4, question)

	question, err = ParseMediaName(KindVideo, "q2_segment.webm")
	require.NoError(t, err)
	require.Equal(t, 2, question)

	invalid := []struct {
		kind MediaKind
		name string
	}{
		{KindImage, "q1_face.jpg"},
		{KindImage, "../q1_face.png"},
		{KindImage, "q6_face.png"},
		{KindImage, "q0_face.png"},
		{KindVideo, "q1_face.png"},
		{KindVideo, "q1_segment."},
		{KindVideo, "q1_segment.we bm"},
		{KindVideo, "segments/q1_segment.webm"},
		{MediaKind("audio"), "q1_segment.webm"},
	}
	for _, tc := range invalid {
		_, err := ParseMediaName(tc.kind, tc.name)
		require.ErrorIs(t, err, ErrInvalidMediaName, "%s %s", tc.kind, tc.name)
	}
}

func TestMediaPathRoutesByKind(t *testing.T) {
	layout := NewLayout("/media")

	path, err := layout.MediaPath(2, KindImage, "q1_face.png")
	require.NoError(t, err)
	require.Equal(t, "/media/submission_2/images/q1_face.png", path)

	path, err = layout.MediaPath(2, KindVideo, "q1_segment.webm")
	require.NoError(t, err)
	require.Equal(t, "/media/submission_2/segments/q1_segment.webm", path)

	_, err = layout.MediaPath(2, KindVideo, "../../etc/passwd")
	require.ErrorIs(t, err, ErrInvalidMediaName)
}
