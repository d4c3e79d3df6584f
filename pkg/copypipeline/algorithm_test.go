package copypipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeObserver is a minimal ProgressObserver for exercising algorithms
// directly, without a full CopyTask/CopyWorker.
type fakeObserver struct {
	stop      bool
	lastTotal int64
	lastCopied int64
	errors    []string
}

func (f *fakeObserver) OnProgress(copied, total int64) { f.lastCopied, f.lastTotal = copied, total }
func (f *fakeObserver) OnFileStart(path string)        {}
func (f *fakeObserver) OnFileComplete(path string)     {}
func (f *fakeObserver) OnError(message string)         { f.errors = append(f.errors, message) }
func (f *fakeObserver) ShouldStop() bool               { return f.stop }
func (f *fakeObserver) ShouldPause() bool               { return false }
func (f *fakeObserver) WaitWhilePaused()               {}

func TestDefaultAlgorithm_CopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	content := []byte("hello copy pipeline")
	require.NoError(t, os.WriteFile(src, content, 0o644))

	algo := NewDefaultAlgorithm()
	obs := &fakeObserver{}
	require.NoError(t, algo.CopyFile(src, dst, obs))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.Empty(t, obs.errors)
}

func TestDefaultAlgorithm_CopyDirectory(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "src")
	dstDir := filepath.Join(dir, "dst")
	require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "nested", "b.txt"), []byte("b"), 0o644))

	algo := NewDefaultAlgorithm()
	obs := &fakeObserver{}
	require.NoError(t, algo.CopyDirectory(srcDir, dstDir, obs))

	got, err := os.ReadFile(filepath.Join(dstDir, "nested", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(got))
}

func TestDefaultAlgorithm_CalculateTotalSize(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), make([]byte, 100), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), make([]byte, 50), 0o644))

	algo := NewDefaultAlgorithm()
	total, err := algo.CalculateTotalSize(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(150), total)
}

func TestDefaultAlgorithm_ChunkedCopyStopsEarly(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(src, make([]byte, 1024), 0o644))

	algo := NewDefaultAlgorithm()
	obs := &fakeObserver{stop: true}

	in, err := os.Open(src)
	require.NoError(t, err)
	defer in.Close()
	out, err := os.Create(dst)
	require.NoError(t, err)
	defer out.Close()

	err = algo.chunkedCopy(in, out, 1024, obs)
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestSyncAlgorithm_CopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	content := []byte("synced content")
	require.NoError(t, os.WriteFile(src, content, 0o644))

	algo := NewSyncAlgorithm()
	obs := &fakeObserver{}
	require.NoError(t, algo.CopyFile(src, dst, obs))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestSyncAlgorithm_SupportsPause(t *testing.T) {
	assert.True(t, NewSyncAlgorithm().SupportsPause())
	assert.False(t, NewDefaultAlgorithm().SupportsPause())
}

func TestCleanupPartialDst_RemovesFileOnPermanentFailure(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(dst, []byte("partial"), 0o644))

	cause := os.ErrClosed
	got := cleanupPartialDst(dst, cause)
	assert.Equal(t, cause, got)

	_, statErr := os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr), "partial destination must be removed on a permanent failure")
}

func TestCleanupPartialDst_KeepsFileOnCancellation(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(dst, []byte("partial"), 0o644))

	got := cleanupPartialDst(dst, ErrCancelled)
	assert.ErrorIs(t, got, ErrCancelled)

	_, statErr := os.Stat(dst)
	assert.NoError(t, statErr, "a cancelled copy's partial destination is left in place")
}

// TestDefaultAlgorithm_ChunkedCopyPermanentFailureRemovesPartialDestination
// creates a destination file, forces a permanent write failure (the
// underlying fd is closed out from under chunkedCopy), and checks dst is
// gone afterward, the same cleanup CopyFile performs on this error branch.
func TestDefaultAlgorithm_ChunkedCopyPermanentFailureRemovesPartialDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(src, make([]byte, 8192), 0o644))

	algo := NewDefaultAlgorithm()
	obs := &fakeObserver{}

	in, err := os.Open(src)
	require.NoError(t, err)
	defer in.Close()

	out, err := os.Create(dst)
	require.NoError(t, err)
	require.NoError(t, out.Close())
	_, statErr := os.Stat(dst)
	require.NoError(t, statErr, "dst must exist before the forced failure")

	copyErr := algo.chunkedCopy(in, out, 8192, obs)
	require.Error(t, copyErr)
	require.NotErrorIs(t, copyErr, ErrCancelled)

	finalErr := cleanupPartialDst(dst, copyErr)
	assert.Equal(t, copyErr, finalErr)

	_, statErr = os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr), "partial destination must be removed after a permanent failure")
}

// TestDefaultAlgorithm_CopyFileRemovesPartialDestinationOnPermanentFailure
// drives CopyFile end-to-end with a source that cannot be read (a
// directory opened as if it were a file yields a permanent, non-fallback
// read error on Linux) and checks the destination CopyFile created is
// removed rather than left as a partial file.
func TestDefaultAlgorithm_CopyFileRemovesPartialDestinationOnPermanentFailure(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.Mkdir(srcDir, 0o755))

	algo := NewDefaultAlgorithm()
	obs := &fakeObserver{}

	err := algo.CopyFile(srcDir, dst, obs)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrCancelled)

	_, statErr := os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr), "partial destination must be removed after a permanent failure")
	assert.NotEmpty(t, obs.errors)
}

// TestSyncAlgorithm_CopyFileRemovesPartialDestinationOnPermanentFailure is
// the SyncAlgorithm analogue: its CopyFile has no fallback path, so the
// directory-as-source trick forces the read-chunk error branch directly.
func TestSyncAlgorithm_CopyFileRemovesPartialDestinationOnPermanentFailure(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.Mkdir(srcDir, 0o755))

	algo := NewSyncAlgorithm()
	obs := &fakeObserver{}

	err := algo.CopyFile(srcDir, dst, obs)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrCancelled)

	_, statErr := os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr), "partial destination must be removed after a permanent failure")
	assert.NotEmpty(t, obs.errors)
}
