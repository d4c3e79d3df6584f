package copypipeline

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/cuemby/filemgr/pkg/metrics"
)

// DefaultAlgorithm copies files using the kernel-assisted copy_file_range
// syscall where the source and destination filesystems support it, falling
// back to a chunked userspace copy otherwise (different filesystems,
// network mounts, or an EXDEV/ENOSYS/EINVAL from the kernel).
type DefaultAlgorithm struct {
	Chunk ChunkStrategy
}

// NewDefaultAlgorithm creates a DefaultAlgorithm using DefaultChunkStrategy
// for its fallback path.
func NewDefaultAlgorithm() *DefaultAlgorithm {
	return &DefaultAlgorithm{Chunk: DefaultChunkStrategy}
}

func (a *DefaultAlgorithm) Name() string { return "default" }

// SupportsPause is false: the kernel range-copy path runs to completion (or
// failure) in one syscall loop and cannot be interrupted mid-file without
// falling back to the chunked path, which CopyFile does automatically on
// the first unsupported-fallback error.
func (a *DefaultAlgorithm) SupportsPause() bool { return false }

func (a *DefaultAlgorithm) CalculateTotalSize(src string) (int64, error) {
	return calculateTotalSize(src)
}

func (a *DefaultAlgorithm) CopyFile(src, dst string, obs ProgressObserver) error {
	obs.OnFileStart(src)

	in, err := os.Open(src)
	if err != nil {
		obs.OnError(err.Error())
		return fmt.Errorf("open source %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		obs.OnError(err.Error())
		return fmt.Errorf("stat source %s: %w", src, err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		obs.OnError(err.Error())
		return fmt.Errorf("open destination %s: %w", dst, err)
	}

	if err := a.rangeCopy(in, out, info.Size(), obs); err != nil {
		if errors.Is(err, ErrUnsupported) {
			metrics.CopyFallbacksTotal.Inc()
			if _, seekErr := in.Seek(0, io.SeekStart); seekErr != nil {
				out.Close()
				return cleanupPartialDst(dst, fmt.Errorf("seek source %s after fallback: %w", src, seekErr))
			}
			if err := a.chunkedCopy(in, out, info.Size(), obs); err != nil {
				out.Close()
				obs.OnError(err.Error())
				return cleanupPartialDst(dst, err)
			}
		} else {
			out.Close()
			obs.OnError(err.Error())
			return cleanupPartialDst(dst, err)
		}
	}

	if err := out.Close(); err != nil {
		return cleanupPartialDst(dst, fmt.Errorf("close destination %s: %w", dst, err))
	}

	obs.OnFileComplete(src)
	return nil
}

// rangeCopy attempts unix.CopyFileRange in a loop until size bytes are
// copied. Returns a wrapped ErrUnsupported if the kernel rejects the call
// for a reason that means "try the chunked path instead".
func (a *DefaultAlgorithm) rangeCopy(in, out *os.File, size int64, obs ProgressObserver) error {
	var copied int64
	for copied < size {
		if obs.ShouldStop() {
			return ErrCancelled
		}
		remaining := size - copied
		n, err := unix.CopyFileRange(int(in.Fd()), nil, int(out.Fd()), nil, int(remaining), 0)
		if err != nil {
			if errors.Is(err, unix.EXDEV) || errors.Is(err, unix.ENOSYS) || errors.Is(err, unix.EINVAL) {
				return ErrUnsupported
			}
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			return fmt.Errorf("copy_file_range: %w", err)
		}
		if n == 0 {
			break
		}
		copied += int64(n)
		obs.OnProgress(copied, size)
	}
	return nil
}

// chunkedCopy is the portable fallback: a buffered read/write loop honoring
// pause/stop between chunks.
func (a *DefaultAlgorithm) chunkedCopy(in io.Reader, out io.Writer, size int64, obs ProgressObserver) error {
	chunkSize := ClampChunkSize(a.chunkStrategy()(size))
	buf := make([]byte, chunkSize)

	var copied int64
	for {
		if obs.ShouldStop() {
			return ErrCancelled
		}
		obs.WaitWhilePaused()

		n, err := in.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write chunk: %w", werr)
			}
			copied += int64(n)
			obs.OnProgress(copied, size)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read chunk: %w", err)
		}
	}
}

func (a *DefaultAlgorithm) chunkStrategy() ChunkStrategy {
	if a.Chunk != nil {
		return a.Chunk
	}
	return DefaultChunkStrategy
}

func (a *DefaultAlgorithm) CopyDirectory(src, dst string, obs ProgressObserver) error {
	return copyDirectory(src, dst, obs, a.CopyFile)
}

// calculateTotalSize walks a file or directory tree and sums regular file
// sizes, shared by DefaultAlgorithm and SyncAlgorithm.
func calculateTotalSize(src string) (int64, error) {
	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrSourceMissing, src)
		}
		return 0, fmt.Errorf("stat %s: %w", src, err)
	}
	if !info.IsDir() {
		return info.Size(), nil
	}

	var total int64
	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			fi, err := d.Info()
			if err != nil {
				return err
			}
			total += fi.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %s: %w", src, err)
	}
	return total, nil
}

// copyDirectory recursively mirrors src's tree into dst, calling copyFile
// for every regular file encountered. Shared by both algorithms; they
// differ only in how copyFile moves bytes.
func copyDirectory(src, dst string, obs ProgressObserver, copyFile func(string, string, ProgressObserver) error) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if obs.ShouldStop() {
			return ErrCancelled
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", path, err)
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode().Perm())
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !strings.HasPrefix(target, dst) {
			return fmt.Errorf("refusing to write outside destination: %s", target)
		}
		return copyFile(path, target, obs)
	})
}
