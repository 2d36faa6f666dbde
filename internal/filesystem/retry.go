package filesystem

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"imgbudget/internal/logging"
)

// RetryConfig configures retry behavior for filesystem operations
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns sensible defaults for NFS retry behavior
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// isNFSStaleError checks if an error is an NFS stale file handle error
func isNFSStaleError(err error) bool {
	if err == nil {
		return false
	}

	// ESTALE is errno 116 on Linux
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ESTALE
	}

	return false
}

// withRetry runs fn until it succeeds, fails with anything other than
// ESTALE, runs out of attempts, or ctx ends during a backoff.
func withRetry(ctx context.Context, op, path string, config RetryConfig, fn func() error) error {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 0 {
				logging.Info("NFS %s succeeded on retry %d for %s", op, attempt, path)
			}
			return nil
		}

		lastErr = err

		// Only retry on NFS stale file handle errors
		if !isNFSStaleError(err) {
			return err
		}

		// Don't sleep after the last attempt
		if attempt < config.MaxRetries {
			logging.Debug("NFS %s stale file handle for %s, retrying in %v (attempt %d/%d)",
				op, path, backoff, attempt+1, config.MaxRetries)

			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}

			// Exponential backoff with cap
			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	logging.Warn("NFS %s failed after %d retries for %s: %v", op, config.MaxRetries, path, lastErr)
	return lastErr
}

// Stat performs os.Stat, retrying NFS stale file handle errors.
func Stat(ctx context.Context, path string, config RetryConfig) (os.FileInfo, error) {
	var info os.FileInfo
	err := withRetry(ctx, "stat", path, config, func() error {
		var err error
		info, err = os.Stat(path)
		return err
	})
	return info, err
}

// ReadFile performs os.ReadFile, retrying NFS stale file handle errors.
func ReadFile(ctx context.Context, path string, config RetryConfig) ([]byte, error) {
	var data []byte
	err := withRetry(ctx, "read", path, config, func() error {
		var err error
		data, err = os.ReadFile(path)
		return err
	})
	return data, err
}

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it into place, so readers never see a partial file. The whole
// sequence is retried on NFS stale file handle errors.
func WriteFileAtomic(ctx context.Context, path string, data []byte, perm os.FileMode, config RetryConfig) error {
	return withRetry(ctx, "write", path, config, func() error {
		return writeAtomic(path, data, perm)
	})
}

func writeAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	cleanup := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		return cleanup(err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
