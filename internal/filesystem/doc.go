/*
Package filesystem provides file reads and writes with retry logic for NFS
stale file handle errors.

The imgbudget CLI reads inputs and writes outputs through this package, so
batches over NFS-mounted photo libraries survive transient ESTALE (errno
116) failures instead of failing individual files.

# Usage

	data, err := filesystem.ReadFile(ctx, "/nfs/photos/cat.heic", filesystem.DefaultRetryConfig())

	err = filesystem.WriteFileAtomic(ctx, "/nfs/out/cat.jpg", jpeg, 0o644, filesystem.DefaultRetryConfig())

WriteFileAtomic writes into a hidden temp file next to the target and
renames it into place, so an interrupted run never leaves a truncated JPEG.

# Retry Behavior

Retries use exponential backoff with these defaults:
  - MaxRetries: 3 attempts
  - InitialBackoff: 50ms
  - MaxBackoff: 500ms

Only ESTALE triggers a retry. All other errors are returned immediately.
A cancelled context ends the backoff wait early with ctx.Err().
*/
package filesystem
