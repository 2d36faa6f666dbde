/*
Package workers sizes and bounds concurrent transcoding.

Decoding, resampling and encoding allocate raster buffers proportional to
image dimensions, so running too many transcodes at once is the main way
the service can run out of memory. Pool caps concurrency; Count and ForCPU
pick a sensible cap inside containers.

# Worker Counts

runtime.NumCPU() reports the host's CPUs, not the container's limit.
GOMAXPROCS follows the cgroup limit on Go 1.19+, so Count uses it:

	// Transcoding is CPU-bound: one worker per available CPU, max 8
	size := workers.ForCPU(8)

Operators can fix the count with TRANSCODE_WORKERS:

	env:
	- name: TRANSCODE_WORKERS
	  value: "2"

# Pool

Pool is a counting semaphore. Do blocks until a slot is free or the
context ends, then runs the task on the caller's goroutine:

	pool := workers.NewPool(workers.ForCPU(8),
		workers.WithGate(monitor),
		workers.WithObserver(metrics.NewPoolObserver()),
	)

	err := pool.Do(ctx, func(ctx context.Context) error {
		res, err = trans.Transcode(ctx, raw, cfg)
		return err
	})

Each fans out n independent tasks and collects their errors by index,
which is how batch uploads are processed:

	errs := pool.Each(ctx, len(parts), func(ctx context.Context, i int) error {
		return handle(ctx, parts[i])
	})

# Gate

A Gate is consulted before each task is admitted. memory.Monitor
implements it and holds new work back while heap usage is above its
critical watermark.

# Thread Safety

All functions and Pool methods are safe for concurrent use.
*/
package workers
