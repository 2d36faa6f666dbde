// Package memory keeps the transcoder inside its container memory limit.
//
// Decoding is the expensive step: a 6000x4000 source becomes a 96 MB RGBA
// raster before any encoding starts, and each search iteration allocates a
// resized copy on top. Two mechanisms bound this.
//
// [ConfigureFromEnv] derives GOMEMLIMIT from the container limit so the
// garbage collector works harder before the kernel OOM-kills the process:
//
//   - GOMEMLIMIT: standard Go variable, takes precedence when set
//   - MEMORY_LIMIT: container limit in bytes, usually from the Downward API
//   - MEMORY_RATIO: share of MEMORY_LIMIT for the Go heap (default 0.85);
//     lower it when the libvips fallback is enabled, since its buffers
//     live outside the Go heap
//
// [Monitor] samples heap usage and implements the transcode pool's gate:
// above the pause watermark new transcodes wait, and they resume once usage
// drops below the resume watermark. Transcodes already running are never
// interrupted.
//
//	spec:
//	  containers:
//	  - name: imgbudget
//	    resources:
//	      limits:
//	        memory: "1Gi"
//	    env:
//	    - name: MEMORY_LIMIT
//	      valueFrom:
//	        resourceFieldRef:
//	          resource: limits.memory
package memory
