// Package media wraps libvips as an optional decoder for source formats the
// Go codecs cannot read.
//
// The native decode path (jpeg, png, gif, webp, bmp, tiff) lives in the
// transcoder and needs no cgo. When VIPS_FALLBACK is enabled, [InitVips]
// starts libvips and [VipsDecoder] is installed with
// transcoder.WithFallback. It is consulted only for inputs whose magic bytes
// no registered Go codec claims, which in practice means HEIF, AVIF and JPEG
// XL uploads from phones.
//
// Decode errors carry a transcoder class. A known container that fails to
// load is corrupt input, a buffer libvips has no loader for is an
// unsupported format, and a source over MaxPixels is too large.
//
// libvips keeps its own allocator outside the Go heap. [VipsMemStats] exposes
// it to the metrics collector, and MEMORY_RATIO should be lowered when the
// fallback is enabled.
//
// govips cannot restart libvips after [ShutdownVips], so InitVips is
// idempotent and ShutdownVips is called once at process exit.
package media
