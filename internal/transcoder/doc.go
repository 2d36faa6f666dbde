// Package transcoder compresses uploaded images to fit a byte budget.
//
// A call has three stages:
//   - Decode: the source format is sniffed from content (JPEG, PNG, GIF,
//     WebP, BMP, TIFF, plus an optional fallback decoder) into an RGBA8
//     raster, honouring EXIF orientation
//   - Search: inputs above Config.BigThresholdBytes are repeatedly
//     downscaled with a Lanczos filter and re-encoded at decreasing JPEG
//     quality until the output fits Config.TargetBudgetBytes or the
//     quality reaches Config.QualityFloor
//   - Result: the encoded bytes plus sizes, quality, dimensions, iteration
//     count and the termination branch
//
// Smaller inputs skip the search and are encoded once at
// Config.DirectQuality.
//
// When the quality floor is reached first, the last output is returned
// even though it may exceed the budget. Result.BudgetMet reports which
// case occurred so callers can decide whether to accept it.
//
// The package never logs and keeps no global state. Calls are
// independent and safe to run concurrently; bounding their number is the
// caller's job (see the workers package).
package transcoder
