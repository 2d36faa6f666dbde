// Command imgbudget transcodes image files on disk to JPEG within a byte
// budget, using the same transcoder and worker pool as the server.
//
// Usage:
//
//	imgbudget [flags] file|dir...
//
// Directories are walked recursively; hidden directories are skipped and
// only files with a known image extension are picked up. Files named
// explicitly are always attempted, since decoding sniffs the content.
//
// Each input is written as <name>.jpg into -out, or next to the input when
// -out is empty. An input that is already <name>.jpg in the same directory
// is written as <name>_budget.jpg.
//
// Flags mirror the server's environment variables:
//
//	-threshold       BIG_THRESHOLD_BYTES
//	-budget          TARGET_BUDGET_BYTES
//	-quality         INITIAL_QUALITY
//	-direct-quality  DIRECT_QUALITY
//	-floor           QUALITY_FLOOR
//	-step            QUALITY_STEP
//	-decay           SCALE_DECAY
//	-min-dim         MIN_DIMENSION_PX
//	-max-iterations  MAX_ITERATIONS
//	-max-pixels      MAX_INPUT_PIXELS
//	-workers         TRANSCODE_WORKERS
//	-strict          REJECT_OVER_BUDGET
//	-vips            VIPS_FALLBACK
//
// Output is an aligned table when stdout is a terminal and JSON lines
// otherwise (or with -json). The exit status is 1 if any file failed and
// 2 for usage errors.
package main
