// Package mediatypes names the image formats the service understands and
// maps them to MIME types and file extensions.
//
// It has no dependencies beyond the standard library so that the
// transcoder, the libvips adapter, metrics and HTTP handlers can all share
// it without import cycles.
//
// # Formats
//
// Formats are identified by content, never by filename. The names match
// what image.DecodeConfig reports for the registered Go codecs:
//
//	mediatypes.ParseFormat("jpeg") // FormatJPEG
//	mediatypes.ParseFormat("heic") // FormatHEIF
//
// NativeFormats are handled by Go codecs; FallbackFormats require the
// optional libvips decoder in the media package.
//
// # Extensions
//
// The CLI uses extensions only to choose which files in a directory to
// feed to the transcoder:
//
//	if mediatypes.IsImageFile(filepath.Ext(name)) {
//	    // queue for transcoding
//	}
//
// Output is always JPEG (OutputFormat, OutputExtension).
package mediatypes
