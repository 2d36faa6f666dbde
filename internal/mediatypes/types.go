package mediatypes

import "strings"

// Format is the short name of an image encoding, as reported by content
// sniffing (image.DecodeConfig) or by the libvips loader.
type Format string

const (
	// FormatJPEG is JPEG/JFIF.
	FormatJPEG Format = "jpeg"
	// FormatPNG is PNG.
	FormatPNG Format = "png"
	// FormatGIF is GIF (first frame only).
	FormatGIF Format = "gif"
	// FormatWebP is WebP.
	FormatWebP Format = "webp"
	// FormatBMP is Windows bitmap.
	FormatBMP Format = "bmp"
	// FormatTIFF is TIFF.
	FormatTIFF Format = "tiff"
	// FormatHEIF is HEIF/HEIC, decodable only through libvips.
	FormatHEIF Format = "heif"
	// FormatAVIF is AVIF, decodable only through libvips.
	FormatAVIF Format = "avif"
	// FormatJXL is JPEG XL, decodable only through libvips.
	FormatJXL Format = "jxl"
	// FormatUnknown is used when the format could not be determined.
	FormatUnknown Format = "unknown"
)

// OutputFormat is the only encoding the transcoder produces.
const OutputFormat = FormatJPEG

// OutputExtension is the file extension for transcoded output.
const OutputExtension = ".jpg"

// NativeFormats are decoded by registered Go codecs.
var NativeFormats = []Format{FormatJPEG, FormatPNG, FormatGIF, FormatWebP, FormatBMP, FormatTIFF}

// FallbackFormats need the optional libvips decoder.
var FallbackFormats = []Format{FormatHEIF, FormatAVIF, FormatJXL}

// ImageExtensions maps file extensions to the format they usually hold.
// Decoding never trusts the extension; this is only used to pick input
// files from a directory listing.
var ImageExtensions = map[string]Format{
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".jfif": FormatJPEG,
	".png":  FormatPNG,
	".gif":  FormatGIF,
	".webp": FormatWebP,
	".bmp":  FormatBMP,
	".tiff": FormatTIFF,
	".tif":  FormatTIFF,
	".heic": FormatHEIF,
	".heif": FormatHEIF,
	".avif": FormatAVIF,
	".jxl":  FormatJXL,
}

// MimeTypes maps formats to their MIME types.
var MimeTypes = map[Format]string{
	FormatJPEG: "image/jpeg",
	FormatPNG:  "image/png",
	FormatGIF:  "image/gif",
	FormatWebP: "image/webp",
	FormatBMP:  "image/bmp",
	FormatTIFF: "image/tiff",
	FormatHEIF: "image/heif",
	FormatAVIF: "image/avif",
	FormatJXL:  "image/jxl",
}

// ParseFormat normalises a decoder-reported format name.
// Returns FormatUnknown if the name is not recognized.
func ParseFormat(name string) Format {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "jpg":
		return FormatJPEG
	case "heic":
		return FormatHEIF
	case "tif":
		return FormatTIFF
	}
	f := Format(name)
	if _, ok := MimeTypes[f]; ok {
		return f
	}
	return FormatUnknown
}

// FormatFromExtension returns the format usually stored under ext.
// The extension should include the leading dot; case is ignored.
func FormatFromExtension(ext string) Format {
	if f, ok := ImageExtensions[strings.ToLower(ext)]; ok {
		return f
	}
	return FormatUnknown
}

// GetMimeType returns the MIME type for a format, or
// "application/octet-stream" if it is not recognized.
func GetMimeType(f Format) string {
	if mime, ok := MimeTypes[f]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IsImageFile returns true if ext names a file worth trying to transcode.
func IsImageFile(ext string) bool {
	return FormatFromExtension(ext) != FormatUnknown
}

// AllFormats returns every known format plus FormatUnknown, for
// pre-populating metric labels.
func AllFormats() []Format {
	all := make([]Format, 0, len(NativeFormats)+len(FallbackFormats)+1)
	all = append(all, NativeFormats...)
	all = append(all, FallbackFormats...)
	return append(all, FormatUnknown)
}
