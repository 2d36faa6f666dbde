package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"imgbudget/internal/logging"
	"imgbudget/internal/mediatypes"
	"imgbudget/internal/metrics"
	"imgbudget/internal/transcoder"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
)

// ErrVipsUnavailable is returned when the fallback is used before InitVips.
var ErrVipsUnavailable = errors.New("libvips not available")

// VipsDecoder decodes formats the Go codecs cannot read, such as HEIF and
// AVIF, through libvips. It implements transcoder.Decoder.
type VipsDecoder struct {
	// MaxPixels rejects sources larger than this before they are rasterised
	// (0 = no limit).
	MaxPixels int64
}

// Decode loads raw with libvips, applies EXIF orientation and hands the
// pixels back as an image.Image. The returned name is the libvips loader's
// format.
func (d VipsDecoder) Decode(raw []byte) (image.Image, string, error) {
	img, format, err := d.decode(raw)
	if err != nil {
		metrics.VipsFallbackDecodes.WithLabelValues("error").Inc()
		return nil, "", err
	}
	metrics.VipsFallbackDecodes.WithLabelValues("ok").Inc()
	return img, format, nil
}

func (d VipsDecoder) decode(raw []byte) (image.Image, string, error) {
	if !IsVipsAvailable() {
		return nil, "", ErrVipsUnavailable
	}

	ref, err := vips.NewImageFromBuffer(raw)
	if err != nil {
		return nil, "", loadError(vips.DetermineImageType(raw), err)
	}
	defer ref.Close()

	format := formatName(ref.Format())
	width, height := ref.Width(), ref.Height()
	logging.Debug("Vips loaded %s source: %dx%d", format, width, height)

	if err := checkPixels(width, height, d.MaxPixels); err != nil {
		return nil, "", err
	}

	// libvips decodes lazily, so truncated pixel data surfaces here
	if err := ref.AutoRotate(); err != nil {
		return nil, "", corrupt(fmt.Errorf("vips auto-rotate failed: %w", err))
	}

	// PNG is lossless, so the raster reaches the encoder unchanged
	params := vips.NewPngExportParams()
	params.Compression = 1
	params.StripMetadata = true
	buf, _, err := ref.ExportPng(params)
	if err != nil {
		return nil, "", corrupt(fmt.Errorf("vips export failed: %w", err))
	}

	img, err := imaging.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, "", corrupt(fmt.Errorf("failed to decode vips output: %w", err))
	}

	return img, format, nil
}

// loadError classifies a failed libvips load. Magic bytes libvips knows
// mean the payload is damaged; anything else has no loader.
func loadError(t vips.ImageType, err error) error {
	if t == vips.ImageTypeUnknown {
		return &transcoder.Error{Op: "decode", Kind: transcoder.ErrUnsupportedFormat, Err: fmt.Errorf("vips has no loader: %w", err)}
	}
	return corrupt(fmt.Errorf("vips failed to load %s: %w", formatName(t), err))
}

func corrupt(err error) error {
	return &transcoder.Error{Op: "decode", Kind: transcoder.ErrCorruptInput, Err: err}
}

func checkPixels(width, height int, maxPixels int64) error {
	if maxPixels > 0 && int64(width)*int64(height) > maxPixels {
		return &transcoder.Error{
			Op:   "decode",
			Kind: transcoder.ErrImageTooLarge,
			Err:  fmt.Errorf("%dx%d exceeds %d pixels", width, height, maxPixels),
		}
	}
	return nil
}

func formatName(t vips.ImageType) string {
	switch t {
	case vips.ImageTypeHEIF:
		return string(mediatypes.FormatHEIF)
	case vips.ImageTypeAVIF:
		return string(mediatypes.FormatAVIF)
	}
	if name, ok := vips.ImageTypes[t]; ok {
		return name
	}
	return string(mediatypes.FormatUnknown)
}
