package transcoder

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	// Source format decoders, selected by content sniffing
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"imgbudget/internal/mediatypes"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decoder decodes formats the registered Go codecs do not recognise.
// It returns the image and a short format name.
type Decoder interface {
	Decode(raw []byte) (image.Image, string, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(raw []byte) (image.Image, string, error)

// Decode calls f(raw).
func (f DecoderFunc) Decode(raw []byte) (image.Image, string, error) {
	return f(raw)
}

// decoded is the raster produced by the decode stage.
type decoded struct {
	raster *image.NRGBA
	format mediatypes.Format
}

// decode sniffs the source format from content and returns an RGBA8 raster
// with transparency flattened onto white.
func decode(raw []byte, maxPixels int64, fallback Decoder) (*decoded, error) {
	if len(raw) == 0 {
		return nil, &Error{Op: "decode", Kind: ErrUnsupportedFormat, Err: errors.New("empty input")}
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return decodeFallback(raw, maxPixels, fallback)
		}
		return nil, &Error{Op: "decode", Kind: ErrCorruptInput, Err: err}
	}

	if err := checkPixels(cfg.Width, cfg.Height, maxPixels); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &Error{Op: "decode", Kind: ErrCorruptInput, Err: err}
	}

	return toRaster(img, format)
}

func decodeFallback(raw []byte, maxPixels int64, fallback Decoder) (*decoded, error) {
	if fallback == nil {
		return nil, &Error{Op: "decode", Kind: ErrUnsupportedFormat, Err: image.ErrFormat}
	}

	img, format, err := fallback.Decode(raw)
	if err != nil {
		return nil, fallbackError(err)
	}
	if img == nil {
		return nil, &Error{Op: "decode", Kind: ErrUnsupportedFormat, Err: errors.New("fallback decoder returned no image")}
	}

	b := img.Bounds()
	if err := checkPixels(b.Dx(), b.Dy(), maxPixels); err != nil {
		return nil, err
	}

	return toRaster(img, format)
}

// fallbackError keeps the class a fallback decoder already assigned.
// Anything unclassified means the fallback could not read the input either.
func fallbackError(err error) error {
	var te *Error
	if errors.As(err, &te) {
		return err
	}
	for _, kind := range []error{ErrImageTooLarge, ErrCorruptInput, ErrUnsupportedFormat} {
		if errors.Is(err, kind) {
			return &Error{Op: "decode", Kind: kind, Err: err}
		}
	}
	return &Error{Op: "decode", Kind: ErrUnsupportedFormat, Err: err}
}

func checkPixels(width, height int, maxPixels int64) error {
	if maxPixels > 0 && int64(width)*int64(height) > maxPixels {
		return &Error{
			Op:   "decode",
			Kind: ErrImageTooLarge,
			Err:  fmt.Errorf("%dx%d exceeds %d pixels", width, height, maxPixels),
		}
	}
	return nil
}

func toRaster(img image.Image, name string) (*decoded, error) {
	raster := imaging.Clone(img)
	w, h := raster.Bounds().Dx(), raster.Bounds().Dy()
	if w <= 0 || h <= 0 {
		return nil, &Error{Op: "decode", Kind: ErrCorruptInput, Err: fmt.Errorf("empty raster %dx%d", w, h)}
	}

	// JPEG has no alpha channel
	if !raster.Opaque() {
		bg := imaging.New(w, h, color.White)
		raster = imaging.Overlay(bg, raster, image.Pt(0, 0), 1.0)
	}

	return &decoded{raster: raster, format: mediatypes.ParseFormat(name)}, nil
}
