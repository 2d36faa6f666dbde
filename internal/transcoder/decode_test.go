package transcoder

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"testing"

	"imgbudget/internal/mediatypes"
)

func TestDecode_Formats(t *testing.T) {
	src := gradientImage(40, 30)

	tests := []struct {
		name   string
		raw    []byte
		format mediatypes.Format
	}{
		{"png", encodePNG(t, src), mediatypes.FormatPNG},
		{"jpeg", encodeJPEGBytes(t, src, 90), mediatypes.FormatJPEG},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := decode(tt.raw, 0, nil)
			if err != nil {
				t.Fatalf("decode() error: %v", err)
			}
			if d.format != tt.format {
				t.Errorf("Expected format %q, got %q", tt.format, d.format)
			}
			b := d.raster.Bounds()
			if b.Dx() != 40 || b.Dy() != 30 {
				t.Errorf("Expected 40x30 raster, got %dx%d", b.Dx(), b.Dy())
			}
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	valid := encodeJPEGBytes(t, gradientImage(64, 64), 90)

	tests := []struct {
		name string
		raw  []byte
		kind error
	}{
		{"empty input", []byte{}, ErrUnsupportedFormat},
		{"nil input", nil, ErrUnsupportedFormat},
		{"plain text", []byte("definitely not an image"), ErrUnsupportedFormat},
		{"truncated jpeg header", valid[:20], ErrCorruptInput},
		{"jpeg magic only", []byte{0xff, 0xd8}, ErrCorruptInput},
		{"truncated jpeg body", valid[:len(valid)/2], ErrCorruptInput},
		{"png signature only", []byte("\x89PNG\r\n\x1a\n"), ErrCorruptInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decode(tt.raw, 0, nil)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !errors.Is(err, tt.kind) {
				t.Errorf("Expected %v, got %v", tt.kind, err)
			}

			var terr *Error
			if !errors.As(err, &terr) {
				t.Fatalf("Expected *Error, got %T", err)
			}
			if terr.Op != "decode" {
				t.Errorf("Expected Op=decode, got %q", terr.Op)
			}
		})
	}
}

func TestDecode_PixelLimit(t *testing.T) {
	raw := encodePNG(t, gradientImage(200, 150))

	if _, err := decode(raw, 30000, nil); err != nil {
		t.Errorf("Expected image at the limit to decode, got %v", err)
	}

	_, err := decode(raw, 29999, nil)
	if !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("Expected ErrImageTooLarge, got %v", err)
	}
}

func TestDecode_Fallback(t *testing.T) {
	raw := []byte("FAKEFORMAT payload")

	t.Run("fallback succeeds", func(t *testing.T) {
		var called bool
		fb := DecoderFunc(func(b []byte) (image.Image, string, error) {
			called = true
			return gradientImage(10, 8), "fake", nil
		})

		d, err := decode(raw, 0, fb)
		if err != nil {
			t.Fatalf("decode() error: %v", err)
		}
		if !called {
			t.Error("Expected fallback decoder to be called")
		}
		if d.format != mediatypes.FormatUnknown {
			t.Errorf("Expected unrecognised fallback format to be unknown, got %q", d.format)
		}
	})

	t.Run("fallback fails", func(t *testing.T) {
		fb := DecoderFunc(func(b []byte) (image.Image, string, error) {
			return nil, "", errors.New("no loader")
		})

		_, err := decode(raw, 0, fb)
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
		}
	})

	t.Run("fallback classifies its own errors", func(t *testing.T) {
		tests := []struct {
			name  string
			err   error
			kind  error
			label string
		}{
			{"typed too large", &Error{Op: "decode", Kind: ErrImageTooLarge, Err: errors.New("9000x9000 exceeds 1000 pixels")}, ErrImageTooLarge, "image_too_large"},
			{"wrapped too large", fmt.Errorf("heif: %w", ErrImageTooLarge), ErrImageTooLarge, "image_too_large"},
			{"recognised but unreadable", fmt.Errorf("avif load failed: %w", ErrCorruptInput), ErrCorruptInput, "corrupt_input"},
			{"plain error", errors.New("8000x8000 exceeds 1000 pixels"), ErrUnsupportedFormat, "unsupported_format"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				fb := DecoderFunc(func(b []byte) (image.Image, string, error) {
					return nil, "", tt.err
				})

				_, err := decode(raw, 0, fb)
				if !errors.Is(err, tt.kind) {
					t.Errorf("Expected %v, got %v", tt.kind, err)
				}
				if got := Kind(err); got != tt.label {
					t.Errorf("Expected kind %q, got %q", tt.label, got)
				}
				var te *Error
				if !errors.As(err, &te) {
					t.Errorf("Expected *Error, got %T", err)
				}
			})
		}
	})

	t.Run("fallback respects pixel limit", func(t *testing.T) {
		fb := DecoderFunc(func(b []byte) (image.Image, string, error) {
			return gradientImage(100, 100), "fake", nil
		})

		_, err := decode(raw, 100, fb)
		if !errors.Is(err, ErrImageTooLarge) {
			t.Errorf("Expected ErrImageTooLarge, got %v", err)
		}
	})

	t.Run("fallback not used for known formats", func(t *testing.T) {
		fb := DecoderFunc(func(b []byte) (image.Image, string, error) {
			t.Error("fallback should not be called for PNG input")
			return nil, "", errors.New("unexpected")
		})

		if _, err := decode(encodePNG(t, gradientImage(8, 8)), 0, fb); err != nil {
			t.Errorf("decode() error: %v", err)
		}
	})
}

func TestDecode_FlattensTransparency(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = 0
	}

	d, err := decode(encodePNG(t, img), 0, nil)
	if err != nil {
		t.Fatalf("decode() error: %v", err)
	}
	if !d.raster.Opaque() {
		t.Error("Expected opaque raster after flattening")
	}

	c := color.NRGBAModel.Convert(d.raster.At(8, 8)).(color.NRGBA)
	if c.R != 255 || c.G != 255 || c.B != 255 {
		t.Errorf("Expected transparent pixels to become white, got %+v", c)
	}
}
