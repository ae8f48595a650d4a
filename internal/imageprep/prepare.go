// Package imageprep shrinks oversized room photos before upload so the
// staging request stays under the hosting platform's body-size limit.
package imageprep

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"path/filepath"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

// Defaults for the preparation pipeline. The threshold sits a little under
// the budget so images that already fit are passed through untouched.
const (
	DefaultThreshold = 3_500_000
	DefaultBudget    = 4_000_000
	DefaultMaxSide   = 2048
	DefaultQuality   = 90
	DefaultStep      = 10
	DefaultAttempts  = 6
)

// ErrUndecodable is returned when the payload cannot be decoded as an image
// by any available path.
var ErrUndecodable = errors.New("imageprep: image could not be decoded")

// Encoder re-encodes a decoded bitmap at a given quality level.
type Encoder struct {
	MIME   string
	Ext    string
	Encode func(w io.Writer, img image.Image, quality int) error
}

// Preparer implements the adaptive downscale/recompress pipeline. The zero
// value is not usable; construct with NewPreparer.
type Preparer struct {
	Threshold int
	Budget    int
	MaxSide   int
	Quality   int
	Step      int
	Attempts  int
	Encoders  []Encoder
}

// Prepared is the payload produced for upload.
type Prepared struct {
	Data        []byte
	MIME        string
	Name        string
	Transformed bool
}

// NewPreparer returns a Preparer with the default thresholds and the JPEG
// re-encoding ladder. The corpus of supported encoders is deliberately small:
// JPEG is the one lossy format the standard library encodes, and every
// downstream capability accepts it.
func NewPreparer() *Preparer {
	return &Preparer{
		Threshold: DefaultThreshold,
		Budget:    DefaultBudget,
		MaxSide:   DefaultMaxSide,
		Quality:   DefaultQuality,
		Step:      DefaultStep,
		Attempts:  DefaultAttempts,
		Encoders: []Encoder{
			{
				MIME: "image/jpeg",
				Ext:  "jpg",
				Encode: func(w io.Writer, img image.Image, quality int) error {
					return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
				},
			},
		},
	}
}

// Prepare returns a payload suitable for upload. Inputs under the threshold
// are returned byte-for-byte unchanged. Oversized inputs are decoded,
// downscaled so the longer side does not exceed MaxSide (never upscaled) and
// re-encoded at decreasing quality until the result fits under the budget.
// When no attempt fits, the original is returned unchanged: submission is
// never blocked solely because compression failed.
func (p *Preparer) Prepare(data []byte, mimeType, name string) (Prepared, error) {
	original := Prepared{Data: data, MIME: mimeType, Name: name}
	if len(data) < p.Threshold {
		return original, nil
	}

	img, err := decode(data)
	if err != nil {
		return Prepared{}, err
	}

	resized := p.downscale(img)
	for _, enc := range p.Encoders {
		quality := p.Quality
		for attempt := 0; attempt < p.Attempts; attempt++ {
			var buf bytes.Buffer
			if err := enc.Encode(&buf, resized, quality); err != nil {
				break
			}
			if buf.Len() < p.Budget {
				return Prepared{
					Data:        buf.Bytes(),
					MIME:        enc.MIME,
					Name:        replaceExt(name, enc.Ext),
					Transformed: true,
				}, nil
			}
			quality -= p.Step
			if quality <= 0 {
				break
			}
		}
	}

	return original, nil
}

// downscale scales img proportionally so its longer side equals MaxSide.
// Images already within bounds are returned as-is.
func (p *Preparer) downscale(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	longer := w
	if h > longer {
		longer = h
	}
	if longer <= p.MaxSide {
		return img
	}
	scale := float64(p.MaxSide) / float64(longer)
	tw := int(math.Round(float64(w) * scale))
	th := int(math.Round(float64(h) * scale))
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
	return dst
}

// decode attempts the sniffing image.Decode path first and falls back to
// direct per-format decoders for streams whose header sniffing fails.
func decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err == nil {
		return img, nil
	}
	decoders := []func(io.Reader) (image.Image, error){
		jpeg.Decode,
		png.Decode,
		webp.Decode,
		gif.Decode,
	}
	for _, dec := range decoders {
		if img, derr := dec(bytes.NewReader(data)); derr == nil {
			return img, nil
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
}

func replaceExt(name, ext string) string {
	if name == "" {
		return "image." + ext
	}
	old := filepath.Ext(name)
	return strings.TrimSuffix(name, old) + "." + ext
}
