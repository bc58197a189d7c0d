// Package imageprep normalizes uploaded tool images before analysis: any
// supported format is decoded, downscaled so its longest side fits the
// analysis reference space, and re-encoded as JPEG.
package imageprep

import (
	"bytes"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/HugoSmits86/nativewebp"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// MaxDimension is the longest side of a prepared image, matching the
	// 1000x1000 coordinate space measurements are reported in.
	MaxDimension = 1000

	// ThumbnailDimension is the longest side of a history thumbnail.
	ThumbnailDimension = 160

	// MIMEType is the content type of every prepared image.
	MIMEType = "image/jpeg"

	jpegQuality = 90
)

var ErrUnsupportedImage = errors.New("unsupported or corrupt image")

// Prepared is an image ready to be sent for analysis.
type Prepared struct {
	Data []byte
	MIME string
	// SourceFormat is the format name the upload was decoded as.
	SourceFormat string
	Width        int
	Height       int
}

// Prepare decodes data, shrinks it to fit MaxDimension and re-encodes it as
// JPEG. Images already small enough are only re-encoded.
func Prepare(data []byte) (*Prepared, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(ErrUnsupportedImage, err.Error())
	}

	img = flatten(fit(img, MaxDimension))

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, errors.Wrap(err, "failed to encode jpeg")
	}

	b := img.Bounds()
	return &Prepared{
		Data:         buf.Bytes(),
		MIME:         MIMEType,
		SourceFormat: format,
		Width:        b.Dx(),
		Height:       b.Dy(),
	}, nil
}

// Thumbnail renders a small lossless WebP preview of an image.
func Thumbnail(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(ErrUnsupportedImage, err.Error())
	}

	var buf bytes.Buffer
	if err := nativewebp.Encode(&buf, fit(img, ThumbnailDimension), nil); err != nil {
		return nil, errors.Wrap(err, "failed to encode webp")
	}
	return buf.Bytes(), nil
}

// fit scales img down so that neither side exceeds limit, keeping the
// aspect ratio.
func fit(img image.Image, limit int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= limit && h <= limit {
		return img
	}

	if w >= h {
		h = h * limit / w
		w = limit
	} else {
		w = w * limit / h
		h = limit
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// flatten composites img onto white, since JPEG has no alpha channel.
func flatten(img image.Image) image.Image {
	switch img.(type) {
	case *image.YCbCr, *image.Gray, *image.CMYK:
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}
