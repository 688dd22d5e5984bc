package ocr

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// MinPreprocessSide is the smallest side length left unscaled by Preprocess.
const MinPreprocessSide = 300

// Preprocess prepares a page image for local OCR: small images are upscaled
// 2x, then grayscale, contrast and sharpen filters are applied. The result is
// PNG-encoded. Scale is the factor applied to the original coordinates, so
// boxes found on the output must be divided by it.
func Preprocess(content []byte) (out []byte, scale float64, err error) {
	const op = "Preprocess"

	img, err := imaging.Decode(bytes.NewReader(content), imaging.AutoOrientation(true))
	if err != nil {
		return nil, 0, NewOCRError(op, ErrUnsupportedFormat, fmt.Sprintf("decode image: %v", err))
	}

	enhanced, scale := enhance(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, enhanced, imaging.PNG); err != nil {
		return nil, 0, NewOCRError(op, err, "encode preprocessed image")
	}
	return buf.Bytes(), scale, nil
}

func enhance(img image.Image) (image.Image, float64) {
	scale := 1.0
	bounds := img.Bounds()
	if bounds.Dx() < MinPreprocessSide || bounds.Dy() < MinPreprocessSide {
		img = imaging.Resize(img, bounds.Dx()*2, bounds.Dy()*2, imaging.Lanczos)
		scale = 2
	}

	gray := imaging.Grayscale(img)
	contrast := imaging.AdjustContrast(gray, 10)
	return imaging.Sharpen(contrast, 1.1), scale
}
