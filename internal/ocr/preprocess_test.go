package ocr

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPreprocess_UpscalesSmallImages(t *testing.T) {
	out, scale, err := Preprocess(encodePNG(t, 100, 50))
	require.NoError(t, err)
	assert.Equal(t, 2.0, scale)

	img, err := imaging.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 100, img.Bounds().Dy())
}

func TestPreprocess_KeepsLargeImages(t *testing.T) {
	_, scale, err := Preprocess(encodePNG(t, 400, 320))
	require.NoError(t, err)
	assert.Equal(t, 1.0, scale)
}

func TestPreprocess_RejectsGarbage(t *testing.T) {
	_, _, err := Preprocess([]byte("not an image"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
