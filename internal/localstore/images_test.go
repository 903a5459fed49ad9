package localstore

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 7 {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeDataURL(t *testing.T, url string) image.Config {
	t.Helper()
	const prefix = "data:image/jpeg;base64,"
	require.True(t, strings.HasPrefix(url, prefix))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, prefix))
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	return cfg
}

func TestIngestImageScalesLongestEdge(t *testing.T) {
	url := IngestImage(pngBytes(t, 2400, 1000))
	require.NotNil(t, url)
	cfg := decodeDataURL(t, *url)
	assert.Equal(t, MaxImageEdge, cfg.Width)
	assert.Equal(t, 500, cfg.Height)

	url = IngestImage(pngBytes(t, 600, 3000))
	require.NotNil(t, url)
	cfg = decodeDataURL(t, *url)
	assert.Equal(t, 240, cfg.Width)
	assert.Equal(t, MaxImageEdge, cfg.Height)
}

func TestIngestImageKeepsSmallImages(t *testing.T) {
	url := IngestImage(pngBytes(t, 320, 200))
	require.NotNil(t, url)
	cfg := decodeDataURL(t, *url)
	assert.Equal(t, 320, cfg.Width)
	assert.Equal(t, 200, cfg.Height)
}

func TestIngestImageRejectsGarbage(t *testing.T) {
	assert.Nil(t, IngestImage([]byte("definitely not an image")))
	assert.Nil(t, IngestImage(nil))
}
