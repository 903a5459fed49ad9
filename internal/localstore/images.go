package localstore

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// MaxImageEdge bounds the longest edge of an ingested image, in pixels.
	MaxImageEdge = 1200
	// ImageQuality is the JPEG quality of ingested images.
	ImageQuality = 70
)

// IngestImage decodes raw image bytes, scales the longest edge down to
// MaxImageEdge and re-encodes the result as a JPEG data URL. It returns nil
// when the input cannot be decoded; callers must check.
func IngestImage(raw []byte) *string {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}
	if w > MaxImageEdge || h > MaxImageEdge {
		if w >= h {
			h = h * MaxImageEdge / w
			w = MaxImageEdge
		} else {
			w = w * MaxImageEdge / h
			h = MaxImageEdge
		}
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
	}

	// Always redraw onto an opaque RGBA canvas so alpha sources encode cleanly.
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: ImageQuality}); err != nil {
		return nil
	}
	url := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
	return &url
}
