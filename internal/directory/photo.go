package directory

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// PhotoSize is the edge length of profile photos shown on person cards.
const PhotoSize = 96

//go:embed placeholder.png
var placeholderPhoto []byte

// PlaceholderPhoto returns the data URI used when a person has no photo.
func PlaceholderPhoto() string {
	return dataURI("image/png", placeholderPhoto)
}

func dataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// fitPhoto crops src to a square anchored at the top centre and scales it
// to PhotoSize, returning JPEG bytes.
func fitPhoto(src []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w", err)
	}
	b := img.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	x0 := b.Min.X + (b.Dx()-side)/2
	crop := image.Rect(x0, b.Min.Y, x0+side, b.Min.Y+side)

	dst := image.NewRGBA(image.Rect(0, 0, PhotoSize, PhotoSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, crop, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode photo: %w", err)
	}
	return buf.Bytes(), nil
}
