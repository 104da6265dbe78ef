// Package imaging normalizes uploaded book cover images.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"math"
	"net/http"

	"golang.org/x/image/draw"

	"github.com/erazemk/knjiznica/internal/model"
)

// Covers are fitted into a portrait box of this size.
const (
	MaxCoverWidth  = 600
	MaxCoverHeight = 900
)

// JPEGQuality is the compression quality of stored covers.
const JPEGQuality = 85

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Cover is a normalized cover image.
type Cover struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// NormalizeCover sniffs the format of data, fits the image into the cover
// box and re-encodes it as JPEG. Transparent areas become white.
func NormalizeCover(data []byte) (*Cover, error) {
	detected := http.DetectContentType(data)
	if !allowedMIME[detected] {
		return nil, fmt.Errorf("%w: unsupported cover format %s (only JPEG and PNG accepted)", model.ErrValidation, detected)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding cover: %v", model.ErrValidation, err)
	}

	w, h := fit(src.Bounds().Dx(), src.Bounds().Dy(), MaxCoverWidth, MaxCoverHeight)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding cover: %w", err)
	}

	return &Cover{Data: buf.Bytes(), MIME: "image/jpeg", Width: w, Height: h}, nil
}

// fit scales w x h down, preserving aspect ratio, until it fits maxW x maxH.
// Images already inside the box keep their size.
func fit(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}

	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	newW := max(int(math.Round(float64(w)*scale)), 1)
	newH := max(int(math.Round(float64(h)*scale)), 1)
	return newW, newH
}
