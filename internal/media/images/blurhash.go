package images

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/bbrks/go-blurhash"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Covers are shrunk to fit this box before hashing.
const blurHashSize = 64

// Component counts for the placeholder; 4x3 yields a 20 to 30 character hash.
const (
	blurHashXComponents = 4
	blurHashYComponents = 3
)

// ComputeBlurHashFromBytes returns the BlurHash placeholder of an encoded
// GIF, JPEG, PNG or WebP cover.
func ComputeBlurHashFromBytes(data []byte) (string, error) {
	return ComputeBlurHashFromReader(bytes.NewReader(data))
}

// ComputeBlurHashFromReader is ComputeBlurHashFromBytes for a stream.
func ComputeBlurHashFromReader(r io.Reader) (string, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return "", fmt.Errorf("decode cover: %w", err)
	}

	hash, err := blurhash.Encode(blurHashXComponents, blurHashYComponents, thumbnail(img))
	if err != nil {
		return "", fmt.Errorf("encode blurhash: %w", err)
	}
	return hash, nil
}

// thumbnail scales img down to fit blurHashSize, keeping the aspect ratio.
func thumbnail(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= blurHashSize && h <= blurHashSize {
		return img
	}

	if w >= h {
		w, h = blurHashSize, max(1, h*blurHashSize/w)
	} else {
		w, h = max(1, w*blurHashSize/h), blurHashSize
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
