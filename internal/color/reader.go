// Package color derives display colors for library cards.
package color

import "fmt"

// ForReader returns a stable hex color for a reader, so that desk clients
// can tint a card badge without storing the color. The hue comes from a
// hash of the reader ID; saturation and lightness are fixed.
func ForReader(readerID string) string {
	var h uint32
	for _, c := range readerID {
		h = 31*h + uint32(c)
	}

	r, g, b := hslToRGB(float64(h%360), 0.45, 0.6)
	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}

// hslToRGB converts a hue in degrees and saturation and lightness in
// [0, 1] to 8-bit RGB.
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		v := uint8(l * 255)
		return v, v, v
	}

	h /= 360
	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q

	return channel(p, q, h+1.0/3.0), channel(p, q, h), channel(p, q, h-1.0/3.0)
}

func channel(p, q, t float64) uint8 {
	switch {
	case t < 0:
		t++
	case t > 1:
		t--
	}

	var v float64
	switch {
	case t < 1.0/6.0:
		v = p + (q-p)*6*t
	case t < 1.0/2.0:
		v = q
	case t < 2.0/3.0:
		v = p + (q-p)*(2.0/3.0-t)*6
	default:
		v = p
	}
	return uint8(v * 255)
}
