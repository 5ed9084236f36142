package ui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

var iconBytes = drawIcon(22)

// drawIcon renders a filled red dot on a transparent background.
func drawIcon(size int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	red := color.NRGBA{R: 0xd9, G: 0x30, B: 0x25, A: 0xff}
	c := float64(size-1) / 2
	r := c - 2
	for y := range size {
		for x := range size {
			dx, dy := float64(x)-c, float64(y)-c
			if dx*dx+dy*dy <= r*r {
				img.SetNRGBA(x, y, red)
			}
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}
