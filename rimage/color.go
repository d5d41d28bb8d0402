package rimage

import (
	"image"
	"image/color"
)

// Red is used to mark rejected points in debug output.
var Red = color.NRGBA{R: 255, A: 255}

// NRGBAAt returns the non-premultiplied color of img at (x, y) relative to the image origin.
func NRGBAAt(img image.Image, x, y int) color.NRGBA {
	b := img.Bounds()
	c, _ := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
	return c
}

// ImageSize returns the width and height of img.
func ImageSize(img image.Image) (int, int) {
	b := img.Bounds()
	return b.Dx(), b.Dy()
}
