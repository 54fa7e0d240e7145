package display

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/inkframe/inkframe/internal/plugin"
)

const (
	defaultWidth  = 800
	defaultHeight = 480
)

func dimensions(dev plugin.DeviceConfig) (int, int) {
	w, h := dev.Width, dev.Height
	if w <= 0 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}
	return w, h
}

func blank(w, h int) image.Image {
	if w <= 0 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}
	img := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	return img
}

// ErrorImage renders the generic fallback shown when content generation
// fails: a white panel with a heavy border and a diagonal cross. Deliberately
// font-free so it needs nothing beyond the standard library.
func ErrorImage(dev plugin.DeviceConfig) image.Image {
	w, h := dimensions(dev)
	img := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	black := color.Gray{Y: 0}
	const border = 8

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			onBorder := x < border || y < border || x >= w-border || y >= h-border
			if onBorder {
				img.SetGray(x, y, black)
			}
		}
	}

	// diagonal cross, a few pixels thick
	for x := 0; x < w; x++ {
		y := x * h / w
		for d := -2; d <= 2; d++ {
			if y+d >= 0 && y+d < h {
				img.SetGray(x, y+d, black)
				img.SetGray(x, h-1-(y+d), black)
			}
		}
	}
	return img
}
