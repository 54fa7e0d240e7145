package display

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// TextWidth returns the pixel width of s at scale 1.
func TextWidth(s string) int {
	return font.MeasureString(basicfont.Face7x13, s).Ceil()
}

// TextHeight is the pixel height of one line at scale 1.
const TextHeight = 13

// DrawText renders s onto dst with its top-left corner at (x, y), scaled by
// an integer factor. The bitmap face keeps output crisp on grayscale panels
// where anti-aliased edges dither badly.
func DrawText(dst draw.Image, s string, x, y, scale int, col color.Color) {
	if s == "" || scale < 1 {
		return
	}

	w := TextWidth(s)
	line := image.NewRGBA(image.Rect(0, 0, w, TextHeight))
	d := font.Drawer{
		Dst:  line,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(0, basicfont.Face7x13.Ascent),
	}
	d.DrawString(s)

	target := image.Rect(x, y, x+w*scale, y+TextHeight*scale)
	xdraw.NearestNeighbor.Scale(dst, target, line, line.Bounds(), xdraw.Over, nil)
}

// DrawTextCentered renders s horizontally centered at the given baseline
// offset from the top of dst.
func DrawTextCentered(dst draw.Image, s string, y, scale int, col color.Color) {
	w := TextWidth(s) * scale
	x := (dst.Bounds().Dx() - w) / 2
	DrawText(dst, s, x, y, scale, col)
}
