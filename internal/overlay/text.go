package overlay

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/annel0/voxel-engine/internal/render"
)

// Face моноширинный шрифт надписей
var Face = basicfont.Face7x13

// Print выводит строку, левый верхний угол в (x, y). Цвета 0xRRGGBB;
// отрицательный bg оставляет фон прозрачным. Возвращает ширину надписи в пикселях.
func Print(fb *render.Framebuffer, x, y int, fg, bg int64, text string) int {
	d := &font.Drawer{
		Dst:  fb,
		Src:  image.NewUniform(rgb(fg)),
		Face: Face,
	}
	width := d.MeasureString(text).Ceil()
	if bg >= 0 {
		rect := image.Rect(x, y, x+width, y+Face.Height)
		draw.Draw(fb, rect, image.NewUniform(rgb(bg)), image.Point{}, draw.Src)
	}
	d.Dot = fixed.P(x, y+Face.Ascent)
	d.DrawString(text)
	return width
}

func rgb(c int64) color.RGBA {
	return color.RGBA{R: uint8(c >> 16), G: uint8(c >> 8), B: uint8(c), A: 0xFF}
}
