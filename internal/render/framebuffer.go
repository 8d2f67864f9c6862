// Package render рисует воксельный мир и спрайты лучами в кадровый буфер.
package render

import (
	"fmt"
	"image"
	"image/color"
)

// Framebuffer 32-битные пиксели BGRA (в памяти B, G, R, A; как uint32 0xAARRGGBB).
// Память принадлежит вызывающему.
type Framebuffer struct {
	Pix    []byte
	Pitch  int
	Width  int
	Height int
}

// NewFramebuffer выделяет буфер width x height
func NewFramebuffer(width, height int) *Framebuffer {
	return &Framebuffer{
		Pix:    make([]byte, width*height*4),
		Pitch:  width * 4,
		Width:  width,
		Height: height,
	}
}

// BindFramebuffer оборачивает память вызывающего
func BindFramebuffer(pix []byte, pitch, width, height int) (*Framebuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("недопустимый размер кадра %dx%d", width, height)
	}
	if pitch < width*4 {
		return nil, fmt.Errorf("шаг строки %d меньше %d", pitch, width*4)
	}
	if need := pitch*(height-1) + width*4; len(pix) < need {
		return nil, fmt.Errorf("буфер %d байт, нужно %d", len(pix), need)
	}
	return &Framebuffer{Pix: pix, Pitch: pitch, Width: width, Height: height}, nil
}

// In проверяет, что пиксель внутри буфера
func (f *Framebuffer) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < f.Width && y < f.Height
}

// SetPixel записывает пиксель 0xAARRGGBB; вне буфера ничего не делает
func (f *Framebuffer) SetPixel(x, y int, c uint32) {
	if !f.In(x, y) {
		return
	}
	i := y*f.Pitch + x*4
	f.Pix[i] = byte(c)
	f.Pix[i+1] = byte(c >> 8)
	f.Pix[i+2] = byte(c >> 16)
	f.Pix[i+3] = byte(c >> 24)
}

// Pixel читает пиксель 0xAARRGGBB
func (f *Framebuffer) Pixel(x, y int) uint32 {
	if !f.In(x, y) {
		return 0
	}
	i := y*f.Pitch + x*4
	return uint32(f.Pix[i]) | uint32(f.Pix[i+1])<<8 | uint32(f.Pix[i+2])<<16 | uint32(f.Pix[i+3])<<24
}

// Clear заливает буфер цветом
func (f *Framebuffer) Clear(c uint32) {
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			f.SetPixel(x, y, c)
		}
	}
}

func (f *Framebuffer) ColorModel() color.Model { return color.RGBAModel }

func (f *Framebuffer) Bounds() image.Rectangle { return image.Rect(0, 0, f.Width, f.Height) }

func (f *Framebuffer) At(x, y int) color.Color {
	c := f.Pixel(x, y)
	return color.RGBA{R: uint8(c >> 16), G: uint8(c >> 8), B: uint8(c), A: uint8(c >> 24)}
}

// Set реализует draw.Image для вывода текста и изображений
func (f *Framebuffer) Set(x, y int, c color.Color) {
	r, g, b, a := c.RGBA()
	f.SetPixel(x, y, uint32(a>>8)<<24|uint32(r>>8)<<16|uint32(g>>8)<<8|uint32(b>>8))
}

// ToRGBA копирует кадр в image.RGBA (для PNG)
func (f *Framebuffer) ToRGBA() *image.RGBA {
	img := image.NewRGBA(f.Bounds())
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			c := f.Pixel(x, y)
			i := img.PixOffset(x, y)
			img.Pix[i] = uint8(c >> 16)
			img.Pix[i+1] = uint8(c >> 8)
			img.Pix[i+2] = uint8(c)
			img.Pix[i+3] = 0xFF
		}
	}
	return img
}
