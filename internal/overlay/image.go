package overlay

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"

	"github.com/annel0/voxel-engine/internal/render"
	"github.com/annel0/voxel-engine/internal/vec"
)

var ErrImageFreed = errors.New("overlay: изображение освобождено")

// Image растровое изображение в памяти движка, пиксели 0xAARRGGBB.
// Pitch в байтах, как у кадрового буфера.
type Image struct {
	ID     uuid.UUID
	Width  int
	Height int
	Pitch  int
	Pix    []uint32
}

// LoadImage читает PNG, JPEG, GIF или BMP
func LoadImage(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("overlay: открытие %s: %w", path, err)
	}
	defer f.Close()
	img, err := DecodeImage(f)
	if err != nil {
		return nil, fmt.Errorf("overlay: %s: %w", path, err)
	}
	return img, nil
}

// DecodeImage декодирует изображение любого зарегистрированного формата
func DecodeImage(r io.Reader) (*Image, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("декодирование: %w", err)
	}
	return FromImage(src)
}

// FromImage копирует image.Image в формат движка
func FromImage(src image.Image) (*Image, error) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("пустое изображение %dx%d", w, h)
	}
	img := &Image{ID: uuid.New(), Width: w, Height: h, Pitch: w * 4, Pix: make([]uint32, w*h)}

	switch s := src.(type) {
	case *image.NRGBA:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := s.PixOffset(b.Min.X+x, b.Min.Y+y)
				img.Pix[y*w+x] = pack(s.Pix[i], s.Pix[i+1], s.Pix[i+2], s.Pix[i+3])
			}
		}
	default:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				img.Pix[y*w+x] = pack(c.R, c.G, c.B, c.A)
			}
		}
	}
	return img, nil
}

// Free освобождает пиксели; повторный вызов безопасен
func (img *Image) Free() {
	img.Pix = nil
}

func (img *Image) Freed() bool { return img.Pix == nil }

// At пиксель 0xAARRGGBB с ограничением координат краями
func (img *Image) At(x, y int) uint32 {
	x = min(max(x, 0), img.Width-1)
	y = min(max(y, 0), img.Height-1)
	return img.Pix[y*(img.Pitch/4)+x]
}

// DrawTile копирует изображение в кадр без масштабирования, левый верхний угол в (x, y).
// Пиксели с нулевой альфой пропускаются.
func DrawTile(fb *render.Framebuffer, img *Image, x, y int) error {
	if img.Freed() {
		return ErrImageFreed
	}
	for j := 0; j < img.Height; j++ {
		for i := 0; i < img.Width; i++ {
			c := img.Pix[j*(img.Pitch/4)+i]
			if c>>24 == 0 {
				continue
			}
			over(fb, x+i, y+j, c)
		}
	}
	return nil
}

// DrawImage рисует изображение на четырехугольнике с мировыми вершинами p: p[0] соответствует
// левому верхнему углу, далее по часовой стрелке. Каждый пиксель проекции бросает луч в два
// треугольника четырехугольника, поэтому текстура перспективно корректна. Учитывается z-буфер.
// Возвращает число закрашенных пикселей.
func DrawImage(r *render.Renderer, img *Image, p [4]vec.Vec3Float) (int, error) {
	fb := r.Framebuffer()
	if fb == nil {
		return 0, render.ErrNoFramebuffer
	}
	if img.Freed() {
		return 0, ErrImageFreed
	}
	cam := r.Camera()

	x0, y0 := fb.Width, fb.Height
	x1, y1 := -1, -1
	for _, v := range p {
		sx, sy, _, ok := cam.Project(v)
		if !ok {
			// вершина за камерой: проверяем весь кадр
			x0, y0, x1, y1 = 0, 0, fb.Width-1, fb.Height-1
			break
		}
		x0 = min(x0, int(math.Floor(sx)))
		y0 = min(y0, int(math.Floor(sy)))
		x1 = max(x1, int(math.Ceil(sx)))
		y1 = max(y1, int(math.Ceil(sy)))
	}
	x0, y0 = max(x0, 0), max(y0, 0)
	x1, y1 = min(x1, fb.Width-1), min(y1, fb.Height-1)

	tris := [2]quadTri{
		{a: p[0], b: p[1], c: p[2], uvA: [2]float64{0, 0}, uvB: [2]float64{1, 0}, uvC: [2]float64{1, 1}},
		{a: p[0], b: p[2], c: p[3], uvA: [2]float64{0, 0}, uvB: [2]float64{1, 1}, uvC: [2]float64{0, 1}},
	}
	n := 0
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			ray := cam.Ray(float64(x)+0.5, float64(y)+0.5)
			for _, tri := range tris {
				t, u, v, ok := tri.intersect(cam.Pos, ray)
				if !ok {
					continue
				}
				depth := t * ray.Dot(cam.Forward)
				if depth >= r.DepthAt(x, y) {
					break
				}
				c := img.At(int(u*float64(img.Width)), int(v*float64(img.Height)))
				if c>>24 == 0 {
					break
				}
				over(fb, x, y, c)
				r.SetDepth(x, y, depth)
				n++
				break
			}
		}
	}
	return n, nil
}

// quadTri треугольник с текстурными координатами вершин
type quadTri struct {
	a, b, c       vec.Vec3Float
	uvA, uvB, uvC [2]float64
}

// intersect пересечение луча o + t*d с треугольником (Моллер-Трумбор); возвращает t и
// текстурные координаты точки
func (q quadTri) intersect(o, d vec.Vec3Float) (t, u, v float64, ok bool) {
	e1 := q.b.Sub(q.a)
	e2 := q.c.Sub(q.a)
	pv := d.Cross(e2)
	det := e1.Dot(pv)
	if math.Abs(det) < 1e-12 {
		return 0, 0, 0, false
	}
	inv := 1 / det
	s := o.Sub(q.a)
	bu := s.Dot(pv) * inv
	if bu < 0 || bu > 1 {
		return 0, 0, 0, false
	}
	qv := s.Cross(e1)
	bv := d.Dot(qv) * inv
	if bv < 0 || bu+bv > 1 {
		return 0, 0, 0, false
	}
	t = e2.Dot(qv) * inv
	if t <= 0 {
		return 0, 0, 0, false
	}
	bw := 1 - bu - bv
	u = bw*q.uvA[0] + bu*q.uvB[0] + bv*q.uvC[0]
	v = bw*q.uvA[1] + bu*q.uvB[1] + bv*q.uvC[1]
	return t, u, v, true
}

// over накладывает пиксель с альфой поверх кадра
func over(fb *render.Framebuffer, x, y int, c uint32) {
	a := c >> 24
	if a == 0xFF {
		fb.SetPixel(x, y, c)
		return
	}
	d := fb.Pixel(x, y)
	mix := func(shift uint) uint32 {
		s, t := (c>>shift)&0xFF, (d>>shift)&0xFF
		return ((s*a + t*(255-a) + 127) / 255) << shift
	}
	fb.SetPixel(x, y, 0xFF000000|mix(16)|mix(8)|mix(0))
}

func pack(r, g, b, a uint8) uint32 {
	return uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}
