// Package overlay рисует поверх кадра рейкастера: линии, точки, текст и изображения.
package overlay

import (
	"math"

	"github.com/annel0/voxel-engine/internal/render"
	"github.com/annel0/voxel-engine/internal/vec"
)

// DrawLine2D рисует отрезок в экранных координатах алгоритмом Брезенхэма.
// Пиксели вне кадра отбрасываются.
func DrawLine2D(fb *render.Framebuffer, x0, y0, x1, y1 int, c uint32) {
	c |= 0xFF000000
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		fb.SetPixel(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// DrawPoint3D проецирует мировую точку и рисует пиксель, если она ближе z-буфера
func DrawPoint3D(r *render.Renderer, p vec.Vec3Float, c uint32) bool {
	fb := r.Framebuffer()
	if fb == nil {
		return false
	}
	sx, sy, depth, ok := r.Camera().Project(p)
	if !ok {
		return false
	}
	x, y := int(math.Floor(sx)), int(math.Floor(sy))
	if !fb.In(x, y) || depth >= r.DepthAt(x, y) {
		return false
	}
	fb.SetPixel(x, y, c|0xFF000000)
	r.SetDepth(x, y, depth)
	return true
}

// DrawSphereFill рисует сферу как заполненный диск ее проекции с глубиной центра.
// Возвращает число закрашенных пикселей.
func DrawSphereFill(r *render.Renderer, center vec.Vec3Float, radius float64, c uint32) int {
	fb := r.Framebuffer()
	if fb == nil || radius <= 0 {
		return 0
	}
	cam := r.Camera()
	sx, sy, depth, ok := cam.Project(center)
	if !ok || depth <= radius {
		return 0
	}
	// радиус диска по касательной к сфере
	pr := cam.HZ * radius / math.Sqrt(depth*depth-radius*radius)
	x0 := max(int(math.Floor(sx-pr)), 0)
	x1 := min(int(math.Ceil(sx+pr)), fb.Width-1)
	y0 := max(int(math.Floor(sy-pr)), 0)
	y1 := min(int(math.Ceil(sy+pr)), fb.Height-1)

	c |= 0xFF000000
	n := 0
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			dx, dy := float64(x)+0.5-sx, float64(y)+0.5-sy
			if dx*dx+dy*dy > pr*pr || depth-radius >= r.DepthAt(x, y) {
				continue
			}
			fb.SetPixel(x, y, c)
			r.SetDepth(x, y, depth-radius)
			n++
		}
	}
	return n
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
