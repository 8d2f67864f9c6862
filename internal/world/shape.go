package world

import (
	"math"

	"github.com/annel0/voxel-engine/internal/vec"
)

// SphereChords перечисляет вертикальные хорды шара внутри карты: для каждой
// колонки (x, y) вызывает fn с диапазоном [z0, z1). Воксель входит в шар при d² <= r².
// Колонки и z обрезаются по карте.
func (w *World) SphereChords(center vec.Vec3, r float64, fn func(x, y, z0, z1 int)) {
	b := w.SphereBounds(center, r)
	if b.Empty() {
		return
	}
	r2 := r * r
	cz := float64(center.Z)
	for y := b.Min.Y; y <= b.Max.Y; y++ {
		for x := b.Min.X; x <= b.Max.X; x++ {
			dx, dy := float64(x-center.X), float64(y-center.Y)
			rest := r2 - dx*dx - dy*dy
			if rest < 0 {
				continue
			}
			h := math.Floor(math.Sqrt(rest))
			z0 := int(math.Max(cz-h, float64(b.Min.Z)))
			z1 := int(math.Min(cz+h+1, float64(b.Max.Z+1)))
			if z0 < z1 {
				fn(x, y, z0, z1)
			}
		}
	}
}

// SphereBounds возвращает бокс, описанный вокруг шара, обрезанный по карте.
// Для r < 0, NaN или шара вне карты бокс пуст.
func (w *World) SphereBounds(center vec.Vec3, r float64) Box {
	if r < 0 || math.IsNaN(r) {
		return EmptyBox()
	}
	ir := math.Floor(r)
	axis := func(c, n int) (int, int, bool) {
		lo := math.Max(float64(c)-ir, 0)
		hi := math.Min(float64(c)+ir, float64(n-1))
		if lo > hi {
			return 0, 0, false
		}
		return int(lo), int(hi), true
	}
	x0, x1, okX := axis(center.X, w.VSID())
	y0, y1, okY := axis(center.Y, w.VSID())
	z0, z1, okZ := axis(center.Z, w.MaxZ())
	if !okX || !okY || !okZ {
		return EmptyBox()
	}
	return Box{Min: vec.Vec3{X: x0, Y: y0, Z: z0}, Max: vec.Vec3{X: x1, Y: y1, Z: z1}}
}

// SetSpanValues перезаписывает воксели [z0, z0+len(values)) колонки заданными значениями
func (w *World) SetSpanValues(x, y, z0 int, values []uint32) {
	l := w.levels[0]
	if !l.InBounds(x, y) || len(values) == 0 {
		return
	}
	z1 := z0 + len(values)
	lo, hi, ok := l.clampRange(z0, z1)
	if !ok {
		return
	}
	colors := make([]uint32, hi-lo)
	copy(colors, values[lo-z0:hi-z0])
	l.replaceRange(x, y, Span{Z0: lo, Z1: hi, Solid: true, Colors: colors})
	w.touch(x, y)
}
