package csg

import (
	"fmt"

	"github.com/annel0/voxel-engine/internal/sprite"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
)

// StampSprite переносит воксели спрайта в мир (Insert, с цветами модели)
// или вырезает занятый спрайтом объем (Remove). Каждый мировой воксель
// проверяется по обратному преобразованию своего центра.
func (e *Editor) StampSprite(s *sprite.Sprite, op Op) (world.Box, error) {
	if err := checkOp(op); err != nil {
		return world.EmptyBox(), err
	}
	if s == nil || s.Released() || s.Model == nil {
		return world.EmptyBox(), fmt.Errorf("%w: спрайт освобожден", ErrInvalidParameter)
	}
	toLocal, ok := s.LocalTransform()
	if !ok {
		return world.EmptyBox(), fmt.Errorf("%w: вырожденный базис спрайта", ErrInvalidParameter)
	}
	box := s.WorldBounds()
	clipped := box.Clip(e.world.VSID(), e.world.MaxZ())
	m := s.Model

	values := make([]uint32, 0, clipped.Max.Z-clipped.Min.Z+1)
	for y := clipped.Min.Y; y <= clipped.Max.Y; y++ {
		for x := clipped.Min.X; x <= clipped.Max.X; x++ {
			start := -1
			values = values[:0]
			flush := func(z int) {
				if start < 0 {
					return
				}
				if op == Insert {
					e.world.SetSpanValues(x, y, start, values)
				} else {
					e.world.SetSpan(x, y, start, z, false, nil)
				}
				start = -1
				values = values[:0]
			}
			for z := clipped.Min.Z; z <= clipped.Max.Z; z++ {
				l := toLocal(vec.Vec3{X: x, Y: y, Z: z}.Center()).Floor()
				v, solid := m.Voxel(l.X, l.Y, l.Z)
				if !solid {
					flush(z)
					continue
				}
				if start < 0 {
					start = z
				}
				values = append(values, v)
			}
			flush(clipped.Max.Z + 1)
		}
	}
	return e.finish(box, op), nil
}
