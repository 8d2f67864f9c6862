package render

import (
	"fmt"
	"math"

	"github.com/annel0/voxel-engine/internal/lighting"
	"github.com/annel0/voxel-engine/internal/sprite"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
)

// DrawSprite рисует спрайт поверх кадра с проверкой z-буфера. Для каждого пикселя
// экранной проекции луч переводится в координаты модели и идет по ее сетке.
func (r *Renderer) DrawSprite(s *sprite.Sprite, mode lighting.Mode) (int, error) {
	fb := r.fb
	if fb == nil {
		return 0, ErrNoFramebuffer
	}
	if s == nil || s.Released() || s.Model == nil {
		return 0, fmt.Errorf("%w: спрайт освобожден", ErrInvalidParameter)
	}
	toLocal, ok := s.LocalTransform()
	if !ok {
		return 0, fmt.Errorf("%w: вырожденный базис спрайта", ErrInvalidParameter)
	}

	x0, y0, x1, y1, visible := r.screenBounds(s)
	if !visible {
		return 0, nil
	}
	m := s.Model
	lo := toLocal(r.cam.Pos)
	drawn := 0
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			ray := r.cam.Ray(float64(x)+0.5, float64(y)+0.5)
			ld := toLocal(r.cam.Pos.Add(ray)).Sub(lo)
			t, v, face, hit := castModel(m, lo, ld)
			if !hit {
				continue
			}
			depth := t * ray.Dot(r.cam.Forward)
			if depth <= 0 || depth >= r.depth[y*fb.Width+x] {
				continue
			}
			c := shade(world.VoxelColor(v), world.VoxelLight(v), face, mode)
			c = tint(c, r.kv6Col, r.kv6Pow)
			fb.SetPixel(x, y, uint32(c)|0xFF000000)
			r.depth[y*fb.Width+x] = depth
			drawn++
		}
	}
	return drawn, nil
}

// screenBounds экранный прямоугольник проекции модели; если часть модели за камерой,
// берется весь кадр
func (r *Renderer) screenBounds(s *sprite.Sprite) (x0, y0, x1, y1 int, ok bool) {
	fb := r.fb
	m := s.Model
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	behind := 0
	for i := 0; i < 8; i++ {
		c := vec.Vec3Float{}
		if i&1 != 0 {
			c.X = float64(m.XSize)
		}
		if i&2 != 0 {
			c.Y = float64(m.YSize)
		}
		if i&4 != 0 {
			c.Z = float64(m.ZSize)
		}
		sx, sy, _, front := r.cam.Project(s.LocalToWorld(c))
		if !front {
			behind++
			continue
		}
		minX, maxX = math.Min(minX, sx), math.Max(maxX, sx)
		minY, maxY = math.Min(minY, sy), math.Max(maxY, sy)
	}
	switch behind {
	case 8:
		return 0, 0, 0, 0, false
	case 0:
		x0 = max(int(math.Floor(minX)), 0)
		y0 = max(int(math.Floor(minY)), 0)
		x1 = min(int(math.Ceil(maxX)), fb.Width-1)
		y1 = min(int(math.Ceil(maxY)), fb.Height-1)
		return x0, y0, x1, y1, x0 <= x1 && y0 <= y1
	default:
		return 0, 0, fb.Width - 1, fb.Height - 1, true
	}
}

// castModel трехмерный DDA по сетке модели от o в направлении d.
// Возвращает параметр входа в первый твердый воксель.
func castModel(m *sprite.Model, o, d vec.Vec3Float) (float64, uint32, int, bool) {
	size := [3]float64{float64(m.XSize), float64(m.YSize), float64(m.ZSize)}
	tEnter, tExit := 0.0, math.Inf(1)
	enterAxis := -1
	for axis := 0; axis < 3; axis++ {
		oa, da := o.Component(axis), d.Component(axis)
		if da == 0 {
			if oa < 0 || oa >= size[axis] {
				return 0, 0, 0, false
			}
			continue
		}
		t0, t1 := (0-oa)/da, (size[axis]-oa)/da
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tEnter {
			tEnter, enterAxis = t0, axis
		}
		tExit = math.Min(tExit, t1)
	}
	if tEnter >= tExit {
		return 0, 0, 0, false
	}

	p := o.Add(d.Mul(tEnter))
	var step [3]int
	var tMax, tDelta [3]float64
	var c [3]int
	for axis := 0; axis < 3; axis++ {
		da := d.Component(axis)
		c[axis] = min(max(int(math.Floor(p.Component(axis)+da*1e-9)), 0), int(size[axis])-1)
		switch {
		case da > 0:
			step[axis], tMax[axis], tDelta[axis] = 1, (float64(c[axis]+1)-o.Component(axis))/da, 1/da
		case da < 0:
			step[axis], tMax[axis], tDelta[axis] = -1, (float64(c[axis])-o.Component(axis))/da, -1/da
		default:
			tMax[axis], tDelta[axis] = math.Inf(1), math.Inf(1)
		}
	}

	face := faceForAxis(enterAxis, d)
	t := tEnter
	for t <= tExit {
		if v, ok := m.Voxel(c[0], c[1], c[2]); ok {
			return t, v, face, true
		}
		axis := 0
		if tMax[1] < tMax[axis] {
			axis = 1
		}
		if tMax[2] < tMax[axis] {
			axis = 2
		}
		t = tMax[axis]
		tMax[axis] += tDelta[axis]
		c[axis] += step[axis]
		if c[axis] < 0 || c[axis] >= int(size[axis]) {
			return 0, 0, 0, false
		}
		face = faceForAxis(axis, d)
	}
	return 0, 0, 0, false
}

// faceForAxis грань, через которую луч входит в воксель при шаге по оси
func faceForAxis(axis int, d vec.Vec3Float) int {
	switch axis {
	case 0:
		return faceSideX
	case 1:
		return faceSideY
	case 2:
		if d.Z < 0 {
			return faceBottom
		}
		return faceTop
	default:
		return faceTop
	}
}
