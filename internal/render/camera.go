package render

import (
	"github.com/annel0/voxel-engine/internal/vec"
)

// Camera ориентация камеры и проекция: центр экрана (HX, HY) и фокусное расстояние HZ в пикселях
type Camera struct {
	vec.Orientation
	HX, HY, HZ float64
}

// NewCamera строит камеру по ориентации
func NewCamera(o vec.Orientation, hx, hy, hz float64) Camera {
	return Camera{Orientation: o, HX: hx, HY: hy, HZ: hz}
}

// DefaultCamera камера с центром кадра и углом обзора 90° по горизонтали
func DefaultCamera(o vec.Orientation, width, height int) Camera {
	return NewCamera(o, float64(width)/2, float64(height)/2, float64(width)/2)
}

// Ray направление луча через точку экрана (не нормализовано, проекция на Forward равна HZ)
func (c Camera) Ray(sx, sy float64) vec.Vec3Float {
	return c.Forward.Mul(c.HZ).Add(c.Right.Mul(sx - c.HX)).Add(c.Down.Mul(sy - c.HY))
}

// Depth глубина точки вдоль направления взгляда
func (c Camera) Depth(p vec.Vec3Float) float64 {
	return p.Sub(c.Pos).Dot(c.Forward)
}

// Project проецирует мировую точку на экран. ok = false для точек за камерой.
func (c Camera) Project(p vec.Vec3Float) (sx, sy, depth float64, ok bool) {
	d := p.Sub(c.Pos)
	depth = d.Dot(c.Forward)
	if depth <= 1e-6 {
		return 0, 0, depth, false
	}
	sx = c.HX + c.HZ*d.Dot(c.Right)/depth
	sy = c.HY + c.HZ*d.Dot(c.Down)/depth
	return sx, sy, depth, true
}
