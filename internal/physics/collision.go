// Package physics отвечает на запросы столкновений и видимости к воксельному миру.
package physics

import (
	"math"

	"github.com/annel0/voxel-engine/internal/vec"
)

// Solidity источник твердости вокселей (мир или его уровень)
type Solidity interface {
	IsSolid(x, y, z int) bool
}

const (
	// maxSubstep наибольший шаг перемещения за одну проверку
	maxSubstep = 0.25
	// bisectIterations точность поиска свободной доли шага
	bisectIterations = 10
)

// SphereCollider шар радиуса Radius
type SphereCollider struct {
	Radius float64
}

// NewSphereCollider создаёт коллайдер; отрицательный радиус считается нулевым
func NewSphereCollider(radius float64) *SphereCollider {
	return &SphereCollider{Radius: math.Max(radius, 0)}
}

// Overlaps проверяет, пересекает ли шар с центром pos хотя бы один твердый воксель.
// Касание грани пересечением не считается.
func (c *SphereCollider) Overlaps(s Solidity, pos vec.Vec3Float) bool {
	r := c.Radius
	if r == 0 {
		p := pos.Floor()
		return s.IsSolid(p.X, p.Y, p.Z)
	}
	lo := vec.Vec3Float{X: pos.X - r, Y: pos.Y - r, Z: pos.Z - r}.Floor()
	hi := vec.Vec3Float{X: pos.X + r, Y: pos.Y + r, Z: pos.Z + r}.Floor()
	r2 := r * r
	for z := lo.Z; z <= hi.Z; z++ {
		dz := axisDist(pos.Z, z)
		for y := lo.Y; y <= hi.Y; y++ {
			dy := axisDist(pos.Y, y)
			if dz*dz+dy*dy >= r2 {
				continue
			}
			for x := lo.X; x <= hi.X; x++ {
				dx := axisDist(pos.X, x)
				if dx*dx+dy*dy+dz*dz < r2 && s.IsSolid(x, y, z) {
					return true
				}
			}
		}
	}
	return false
}

// axisDist расстояние от координаты p до отрезка [v, v+1]
func axisDist(p float64, v int) float64 {
	switch lo, hi := float64(v), float64(v+1); {
	case p < lo:
		return lo - p
	case p > hi:
		return p - hi
	default:
		return 0
	}
}

// ClipMove перемещает шар на delta со скольжением: каждая ось обрабатывается
// отдельно, упор по одной оси не гасит движение по другим. Если стартовая позиция
// уже пересекает твердые воксели, она возвращается без изменений.
func (c *SphereCollider) ClipMove(s Solidity, pos, delta vec.Vec3Float) vec.Vec3Float {
	if c.Overlaps(s, pos) {
		return pos
	}
	longest := math.Max(math.Abs(delta.X), math.Max(math.Abs(delta.Y), math.Abs(delta.Z)))
	if longest == 0 || math.IsNaN(longest) || math.IsInf(longest, 0) {
		return pos
	}
	steps := int(math.Ceil(longest / maxSubstep))
	step := delta.Mul(1 / float64(steps))

	for i := 0; i < steps; i++ {
		for axis := 0; axis < 3; axis++ {
			d := step.Component(axis)
			if d == 0 {
				continue
			}
			next := pos.WithComponent(axis, pos.Component(axis)+d)
			if !c.Overlaps(s, next) {
				pos = next
				continue
			}
			pos = c.bisect(s, pos, axis, d)
		}
	}
	return pos
}

// bisect ищет наибольшую свободную долю шага d по оси axis
func (c *SphereCollider) bisect(s Solidity, pos vec.Vec3Float, axis int, d float64) vec.Vec3Float {
	lo, hi := 0.0, 1.0
	for i := 0; i < bisectIterations; i++ {
		mid := (lo + hi) / 2
		if c.Overlaps(s, pos.WithComponent(axis, pos.Component(axis)+d*mid)) {
			hi = mid
		} else {
			lo = mid
		}
	}
	return pos.WithComponent(axis, pos.Component(axis)+d*lo)
}

// ClipMove перемещает шар радиуса radius; см. SphereCollider.ClipMove
func ClipMove(s Solidity, pos, delta vec.Vec3Float, radius float64) vec.Vec3Float {
	return NewSphereCollider(radius).ClipMove(s, pos, delta)
}
