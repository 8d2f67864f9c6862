package csg

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
)

// SetSDF растеризует SDF-тело: воксель входит, если расстояние в его центре <= 0
func (e *Editor) SetSDF(s sdf.SDF3, op Op) (world.Box, error) {
	if err := checkOp(op); err != nil {
		return world.EmptyBox(), err
	}
	if s == nil {
		return world.EmptyBox(), fmt.Errorf("%w: пустое тело", ErrInvalidParameter)
	}
	bb := s.BoundingBox()
	box := world.Box{
		Min: vec.Vec3{X: int(math.Floor(bb.Min.X)), Y: int(math.Floor(bb.Min.Y)), Z: int(math.Floor(bb.Min.Z))},
		Max: vec.Vec3{X: int(math.Ceil(bb.Max.X)), Y: int(math.Ceil(bb.Max.Y)), Z: int(math.Ceil(bb.Max.Z))},
	}
	clipped := box.Clip(e.world.VSID(), e.world.MaxZ())

	for y := clipped.Min.Y; y <= clipped.Max.Y; y++ {
		for x := clipped.Min.X; x <= clipped.Max.X; x++ {
			start := -1
			for z := clipped.Min.Z; z <= clipped.Max.Z+1; z++ {
				inside := z <= clipped.Max.Z &&
					s.Evaluate(v3.Vec{X: float64(x) + 0.5, Y: float64(y) + 0.5, Z: float64(z) + 0.5}) <= 0
				switch {
				case inside && start < 0:
					start = z
				case !inside && start >= 0:
					e.applySpan(x, y, start, z, op)
					start = -1
				}
			}
		}
	}
	return e.finish(box, op), nil
}

// SetCylinder цилиндр радиуса r с осью от p0 до p1
func (e *Editor) SetCylinder(p0, p1 vec.Vec3Float, r float64, op Op) (world.Box, error) {
	axis := p1.Sub(p0)
	length := axis.Length()
	if r <= 0 || length == 0 || math.IsNaN(r) || math.IsNaN(length) {
		return world.EmptyBox(), fmt.Errorf("%w: цилиндр r=%v длина=%v", ErrInvalidParameter, r, length)
	}
	cyl, err := sdf.Cylinder3D(length, r, 0)
	if err != nil {
		return world.EmptyBox(), fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	// ось Z цилиндра поворачивается вдоль axis
	theta := math.Acos(axis.Z / length)
	phi := math.Atan2(axis.Y, axis.X)
	mid := p0.Add(axis.Mul(0.5))
	m := sdf.Translate3d(v3.Vec{X: mid.X, Y: mid.Y, Z: mid.Z}).Mul(sdf.RotateZ(phi)).Mul(sdf.RotateY(theta))
	return e.SetSDF(sdf.Transform3D(cyl, m), op)
}

// SetBox параллелепипед размера size с центром center, повернутый вокруг вертикали на yaw
func (e *Editor) SetBox(center, size vec.Vec3Float, yaw float64, op Op) (world.Box, error) {
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		return world.EmptyBox(), fmt.Errorf("%w: размер %v", ErrInvalidParameter, size)
	}
	b, err := sdf.Box3D(v3.Vec{X: size.X, Y: size.Y, Z: size.Z}, 0)
	if err != nil {
		return world.EmptyBox(), fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	m := sdf.Translate3d(v3.Vec{X: center.X, Y: center.Y, Z: center.Z}).Mul(sdf.RotateZ(yaw))
	return e.SetSDF(sdf.Transform3D(b, m), op)
}
