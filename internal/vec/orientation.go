package vec

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
)

// Orientation описывает камеру или объект: позиция и базис right/down/forward.
// Ортогональность базиса не проверяется.
type Orientation struct {
	Pos     Vec3Float
	Right   Vec3Float
	Down    Vec3Float
	Forward Vec3Float
}

// DefaultOrientation смотрит вдоль +Y, ось Z направлена вниз
func DefaultOrientation(pos Vec3Float) Orientation {
	return Orientation{
		Pos:     pos,
		Right:   Vec3Float{X: 1},
		Down:    Vec3Float{Z: 1},
		Forward: Vec3Float{Y: 1},
	}
}

// AxisRotate поворачивает v вокруг оси axis на угол angle (радианы)
func AxisRotate(v, axis Vec3Float, angle float64) Vec3Float {
	a := axis.Normalized()
	if a == (Vec3Float{}) {
		return v
	}
	q := mgl64.QuatRotate(angle, a.Gl())
	return FromGl(q.Rotate(v.Gl()))
}

// ZRotate поворачивает v вокруг вертикальной оси Z
func ZRotate(v Vec3Float, angle float64) Vec3Float {
	c, s := math.Cos(angle), math.Sin(angle)
	return Vec3Float{X: v.X*c - v.Y*s, Y: v.X*s + v.Y*c, Z: v.Z}
}

// Rotate поворачивает весь базис вокруг оси; позиция не меняется
func (o Orientation) Rotate(axis Vec3Float, angle float64) Orientation {
	o.Right = AxisRotate(o.Right, axis, angle)
	o.Down = AxisRotate(o.Down, axis, angle)
	o.Forward = AxisRotate(o.Forward, axis, angle)
	return o
}

// RandUnit возвращает случайный единичный вектор, равномерно распределенный по сфере
func RandUnit(rng *rand.Rand) Vec3Float {
	z := rng.Float64()*2 - 1
	a := rng.Float64() * 2 * math.Pi
	r := math.Sqrt(1 - z*z)
	return Vec3Float{X: math.Cos(a) * r, Y: math.Sin(a) * r, Z: z}
}
