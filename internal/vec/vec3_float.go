package vec

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec3Float представляет трехмерный вектор с плавающими координатами
type Vec3Float struct {
	X float64
	Y float64
	Z float64
}

// Add складывает два вектора
func (v Vec3Float) Add(o Vec3Float) Vec3Float {
	return Vec3Float{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub вычитает вектор
func (v Vec3Float) Sub(o Vec3Float) Vec3Float {
	return Vec3Float{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Mul умножает вектор на скаляр
func (v Vec3Float) Mul(s float64) Vec3Float {
	return Vec3Float{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Dot скалярное произведение
func (v Vec3Float) Dot(o Vec3Float) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Cross векторное произведение
func (v Vec3Float) Cross(o Vec3Float) Vec3Float {
	return Vec3Float{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

// Length возвращает длину вектора
func (v Vec3Float) Length() float64 {
	return math.Sqrt(v.Dot(v))
}

// Normalized возвращает нормализованный вектор; нулевой вектор остается нулевым
func (v Vec3Float) Normalized() Vec3Float {
	l := v.Length()
	if l == 0 {
		return Vec3Float{}
	}
	return v.Mul(1 / l)
}

// DistanceTo вычисляет расстояние до другой точки
func (v Vec3Float) DistanceTo(o Vec3Float) float64 {
	return v.Sub(o).Length()
}

// Floor возвращает координату вокселя, содержащего точку
func (v Vec3Float) Floor() Vec3 {
	return Vec3{X: int(math.Floor(v.X)), Y: int(math.Floor(v.Y)), Z: int(math.Floor(v.Z))}
}

// Component возвращает компоненту по номеру оси (0=X, 1=Y, 2=Z)
func (v Vec3Float) Component(axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// WithComponent возвращает копию с замененной компонентой
func (v Vec3Float) WithComponent(axis int, value float64) Vec3Float {
	switch axis {
	case 0:
		v.X = value
	case 1:
		v.Y = value
	default:
		v.Z = value
	}
	return v
}

// Gl преобразует вектор в mgl64.Vec3 (явное копирование полей)
func (v Vec3Float) Gl() mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

// FromGl создает Vec3Float из mgl64.Vec3
func FromGl(g mgl64.Vec3) Vec3Float {
	return Vec3Float{X: g[0], Y: g[1], Z: g[2]}
}
