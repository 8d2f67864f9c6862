package sprite

import (
	"math"

	"github.com/annel0/voxel-engine/internal/vec"
)

// NormalCount размер таблицы направлений нормалей KV6
const NormalCount = 255

// normals равномерно распределенные по сфере направления (золотая спираль)
var normals = buildNormals()

func buildNormals() [NormalCount]vec.Vec3Float {
	var out [NormalCount]vec.Vec3Float
	golden := math.Pi * (3 - math.Sqrt(5))
	step := 2.0 / NormalCount
	for i := range out {
		z := float64(i)*step + step*0.5 - 1
		r := math.Sqrt(1 - z*z)
		a := float64(i) * golden
		out[i] = vec.Vec3Float{X: math.Cos(a) * r, Y: math.Sin(a) * r, Z: z}
	}
	return out
}

// Normal возвращает направление по индексу dir из KV6
func Normal(dir uint8) vec.Vec3Float {
	if int(dir) >= NormalCount {
		return vec.Vec3Float{}
	}
	return normals[dir]
}

// NearestNormal ищет индекс ближайшего к n направления таблицы
func NearestNormal(n vec.Vec3Float) uint8 {
	n = n.Normalized()
	best, bestDot := 0, math.Inf(-1)
	for i, d := range normals {
		if dot := d.Dot(n); dot > bestDot {
			best, bestDot = i, dot
		}
	}
	return uint8(best)
}

// faceNormal грубая нормаль по маске открытых граней
func faceNormal(vis int) vec.Vec3Float {
	var n vec.Vec3Float
	if vis&1 != 0 {
		n.X--
	}
	if vis&2 != 0 {
		n.X++
	}
	if vis&4 != 0 {
		n.Y--
	}
	if vis&8 != 0 {
		n.Y++
	}
	if vis&16 != 0 {
		n.Z--
	}
	if vis&32 != 0 {
		n.Z++
	}
	return n
}
