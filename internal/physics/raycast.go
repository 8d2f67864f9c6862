package physics

import (
	"math"

	"github.com/annel0/voxel-engine/internal/vec"
)

// Hit результат луча
type Hit struct {
	Voxel  vec.Vec3
	Normal vec.Vec3
	// Dist доля пути (для CanSee) или расстояние (для Raycast) до входа в воксель
	Dist float64
}

func ddaInit(pos, dir float64, cell int) (step int, tMax, tDelta float64) {
	if dir > 0 {
		return 1, (float64(cell+1) - pos) / dir, 1 / dir
	}
	if dir < 0 {
		return -1, (pos - float64(cell)) / -dir, 1 / -dir
	}
	return 0, math.Inf(1), math.Inf(1)
}

// traverse проходит воксели вдоль origin + dir*t для t в [0, tEnd] и
// возвращает первый твердый
func traverse(s Solidity, origin, dir vec.Vec3Float, tEnd float64) (Hit, bool) {
	cell := origin.Floor()
	stepX, tMaxX, tDeltaX := ddaInit(origin.X, dir.X, cell.X)
	stepY, tMaxY, tDeltaY := ddaInit(origin.Y, dir.Y, cell.Y)
	stepZ, tMaxZ, tDeltaZ := ddaInit(origin.Z, dir.Z, cell.Z)

	if s.IsSolid(cell.X, cell.Y, cell.Z) {
		return Hit{Voxel: cell}, true
	}

	var normal vec.Vec3
	for {
		var dist float64
		switch {
		case tMaxX < tMaxY && tMaxX < tMaxZ:
			cell.X += stepX
			dist = tMaxX
			tMaxX += tDeltaX
			normal = vec.Vec3{X: -stepX}
		case tMaxY < tMaxZ:
			cell.Y += stepY
			dist = tMaxY
			tMaxY += tDeltaY
			normal = vec.Vec3{Y: -stepY}
		default:
			cell.Z += stepZ
			dist = tMaxZ
			tMaxZ += tDeltaZ
			normal = vec.Vec3{Z: -stepZ}
		}

		if dist > tEnd || math.IsInf(dist, 1) {
			return Hit{}, false
		}
		if s.IsSolid(cell.X, cell.Y, cell.Z) {
			return Hit{Voxel: cell, Normal: normal, Dist: dist}, true
		}
	}
}

// CanSee проверяет прямую видимость от a до b. При наличии препятствия
// возвращает первый твердый воксель на отрезке, считая от a.
func CanSee(s Solidity, a, b vec.Vec3Float) (bool, vec.Vec3) {
	hit, blocked := traverse(s, a, b.Sub(a), 1)
	if blocked {
		return false, hit.Voxel
	}
	return true, vec.Vec3{}
}

// Raycast ищет первый твердый воксель вдоль луча длиной не более maxDist
func Raycast(s Solidity, origin, dir vec.Vec3Float, maxDist float64) (Hit, bool) {
	d := dir.Normalized()
	if d == (vec.Vec3Float{}) {
		return Hit{}, false
	}
	return traverse(s, origin, d, maxDist)
}

// IsVoxelSolid проверяет твердость вокселя
func IsVoxelSolid(s Solidity, p vec.Vec3) bool {
	return s.IsSolid(p.X, p.Y, p.Z)
}

// AllVoxelEmpty истинно, если в боксе между углами (включительно) нет твердых вокселей
func AllVoxelEmpty(s Solidity, p0, p1 vec.Vec3) bool {
	lo, hi := p0.Min(p1), p0.Max(p1)
	for z := lo.Z; z <= hi.Z; z++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for x := lo.X; x <= hi.X; x++ {
				if s.IsSolid(x, y, z) {
					return false
				}
			}
		}
	}
	return true
}
