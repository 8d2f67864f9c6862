package engine

import (
	"math"

	"github.com/annel0/voxel-engine/internal/physics"
	"github.com/annel0/voxel-engine/internal/vec"
)

// ClipMove сдвигает сферу радиуса radius из pos на delta, останавливая ее у твердых вокселей
func (e *Engine) ClipMove(pos, delta vec.Vec3Float, radius float64) (vec.Vec3Float, error) {
	const op = "clip_move"
	if err := e.check(op); err != nil {
		return pos, err
	}
	if radius < 0 || math.IsNaN(radius) {
		return pos, invalidf(op, "радиус %v", radius)
	}
	return physics.ClipMove(e.world, pos, delta, radius), nil
}

// CanSee проверяет прямую видимость между точками. При false возвращает первый
// твердый воксель на отрезке.
func (e *Engine) CanSee(a, b vec.Vec3Float) (bool, vec.Vec3, error) {
	if err := e.check("can_see"); err != nil {
		return false, vec.Vec3{}, err
	}
	ok, hit := physics.CanSee(e.world, a, b)
	return ok, hit, nil
}

// IsVoxelSolid проверяет воксель. Вне карты по x/y воздух, выше карты воздух, ниже дна твердь.
func (e *Engine) IsVoxelSolid(p vec.Vec3) (bool, error) {
	if err := e.check("is_voxel_solid"); err != nil {
		return false, err
	}
	return physics.IsVoxelSolid(e.world, p), nil
}

// AllVoxelEmpty истинно, если в боксе p0-p1 (включительно) нет твердых вокселей
func (e *Engine) AllVoxelEmpty(p0, p1 vec.Vec3) (bool, error) {
	if err := e.check("all_voxel_empty"); err != nil {
		return false, err
	}
	return physics.AllVoxelEmpty(e.world, p0, p1), nil
}
