package world

import "github.com/annel0/voxel-engine/internal/vec"

// Box осевой параллелепипед вокселей, обе границы включительно
type Box struct {
	Min vec.Vec3
	Max vec.Vec3
}

// NewBox строит бокс по двум углам в любом порядке
func NewBox(a, b vec.Vec3) Box {
	return Box{Min: a.Min(b), Max: a.Max(b)}
}

// Empty истинно, если бокс не содержит ни одного вокселя
func (b Box) Empty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Contains проверяет попадание точки
func (b Box) Contains(p vec.Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Union объединяет два бокса; пустой бокс нейтрален
func (b Box) Union(o Box) Box {
	if b.Empty() {
		return o
	}
	if o.Empty() {
		return b
	}
	return Box{Min: b.Min.Min(o.Min), Max: b.Max.Max(o.Max)}
}

// Expand расширяет бокс на n вокселей во все стороны
func (b Box) Expand(n int) Box {
	d := vec.Vec3{X: n, Y: n, Z: n}
	return Box{Min: b.Min.Sub(d), Max: b.Max.Add(d)}
}

// Clip обрезает бокс по границам мира
func (b Box) Clip(vsid, maxZ int) Box {
	return Box{
		Min: b.Min.Max(vec.Vec3{}),
		Max: b.Max.Min(vec.Vec3{X: vsid - 1, Y: vsid - 1, Z: maxZ - 1}),
	}
}

// EmptyBox возвращает заведомо пустой бокс
func EmptyBox() Box {
	return Box{Min: vec.Vec3{X: 1, Y: 1, Z: 1}}
}
