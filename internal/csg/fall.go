package csg

import (
	"sort"

	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/sprite"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
)

// FallLimit компонента больше этого числа вокселей считается опертой
const FallLimit = 1 << 16

var neighbors6 = [6]vec.Vec3{
	{X: -1}, {X: 1}, {Y: -1}, {Y: 1}, {Z: -1}, {Z: 1},
}

// detachFloating ищет вокруг бокса компоненты связности, не достающие до дна,
// переносит их в спрайты-обломки и возвращает бокс удаленных вокселей
func (e *Editor) detachFloating(box world.Box) world.Box {
	w := e.world
	floor := w.MaxZ() - 1
	area := box.Expand(1).Clip(w.VSID(), w.MaxZ())
	grounded := make(map[vec.Vec3]struct{})
	removed := world.EmptyBox()

	for y := area.Min.Y; y <= area.Max.Y; y++ {
		for x := area.Min.X; x <= area.Max.X; x++ {
			for z := area.Min.Z; z <= area.Max.Z; z++ {
				seed := vec.Vec3{X: x, Y: y, Z: z}
				if _, ok := grounded[seed]; ok || !w.IsSolid(x, y, z) {
					continue
				}
				comp, ok := floodComponent(w, seed, floor, grounded)
				if ok {
					continue
				}
				if s := e.extractDebris(comp); s != nil {
					e.debris = append(e.debris, s)
					removed = removed.Union(s.WorldBounds())
				}
			}
		}
	}
	return removed
}

// floodComponent обходит 6-связную компоненту. Обход прерывается, как только
// найдена опора: дно мира, уже опертый воксель или размер больше FallLimit.
// Все посещенные воксели опертой компоненты попадают в grounded.
func floodComponent(w *world.World, seed vec.Vec3, floor int, grounded map[vec.Vec3]struct{}) ([]vec.Vec3, bool) {
	local := map[vec.Vec3]struct{}{seed: {}}
	queue := []vec.Vec3{seed}
	var comp []vec.Vec3
	markGrounded := func() ([]vec.Vec3, bool) {
		for p := range local {
			grounded[p] = struct{}{}
		}
		return nil, true
	}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		comp = append(comp, p)
		if p.Z >= floor || len(comp) > FallLimit {
			return markGrounded()
		}
		for _, d := range neighbors6 {
			n := p.Add(d)
			if !w.InBounds(n) {
				continue
			}
			if _, ok := grounded[n]; ok {
				return markGrounded()
			}
			if _, seen := local[n]; seen || !w.IsSolid(n.X, n.Y, n.Z) {
				continue
			}
			local[n] = struct{}{}
			queue = append(queue, n)
		}
	}
	return comp, false
}

// extractDebris удаляет компоненту из мира и собирает ее в спрайт вызывающего
func (e *Editor) extractDebris(comp []vec.Vec3) *sprite.Sprite {
	if len(comp) == 0 {
		return nil
	}
	sort.Slice(comp, func(i, j int) bool {
		a, b := comp[i], comp[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
	lo, hi := comp[0], comp[0]
	for _, p := range comp {
		lo, hi = lo.Min(p), hi.Max(p)
	}
	size := hi.Sub(lo).Add(vec.Vec3{X: 1, Y: 1, Z: 1})
	m, err := sprite.NewModel(size.X, size.Y, size.Z, vec.Vec3Float{})
	if err != nil {
		return nil
	}
	for _, p := range comp {
		v, _ := e.world.Voxel(p.X, p.Y, p.Z)
		l := p.Sub(lo)
		if err := m.Set(l.X, l.Y, l.Z, v); err != nil {
			logging.Warn("Обломок: %v", err)
			return nil
		}
	}
	for _, p := range comp {
		e.world.SetSpan(p.X, p.Y, p.Z, p.Z+1, false, nil)
	}

	s := sprite.NewCallerOwned(m, "debris")
	s.Pos = lo.ToFloat()
	logging.Debug("Отделен обломок из %d вокселей в %v", len(comp), lo)
	return s
}
