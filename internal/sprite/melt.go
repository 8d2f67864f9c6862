package sprite

import (
	"fmt"
	"math"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
)

// Melt вырезает из мира шар радиуса r с центром в вокселе center и возвращает
// его содержимое как спрайт вызывающего вместе с числом удаленных вокселей.
// Модель покрывает только часть шара внутри карты. Позиция спрайта совпадает
// с центром вокселя center, поэтому штамп возвращает воксели на место.
func Melt(w *world.World, center vec.Vec3, r float64) (*Sprite, int, error) {
	if r < 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return nil, 0, fmt.Errorf("недопустимый радиус %v", r)
	}
	b := w.SphereBounds(center, r)
	if b.Empty() {
		// шар целиком вне карты
		b = world.Box{Min: center, Max: center}
	}
	size := b.Max.Sub(b.Min).Add(vec.Vec3{X: 1, Y: 1, Z: 1})
	pivot := center.Sub(b.Min).Center()
	m, err := NewModel(size.X, size.Y, size.Z, pivot)
	if err != nil {
		return nil, 0, err
	}

	count := 0
	var setErr error
	w.SphereChords(center, r, func(x, y, z0, z1 int) {
		if setErr != nil {
			return
		}
		for _, s := range w.Column(x, y) {
			if !s.Solid || s.Z1 <= z0 || s.Z0 >= z1 {
				continue
			}
			for z := max(s.Z0, z0); z < min(s.Z1, z1); z++ {
				if err := m.Set(x-b.Min.X, y-b.Min.Y, z-b.Min.Z, s.ValueAt(z)); err != nil {
					setErr = err
					return
				}
				count++
			}
		}
		w.SetSpan(x, y, z0, z1, false, nil)
	})
	if setErr != nil {
		return nil, 0, setErr
	}

	s := NewCallerOwned(m, "melt")
	s.Pos = center.Center()
	return s, count, nil
}
