package world

import (
	"errors"
	"fmt"

	"github.com/annel0/voxel-engine/internal/vec"
)

// Ограничения размеров мира
const (
	MinVSID    = 1
	MaxMaxZ    = 1024
	maxMipSize = 1
)

// ErrInvalidSize возвращается при недопустимых размерах мира
var ErrInvalidSize = errors.New("invalid world size")

// World разреженный воксельный мир: уровень 0 и уровни мипмапов.
// Не потокобезопасен: вызывающий сериализует доступ.
type World struct {
	levels   []*Level
	start    vec.Orientation
	revision uint64
	dirty    map[int]struct{}
}

// IsPowerOfTwo проверяет размер стороны карты
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// New создает пустой мир vsid x vsid x maxZ с mipLevels уровнями детализации (включая нулевой)
func New(vsid, maxZ, mipLevels int) (*World, error) {
	if !IsPowerOfTwo(vsid) {
		return nil, fmt.Errorf("%w: vsid %d не степень двойки", ErrInvalidSize, vsid)
	}
	if maxZ < 1 || maxZ > MaxMaxZ {
		return nil, fmt.Errorf("%w: max_z %d вне [1, %d]", ErrInvalidSize, maxZ, MaxMaxZ)
	}
	if mipLevels < 1 {
		mipLevels = 1
	}

	w := &World{dirty: make(map[int]struct{})}
	for lv := 0; lv < mipLevels; lv++ {
		size := vsid >> lv
		if size < maxMipSize {
			break
		}
		w.levels = append(w.levels, NewLevel(size, max(1, maxZ>>lv)))
	}
	w.start = vec.DefaultOrientation(vec.Vec3Float{X: float64(vsid) / 2, Y: float64(vsid) / 2})
	return w, nil
}

func (w *World) VSID() int { return w.levels[0].vsid }
func (w *World) MaxZ() int { return w.levels[0].maxZ }

// MaxXYDimension максимальная сторона карты в вокселях
func (w *World) MaxXYDimension() int { return w.levels[0].vsid }

// Levels число уровней детализации
func (w *World) Levels() int { return len(w.levels) }

// Level возвращает уровень детализации i (0 полное разрешение)
func (w *World) Level(i int) *Level { return w.levels[i] }

// Base уровень полного разрешения
func (w *World) Base() *Level { return w.levels[0] }

// Start начальная ориентация камеры, записанная в карте
func (w *World) Start() vec.Orientation { return w.start }

func (w *World) SetStart(o vec.Orientation) { w.start = o }

// Revision увеличивается при каждом изменении
func (w *World) Revision() uint64 { return w.revision }

// Bounds бокс всего мира
func (w *World) Bounds() Box {
	return Box{Max: vec.Vec3{X: w.VSID() - 1, Y: w.VSID() - 1, Z: w.MaxZ() - 1}}
}

// InBounds проверяет, что воксель лежит внутри мира
func (w *World) InBounds(p vec.Vec3) bool {
	return p.X >= 0 && p.Y >= 0 && p.Z >= 0 && p.X < w.VSID() && p.Y < w.VSID() && p.Z < w.MaxZ()
}

func (w *World) touch(x, y int) {
	w.revision++
	w.dirty[y*w.VSID()+x] = struct{}{}
}

func (w *World) IsSolid(x, y, z int) bool { return w.levels[0].IsSolid(x, y, z) }

func (w *World) Voxel(x, y, z int) (uint32, bool) { return w.levels[0].Voxel(x, y, z) }

func (w *World) Column(x, y int) []Span { return w.levels[0].Column(x, y) }

func (w *World) SurfaceZ(x, y int) int { return w.levels[0].SurfaceZ(x, y) }

// SetSpan делает [z0, z1) колонки твердым (value для новых вокселей) или воздухом
func (w *World) SetSpan(x, y, z0, z1 int, solid bool, value func(z int) uint32) {
	if w.levels[0].setSpan(x, y, z0, z1, solid, value) {
		w.touch(x, y)
	}
}

// FillSpan перезаписывает [z0, z1) однородным твердым отрезком
func (w *World) FillSpan(x, y, z0, z1 int, fill uint32) {
	if w.levels[0].fillSpan(x, y, z0, z1, fill) {
		w.touch(x, y)
	}
}

// SetVoxel записывает один воксель; для solid=false значение игнорируется
func (w *World) SetVoxel(x, y, z int, solid bool, v uint32) {
	if !solid {
		w.SetSpan(x, y, z, z+1, false, nil)
		return
	}
	if w.levels[0].InBounds(x, y) && z >= 0 && z < w.MaxZ() {
		w.levels[0].replaceRange(x, y, Span{Z0: z, Z1: z + 1, Solid: true, Colors: []uint32{v}})
		w.touch(x, y)
	}
}

// SetVoxelValue меняет значение уже твердого вокселя (цвет или освещение)
func (w *World) SetVoxelValue(x, y, z int, v uint32) bool {
	if w.levels[0].setValue(x, y, z, v) {
		w.touch(x, y)
		return true
	}
	return false
}

// SetColumn заменяет колонку целиком после проверки инварианта
func (w *World) SetColumn(x, y int, spans []Span) error {
	if !w.levels[0].InBounds(x, y) {
		return fmt.Errorf("колонка (%d,%d) вне карты", x, y)
	}
	if err := validateSpans(spans, w.MaxZ()); err != nil {
		return fmt.Errorf("колонка (%d,%d): %w", x, y, err)
	}
	w.levels[0].writeColumn(x, y, spans)
	w.touch(x, y)
	return nil
}

// Exposed проверяет, что у твердого вокселя есть хотя бы одна открытая грань
func (w *World) Exposed(x, y, z int) bool {
	return w.ExposedFaces(x, y, z) != 0
}

// Грани вокселя
const (
	FaceNegX = 1 << iota
	FacePosX
	FaceNegY
	FacePosY
	FaceNegZ
	FacePosZ
)

// ExposedFaces возвращает маску граней, граничащих с воздухом
func (w *World) ExposedFaces(x, y, z int) int {
	l := w.levels[0]
	if !l.IsSolid(x, y, z) {
		return 0
	}
	mask := 0
	if !l.IsSolid(x-1, y, z) {
		mask |= FaceNegX
	}
	if !l.IsSolid(x+1, y, z) {
		mask |= FacePosX
	}
	if !l.IsSolid(x, y-1, z) {
		mask |= FaceNegY
	}
	if !l.IsSolid(x, y+1, z) {
		mask |= FacePosY
	}
	if !l.IsSolid(x, y, z-1) {
		mask |= FaceNegZ
	}
	if !l.IsSolid(x, y, z+1) {
		mask |= FacePosZ
	}
	return mask
}

// DirtyColumns возвращает колонки, измененные после последнего ClearDirty
func (w *World) DirtyColumns() []vec.Vec2 {
	out := make([]vec.Vec2, 0, len(w.dirty))
	vsid := w.VSID()
	for idx := range w.dirty {
		out = append(out, vec.Vec2{X: idx % vsid, Y: idx / vsid})
	}
	return out
}

// DirtyCount число измененных колонок
func (w *World) DirtyCount() int { return len(w.dirty) }

// ClearDirty сбрасывает отметки изменений
func (w *World) ClearDirty() {
	w.dirty = make(map[int]struct{})
}

// RunCount число записей арены на уровне 0
func (w *World) RunCount() int { return w.levels[0].RunCount() }

// Equal сравнивает твердость и цвета двух миров (освещение не учитывается)
func (w *World) Equal(o *World) bool {
	if w.VSID() != o.VSID() || w.MaxZ() != o.MaxZ() {
		return false
	}
	for y := 0; y < w.VSID(); y++ {
		for x := 0; x < w.VSID(); x++ {
			if !columnsEqual(w.Column(x, y), o.Column(x, y)) {
				return false
			}
		}
	}
	return true
}

func columnsEqual(a, b []Span) bool {
	for _, s := range a {
		for z := s.Z0; z < s.Z1; z++ {
			t, ok := spanAt(b, z)
			if !ok || t.Solid != s.Solid {
				return false
			}
			if s.Solid && VoxelColor(s.ValueAt(z)) != VoxelColor(t.ValueAt(z)) {
				return false
			}
		}
	}
	return true
}
