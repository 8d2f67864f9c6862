package sprite

import (
	"fmt"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
)

// Model ограниченная воксельная сетка спрайта. Каждая колонка (x, y) хранит
// упорядоченные по z твердые отрезки с плотными цветами; ось z направлена вниз, как в мире.
type Model struct {
	XSize, YSize, ZSize int
	// Pivot точка модели, совпадающая с позицией спрайта
	Pivot   vec.Vec3Float
	columns [][]world.Span
}

// NewModel создает пустую модель
func NewModel(xs, ys, zs int, pivot vec.Vec3Float) (*Model, error) {
	if xs <= 0 || ys <= 0 || zs <= 0 {
		return nil, fmt.Errorf("недопустимый размер модели %dx%dx%d", xs, ys, zs)
	}
	return &Model{
		XSize:   xs,
		YSize:   ys,
		ZSize:   zs,
		Pivot:   pivot,
		columns: make([][]world.Span, xs*ys),
	}, nil
}

// InBounds проверяет, что воксель лежит внутри сетки
func (m *Model) InBounds(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < m.XSize && y < m.YSize && z < m.ZSize
}

// Column возвращает твердые отрезки колонки
func (m *Model) Column(x, y int) []world.Span {
	if x < 0 || y < 0 || x >= m.XSize || y >= m.YSize {
		return nil
	}
	return m.columns[x*m.YSize+y]
}

// Voxel возвращает значение вокселя модели
func (m *Model) Voxel(x, y, z int) (uint32, bool) {
	for _, s := range m.Column(x, y) {
		if z < s.Z0 {
			break
		}
		if z < s.Z1 {
			return s.ValueAt(z), true
		}
	}
	return 0, false
}

func (m *Model) IsSolid(x, y, z int) bool {
	_, ok := m.Voxel(x, y, z)
	return ok
}

// Set записывает воксель. Поддерживает только добавление снизу колонки
// или перезапись существующего вокселя, чего достаточно для построчного заполнения.
func (m *Model) Set(x, y, z int, v uint32) error {
	if !m.InBounds(x, y, z) {
		return fmt.Errorf("воксель (%d,%d,%d) вне модели %dx%dx%d", x, y, z, m.XSize, m.YSize, m.ZSize)
	}
	idx := x*m.YSize + y
	col := m.columns[idx]
	for i := range col {
		if z >= col[i].Z0 && z < col[i].Z1 {
			col[i].Colors[z-col[i].Z0] = v
			return nil
		}
	}
	if n := len(col); n > 0 {
		last := &col[n-1]
		switch {
		case z == last.Z1:
			last.Colors = append(last.Colors, v)
			last.Z1++
			return nil
		case z < last.Z1:
			return fmt.Errorf("воксель (%d,%d,%d) выше последнего отрезка колонки", x, y, z)
		}
	}
	m.columns[idx] = append(col, world.Span{Z0: z, Z1: z + 1, Solid: true, Colors: []uint32{v}})
	return nil
}

// VoxelCount число твердых вокселей модели
func (m *Model) VoxelCount() int {
	n := 0
	for _, col := range m.columns {
		for _, s := range col {
			n += s.Len()
		}
	}
	return n
}

// exposed возвращает маску открытых граней вокселя модели (биты как у world.Face*)
func (m *Model) exposed(x, y, z int) int {
	mask := 0
	if !m.IsSolid(x-1, y, z) {
		mask |= world.FaceNegX
	}
	if !m.IsSolid(x+1, y, z) {
		mask |= world.FacePosX
	}
	if !m.IsSolid(x, y-1, z) {
		mask |= world.FaceNegY
	}
	if !m.IsSolid(x, y+1, z) {
		mask |= world.FacePosY
	}
	if !m.IsSolid(x, y, z-1) {
		mask |= world.FaceNegZ
	}
	if !m.IsSolid(x, y, z+1) {
		mask |= world.FacePosZ
	}
	return mask
}
