package sprite

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
)

// Ownership определяет, кто освобождает спрайт
type Ownership uint8

const (
	// EngineManaged спрайт принадлежит реестру и освобождается при закрытии движка
	EngineManaged Ownership = iota + 1
	// CallerOwned спрайт освобождает вызывающий через Release
	CallerOwned
)

func (o Ownership) String() string {
	switch o {
	case EngineManaged:
		return "engine-managed"
	case CallerOwned:
		return "caller-owned"
	default:
		return "unknown"
	}
}

// Sprite размещенная в мире модель. S, H, F: мировые направления осей x, y, z модели.
type Sprite struct {
	ID    uuid.UUID
	Name  string
	Model *Model
	Pos   vec.Vec3Float
	S     vec.Vec3Float
	H     vec.Vec3Float
	F     vec.Vec3Float
	Owner Ownership

	released bool
}

func newSprite(m *Model, owner Ownership, name string) *Sprite {
	return &Sprite{
		ID:    uuid.New(),
		Name:  name,
		Model: m,
		S:     vec.Vec3Float{X: 1},
		H:     vec.Vec3Float{Y: 1},
		F:     vec.Vec3Float{Z: 1},
		Owner: owner,
	}
}

// NewCallerOwned оборачивает модель в спрайт, который освобождает вызывающий
func NewCallerOwned(m *Model, name string) *Sprite {
	return newSprite(m, CallerOwned, name)
}

// Released истинно после освобождения
func (s *Sprite) Released() bool { return s.released }

// Place задает позицию и базис спрайта
func (s *Sprite) Place(pos, sx, hy, fz vec.Vec3Float) {
	s.Pos, s.S, s.H, s.F = pos, sx, hy, fz
}

// Rotate поворачивает базис вокруг оси
func (s *Sprite) Rotate(axis vec.Vec3Float, angle float64) {
	s.S = vec.AxisRotate(s.S, axis, angle)
	s.H = vec.AxisRotate(s.H, axis, angle)
	s.F = vec.AxisRotate(s.F, axis, angle)
}

// LocalToWorld переводит точку модели (в вокселях сетки) в мировые координаты
func (s *Sprite) LocalToWorld(p vec.Vec3Float) vec.Vec3Float {
	d := p.Sub(s.Model.Pivot)
	return s.Pos.Add(s.S.Mul(d.X)).Add(s.H.Mul(d.Y)).Add(s.F.Mul(d.Z))
}

// basis матрица со столбцами S, H, F
func (s *Sprite) basis() mgl64.Mat3 {
	return mgl64.Mat3FromCols(s.S.Gl(), s.H.Gl(), s.F.Gl())
}

// WorldToLocal обратное преобразование; для вырожденного базиса ok = false
func (s *Sprite) WorldToLocal(p vec.Vec3Float) (vec.Vec3Float, bool) {
	inv, ok := s.inverse()
	if !ok {
		return vec.Vec3Float{}, false
	}
	return s.toLocal(inv, p), true
}

func (s *Sprite) inverse() (mgl64.Mat3, bool) {
	m := s.basis()
	if math.Abs(m.Det()) < 1e-12 {
		return mgl64.Mat3{}, false
	}
	return m.Inv(), true
}

func (s *Sprite) toLocal(inv mgl64.Mat3, p vec.Vec3Float) vec.Vec3Float {
	return vec.FromGl(inv.Mul3x1(p.Sub(s.Pos).Gl())).Add(s.Model.Pivot)
}

// LocalTransform возвращает функцию перевода мировых точек в координаты модели
func (s *Sprite) LocalTransform() (func(vec.Vec3Float) vec.Vec3Float, bool) {
	inv, ok := s.inverse()
	if !ok {
		return nil, false
	}
	return func(p vec.Vec3Float) vec.Vec3Float { return s.toLocal(inv, p) }, true
}

// WorldBounds бокс мировых вокселей, которые может занять спрайт
func (s *Sprite) WorldBounds() world.Box {
	lo := vec.Vec3Float{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi := vec.Vec3Float{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	m := s.Model
	for i := 0; i < 8; i++ {
		c := vec.Vec3Float{}
		if i&1 != 0 {
			c.X = float64(m.XSize)
		}
		if i&2 != 0 {
			c.Y = float64(m.YSize)
		}
		if i&4 != 0 {
			c.Z = float64(m.ZSize)
		}
		p := s.LocalToWorld(c)
		lo = vec.Vec3Float{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = vec.Vec3Float{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}
	return world.Box{
		Min: lo.Floor(),
		Max: vec.Vec3Float{X: math.Ceil(hi.X) - 1, Y: math.Ceil(hi.Y) - 1, Z: math.Ceil(hi.Z) - 1}.Floor(),
	}
}

func pivotVec(x, y, z float32) vec.Vec3Float {
	return vec.Vec3Float{X: float64(x), Y: float64(y), Z: float64(z)}
}
