// Package lighting вычисляет байт освещения видимых вокселей мира.
package lighting

import (
	"fmt"
	"math"
	"strings"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
)

// Mode режим освещения
type Mode int

const (
	None Mode = iota
	EstimatedNormal
	MultiPointSource
)

func (m Mode) String() string {
	switch m {
	case None:
		return "none"
	case EstimatedNormal:
		return "estimated_normal"
	case MultiPointSource:
		return "multi_point_source"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Valid проверяет значение режима
func (m Mode) Valid() bool {
	return m >= None && m <= MultiPointSource
}

// ParseMode разбирает имя режима из конфигурации; допускается и номер 0..2
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "0":
		return None, nil
	case "estimated_normal", "normal", "1":
		return EstimatedNormal, nil
	case "multi_point_source", "point", "2":
		return MultiPointSource, nil
	}
	return None, fmt.Errorf("неизвестный режим освещения %q", s)
}

// normalRadius радиус окрестности для оценки нормали
const normalRadius = 2

// DefaultSunIntensity вклад солнца для грани, обращенной к нему
const DefaultSunIntensity = 128

// PointLight точечный источник, действующий в пределах Radius
type PointLight struct {
	Pos       vec.Vec3Float
	Radius    float64
	Intensity float64
}

// Lighting состояние подсистемы освещения
type Lighting struct {
	mode Mode
	// Sun направление на солнце (ось z направлена вниз)
	Sun          vec.Vec3Float
	SunIntensity float64
	Ambient      int

	lights []PointLight
}

// New создает подсистему в заданном режиме
func New(mode Mode) *Lighting {
	return &Lighting{
		mode:         mode,
		Sun:          vec.Vec3Float{X: 0.4, Y: 0.3, Z: -1}.Normalized(),
		SunIntensity: DefaultSunIntensity,
		Ambient:      48,
	}
}

func (l *Lighting) Mode() Mode { return l.mode }

// SetMode переключает режим. Уже вычисленные значения не меняются до Update.
func (l *Lighting) SetMode(m Mode) error {
	if !m.Valid() {
		return fmt.Errorf("недопустимый режим освещения %d", int(m))
	}
	l.mode = m
	return nil
}

// SetSun задает направление на солнце
func (l *Lighting) SetSun(dir vec.Vec3Float) {
	l.Sun = dir.Normalized()
}

// AddLight регистрирует точечный источник для режима MultiPointSource
func (l *Lighting) AddLight(p PointLight) error {
	if p.Radius <= 0 || math.IsNaN(p.Radius) {
		return fmt.Errorf("недопустимый радиус источника %v", p.Radius)
	}
	l.lights = append(l.lights, p)
	return nil
}

// ClearLights удаляет все точечные источники
func (l *Lighting) ClearLights() { l.lights = nil }

// Lights возвращает копию списка источников
func (l *Lighting) Lights() []PointLight {
	return append([]PointLight(nil), l.lights...)
}

// EstimateNormal оценивает нормаль поверхности по пустым соседям в окрестности радиуса 2.
// Нормаль направлена в сторону воздуха.
func EstimateNormal(w *world.World, x, y, z int) vec.Vec3Float {
	var n vec.Vec3Float
	for dz := -normalRadius; dz <= normalRadius; dz++ {
		for dy := -normalRadius; dy <= normalRadius; dy++ {
			for dx := -normalRadius; dx <= normalRadius; dx++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				if !w.IsSolid(x+dx, y+dy, z+dz) {
					n = n.Add(vec.Vec3Float{X: float64(dx), Y: float64(dy), Z: float64(dz)})
				}
			}
		}
	}
	return n.Normalized()
}

// shade вычисляет байт освещения вокселя по текущему режиму
func (l *Lighting) shade(w *world.World, x, y, z int) uint8 {
	if l.mode == None {
		return world.NeutralLight
	}
	n := EstimateNormal(w, x, y, z)
	v := float64(l.Ambient) + l.SunIntensity*math.Max(0, n.Dot(l.Sun))
	if l.mode == MultiPointSource {
		center := vec.Vec3{X: x, Y: y, Z: z}.Center()
		for _, p := range l.lights {
			v += pointTerm(n, center, p.Pos, p.Radius, p.Intensity)
		}
	}
	return clampLight(v)
}

// pointTerm вклад точечного источника с линейным затуханием до radius
func pointTerm(n, at, pos vec.Vec3Float, radius, intensity float64) float64 {
	d := pos.Sub(at)
	dist := d.Length()
	if dist >= radius {
		return 0
	}
	facing := 1.0
	if dist > 0 {
		facing = math.Max(0, n.Dot(d.Mul(1/dist)))
	}
	return intensity * facing * (1 - dist/radius)
}

func clampLight(v float64) uint8 {
	switch {
	case v <= 0 || math.IsNaN(v):
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(math.Round(v))
	}
}

// forExposed перебирает видимые твердые воксели бокса
func forExposed(w *world.World, box world.Box, fn func(x, y, z int, v uint32)) {
	box = box.Clip(w.VSID(), w.MaxZ())
	if box.Empty() {
		return
	}
	for y := box.Min.Y; y <= box.Max.Y; y++ {
		for x := box.Min.X; x <= box.Max.X; x++ {
			for _, s := range w.Column(x, y) {
				if !s.Solid || s.Z1 <= box.Min.Z || s.Z0 > box.Max.Z {
					continue
				}
				for z := max(s.Z0, box.Min.Z); z < min(s.Z1, box.Max.Z+1); z++ {
					if w.Exposed(x, y, z) {
						fn(x, y, z, s.ValueAt(z))
					}
				}
			}
		}
	}
}

// Update пересчитывает освещение видимых вокселей в боксе и возвращает их число
func (l *Lighting) Update(w *world.World, box world.Box) int {
	type pending struct {
		x, y, z int
		v       uint32
	}
	// значения собираются до записи: запись может перестроить отрезки колонки
	var out []pending
	n := 0
	forExposed(w, box, func(x, y, z int, v uint32) {
		n++
		light := l.shade(w, x, y, z)
		if world.VoxelLight(v) != light {
			out = append(out, pending{x, y, z, world.WithLight(v, light)})
		}
	})
	for _, p := range out {
		w.SetVoxelValue(p.x, p.y, p.z, p.v)
	}
	return n
}

// SetNormFlash добавляет вспышку в точке pos: освещение видимых вокселей в радиусе
// увеличивается с учетом ориентации грани и расстояния. Возвращает затронутый бокс.
func SetNormFlash(w *world.World, pos vec.Vec3Float, radius, intensity float64) world.Box {
	if radius <= 0 || math.IsNaN(radius) {
		return world.EmptyBox()
	}
	ir := int(math.Ceil(radius))
	c := pos.Floor()
	box := world.Box{
		Min: c.Sub(vec.Vec3{X: ir, Y: ir, Z: ir}),
		Max: c.Add(vec.Vec3{X: ir, Y: ir, Z: ir}),
	}.Clip(w.VSID(), w.MaxZ())

	type pending struct {
		x, y, z int
		v       uint32
	}
	var out []pending
	forExposed(w, box, func(x, y, z int, v uint32) {
		n := EstimateNormal(w, x, y, z)
		add := pointTerm(n, vec.Vec3{X: x, Y: y, Z: z}.Center(), pos, radius, intensity)
		if add == 0 {
			return
		}
		light := clampLight(float64(world.VoxelLight(v)) + add)
		out = append(out, pending{x, y, z, world.WithLight(v, light)})
	})
	for _, p := range out {
		w.SetVoxelValue(p.x, p.y, p.z, p.v)
	}
	return box
}
