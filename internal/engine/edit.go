package engine

import (
	"math"
	"time"

	"github.com/annel0/voxel-engine/internal/csg"
	"github.com/annel0/voxel-engine/internal/lighting"
	"github.com/annel0/voxel-engine/internal/sprite"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
)

// edited накапливает грязный бокс, пишет метрики и уведомляет подписчиков
func (e *Engine) edited(op csg.Op, shape string, box world.Box) {
	e.metrics.observeEdit(op.String(), shape)
	if box.Empty() {
		return
	}
	e.dirty = e.dirty.Union(box)
	ev := EditEvent{Op: op.String(), Shape: shape, Box: box, Revision: e.world.Revision(), At: time.Now()}
	for _, h := range e.hooks {
		h(ev)
	}
}

// Dirty бокс правок, накопленных с последнего UpdateVXL
func (e *Engine) Dirty() world.Box { return e.dirty }

// SetSphere вставляет или удаляет шар
func (e *Engine) SetSphere(center vec.Vec3, r float64, op csg.Op) error {
	const name = "set_sphere"
	if err := e.check(name); err != nil {
		return err
	}
	box, err := e.editor.SetSphere(center, r, op)
	if err != nil {
		return wrap(name, err)
	}
	e.edited(op, "sphere", box)
	return nil
}

// SetRect вставляет или удаляет параллелепипед с углами p0, p1 включительно
func (e *Engine) SetRect(p0, p1 vec.Vec3, op csg.Op) error {
	const name = "set_rect"
	if err := e.check(name); err != nil {
		return err
	}
	box, err := e.editor.SetRect(p0, p1, op)
	if err != nil {
		return wrap(name, err)
	}
	e.edited(op, "rect", box)
	return nil
}

// SetCube записывает один воксель; nil удаляет его
func (e *Engine) SetCube(pos vec.Vec3, c *world.Color) error {
	const name = "set_cube"
	if err := e.check(name); err != nil {
		return err
	}
	box, err := e.editor.SetCube(pos, c)
	if err != nil {
		return wrap(name, err)
	}
	op := csg.Insert
	if c == nil {
		op = csg.Remove
	}
	e.edited(op, "cube", box)
	return nil
}

// SetCylinder вставляет или удаляет цилиндр с осью p0-p1
func (e *Engine) SetCylinder(p0, p1 vec.Vec3Float, r float64, op csg.Op) error {
	const name = "set_cylinder"
	if err := e.check(name); err != nil {
		return err
	}
	box, err := e.editor.SetCylinder(p0, p1, r, op)
	if err != nil {
		return wrap(name, err)
	}
	e.edited(op, "cylinder", box)
	return nil
}

// SetBox вставляет или удаляет параллелепипед, повернутый вокруг вертикали
func (e *Engine) SetBox(center, size vec.Vec3Float, yaw float64, op csg.Op) error {
	const name = "set_box"
	if err := e.check(name); err != nil {
		return err
	}
	box, err := e.editor.SetBox(center, size, yaw, op)
	if err != nil {
		return wrap(name, err)
	}
	e.edited(op, "box", box)
	return nil
}

// SetKV6IntoWorld впечатывает спрайт в мир (Insert) или вырезает его форму (Remove)
func (e *Engine) SetKV6IntoWorld(s *sprite.Sprite, op csg.Op) error {
	const name = "set_kv6_into_vxl_memory"
	if err := e.check(name); err != nil {
		return err
	}
	box, err := e.editor.StampSprite(s, op)
	if err != nil {
		return wrap(name, err)
	}
	e.edited(op, "sprite", box)
	return nil
}

// MeltSphere переносит воксели шара в новый спрайт, которым владеет вызывающий.
// Возвращает спрайт и число перенесенных вокселей.
func (e *Engine) MeltSphere(center vec.Vec3, r float64) (*sprite.Sprite, int, error) {
	const name = "melt_sphere"
	if err := e.check(name); err != nil {
		return nil, 0, err
	}
	if r < 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return nil, 0, invalidf(name, "радиус %v", r)
	}
	s, n, err := sprite.Melt(e.world, center, r)
	if err != nil {
		return nil, 0, wrap(name, err)
	}
	e.metrics.observeMelt(n)
	e.edited(csg.Remove, "melt", e.world.SphereBounds(center, r))
	return s, n, nil
}

// SetCurCol задает цвет вставляемых вокселей
func (e *Engine) SetCurCol(c world.Color) error {
	if err := e.check("set_curcol"); err != nil {
		return err
	}
	e.editor.CurColor = c
	return nil
}

// SetCurPow задает амплитуду шума цвета вставляемых вокселей
func (e *Engine) SetCurPow(pow int) error {
	const name = "set_curpow"
	if err := e.check(name); err != nil {
		return err
	}
	if pow < 0 || pow > 255 {
		return invalidf(name, "амплитуда %d вне [0, 255]", pow)
	}
	e.editor.CurPow = pow
	return nil
}

// SetFallCheck включает отделение висящих частей после удаления
func (e *Engine) SetFallCheck(on bool) error {
	if err := e.check("set_fallcheck"); err != nil {
		return err
	}
	e.editor.FallCheck = on
	return nil
}

// TakeDebris забирает спрайты обломков; ими владеет вызывающий
func (e *Engine) TakeDebris() ([]*sprite.Sprite, error) {
	if err := e.check("take_debris"); err != nil {
		return nil, err
	}
	return e.editor.TakeDebris(), nil
}

// GenerateMipmaps пересчитывает уровни детализации над колонками [x0,x1]x[y0,y1]
func (e *Engine) GenerateMipmaps(x0, y0, x1, y1 int) error {
	if err := e.check("generate_vxl_mipmapping"); err != nil {
		return err
	}
	e.world.GenMipmaps(x0, y0, x1, y1)
	return nil
}

// UpdateLighting пересчитывает освещение открытых вокселей бокса p0-p1
func (e *Engine) UpdateLighting(p0, p1 vec.Vec3) error {
	if err := e.check("update_lighting"); err != nil {
		return err
	}
	e.updateLighting(world.NewBox(p0, p1))
	return nil
}

// updateLighting пересчитывает свет бокса; в режиме None воксели получают нейтральный свет
func (e *Engine) updateLighting(box world.Box) {
	n := e.light.Update(e.world, box)
	e.metrics.observeLighting(n)
}

// UpdateVXL пересчитывает мипмапы и освещение над всеми правками с прошлого вызова.
// Возвращает обработанный бокс.
func (e *Engine) UpdateVXL() (world.Box, error) {
	if err := e.check("update_vxl"); err != nil {
		return world.EmptyBox(), err
	}
	box := e.dirty
	if box.Empty() {
		return box, nil
	}
	e.world.GenMipmaps(box.Min.X, box.Min.Y, box.Max.X, box.Max.Y)
	// нормали соседей зависят от вокселей в радиусе оценки
	e.updateLighting(box.Expand(2).Clip(e.world.VSID(), e.world.MaxZ()))
	e.dirty = world.EmptyBox()
	return box, nil
}

// SetNormFlash добавляет вспышку света у pos; мипмапы бокса вспышки обновляются сразу
func (e *Engine) SetNormFlash(pos vec.Vec3Float, radius, intensity float64) error {
	const name = "set_norm_flash"
	if err := e.check(name); err != nil {
		return err
	}
	if radius <= 0 || math.IsNaN(radius) || math.IsNaN(intensity) {
		return invalidf(name, "радиус %v", radius)
	}
	box := lighting.SetNormFlash(e.world, pos, radius, intensity)
	if !box.Empty() {
		e.world.GenMipmaps(box.Min.X, box.Min.Y, box.Max.X, box.Max.Y)
	}
	return nil
}

// AddLight регистрирует точечный источник для режима MultiPointSource
func (e *Engine) AddLight(p lighting.PointLight) error {
	const name = "add_light"
	if err := e.check(name); err != nil {
		return err
	}
	return wrap(name, e.light.AddLight(p))
}
