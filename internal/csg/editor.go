// Package csg реализует редактирование мира булевыми операциями над телами:
// шаром, параллелепипедом, кубом, цилиндром, SDF-телами и спрайтами.
package csg

import (
	"errors"
	"fmt"
	"math"

	"github.com/annel0/voxel-engine/internal/sprite"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
)

// Op операция редактирования
type Op int

const (
	Insert Op = 0
	Remove Op = -1
)

func (op Op) String() string {
	switch op {
	case Insert:
		return "insert"
	case Remove:
		return "remove"
	default:
		return fmt.Sprintf("op(%d)", int(op))
	}
}

// ParseOp разбирает имя операции: insert или remove
func ParseOp(s string) (Op, error) {
	switch s {
	case "insert", "":
		return Insert, nil
	case "remove":
		return Remove, nil
	default:
		return 0, fmt.Errorf("%w: операция %q", ErrInvalidParameter, s)
	}
}

var (
	ErrInvalidParameter = errors.New("csg: недопустимый параметр")
	ErrOutOfBounds      = errors.New("csg: координата вне мира")
)

// Editor применяет операции к миру. Мипмапы и освещение не пересчитываются:
// вызывающий обновляет их по возвращенному боксу.
type Editor struct {
	world *world.World

	// CurColor цвет вставляемых вокселей
	CurColor world.Color
	// CurPow амплитуда детерминированного шума цвета
	CurPow int
	// FallCheck отделяет висящие в воздухе части после удаления
	FallCheck bool

	debris []*sprite.Sprite
}

// NewEditor создает редактор мира
func NewEditor(w *world.World) *Editor {
	return &Editor{world: w, CurColor: world.RGB(0x80, 0x70, 0x60)}
}

// World возвращает редактируемый мир
func (e *Editor) World() *world.World { return e.world }

// SetWorld переключает редактор на другой мир; обломки прежнего мира сбрасываются
func (e *Editor) SetWorld(w *world.World) {
	e.world = w
	e.debris = nil
}

// TakeDebris забирает спрайты обломков, накопленные проверкой падения
func (e *Editor) TakeDebris() []*sprite.Sprite {
	out := e.debris
	e.debris = nil
	return out
}

func checkOp(op Op) error {
	if op != Insert && op != Remove {
		return fmt.Errorf("%w: операция %d", ErrInvalidParameter, int(op))
	}
	return nil
}

// valueFn цвет новых вокселей колонки
func (e *Editor) valueFn(x, y int) func(z int) uint32 {
	c, pow := e.CurColor, e.CurPow
	return func(z int) uint32 {
		return world.Jitter(c, pow, x, y, z).Voxel()
	}
}

// applySpan вставляет или удаляет [z0, z1) колонки
func (e *Editor) applySpan(x, y, z0, z1 int, op Op) {
	if op == Insert {
		e.world.SetSpan(x, y, z0, z1, true, e.valueFn(x, y))
	} else {
		e.world.SetSpan(x, y, z0, z1, false, nil)
	}
}

// finish обрезает бокс по миру и запускает проверку падения после удаления
func (e *Editor) finish(box world.Box, op Op) world.Box {
	box = box.Clip(e.world.VSID(), e.world.MaxZ())
	if box.Empty() {
		return box
	}
	if op == Remove && e.FallCheck {
		box = box.Union(e.detachFloating(box))
	}
	return box
}

// SetSphere вставляет или удаляет шар: воксель входит при d² <= r²
func (e *Editor) SetSphere(center vec.Vec3, r float64, op Op) (world.Box, error) {
	if err := checkOp(op); err != nil {
		return world.EmptyBox(), err
	}
	if r < 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return world.EmptyBox(), fmt.Errorf("%w: радиус %v", ErrInvalidParameter, r)
	}
	e.world.SphereChords(center, r, func(x, y, z0, z1 int) {
		e.applySpan(x, y, z0, z1, op)
	})
	return e.finish(e.world.SphereBounds(center, r), op), nil
}

// SetRect вставляет или удаляет параллелепипед; углы включительно и в любом порядке
func (e *Editor) SetRect(p0, p1 vec.Vec3, op Op) (world.Box, error) {
	if err := checkOp(op); err != nil {
		return world.EmptyBox(), err
	}
	box := world.NewBox(p0, p1)
	clipped := box.Clip(e.world.VSID(), e.world.MaxZ())
	for y := clipped.Min.Y; y <= clipped.Max.Y; y++ {
		for x := clipped.Min.X; x <= clipped.Max.X; x++ {
			e.applySpan(x, y, clipped.Min.Z, clipped.Max.Z+1, op)
		}
	}
	return e.finish(box, op), nil
}

// SetCube записывает один воксель цвета c; nil удаляет воксель
func (e *Editor) SetCube(pos vec.Vec3, c *world.Color) (world.Box, error) {
	if !e.world.InBounds(pos) {
		return world.EmptyBox(), fmt.Errorf("%w: %v", ErrOutOfBounds, pos)
	}
	box := world.Box{Min: pos, Max: pos}
	if c == nil {
		e.world.SetVoxel(pos.X, pos.Y, pos.Z, false, 0)
		return e.finish(box, Remove), nil
	}
	e.world.SetVoxel(pos.X, pos.Y, pos.Z, true, c.Voxel())
	return box, nil
}
