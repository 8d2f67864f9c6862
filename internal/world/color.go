package world

import "fmt"

// Color упакованный 24-битный RGB без альфы
type Color uint32

// NeutralLight значение байта освещения без затенения
const NeutralLight = 0x80

// RGB собирает цвет из компонент
func RGB(r, g, b uint8) Color {
	return Color(uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

// ColorFromInt преобразует упакованное целое (r<<16 | g<<8 | b); старший байт отбрасывается
func ColorFromInt(v int32) Color {
	return Color(uint32(v) & 0xFFFFFF)
}

func (c Color) R() uint8 { return uint8(c >> 16) }
func (c Color) G() uint8 { return uint8(c >> 8) }
func (c Color) B() uint8 { return uint8(c) }

// Int возвращает упакованное целое
func (c Color) Int() int32 {
	return int32(c & 0xFFFFFF)
}

// Voxel возвращает значение вокселя с нейтральным освещением
func (c Color) Voxel() uint32 {
	return uint32(c&0xFFFFFF) | NeutralLight<<24
}

func (c Color) String() string {
	return fmt.Sprintf("#%06x", uint32(c&0xFFFFFF))
}

// VoxelColor выделяет цвет из значения вокселя
func VoxelColor(v uint32) Color {
	return Color(v & 0xFFFFFF)
}

// VoxelLight выделяет байт освещения
func VoxelLight(v uint32) uint8 {
	return uint8(v >> 24)
}

// WithLight заменяет байт освещения
func WithLight(v uint32, light uint8) uint32 {
	return v&0xFFFFFF | uint32(light)<<24
}

// Jitter сдвигает компоненты цвета на детерминированную величину в пределах ±amp,
// зависящую от координат вокселя
func Jitter(c Color, amp int, x, y, z int) Color {
	if amp <= 0 {
		return c
	}
	h := uint32(x)*73856093 ^ uint32(y)*19349663 ^ uint32(z)*83492791
	h ^= h >> 13
	h *= 0x5bd1e995
	d := int(h%uint32(2*amp+1)) - amp
	return RGB(clampByte(int(c.R())+d), clampByte(int(c.G())+d), clampByte(int(c.B())+d))
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
