package render

import (
	"github.com/annel0/voxel-engine/internal/lighting"
	"github.com/annel0/voxel-engine/internal/world"
)

// faceShade яркость граней без освещения
var faceShade = [...]float64{
	faceTop:    1.0,
	faceBottom: 0.55,
	faceSideX:  0.8,
	faceSideY:  0.7,
}

// shade цвет вокселя с учетом режима освещения: без освещения по ориентации грани,
// иначе по байту освещения (128 не меняет цвет)
func shade(c world.Color, light uint8, face int, mode lighting.Mode) world.Color {
	if mode == lighting.None {
		return scaleColor(c, faceShade[face])
	}
	return scaleColor(c, float64(light)/world.NeutralLight)
}

func scaleColor(c world.Color, f float64) world.Color {
	return world.RGB(clamp(float64(c.R())*f), clamp(float64(c.G())*f), clamp(float64(c.B())*f))
}

// tint умножает компоненты цвета на компоненты t/128 и силу pow
func tint(c, t world.Color, pow float64) world.Color {
	k := pow / world.NeutralLight
	return world.RGB(
		clamp(float64(c.R())*float64(t.R())*k),
		clamp(float64(c.G())*float64(t.G())*k),
		clamp(float64(c.B())*float64(t.B())*k),
	)
}

// blend смешивает a и b с долей f цвета b
func blend(a, b world.Color, f float64) world.Color {
	if f <= 0 {
		return a
	}
	if f >= 1 {
		return b
	}
	mix := func(x, y uint8) uint8 { return clamp(float64(x) + (float64(y)-float64(x))*f) }
	return world.RGB(mix(a.R(), b.R()), mix(a.G(), b.G()), mix(a.B(), b.B()))
}

// lerpColor интерполирует пиксели 0xAARRGGBB
func lerpColor(a, b uint32, f float64) uint32 {
	if f == 0 || a == b {
		return a
	}
	return uint32(blend(world.Color(a&0xFFFFFF), world.Color(b&0xFFFFFF), f)) | 0xFF000000
}

func clamp(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
