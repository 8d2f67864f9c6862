package render

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/annel0/voxel-engine/internal/lighting"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
)

// MaxScanDistLimit наибольшая дальность луча: диагональ карты 2048
var MaxScanDistLimit = 2048 * math.Sqrt2

var (
	ErrInvalidParameter = errors.New("render: недопустимый параметр")
	ErrNoFramebuffer    = errors.New("render: кадровый буфер не задан")
)

// Settings начальные параметры рейкастера
type Settings struct {
	AngInc      int
	MaxScanDist float64
	MipScanDist float64
	Fog         bool
	FogColor    world.Color
	SkyColor    world.Color
	KV6Col      world.Color
	KV6Pow      float64
}

// DefaultSettings параметры по умолчанию
func DefaultSettings() Settings {
	return Settings{
		AngInc:      1,
		MaxScanDist: MaxScanDistLimit,
		MipScanDist: 128,
		SkyColor:    world.RGB(0x8c, 0xb4, 0xe6),
		KV6Col:      world.RGB(0x80, 0x80, 0x80),
		KV6Pow:      1,
	}
}

// FrameStats статистика последнего кадра
type FrameStats struct {
	Rays     int
	Hits     int
	Duration time.Duration
}

// Renderer рейкастер. Хранит привязанный буфер, камеру и z-буфер кадра.
type Renderer struct {
	angInc      int
	maxScanDist float64
	mipScanDist float64
	fog         bool
	fogColor    world.Color
	skyColor    world.Color
	kv6Col      world.Color
	kv6Pow      float64

	fb    *Framebuffer
	cam   Camera
	sky   *Sky
	depth []float64
}

// New создает рейкастер; недопустимые значения заменяются значениями по умолчанию
func New(s Settings) *Renderer {
	d := DefaultSettings()
	r := &Renderer{
		angInc:      s.AngInc,
		maxScanDist: s.MaxScanDist,
		mipScanDist: s.MipScanDist,
		fog:         s.Fog,
		fogColor:    s.FogColor,
		skyColor:    s.SkyColor,
		kv6Col:      s.KV6Col,
		kv6Pow:      s.KV6Pow,
	}
	if r.angInc < 1 {
		r.angInc = d.AngInc
	}
	if r.maxScanDist <= 0 || r.maxScanDist > MaxScanDistLimit {
		r.maxScanDist = d.MaxScanDist
	}
	if r.kv6Pow <= 0 {
		r.kv6Pow = d.KV6Pow
	}
	return r
}

// SetFramebuffer привязывает буфер для всех последующих вызовов
func (r *Renderer) SetFramebuffer(fb *Framebuffer) {
	r.fb = fb
	if fb != nil && len(r.depth) != fb.Width*fb.Height {
		r.depth = make([]float64, fb.Width*fb.Height)
		r.clearDepth()
	}
}

func (r *Renderer) Framebuffer() *Framebuffer { return r.fb }

func (r *Renderer) SetCamera(c Camera) { r.cam = c }

func (r *Renderer) Camera() Camera { return r.cam }

// SetAngInc задает плотность лучей: один луч на блок n x n пикселей
func (r *Renderer) SetAngInc(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: плотность лучей %d < 1", ErrInvalidParameter, n)
	}
	r.angInc = n
	return nil
}

func (r *Renderer) AngInc() int { return r.angInc }

// SetMaxScanDist задает дальность луча в пределах (0, MaxScanDistLimit]
func (r *Renderer) SetMaxScanDist(d float64) error {
	if d <= 0 || d > MaxScanDistLimit || math.IsNaN(d) {
		return fmt.Errorf("%w: дальность %v вне (0, %.1f]", ErrInvalidParameter, d, MaxScanDistLimit)
	}
	r.maxScanDist = d
	return nil
}

// SetMaxScanDistToMax возвращает наибольшую дальность
func (r *Renderer) SetMaxScanDistToMax() { r.maxScanDist = MaxScanDistLimit }

func (r *Renderer) MaxScanDist() float64 { return r.maxScanDist }

// SetFog включает туман цвета c или выключает его (c < 0)
func (r *Renderer) SetFog(c int64) {
	r.fog = c >= 0
	if r.fog {
		r.fogColor = world.ColorFromInt(int32(c))
	}
}

// SetSky задает панораму неба; nil возвращает однотонное небо
func (r *Renderer) SetSky(s *Sky) { r.sky = s }

// SetKV6Col задает цвет и силу окружающего освещения спрайтов
func (r *Renderer) SetKV6Col(c world.Color, pow float64) error {
	if pow <= 0 || math.IsNaN(pow) {
		return fmt.Errorf("%w: сила %v", ErrInvalidParameter, pow)
	}
	r.kv6Col, r.kv6Pow = c, pow
	return nil
}

// DepthAt глубина z-буфера; +Inf для пустого пикселя
func (r *Renderer) DepthAt(x, y int) float64 {
	if r.fb == nil || !r.fb.In(x, y) {
		return math.Inf(1)
	}
	return r.depth[y*r.fb.Width+x]
}

// SetDepth записывает глубину пикселя
func (r *Renderer) SetDepth(x, y int, d float64) {
	if r.fb != nil && r.fb.In(x, y) {
		r.depth[y*r.fb.Width+x] = d
	}
}

func (r *Renderer) clearDepth() {
	for i := range r.depth {
		r.depth[i] = math.Inf(1)
	}
}

// samplePositions координаты лучей вдоль оси: 0, a, 2a, ... и последний пиксель
func samplePositions(n, a int) []int {
	out := make([]int, 0, n/a+2)
	for p := 0; p < n; p += a {
		out = append(out, p)
	}
	if out[len(out)-1] != n-1 {
		out = append(out, n-1)
	}
	return out
}

// Opticast рисует мир в привязанный буфер. Один луч бросается на блок angInc x angInc,
// остальные пиксели интерполируются билинейно.
func (r *Renderer) Opticast(w *world.World, mode lighting.Mode) (FrameStats, error) {
	start := time.Now()
	fb := r.fb
	if fb == nil {
		return FrameStats{}, ErrNoFramebuffer
	}
	r.clearDepth()

	xs := samplePositions(fb.Width, r.angInc)
	ys := samplePositions(fb.Height, r.angInc)
	colors := make([]uint32, len(xs)*len(ys))
	depths := make([]float64, len(xs)*len(ys))
	stats := FrameStats{Rays: len(colors)}

	for j, sy := range ys {
		for i, sx := range xs {
			c, d, ok := r.trace(w, float64(sx)+0.5, float64(sy)+0.5, mode)
			colors[j*len(xs)+i] = c
			depths[j*len(xs)+i] = d
			if ok {
				stats.Hits++
			}
		}
	}

	if r.angInc == 1 {
		for y := 0; y < fb.Height; y++ {
			for x := 0; x < fb.Width; x++ {
				fb.SetPixel(x, y, colors[y*len(xs)+x])
				r.depth[y*fb.Width+x] = depths[y*len(xs)+x]
			}
		}
	} else {
		r.interpolate(xs, ys, colors, depths)
	}
	stats.Duration = time.Since(start)
	return stats, nil
}

// trace бросает луч через точку экрана: цвет, глубина вдоль взгляда, признак попадания
func (r *Renderer) trace(w *world.World, sx, sy float64, mode lighting.Mode) (uint32, float64, bool) {
	ray := r.cam.Ray(sx, sy)
	dir := ray.Normalized()
	h, ok := castRay(w, r.cam.Pos, dir, r.maxScanDist, r.mipScanDist)
	if !ok {
		return r.skyAt(dir), math.Inf(1), false
	}
	c := shade(world.VoxelColor(h.value), world.VoxelLight(h.value), h.face, mode)
	if r.fog {
		c = blend(c, r.fogColor, h.t/r.maxScanDist)
	}
	return uint32(c) | 0xFF000000, h.t * dir.Dot(r.cam.Forward), true
}

// skyAt цвет пикселя без попадания
func (r *Renderer) skyAt(dir vec.Vec3Float) uint32 {
	switch {
	case r.sky != nil:
		return r.sky.Sample(dir)
	case r.fog:
		return uint32(r.fogColor) | 0xFF000000
	default:
		return uint32(r.skyColor) | 0xFF000000
	}
}

// interpolate заполняет кадр билинейной интерполяцией цветов между лучами;
// глубина берется у ближайшего луча
func (r *Renderer) interpolate(xs, ys []int, colors []uint32, depths []float64) {
	fb := r.fb
	nx := len(xs)
	for y := 0; y < fb.Height; y++ {
		j0, fy := cell(ys, y, r.angInc)
		j1 := min(j0+1, len(ys)-1)
		for x := 0; x < fb.Width; x++ {
			i0, fx := cell(xs, x, r.angInc)
			i1 := min(i0+1, nx-1)
			top := lerpColor(colors[j0*nx+i0], colors[j0*nx+i1], fx)
			bottom := lerpColor(colors[j1*nx+i0], colors[j1*nx+i1], fx)
			fb.SetPixel(x, y, lerpColor(top, bottom, fy))

			ni, nj := i0, j0
			if fx >= 0.5 {
				ni = i1
			}
			if fy >= 0.5 {
				nj = j1
			}
			r.depth[y*fb.Width+x] = depths[nj*nx+ni]
		}
	}
}

// cell индекс луча слева от p и доля расстояния до следующего
func cell(pos []int, p, a int) (int, float64) {
	i := min(p/a, len(pos)-1)
	if i+1 >= len(pos) {
		return i, 0
	}
	return i, float64(p-pos[i]) / float64(pos[i+1]-pos[i])
}
