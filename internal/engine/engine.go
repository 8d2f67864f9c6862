// Package engine объединяет подсистемы в один контекст: мир, редактор, освещение,
// рейкастер, спрайты и изображения. Движок однопоточный; вызывающий сериализует доступ.
package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/annel0/voxel-engine/internal/config"
	"github.com/annel0/voxel-engine/internal/csg"
	"github.com/annel0/voxel-engine/internal/lighting"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/overlay"
	"github.com/annel0/voxel-engine/internal/render"
	"github.com/annel0/voxel-engine/internal/sprite"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
)

// EditEvent сообщение об изменении мира
type EditEvent struct {
	Op       string
	Shape    string
	Box      world.Box
	Revision uint64
	At       time.Time
}

// Option настраивает движок при создании
type Option func(*Engine)

// WithMetrics включает запись Prometheus-метрик
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithEditHook вызывает h после каждой успешной правки мира
func WithEditHook(h func(EditEvent)) Option {
	return func(e *Engine) { e.hooks = append(e.hooks, h) }
}

// WithLogger задает логгер вместо компонентного "engine"
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// Engine контекст движка
type Engine struct {
	cfg    config.Config
	opts   world.LoadOptions
	world  *world.World
	editor *csg.Editor
	light  *lighting.Lighting
	rend   *render.Renderer

	sprites *sprite.Registry
	images  map[uuid.UUID]*overlay.Image

	dirty     world.Box
	lastFrame render.FrameStats
	closed    bool

	log     *logging.Logger
	metrics *Metrics
	hooks   []func(EditEvent)
}

// New проверяет конфигурацию и создает движок с пустым миром. nil означает config.Default().
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	const op = "init"
	if cfg == nil {
		cfg = config.Default()
	}
	c := *cfg
	c.ApplyDefaults()

	if err := validate(&c); err != nil {
		return nil, newError(InitError, op, err)
	}
	mode, err := lighting.ParseMode(c.Lighting.Mode)
	if err != nil {
		return nil, newError(InitError, op, err)
	}

	e := &Engine{
		cfg: c,
		opts: world.LoadOptions{
			MaxVSID:   c.Engine.MaxVSID,
			MaxZ:      c.Engine.MaxZ,
			MipLevels: c.Engine.MipLevels,
		},
		light:   lighting.New(mode),
		sprites: sprite.NewRegistry(),
		images:  make(map[uuid.UUID]*overlay.Image),
		dirty:   world.EmptyBox(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.log == nil {
		e.log = logging.GetEngineLogger()
	}

	e.world, err = world.New(c.Engine.VSID, c.Engine.MaxZ, c.Engine.MipLevels)
	if err != nil {
		return nil, newError(InitError, op, err)
	}
	e.editor = csg.NewEditor(e.world)
	e.editor.CurColor = world.Color(c.Engine.CurColor & 0xFFFFFF)
	e.editor.CurPow = c.Engine.CurPow
	e.editor.FallCheck = c.Engine.FallCheck

	e.light.SetSun(vec.Vec3Float{X: c.Lighting.Sun[0], Y: c.Lighting.Sun[1], Z: c.Lighting.Sun[2]})
	e.light.Ambient = c.Lighting.Ambient

	e.rend = render.New(render.Settings{
		AngInc:      c.Render.AngInc,
		MaxScanDist: c.Render.MaxScanDist,
		MipScanDist: c.Render.MipScanDist,
		Fog:         c.Render.Fog,
		FogColor:    world.Color(c.Render.FogColor & 0xFFFFFF),
		SkyColor:    world.Color(c.Render.SkyColor & 0xFFFFFF),
		KV6Col:      world.Color(c.Render.KV6Col & 0xFFFFFF),
		KV6Pow:      c.Render.KV6Pow,
	})
	e.rend.SetCamera(render.DefaultCamera(e.world.Start(), c.Render.Width, c.Render.Height))
	if c.Render.SkyPath != "" {
		if err := e.loadSky(c.Render.SkyPath); err != nil {
			return nil, newError(InitError, op, err)
		}
	}

	e.log.Info("Движок запущен: карта %dx%dx%d, %d уровней, освещение %s",
		c.Engine.VSID, c.Engine.VSID, c.Engine.MaxZ, e.world.Levels(), mode)
	return e, nil
}

func validate(c *config.Config) error {
	switch {
	case !world.IsPowerOfTwo(c.Engine.VSID):
		return fmt.Errorf("vsid %d не степень двойки", c.Engine.VSID)
	case c.Engine.VSID > c.Engine.MaxVSID:
		return fmt.Errorf("vsid %d больше max_vsid %d", c.Engine.VSID, c.Engine.MaxVSID)
	case c.Engine.MaxZ < 1 || c.Engine.MaxZ > world.MaxMaxZ:
		return fmt.Errorf("max_z %d вне [1, %d]", c.Engine.MaxZ, world.MaxMaxZ)
	case c.Engine.MipLevels < 1:
		return fmt.Errorf("mip_levels %d < 1", c.Engine.MipLevels)
	case c.Engine.CurPow < 0:
		return fmt.Errorf("cur_pow %d < 0", c.Engine.CurPow)
	case c.Render.Width <= 0 || c.Render.Height <= 0:
		return fmt.Errorf("размер кадра %dx%d", c.Render.Width, c.Render.Height)
	case c.Render.AngInc < 1:
		return fmt.Errorf("anginc %d < 1", c.Render.AngInc)
	case c.Render.MaxScanDist < 0 || c.Render.MaxScanDist > render.MaxScanDistLimit:
		return fmt.Errorf("max_scan_dist %v вне [0, %.1f]", c.Render.MaxScanDist, render.MaxScanDistLimit)
	case c.Render.KV6Pow < 0:
		return fmt.Errorf("kv6_pow %v < 0", c.Render.KV6Pow)
	}
	return nil
}

// Close освобождает спрайты и изображения. Любой последующий вызов возвращает InitError.
func (e *Engine) Close() error {
	if e.closed {
		return newError(InitError, "close", nil)
	}
	e.sprites.CloseAll()
	for id, img := range e.images {
		img.Free()
		delete(e.images, id)
	}
	e.metrics.setAssets(0, 0)
	e.world = nil
	e.editor = nil
	e.closed = true
	e.log.Info("Движок остановлен")
	return nil
}

func (e *Engine) check(op string) error {
	if e.closed {
		return newError(InitError, op, nil)
	}
	return nil
}

// World возвращает текущий мир (nil после Close)
func (e *Engine) World() *world.World { return e.world }

// ActiveWorld возвращает текущий мир или InitError, если движок закрыт
func (e *Engine) ActiveWorld(op string) (*world.World, error) {
	if err := e.check(op); err != nil {
		return nil, err
	}
	return e.world, nil
}

// Lighting возвращает подсистему освещения
func (e *Engine) Lighting() *lighting.Lighting { return e.light }

// Renderer возвращает рейкастер
func (e *Engine) Renderer() *render.Renderer { return e.rend }

// Config копия действующей конфигурации
func (e *Engine) Config() config.Config { return e.cfg }

// LastFrame статистика последнего Opticast
func (e *Engine) LastFrame() render.FrameStats { return e.lastFrame }

// MaxXYDimension сторона карты в вокселях
func (e *Engine) MaxXYDimension() (int, error) {
	if err := e.check("max_xy_dimension"); err != nil {
		return 0, err
	}
	return e.world.MaxXYDimension(), nil
}

// LoadDefaultMap строит процедурную карту по умолчанию
func (e *Engine) LoadDefaultMap() error {
	const op = "load_default_map"
	if err := e.check(op); err != nil {
		return err
	}
	w, err := world.New(e.cfg.Engine.VSID, e.cfg.Engine.MaxZ, e.cfg.Engine.MipLevels)
	if err != nil {
		return newError(LoadError, op, err)
	}
	seed := e.cfg.Engine.Seed
	if seed == 0 {
		seed = world.RandomSeed()
	}
	world.NewGenerator(seed).Generate(w)
	w.ClearDirty()
	e.setWorld(w)
	e.log.Info("Сгенерирована карта по умолчанию, сид %d", seed)
	return nil
}

// LoadVXL загружает карту VXL
func (e *Engine) LoadVXL(path string) error {
	const op = "load_vxl"
	if err := e.check(op); err != nil {
		return err
	}
	start := time.Now()
	w, err := world.LoadVXL(path, e.opts)
	if err != nil {
		return newError(LoadError, op, err)
	}
	e.setWorld(w)
	e.log.Info("Карта %s загружена за %v: %d отрезков", path, time.Since(start), w.RunCount())
	return nil
}

// LoadBSP вокселизирует карту Quake BSP
func (e *Engine) LoadBSP(path string) error {
	const op = "load_bsp"
	if err := e.check(op); err != nil {
		return err
	}
	w, err := world.LoadBSP(path, e.opts)
	if err != nil {
		return newError(LoadError, op, err)
	}
	e.setWorld(w)
	e.log.Info("BSP %s вокселизирована: %d отрезков", path, w.RunCount())
	return nil
}

// SaveVXL записывает карту VXL с текущей камерой
func (e *Engine) SaveVXL(path string) error {
	const op = "save_vxl"
	if err := e.check(op); err != nil {
		return err
	}
	e.world.SetStart(e.rend.Camera().Orientation)
	if err := world.SaveVXL(path, e.world); err != nil {
		return newError(LoadError, op, err)
	}
	return nil
}

// SetWorld подменяет мир (используется хранилищем при восстановлении)
func (e *Engine) SetWorld(w *world.World) error {
	if err := e.check("set_world"); err != nil {
		return err
	}
	if w == nil {
		return invalidf("set_world", "мир не задан")
	}
	e.setWorld(w)
	return nil
}

func (e *Engine) setWorld(w *world.World) {
	e.world = w
	e.editor.SetWorld(w)
	e.dirty = world.EmptyBox()
	cam := e.rend.Camera()
	cam.Orientation = w.Start()
	e.rend.SetCamera(cam)
}

// SetCamera задает ориентацию камеры, центр экрана (hx, hy) и фокусное расстояние hz
func (e *Engine) SetCamera(o vec.Orientation, hx, hy, hz float64) error {
	const op = "set_camera"
	if err := e.check(op); err != nil {
		return err
	}
	if hz <= 0 || math.IsNaN(hz) || math.IsNaN(hx) || math.IsNaN(hy) {
		return invalidf(op, "фокусное расстояние %v", hz)
	}
	e.rend.SetCamera(render.NewCamera(o, hx, hy, hz))
	return nil
}

// Camera текущая камера
func (e *Engine) Camera() render.Camera { return e.rend.Camera() }

// SetFrameBuffer привязывает память вызывающего как кадровый буфер BGRA
func (e *Engine) SetFrameBuffer(pix []byte, pitch, width, height int) error {
	const op = "set_frame_buffer"
	if err := e.check(op); err != nil {
		return err
	}
	fb, err := render.BindFramebuffer(pix, pitch, width, height)
	if err != nil {
		return wrap(op, err)
	}
	e.rend.SetFramebuffer(fb)
	return nil
}

// BindFramebuffer привязывает готовый буфер
func (e *Engine) BindFramebuffer(fb *render.Framebuffer) error {
	const op = "bind_framebuffer"
	if err := e.check(op); err != nil {
		return err
	}
	if fb == nil {
		return invalidf(op, "буфер не задан")
	}
	e.rend.SetFramebuffer(fb)
	return nil
}

// Framebuffer привязанный буфер
func (e *Engine) Framebuffer() *render.Framebuffer { return e.rend.Framebuffer() }

// Opticast рисует мир в буфер текущей камерой
func (e *Engine) Opticast() error {
	const op = "opticast"
	if err := e.check(op); err != nil {
		return err
	}
	stats, err := e.rend.Opticast(e.world, e.light.Mode())
	if err != nil {
		return wrap(op, err)
	}
	e.lastFrame = stats
	e.metrics.observeFrame(stats.Rays, stats.Duration.Seconds())
	return nil
}

// SetRaycastDensity задает шаг лучей в пикселях (anginc >= 1)
func (e *Engine) SetRaycastDensity(n int) error {
	const op = "set_raycast_density"
	if err := e.check(op); err != nil {
		return err
	}
	return wrap(op, e.rend.SetAngInc(n))
}

// RaycastDensity текущий шаг лучей
func (e *Engine) RaycastDensity() (int, error) {
	if err := e.check("get_raycast_density"); err != nil {
		return 0, err
	}
	return e.rend.AngInc(), nil
}

// SetMaxScanDist задает дальность лучей
func (e *Engine) SetMaxScanDist(d float64) error {
	const op = "set_max_scan_dist"
	if err := e.check(op); err != nil {
		return err
	}
	return wrap(op, e.rend.SetMaxScanDist(d))
}

// SetMaxScanDistToMax выставляет наибольшую дальность лучей
func (e *Engine) SetMaxScanDistToMax() error {
	if err := e.check("set_max_scan_dist_to_max"); err != nil {
		return err
	}
	e.rend.SetMaxScanDistToMax()
	return nil
}

// SetFogColor включает туман цвета 0xRRGGBB; отрицательное значение выключает
func (e *Engine) SetFogColor(c int64) error {
	const op = "set_fog_color"
	if err := e.check(op); err != nil {
		return err
	}
	if c > 0xFFFFFF {
		return invalidf(op, "цвет %#x", c)
	}
	e.rend.SetFog(c)
	return nil
}

// SetKV6Col задает окружающий цвет и силу освещения спрайтов
func (e *Engine) SetKV6Col(c world.Color, pow float64) error {
	const op = "set_kv6col"
	if err := e.check(op); err != nil {
		return err
	}
	return wrap(op, e.rend.SetKV6Col(c, pow))
}

// SetLightingMode переключает режим освещения
func (e *Engine) SetLightingMode(m lighting.Mode) error {
	const op = "set_lighting_mode"
	if err := e.check(op); err != nil {
		return err
	}
	return wrap(op, e.light.SetMode(m))
}
