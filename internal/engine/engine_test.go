package engine

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-engine/internal/config"
	"github.com/annel0/voxel-engine/internal/csg"
	"github.com/annel0/voxel-engine/internal/lighting"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/physics"
	"github.com/annel0/voxel-engine/internal/sprite"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
)

func TestMain(m *testing.M) {
	logging.LogDir = ""
	os.Exit(m.Run())
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Engine.VSID = 64
	cfg.Engine.MaxZ = 64
	cfg.Engine.MipLevels = 2
	cfg.Engine.Seed = 42
	cfg.Render.Width = 32
	cfg.Render.Height = 24
	return cfg
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New(testConfig(), opts...)
	require.NoError(t, err)
	require.NoError(t, e.LoadDefaultMap())
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func assertKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	var ee *Error
	require.True(t, errors.As(err, &ee), "ошибка %v не *Error", err)
	assert.Equal(t, kind, ee.Kind, "ошибка %v", err)
}

func TestNew_InvalidConfig(t *testing.T) {
	cases := map[string]func(c *config.Config){
		"vsid не степень двойки": func(c *config.Config) { c.Engine.VSID = 100 },
		"vsid больше предела":    func(c *config.Config) { c.Engine.VSID = 4096 },
		"max_z вне диапазона":    func(c *config.Config) { c.Engine.MaxZ = 5000 },
		"плотность лучей":        func(c *config.Config) { c.Render.AngInc = -1 },
		"режим освещения":        func(c *config.Config) { c.Lighting.Mode = "bogus" },
		"дальность лучей":        func(c *config.Config) { c.Render.MaxScanDist = 1e6 },
		"нет панорамы неба":      func(c *config.Config) { c.Render.SkyPath = "/nonexistent/sky.png" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			mutate(cfg)
			_, err := New(cfg)
			assert.ErrorIs(t, err, ErrInit)
			assertKind(t, err, InitError)
		})
	}

	e, err := New(nil)
	require.NoError(t, err)
	n, err := e.MaxXYDimension()
	require.NoError(t, err)
	assert.Equal(t, 1024, n)
	require.NoError(t, e.Close())
}

// Карта 2x2 с одним твердым вокселем в (0,0,0)
func TestTwoByTwoScenario(t *testing.T) {
	w, err := world.New(2, 4, 1)
	require.NoError(t, err)
	w.SetVoxel(0, 0, 0, true, world.RGB(200, 10, 10).Voxel())
	path := filepath.Join(t.TempDir(), "tiny.vxl")
	require.NoError(t, world.SaveVXL(path, w))

	cfg := testConfig()
	cfg.Engine.VSID = 2
	cfg.Engine.MaxZ = 4
	cfg.Engine.MipLevels = 1
	e, err := New(cfg)
	require.NoError(t, err)
	defer e.Close()
	require.NoError(t, e.LoadVXL(path))

	solid, err := e.IsVoxelSolid(vec.Vec3{})
	require.NoError(t, err)
	assert.True(t, solid)
	solid, err = e.IsVoxelSolid(vec.Vec3{X: 1, Y: 1, Z: 1})
	require.NoError(t, err)
	assert.False(t, solid)

	require.NoError(t, e.SetSphere(vec.Vec3{}, 1, csg.Remove))
	solid, err = e.IsVoxelSolid(vec.Vec3{})
	require.NoError(t, err)
	assert.False(t, solid)
}

func TestRaycastDensityZero(t *testing.T) {
	e := newTestEngine(t)
	err := e.SetRaycastDensity(0)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.NotErrorIs(t, err, ErrInit)
	n, err := e.RaycastDensity()
	require.NoError(t, err)
	assert.Equal(t, 1, n, "состояние не меняется")

	require.NoError(t, e.SetRaycastDensity(3))
	n, _ = e.RaycastDensity()
	assert.Equal(t, 3, n)
}

func TestLoadErrors(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()

	assert.ErrorIs(t, e.LoadVXL(filepath.Join(dir, "missing.vxl")), ErrLoad)
	garbage := filepath.Join(dir, "garbage.bin")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not a map"), 0o644))
	assert.ErrorIs(t, e.LoadVXL(garbage), ErrLoad)
	assert.ErrorIs(t, e.LoadBSP(garbage), ErrLoad)

	_, err := e.LoadSprite(garbage)
	assert.ErrorIs(t, err, ErrLoad)
	_, err = e.LoadImage(garbage)
	assert.ErrorIs(t, err, ErrLoad)
	assert.ErrorIs(t, e.LoadSky(garbage), ErrLoad)

	n, _ := e.MaxXYDimension()
	assert.Equal(t, 64, n, "мир после неудачной загрузки прежний")
}

func TestLightingNoneResetsToNeutral(t *testing.T) {
	e := newTestEngine(t)
	b := e.World().Bounds()
	require.NoError(t, e.SetLightingMode(lighting.EstimatedNormal))
	require.NoError(t, e.UpdateLighting(b.Min, b.Max))

	var lit []vec.Vec3
	for y := 0; y < e.World().VSID(); y++ {
		for x := 0; x < e.World().VSID(); x++ {
			z := e.World().SurfaceZ(x, y)
			if v, ok := e.World().Voxel(x, y, z); ok && world.VoxelLight(v) != world.NeutralLight {
				lit = append(lit, vec.Vec3{X: x, Y: y, Z: z})
			}
		}
	}
	require.NotEmpty(t, lit, "освещение посчитано")

	require.NoError(t, e.SetLightingMode(lighting.None))
	require.NoError(t, e.UpdateLighting(b.Min, b.Max))
	for _, p := range lit {
		v, _ := e.World().Voxel(p.X, p.Y, p.Z)
		assert.Equal(t, uint8(world.NeutralLight), world.VoxelLight(v), "%v", p)
	}
}

func TestEditsAndUpdateVXL(t *testing.T) {
	var events []EditEvent
	e := newTestEngine(t, WithEditHook(func(ev EditEvent) { events = append(events, ev) }))
	require.NoError(t, e.SetLightingMode(lighting.EstimatedNormal))

	red := world.RGB(255, 0, 0)
	pos := vec.Vec3{X: 10, Y: 11, Z: 3}
	require.NoError(t, e.SetCube(pos, &red))
	solid, _ := e.IsVoxelSolid(pos)
	assert.True(t, solid)
	require.Len(t, events, 1)
	assert.Equal(t, "insert", events[0].Op)
	assert.Equal(t, "cube", events[0].Shape)
	assert.True(t, e.Dirty().Contains(pos))

	require.NoError(t, e.SetCube(pos, nil))
	solid, _ = e.IsVoxelSolid(pos)
	assert.False(t, solid)

	err := e.SetCube(vec.Vec3{X: -1, Y: 0, Z: 0}, &red)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	assert.ErrorIs(t, e.SetSphere(pos, -2, csg.Insert), ErrInvalidParameter)
	assert.ErrorIs(t, e.SetRect(pos, pos, csg.Op(7)), ErrInvalidParameter)

	require.NoError(t, e.SetCurCol(world.RGB(1, 2, 3)))
	require.NoError(t, e.SetRect(vec.Vec3{X: 20, Y: 20, Z: 1}, vec.Vec3{X: 22, Y: 22, Z: 2}, csg.Insert))
	v, ok := e.World().Voxel(21, 21, 1)
	require.True(t, ok)
	assert.Equal(t, world.RGB(1, 2, 3), world.VoxelColor(v))
	require.NoError(t, e.SetCylinder(vec.Vec3Float{X: 30, Y: 30, Z: 2}, vec.Vec3Float{X: 30, Y: 30, Z: 8}, 2, csg.Insert))
	assert.ErrorIs(t, e.SetCurPow(-1), ErrInvalidParameter)

	box, err := e.UpdateVXL()
	require.NoError(t, err)
	assert.True(t, box.Contains(vec.Vec3{X: 21, Y: 21, Z: 1}))
	assert.True(t, e.Dirty().Empty())
	v, _ = e.World().Voxel(20, 20, 1)
	assert.NotEqual(t, uint8(world.NeutralLight), world.VoxelLight(v), "освещение пересчитано")
	coarse := e.World().Level(1)
	assert.True(t, coarse.IsSolid(10, 10, 0), "мипмап учитывает вставку")
}

func TestMeltSphere(t *testing.T) {
	e := newTestEngine(t)
	w := e.World()
	center := vec.Vec3{X: 32, Y: 32, Z: w.SurfaceZ(32, 32) + 1}
	const r = 3.0

	before := make(map[vec.Vec3]uint32)
	w.SphereChords(center, r, func(x, y, z0, z1 int) {
		for z := z0; z < z1; z++ {
			if v, ok := w.Voxel(x, y, z); ok {
				before[vec.Vec3{X: x, Y: y, Z: z}] = v
			}
		}
	})
	require.NotEmpty(t, before)

	s, n, err := e.MeltSphere(center, r)
	require.NoError(t, err)
	assert.Equal(t, len(before), n)
	assert.Equal(t, sprite.CallerOwned, s.Owner)
	w.SphereChords(center, r, func(x, y, z0, z1 int) {
		for z := z0; z < z1; z++ {
			solid, _ := e.IsVoxelSolid(vec.Vec3{X: x, Y: y, Z: z})
			assert.False(t, solid, "(%d,%d,%d) после расплава", x, y, z)
		}
	})

	require.NoError(t, e.SetKV6IntoWorld(s, csg.Insert))
	for p, v := range before {
		got, ok := w.Voxel(p.X, p.Y, p.Z)
		require.True(t, ok, "%v", p)
		assert.Equal(t, v, got)
	}

	require.NoError(t, e.ReleaseSprite(s))
	assert.True(t, s.Released())
	assert.ErrorIs(t, e.ReleaseSprite(s), ErrInvalidParameter)
	assert.ErrorIs(t, e.SetKV6IntoWorld(s, csg.Insert), ErrInvalidParameter)

	_, _, err = e.MeltSphere(center, -1)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestClipMoveNeverPenetrates(t *testing.T) {
	e := newTestEngine(t)
	const radius = 0.6
	col := physics.NewSphereCollider(radius)
	rng := rand.New(rand.NewSource(3))

	pos := e.Camera().Pos
	require.False(t, col.Overlaps(e.World(), pos))
	for i := 0; i < 300; i++ {
		delta := vec.RandUnit(rng).Mul(rng.Float64() * 4)
		delta.Z += 1.5 // тянем вниз, к рельефу
		next, err := e.ClipMove(pos, delta, radius)
		require.NoError(t, err)
		require.False(t, col.Overlaps(e.World(), next), "шаг %d: %v -> %v", i, pos, next)
		pos = next
	}

	_, err := e.ClipMove(pos, vec.Vec3Float{X: 1}, -1)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestCanSee(t *testing.T) {
	e := newTestEngine(t)
	w := e.World()
	ok, _, err := e.CanSee(vec.Vec3Float{X: 5.5, Y: 5.5, Z: 0.5}, vec.Vec3Float{X: 50.5, Y: 40.5, Z: 0.5})
	require.NoError(t, err)
	assert.True(t, ok, "над рельефом")

	ok, hit, err := e.CanSee(vec.Vec3Float{X: 20.5, Y: 20.5, Z: 0.5}, vec.Vec3Float{X: 20.5, Y: 20.5, Z: 63.5})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, vec.Vec3{X: 20, Y: 20, Z: w.SurfaceZ(20, 20)}, hit)

	empty, err := e.AllVoxelEmpty(vec.Vec3{X: 0, Y: 0, Z: 0}, vec.Vec3{X: 63, Y: 63, Z: 1})
	require.NoError(t, err)
	assert.True(t, empty)
	empty, _ = e.AllVoxelEmpty(vec.Vec3{X: 0, Y: 0, Z: 0}, vec.Vec3{X: 63, Y: 63, Z: 63})
	assert.False(t, empty)
}

func writeTestPNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for x := 0; x < 4; x++ {
		img.Set(x, 0, color.NRGBA{R: 200, G: 220, B: 255, A: 255})
		img.Set(x, 1, color.NRGBA{R: 90, G: 80, B: 70, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestRenderAndOverlay(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	e := newTestEngine(t, WithMetrics(m))

	assert.ErrorIs(t, e.Opticast(), ErrInvalidParameter, "буфер не привязан")
	assert.ErrorIs(t, e.DrawLine2D(0, 0, 1, 1, 0), ErrInvalidParameter)

	pix := make([]byte, 32*4*24)
	require.NoError(t, e.SetFrameBuffer(pix, 32*4, 32, 24))
	assert.ErrorIs(t, e.SetFrameBuffer(pix, 8, 32, 24), ErrInvalidParameter)

	skyPath := filepath.Join(t.TempDir(), "sky.png")
	writeTestPNG(t, skyPath)
	require.NoError(t, e.LoadSky(skyPath))
	require.NoError(t, e.SetFogColor(0x203040))
	assert.ErrorIs(t, e.SetFogColor(0x1000000), ErrInvalidParameter)
	require.NoError(t, e.SetMaxScanDist(200))
	require.NoError(t, e.Opticast())
	assert.Equal(t, 32*24, e.LastFrame().Rays)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.frames))
	assert.NotEqual(t, make([]byte, len(pix)), pix, "кадр записан в память вызывающего")

	require.NoError(t, e.DrawLine2D(0, 0, 31, 23, 0xFFFFFF))
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, pix[:4])
	require.NoError(t, e.Print(1, 1, 0xFFFFFF, -1, "fps"))
	cam := e.Camera()
	require.NoError(t, e.DrawPoint3D(cam.Pos.Add(cam.Forward.Mul(2)), 0xFF00FF))
	require.NoError(t, e.DrawSphereFill(cam.Pos.Add(cam.Forward.Mul(4)), 1, 0x00FFFF))
	assert.ErrorIs(t, e.DrawSphereFill(cam.Pos, 0, 0), ErrInvalidParameter)

	img, err := e.LoadImage(skyPath)
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.images))
	corners := [4]vec.Vec3Float{}
	for i, d := range [4][2]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
		corners[i] = cam.Pos.Add(cam.Forward.Mul(3)).Add(cam.Right.Mul(d[0])).Add(cam.Down.Mul(d[1]))
	}
	require.NoError(t, e.DrawImage(img, corners))
	require.NoError(t, e.ReleaseImage(img))
	assert.True(t, img.Freed())
	assert.ErrorIs(t, e.ReleaseImage(img), ErrInvalidParameter)
	assert.ErrorIs(t, e.DrawImage(img, corners), ErrInvalidParameter)

	require.NoError(t, e.SetKV6Col(world.RGB(128, 128, 128), 1))
	assert.ErrorIs(t, e.SetKV6Col(world.RGB(128, 128, 128), 0), ErrInvalidParameter)
	require.NoError(t, e.SetMaxScanDistToMax())
	assert.ErrorIs(t, e.SetCamera(cam.Orientation, 16, 12, 0), ErrInvalidParameter)
}

func TestSpritesAndClose(t *testing.T) {
	e, err := New(testConfig())
	require.NoError(t, err)
	require.NoError(t, e.LoadDefaultMap())

	m, err := sprite.NewModel(2, 2, 2, vec.Vec3Float{X: 1, Y: 1, Z: 1})
	require.NoError(t, err)
	require.NoError(t, m.Set(0, 0, 0, world.RGB(9, 9, 9).Voxel()))
	path := filepath.Join(t.TempDir(), "dot.kv6")
	require.NoError(t, sprite.SaveKV6(path, m))

	s, err := e.LoadSprite(path)
	require.NoError(t, err)
	assert.Equal(t, sprite.EngineManaged, s.Owner)
	assert.ErrorIs(t, e.ReleaseSprite(s), ErrInvalidParameter, "спрайт движка освобождается в Close")

	pngPath := filepath.Join(t.TempDir(), "img.png")
	writeTestPNG(t, pngPath)
	img, err := e.LoadImage(pngPath)
	require.NoError(t, err)

	require.NoError(t, e.Close())
	assert.True(t, s.Released())
	assert.True(t, img.Freed())

	calls := map[string]error{
		"close":       e.Close(),
		"load":        e.LoadDefaultMap(),
		"opticast":    e.Opticast(),
		"set_sphere":  e.SetSphere(vec.Vec3{}, 1, csg.Insert),
		"density":     e.SetRaycastDensity(2),
		"lighting":    e.SetLightingMode(lighting.None),
		"fall_check":  e.SetFallCheck(true),
		"update_vxl":  func() error { _, err := e.UpdateVXL(); return err }(),
		"solid":       func() error { _, err := e.IsVoxelSolid(vec.Vec3{}); return err }(),
		"can_see":     func() error { _, _, err := e.CanSee(vec.Vec3Float{}, vec.Vec3Float{}); return err }(),
		"load_sprite": func() error { _, err := e.LoadSprite(path); return err }(),
	}
	for name, err := range calls {
		assert.ErrorIs(t, err, ErrInit, name)
	}
}

func TestFallCheckDebris(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.SetFallCheck(true))
	// висящий в воздухе столб: удаление вокселя рядом отделяет его
	require.NoError(t, e.SetRect(vec.Vec3{X: 40, Y: 40, Z: 2}, vec.Vec3{X: 40, Y: 40, Z: 5}, csg.Insert))
	require.NoError(t, e.SetCube(vec.Vec3{X: 40, Y: 40, Z: 5}, nil))

	debris, err := e.TakeDebris()
	require.NoError(t, err)
	require.Len(t, debris, 1)
	assert.Equal(t, 3, debris[0].Model.VoxelCount())
	assert.Equal(t, sprite.CallerOwned, debris[0].Owner)
	for z := 2; z <= 5; z++ {
		solid, _ := e.IsVoxelSolid(vec.Vec3{X: 40, Y: 40, Z: z})
		assert.False(t, solid, "z=%d", z)
	}
	require.NoError(t, e.ReleaseSprite(debris[0]))
}
