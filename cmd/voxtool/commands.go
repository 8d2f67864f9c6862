package main

import (
	"errors"
	"flag"
	"fmt"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/annel0/voxel-engine/internal/config"
	"github.com/annel0/voxel-engine/internal/engine"
	"github.com/annel0/voxel-engine/internal/lighting"
	"github.com/annel0/voxel-engine/internal/render"
	"github.com/annel0/voxel-engine/internal/sprite"
	"github.com/annel0/voxel-engine/internal/storage"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
)

var errMissingPath = errors.New("нужны -in и -out")

// loadOptions допускает карты любого поддерживаемого размера; VXL и BSP
// не хранят высоту, их карты всегда VXLMaxZ в глубину
func loadOptions(mips int) world.LoadOptions {
	return world.LoadOptions{MaxVSID: 4096, MaxZ: world.VXLMaxZ, MipLevels: mips}
}

// loadMap читает карту по расширению файла
func loadMap(path string, mips int) (*world.World, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".vxl":
		return world.LoadVXL(path, loadOptions(mips))
	case ".vxz":
		return storage.LoadSnapshot(path, mips)
	case ".bsp":
		return world.LoadBSP(path, loadOptions(mips))
	default:
		return nil, fmt.Errorf("неизвестный формат %s", path)
	}
}

// saveMap пишет карту по расширению файла
func saveMap(path string, w *world.World) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".vxl":
		return world.SaveVXL(path, w)
	case ".vxz":
		return storage.SaveSnapshot(path, w)
	default:
		return fmt.Errorf("неизвестный формат %s", path)
	}
}

func runGen(args []string) error {
	fs := flag.NewFlagSet("gen", flag.ExitOnError)
	out := fs.String("out", "map.vxl", "выходной файл (.vxl или .vxz)")
	vsid := fs.Int("vsid", 512, "размер карты по x/y (степень двойки)")
	maxZ := fs.Int("maxz", 256, "высота карты")
	seed := fs.Int64("seed", 0, "сид шума (0 = случайный)")
	fs.Parse(args)

	w, err := world.New(*vsid, *maxZ, 1)
	if err != nil {
		return err
	}
	s := *seed
	if s == 0 {
		s = world.RandomSeed()
	}
	start := time.Now()
	world.NewGenerator(s).Generate(w)
	fmt.Printf("карта %dx%dx%d, сид %d, %d отрезков за %v\n", *vsid, *vsid, *maxZ, s, w.RunCount(), time.Since(start))
	return saveMap(*out, w)
}

func runInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	in := fs.String("in", "", "карта (.vxl, .vxz, .bsp)")
	fs.Parse(args)
	if *in == "" {
		return errMissingPath
	}

	w, err := loadMap(*in, 1)
	if err != nil {
		return err
	}
	solid, columns := 0, 0
	for y := 0; y < w.VSID(); y++ {
		for x := 0; x < w.VSID(); x++ {
			had := false
			for _, s := range w.Column(x, y) {
				if s.Solid && s.Z0 < w.MaxZ() {
					solid += min(s.Z1, w.MaxZ()) - s.Z0
					had = true
				}
			}
			if had {
				columns++
			}
		}
	}
	st := w.Start()
	fmt.Printf("файл:      %s\n", *in)
	fmt.Printf("размер:    %dx%dx%d\n", w.VSID(), w.VSID(), w.MaxZ())
	fmt.Printf("отрезков:  %d\n", w.RunCount())
	fmt.Printf("колонок:   %d непустых\n", columns)
	fmt.Printf("вокселей:  %d твердых\n", solid)
	fmt.Printf("старт:     (%.1f, %.1f, %.1f) вперед (%.2f, %.2f, %.2f)\n",
		st.Pos.X, st.Pos.Y, st.Pos.Z, st.Forward.X, st.Forward.Y, st.Forward.Z)
	return nil
}

// parseVec разбирает "x,y,z"
func parseVec(s string) (vec.Vec3Float, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return vec.Vec3Float{}, fmt.Errorf("ожидается x,y,z: %q", s)
	}
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return vec.Vec3Float{}, err
		}
		v[i] = f
	}
	return vec.Vec3Float{X: v[0], Y: v[1], Z: v[2]}, nil
}

// renderOptions параметры одиночного кадра
type renderOptions struct {
	in, out       string
	width, height int
	angInc        int
	mode          string
	pos           string
	yaw, pitch    float64
	fog           int64
}

func runRender(args []string) error {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	var o renderOptions
	fs.StringVar(&o.in, "in", "", "карта")
	fs.StringVar(&o.out, "out", "frame.png", "PNG кадра")
	fs.IntVar(&o.width, "w", 640, "ширина кадра")
	fs.IntVar(&o.height, "h", 480, "высота кадра")
	fs.IntVar(&o.angInc, "anginc", 1, "шаг лучей в пикселях")
	fs.StringVar(&o.mode, "lighting", "none", "освещение: none, normal, point")
	fs.StringVar(&o.pos, "pos", "", "позиция камеры x,y,z (по умолчанию старт карты)")
	fs.Float64Var(&o.yaw, "yaw", 0, "поворот вокруг вертикали, градусы")
	fs.Float64Var(&o.pitch, "pitch", 0, "наклон вниз, градусы")
	fs.Int64Var(&o.fog, "fog", -1, "цвет тумана 0xRRGGBB (-1 выключен)")
	fs.Parse(args)
	if o.in == "" {
		return errMissingPath
	}

	stats, err := renderFrame(o)
	if err != nil {
		return err
	}
	fmt.Printf("кадр %dx%d: %d лучей, %d попаданий, %v\n", o.width, o.height, stats.Rays, stats.Hits, stats.Duration)
	return nil
}

// renderFrame рисует кадр карты в PNG и возвращает статистику кадра
func renderFrame(o renderOptions) (render.FrameStats, error) {
	var stats render.FrameStats
	cfg := config.Default()
	w, err := loadMap(o.in, cfg.Engine.MipLevels)
	if err != nil {
		return stats, err
	}
	lm, err := lighting.ParseMode(o.mode)
	if err != nil {
		return stats, err
	}
	cfg.Engine.VSID, cfg.Engine.MaxVSID, cfg.Engine.MaxZ = w.VSID(), w.VSID(), w.MaxZ()
	cfg.Render.Width, cfg.Render.Height = o.width, o.height
	cfg.Render.AngInc = o.angInc
	cfg.Lighting.Mode = lm.String()
	e, err := engine.New(cfg)
	if err != nil {
		return stats, err
	}
	defer e.Close()

	if err := e.SetWorld(w); err != nil {
		return stats, err
	}
	// в режиме none остается свет, сохраненный в карте
	if lm != lighting.None {
		if err := e.UpdateLighting(w.Bounds().Min, w.Bounds().Max); err != nil {
			return stats, err
		}
	}
	if err := e.SetFogColor(o.fog); err != nil {
		return stats, err
	}

	cam := w.Start()
	if o.pos != "" {
		p, err := parseVec(o.pos)
		if err != nil {
			return stats, err
		}
		cam = vec.DefaultOrientation(p)
	}
	// положительный pitch опускает взгляд: Forward поворачивается к +z
	cam = cam.Rotate(vec.Vec3Float{Z: 1}, o.yaw*math.Pi/180)
	cam = cam.Rotate(cam.Right, o.pitch*math.Pi/180)
	c := render.DefaultCamera(cam, o.width, o.height)
	if err := e.SetCamera(c.Orientation, c.HX, c.HY, c.HZ); err != nil {
		return stats, err
	}

	fb := render.NewFramebuffer(o.width, o.height)
	if err := e.BindFramebuffer(fb); err != nil {
		return stats, err
	}
	if err := e.Opticast(); err != nil {
		return stats, err
	}
	stats = e.LastFrame()

	f, err := os.Create(o.out)
	if err != nil {
		return stats, err
	}
	if err := png.Encode(f, fb.ToRGBA()); err != nil {
		f.Close()
		return stats, err
	}
	return stats, f.Close()
}

func runKV6GLB(args []string) error {
	fs := flag.NewFlagSet("kv6glb", flag.ExitOnError)
	in := fs.String("in", "", "модель KV6")
	out := fs.String("out", "", "выходной GLB")
	fs.Parse(args)
	if *in == "" || *out == "" {
		return errMissingPath
	}

	m, err := sprite.LoadKV6(*in)
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(filepath.Base(*in), filepath.Ext(*in))
	if err := sprite.ExportGLB(m, name, *out); err != nil {
		return err
	}
	mesh := sprite.GreedyMesh(m)
	fmt.Printf("%s: %dx%dx%d, %d вокселей, %d треугольников\n", name, m.XSize, m.YSize, m.ZSize, m.VoxelCount(), len(mesh.Indices)/3)
	return nil
}

func runSnapshot(args []string) error {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	in := fs.String("in", "", "исходная карта")
	out := fs.String("out", "", "результат (.vxz или .vxl)")
	fs.Parse(args)
	if *in == "" || *out == "" {
		return errMissingPath
	}
	return convert(*in, *out)
}

func runBSP2VXL(args []string) error {
	fs := flag.NewFlagSet("bsp2vxl", flag.ExitOnError)
	in := fs.String("in", "", "карта BSP")
	out := fs.String("out", "", "выходной VXL")
	fs.Parse(args)
	if *in == "" || *out == "" {
		return errMissingPath
	}
	return convert(*in, *out)
}

func convert(in, out string) error {
	start := time.Now()
	w, err := loadMap(in, 1)
	if err != nil {
		return err
	}
	if err := saveMap(out, w); err != nil {
		return err
	}
	inSize, outSize := fileSize(in), fileSize(out)
	fmt.Printf("%s (%d Б) -> %s (%d Б) за %v\n", in, inSize, out, outSize, time.Since(start))
	return nil
}

func fileSize(path string) int64 {
	st, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return st.Size()
}
