// voxview: интерактивный просмотр карты.
//
// WASD движение, стрелки поворот, Space/Shift вверх/вниз,
// ЛКМ вырезать шар, ПКМ вставить шар, F сохранить VXL, L переключить освещение.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/annel0/voxel-engine/internal/config"
	"github.com/annel0/voxel-engine/internal/csg"
	"github.com/annel0/voxel-engine/internal/engine"
	"github.com/annel0/voxel-engine/internal/lighting"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/render"
	"github.com/annel0/voxel-engine/internal/vec"
)

const (
	moveSpeed  = 0.6
	turnSpeed  = 0.04
	bodyRadius = 1.5
	editRadius = 4.0
	editReach  = 128.0
)

func main() {
	configPath := flag.String("config", "", "YAML конфигурация")
	mapPath := flag.String("map", "", "карта VXL (по умолчанию процедурная)")
	savePath := flag.String("save", "saved.vxl", "куда сохранять по F")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}
	logging.LogDir = cfg.Logging.Dir

	e, err := engine.New(cfg)
	if err != nil {
		log.Fatalf("Ошибка создания движка: %v", err)
	}
	defer e.Close()

	if *mapPath != "" {
		err = e.LoadVXL(*mapPath)
	} else {
		err = e.LoadDefaultMap()
	}
	if err != nil {
		log.Fatalf("Ошибка загрузки карты: %v", err)
	}

	g, err := newViewer(e, cfg.Render.Width, cfg.Render.Height, *savePath)
	if err != nil {
		log.Fatalf("Ошибка создания окна: %v", err)
	}
	ebiten.SetWindowTitle("voxview")
	ebiten.SetWindowSize(cfg.Render.Width*2, cfg.Render.Height*2)
	ebiten.SetTPS(60)
	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
}

type viewer struct {
	e        *engine.Engine
	fb       *render.Framebuffer
	screen   *ebiten.Image
	o        vec.Orientation
	savePath string
	status   string
}

func newViewer(e *engine.Engine, width, height int, savePath string) (*viewer, error) {
	fb := render.NewFramebuffer(width, height)
	if err := e.BindFramebuffer(fb); err != nil {
		return nil, err
	}
	return &viewer{
		e:        e,
		fb:       fb,
		screen:   ebiten.NewImage(width, height),
		o:        e.Camera().Orientation,
		savePath: savePath,
	}, nil
}

func (v *viewer) Update() error {
	v.look()
	if err := v.move(); err != nil {
		return err
	}
	if err := v.edit(); err != nil {
		return err
	}

	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyF):
		if err := v.e.SaveVXL(v.savePath); err != nil {
			v.status = "ошибка сохранения: " + err.Error()
		} else {
			v.status = "сохранено в " + v.savePath
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyL):
		v.toggleLighting()
	}

	cam := v.e.Camera()
	return v.e.SetCamera(v.o, cam.HX, cam.HY, cam.HZ)
}

func (v *viewer) look() {
	if ebiten.IsKeyPressed(ebiten.KeyArrowLeft) {
		v.o = v.o.Rotate(vec.Vec3Float{Z: 1}, -turnSpeed)
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowRight) {
		v.o = v.o.Rotate(vec.Vec3Float{Z: 1}, turnSpeed)
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowUp) {
		v.o = v.o.Rotate(v.o.Right, turnSpeed)
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowDown) {
		v.o = v.o.Rotate(v.o.Right, -turnSpeed)
	}
}

func (v *viewer) move() error {
	var d vec.Vec3Float
	flat := vec.Vec3Float{X: v.o.Forward.X, Y: v.o.Forward.Y}.Normalized()
	right := vec.Vec3Float{X: v.o.Right.X, Y: v.o.Right.Y}.Normalized()
	keys := []struct {
		key ebiten.Key
		dir vec.Vec3Float
	}{
		{ebiten.KeyW, flat},
		{ebiten.KeyS, flat.Mul(-1)},
		{ebiten.KeyD, right},
		{ebiten.KeyA, right.Mul(-1)},
		{ebiten.KeySpace, vec.Vec3Float{Z: -1}},
		{ebiten.KeyShift, vec.Vec3Float{Z: 1}},
	}
	for _, k := range keys {
		if ebiten.IsKeyPressed(k.key) {
			d = d.Add(k.dir)
		}
	}
	if d.Length() == 0 {
		return nil
	}
	pos, err := v.e.ClipMove(v.o.Pos, d.Normalized().Mul(moveSpeed), bodyRadius)
	if err != nil {
		return err
	}
	v.o.Pos = pos
	return nil
}

// edit вырезает или вставляет шар там, куда смотрит центр экрана
func (v *viewer) edit() error {
	var op csg.Op
	switch {
	case inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft):
		op = csg.Remove
	case inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonRight):
		op = csg.Insert
	default:
		return nil
	}

	target := v.o.Pos.Add(v.o.Forward.Mul(editReach))
	visible, hit, err := v.e.CanSee(v.o.Pos, target)
	if err != nil || visible {
		return err
	}
	if err := v.e.SetSphere(hit, editRadius, op); err != nil {
		v.status = err.Error()
		return nil
	}
	_, err = v.e.UpdateVXL()
	v.status = fmt.Sprintf("%s шар в (%d, %d, %d)", op, hit.X, hit.Y, hit.Z)
	return err
}

func (v *viewer) toggleLighting() {
	mode := v.e.Lighting().Mode() + 1
	if !mode.Valid() {
		mode = lighting.None
	}
	if err := v.e.SetLightingMode(mode); err != nil {
		v.status = err.Error()
		return
	}
	b := v.e.World().Bounds()
	if err := v.e.UpdateLighting(b.Min, b.Max); err != nil {
		v.status = err.Error()
		return
	}
	v.status = "освещение: " + mode.String()
}

func (v *viewer) Draw(screen *ebiten.Image) {
	if err := v.e.Opticast(); err != nil {
		v.status = err.Error()
	}
	stats := v.e.LastFrame()
	hud := fmt.Sprintf("%.0f fps  %d лучей  (%.0f, %.0f, %.0f)", ebiten.ActualFPS(), stats.Rays, v.o.Pos.X, v.o.Pos.Y, v.o.Pos.Z)
	_ = v.e.Print(4, 2, 0xFFFFFF, -1, hud)
	if v.status != "" {
		_ = v.e.Print(4, v.fb.Height-16, 0xFFFF80, 0x000000, v.status)
	}
	cx, cy := v.fb.Width/2, v.fb.Height/2
	_ = v.e.DrawLine2D(cx-4, cy, cx+4, cy, 0xFFFFFF)
	_ = v.e.DrawLine2D(cx, cy-4, cx, cy+4, 0xFFFFFF)

	v.screen.WritePixels(v.fb.ToRGBA().Pix)
	screen.DrawImage(v.screen, nil)
}

func (v *viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	return v.fb.Width, v.fb.Height
}
