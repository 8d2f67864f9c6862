package api

import (
	"bytes"
	"errors"
	"image/png"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/annel0/voxel-engine/internal/cache"
	"github.com/annel0/voxel-engine/internal/csg"
	"github.com/annel0/voxel-engine/internal/eventbus"
	"github.com/annel0/voxel-engine/internal/render"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
)

// maxFrameSide предел стороны кадра для /api/render
const maxFrameSide = 2048

var errUnknownShape = errors.New("api: неизвестная фигура")

// WorldInfo описание загруженного мира
type WorldInfo struct {
	VSID      int        `json:"vsid"`
	MaxZ      int        `json:"max_z"`
	MipLevels int        `json:"mip_levels"`
	Revision  uint64     `json:"revision"`
	Dirty     int        `json:"dirty_columns"`
	Start     [3]float64 `json:"start"`
	Lighting  string     `json:"lighting"`
}

// SpanDTO отрезок колонки в ответе /api/world/column
type SpanDTO struct {
	Z0     int      `json:"z0"`
	Z1     int      `json:"z1"`
	Solid  bool     `json:"solid"`
	Colors []string `json:"colors,omitempty"`
}

// EditRequest CSG-правка. Поля используются в зависимости от shape.
type EditRequest struct {
	Shape  string     `json:"shape" binding:"required"` // sphere | rect | cube | cylinder | box | melt
	Op     string     `json:"op"`                       // insert | remove
	Center [3]float64 `json:"center"`
	Radius float64    `json:"radius"`
	P0     [3]float64 `json:"p0"`
	P1     [3]float64 `json:"p1"`
	Size   [3]float64 `json:"size"`
	Yaw    float64    `json:"yaw"`
	Color  *uint32    `json:"color,omitempty"` // для cube: nil удаляет воксель
}

// CameraRequest положение камеры: позиция, поворот вокруг вертикали и наклон (радианы)
type CameraRequest struct {
	Pos    [3]float64 `json:"pos"`
	Yaw    float64    `json:"yaw"`
	Pitch  float64    `json:"pitch"`
	Width  int        `json:"width"`
	Height int        `json:"height"`
	AngInc int        `json:"anginc"`
}

func toFloat(a [3]float64) vec.Vec3Float { return vec.Vec3Float{X: a[0], Y: a[1], Z: a[2]} }

func toInt(a [3]float64) vec.Vec3 { return toFloat(a).Floor() }

// Orientation строит ориентацию камеры: yaw вокруг оси Z, затем pitch вокруг оси right
func (cr CameraRequest) Orientation() vec.Orientation {
	o := vec.DefaultOrientation(toFloat(cr.Pos))
	o = o.Rotate(vec.Vec3Float{Z: 1}, cr.Yaw)
	return o.Rotate(o.Right, cr.Pitch)
}

func (rs *RestServer) handleWorldInfo(c *gin.Context) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	w, err := rs.engine.ActiveWorld("world_info")
	if err != nil {
		rs.fail(c, err)
		return
	}
	info := WorldInfo{
		VSID:      w.VSID(),
		MaxZ:      w.MaxZ(),
		MipLevels: w.Levels(),
		Revision:  w.Revision(),
		Dirty:     w.DirtyCount(),
		Start:     [3]float64{w.Start().Pos.X, w.Start().Pos.Y, w.Start().Pos.Z},
		Lighting:  rs.engine.Lighting().Mode().String(),
	}

	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Мир", Data: info})
}

// queryInts читает целые параметры запроса; ok = false, если какой-то отсутствует
func queryInts(c *gin.Context, names ...string) ([]int, bool) {
	out := make([]int, len(names))
	for i, n := range names {
		v, err := strconv.Atoi(c.Query(n))
		if err != nil {
			badRequest(c, "параметр "+n+" должен быть целым")
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func (rs *RestServer) handleColumn(c *gin.Context) {
	xy, ok := queryInts(c, "x", "y")
	if !ok {
		return
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	w, err := rs.engine.ActiveWorld("column")
	if err != nil {
		rs.fail(c, err)
		return
	}
	if !w.InBounds(vec.Vec3{X: xy[0], Y: xy[1]}) {
		badRequest(c, "колонка вне карты")
		return
	}
	spans := w.Column(xy[0], xy[1])
	out := make([]SpanDTO, 0, len(spans))
	for _, s := range spans {
		dto := SpanDTO{Z0: s.Z0, Z1: s.Z1, Solid: s.Solid}
		if s.Solid {
			for z := s.Z0; z < s.Z1; z++ {
				v, _ := w.Voxel(xy[0], xy[1], z)
				dto.Colors = append(dto.Colors, world.VoxelColor(v).String())
			}
		}
		out = append(out, dto)
	}

	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Колонка", Data: out})
}

func (rs *RestServer) handleVoxel(c *gin.Context) {
	xyz, ok := queryInts(c, "x", "y", "z")
	if !ok {
		return
	}
	p := vec.Vec3{X: xyz[0], Y: xyz[1], Z: xyz[2]}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	solid, err := rs.engine.IsVoxelSolid(p)
	if err != nil {
		rs.fail(c, err)
		return
	}
	v, _ := rs.engine.World().Voxel(p.X, p.Y, p.Z)

	data := gin.H{"solid": solid}
	if solid && v != 0 {
		data["color"] = world.VoxelColor(v).String()
		data["light"] = world.VoxelLight(v)
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Воксель", Data: data})
}

// applyEdit выполняет правку под блокировкой движка
func (rs *RestServer) applyEdit(req EditRequest) (gin.H, error) {
	op, err := csg.ParseOp(req.Op)
	if err != nil {
		return nil, err
	}
	e := rs.engine
	result := gin.H{}
	switch req.Shape {
	case "sphere":
		err = e.SetSphere(toInt(req.Center), req.Radius, op)
	case "rect":
		err = e.SetRect(toInt(req.P0), toInt(req.P1), op)
	case "cube":
		var col *world.Color
		if req.Color != nil {
			cc := world.Color(*req.Color & 0xFFFFFF)
			col = &cc
		}
		err = e.SetCube(toInt(req.Center), col)
	case "cylinder":
		err = e.SetCylinder(toFloat(req.P0), toFloat(req.P1), req.Radius, op)
	case "box":
		err = e.SetBox(toFloat(req.Center), toFloat(req.Size), req.Yaw, op)
	case "melt":
		var n int
		_, n, err = e.MeltSphere(toInt(req.Center), req.Radius)
		result["melted"] = n
	default:
		return nil, errUnknownShape
	}
	if err != nil {
		return nil, err
	}
	result["revision"] = e.World().Revision()
	dirty := e.Dirty()
	result["dirty"] = [2][3]int{
		{dirty.Min.X, dirty.Min.Y, dirty.Min.Z},
		{dirty.Max.X, dirty.Max.Y, dirty.Max.Z},
	}
	return result, nil
}

func (rs *RestServer) lockedEdit(req EditRequest) (gin.H, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.applyEdit(req)
}

func (rs *RestServer) handleEdit(c *gin.Context) {
	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверный формат запроса")
		return
	}

	result, err := rs.lockedEdit(req)
	switch {
	case err == errUnknownShape:
		badRequest(c, "неизвестная фигура "+req.Shape)
	case errors.Is(err, csg.ErrInvalidParameter):
		badRequest(c, err.Error())
	case err != nil:
		rs.fail(c, err)
	default:
		c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Правка применена", Data: result})
	}
}

func (rs *RestServer) lockedUpdate() (world.Box, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.engine.UpdateVXL()
}

// handleUpdate пересчитывает мипмапы и освещение после правок
func (rs *RestServer) handleUpdate(c *gin.Context) {
	_, span := rs.tracer.Start(c.Request.Context(), "world.update")
	defer span.End()

	box, err := rs.lockedUpdate()
	if err != nil {
		rs.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Мир обновлён", Data: gin.H{
		"empty": box.Empty(),
		"min":   [3]int{box.Min.X, box.Min.Y, box.Min.Z},
		"max":   [3]int{box.Max.X, box.Max.Y, box.Max.Z},
	}})
}

// saveDirty сбрасывает изменённые колонки в хранилище вместе с текущей камерой
func (rs *RestServer) saveDirty() (int, uint64, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	w, err := rs.engine.ActiveWorld("save")
	if err != nil {
		return 0, 0, err
	}
	w.SetStart(rs.engine.Camera().Orientation)
	n, err := rs.store.SaveDirty(w)
	return n, w.Revision(), err
}

func (rs *RestServer) handleSave(c *gin.Context) {
	if rs.store == nil {
		c.JSON(http.StatusNotImplemented, GenericResponse{Success: false, Message: "хранилище не настроено"})
		return
	}
	ctx, span := rs.tracer.Start(c.Request.Context(), "world.save")
	defer span.End()

	n, rev, err := rs.saveDirty()
	if err != nil {
		span.RecordError(err)
		rs.fail(c, err)
		return
	}
	span.SetAttributes(attribute.Int("columns", n))

	payload := eventbus.WorldSaved{Columns: n, Revision: rev}
	rs.publish(ctx, eventbus.TypeWorldSaved, payload)
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Мир сохранён", Data: payload})
}

func (rs *RestServer) handleLoad(c *gin.Context) {
	if rs.store == nil {
		c.JSON(http.StatusNotImplemented, GenericResponse{Success: false, Message: "хранилище не настроено"})
		return
	}
	ctx, span := rs.tracer.Start(c.Request.Context(), "world.load")
	defer span.End()

	rs.mu.Lock()
	defer rs.mu.Unlock()
	w, err := rs.store.LoadWorld(rs.engine.Config().Engine.MipLevels)
	if err == nil {
		err = rs.engine.SetWorld(w)
	}
	if err != nil {
		span.RecordError(err)
		rs.fail(c, err)
		return
	}

	payload := eventbus.WorldSaved{Columns: w.VSID() * w.VSID(), Revision: w.Revision()}
	rs.publish(ctx, eventbus.TypeWorldLoaded, payload)
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Мир загружен", Data: payload})
}

// revision ревизия текущего мира
func (rs *RestServer) revision(op string) (uint64, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	w, err := rs.engine.ActiveWorld(op)
	if err != nil {
		return 0, err
	}
	return w.Revision(), nil
}

// handleRender рисует кадр и отдаёт PNG. Кадры кешируются по ревизии мира и камере.
func (rs *RestServer) handleRender(c *gin.Context) {
	var req CameraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверный формат запроса")
		return
	}
	cfg := rs.engine.Config().Render
	if req.Width == 0 {
		req.Width = cfg.Width
	}
	if req.Height == 0 {
		req.Height = cfg.Height
	}
	if req.AngInc == 0 {
		req.AngInc = cfg.AngInc
	}
	if req.Width < 1 || req.Height < 1 || req.Width > maxFrameSide || req.Height > maxFrameSide {
		badRequest(c, "размер кадра вне 1.."+strconv.Itoa(maxFrameSide))
		return
	}

	ctx, span := rs.tracer.Start(c.Request.Context(), "render.frame")
	defer span.End()
	span.SetAttributes(attribute.Int("width", req.Width), attribute.Int("height", req.Height))

	cam := render.DefaultCamera(req.Orientation(), req.Width, req.Height)

	rev, err := rs.revision("render")
	if err != nil {
		rs.fail(c, err)
		return
	}
	key := cache.FrameKey(rev, cam, req.Width, req.Height, req.AngInc)

	if data, err := rs.frames.Get(ctx, key); err == nil {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		c.Header("X-Frame-Cache", "hit")
		c.Data(http.StatusOK, "image/png", data)
		return
	}

	data, err := rs.renderPNG(cam, req.Width, req.Height, req.AngInc)
	if err != nil {
		span.RecordError(err)
		rs.fail(c, err)
		return
	}
	if err := rs.frames.Set(ctx, key, data, rs.frameTTL); err != nil {
		rs.log.Warn("кадр не закеширован: %v", err)
	}
	c.Header("X-Frame-Cache", "miss")
	c.Data(http.StatusOK, "image/png", data)
}

// renderPNG рисует кадр в отдельный буфер и восстанавливает состояние движка
func (rs *RestServer) renderPNG(cam render.Camera, width, height, angInc int) ([]byte, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	e := rs.engine
	prevCam, prevFB := e.Camera(), e.Framebuffer()
	prevInc, err := e.RaycastDensity()
	if err != nil {
		return nil, err
	}
	defer func() {
		e.SetCamera(prevCam.Orientation, prevCam.HX, prevCam.HY, prevCam.HZ)
		e.Renderer().SetFramebuffer(prevFB)
		e.SetRaycastDensity(prevInc)
	}()

	fb := render.NewFramebuffer(width, height)
	if err := e.SetRaycastDensity(angInc); err != nil {
		return nil, err
	}
	if err := e.SetCamera(cam.Orientation, cam.HX, cam.HY, cam.HZ); err != nil {
		return nil, err
	}
	if err := e.BindFramebuffer(fb); err != nil {
		return nil, err
	}
	if err := e.Opticast(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, fb.ToRGBA()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (rs *RestServer) canSee(a, b vec.Vec3Float) (bool, vec.Vec3, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.engine.CanSee(a, b)
}

// handleCanSee проверяет прямую видимость между двумя точками
func (rs *RestServer) handleCanSee(c *gin.Context) {
	var req struct {
		From [3]float64 `json:"from"`
		To   [3]float64 `json:"to"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверный формат запроса")
		return
	}

	ok, hit, err := rs.canSee(toFloat(req.From), toFloat(req.To))
	if err != nil {
		rs.fail(c, err)
		return
	}
	data := gin.H{"visible": ok}
	if !ok {
		data["hit"] = [3]int{hit.X, hit.Y, hit.Z}
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Видимость", Data: data})
}
