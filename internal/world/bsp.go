package world

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/annel0/voxel-engine/internal/vec"
)

// Quake BSP версии 29: карта вокселизуется запросами "точка в листе" по дереву модели 0.
const (
	bspVersion = 29

	lumpEntities = 0
	lumpPlanes   = 1
	lumpNodes    = 5
	lumpLeafs    = 10
	lumpModels   = 14
	lumpCount    = 15

	contentsSolid = -2
)

var ErrBSPVersion = errors.New("bsp: неподдерживаемая версия")

type bspLump struct {
	Offset int32
	Length int32
}

type bspHeader struct {
	Version int32
	Lumps   [lumpCount]bspLump
}

type bspPlane struct {
	Normal [3]float32
	Dist   float32
	Type   int32
}

type bspNode struct {
	Plane     int32
	Children  [2]int16
	Mins      [3]int16
	Maxs      [3]int16
	FirstFace uint16
	NumFaces  uint16
}

type bspLeaf struct {
	Contents  int32
	VisOfs    int32
	Mins      [3]int16
	Maxs      [3]int16
	FirstMark uint16
	NumMarks  uint16
	Ambient   [4]uint8
}

type bspModel struct {
	Mins      [3]float32
	Maxs      [3]float32
	Origin    [3]float32
	HeadNode  [4]int32
	VisLeafs  int32
	FirstFace int32
	NumFaces  int32
}

type bspTree struct {
	planes []bspPlane
	nodes  []bspNode
	leafs  []bspLeaf
	head   int32
}

func readLump[T any](data []byte, l bspLump) ([]T, error) {
	var zero T
	size := binary.Size(zero)
	if l.Offset < 0 || l.Length < 0 || int(l.Offset)+int(l.Length) > len(data) || int(l.Length)%size != 0 {
		return nil, fmt.Errorf("bsp: поврежден ламп (offset=%d length=%d)", l.Offset, l.Length)
	}
	out := make([]T, int(l.Length)/size)
	if err := binary.Read(bytes.NewReader(data[l.Offset:l.Offset+l.Length]), binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("bsp: чтение лампа: %w", err)
	}
	return out, nil
}

// classify спускается по дереву и возвращает содержимое листа и плоскость последнего разбиения
func (t *bspTree) classify(p [3]float64) (int32, int32) {
	node := t.head
	lastPlane := int32(-1)
	for node >= 0 {
		if int(node) >= len(t.nodes) {
			return contentsSolid, lastPlane
		}
		n := &t.nodes[node]
		if n.Plane < 0 || int(n.Plane) >= len(t.planes) {
			return contentsSolid, lastPlane
		}
		pl := &t.planes[n.Plane]
		d := float64(pl.Normal[0])*p[0] + float64(pl.Normal[1])*p[1] + float64(pl.Normal[2])*p[2] - float64(pl.Dist)
		lastPlane = n.Plane
		if d >= 0 {
			node = int32(n.Children[0])
		} else {
			node = int32(n.Children[1])
		}
	}
	leaf := -node - 1
	if int(leaf) >= len(t.leafs) {
		return contentsSolid, lastPlane
	}
	return t.leafs[leaf].Contents, lastPlane
}

// ReadBSP вокселизует карту Quake BSP в мир с размерами из opts
func ReadBSP(r io.Reader, opts LoadOptions) (*World, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("bsp: чтение: %w", err)
	}
	var hdr bspHeader
	if len(data) < binary.Size(hdr) {
		return nil, fmt.Errorf("bsp: файл обрезан")
	}
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("bsp: заголовок: %w", err)
	}
	if hdr.Version != bspVersion {
		return nil, fmt.Errorf("%w: %d", ErrBSPVersion, hdr.Version)
	}

	tree := &bspTree{}
	if tree.planes, err = readLump[bspPlane](data, hdr.Lumps[lumpPlanes]); err != nil {
		return nil, err
	}
	if tree.nodes, err = readLump[bspNode](data, hdr.Lumps[lumpNodes]); err != nil {
		return nil, err
	}
	if tree.leafs, err = readLump[bspLeaf](data, hdr.Lumps[lumpLeafs]); err != nil {
		return nil, err
	}
	models, err := readLump[bspModel](data, hdr.Lumps[lumpModels])
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("bsp: нет моделей")
	}
	tree.head = models[0].HeadNode[0]

	vsid := opts.MaxVSID
	if vsid <= 0 {
		vsid = 256
	}
	w, err := New(vsid, opts.MaxZ, opts.MipLevels)
	if err != nil {
		return nil, err
	}

	m := models[0]
	mins := [3]float64{float64(m.Mins[0]), float64(m.Mins[1]), float64(m.Mins[2])}
	maxs := [3]float64{float64(m.Maxs[0]), float64(m.Maxs[1]), float64(m.Maxs[2])}
	unit := math.Max((maxs[0]-mins[0])/float64(vsid), (maxs[1]-mins[1])/float64(vsid))
	unit = math.Max(unit, (maxs[2]-mins[2])/float64(w.MaxZ()))
	if unit <= 0 {
		return nil, fmt.Errorf("bsp: вырожденные границы модели")
	}

	// Ось y и z отражаются: в мире z направлена вниз
	toBSP := func(x, y, z float64) [3]float64 {
		return [3]float64{mins[0] + x*unit, maxs[1] - y*unit, maxs[2] - z*unit}
	}

	base := w.levels[0]
	spans := make([]Span, 0, 16)
	for y := 0; y < vsid; y++ {
		for x := 0; x < vsid; x++ {
			spans = spans[:0]
			for z := 0; z < w.MaxZ(); z++ {
				contents, plane := tree.classify(toBSP(float64(x)+0.5, float64(y)+0.5, float64(z)+0.5))
				solid := contents == contentsSolid
				var v uint32
				if solid {
					v = bspColor(tree, plane, z, w.MaxZ()).Voxel()
				}
				if n := len(spans); n > 0 && spans[n-1].Solid == solid {
					spans[n-1].Z1 = z + 1
					if solid {
						spans[n-1].Colors = append(spans[n-1].Colors, v)
					}
					continue
				}
				s := Span{Z0: z, Z1: z + 1, Solid: solid}
				if solid {
					s.Colors = []uint32{v}
				}
				spans = append(spans, s)
			}
			base.writeColumn(x, y, spans)
		}
	}

	w.start = bspStart(data, hdr.Lumps[lumpEntities], mins, maxs, unit, vsid)
	w.GenAllMipmaps()
	w.ClearDirty()
	return w, nil
}

// bspColor оттеняет серый цвет по наклону разделяющей плоскости: полы светлее стен
func bspColor(t *bspTree, plane int32, z, maxZ int) Color {
	shade := 0.6
	if plane >= 0 && int(plane) < len(t.planes) {
		shade = 0.45 + 0.45*math.Abs(float64(t.planes[plane].Normal[2]))
	}
	shade *= 1 - 0.3*float64(z)/float64(maxZ)
	v := uint8(math.Min(255, 230*shade))
	return RGB(v, uint8(float64(v)*0.95), uint8(float64(v)*0.85))
}

// bspStart ищет info_player_start и строит стартовую ориентацию
func bspStart(data []byte, l bspLump, mins, maxs [3]float64, unit float64, vsid int) vec.Orientation {
	center := vec.Vec3Float{X: float64(vsid) / 2, Y: float64(vsid) / 2, Z: 1}
	if l.Offset < 0 || int(l.Offset)+int(l.Length) > len(data) {
		return vec.DefaultOrientation(center)
	}
	for _, ent := range parseEntities(string(data[l.Offset : l.Offset+l.Length])) {
		if ent["classname"] != "info_player_start" {
			continue
		}
		f := strings.Fields(ent["origin"])
		if len(f) != 3 {
			break
		}
		var o [3]float64
		for i := range f {
			o[i], _ = strconv.ParseFloat(f[i], 64)
		}
		pos := vec.Vec3Float{
			X: (o[0] - mins[0]) / unit,
			Y: (maxs[1] - o[1]) / unit,
			Z: (maxs[2] - o[2]) / unit,
		}
		angle, _ := strconv.ParseFloat(ent["angle"], 64)
		a := angle * math.Pi / 180
		fwd := vec.Vec3Float{X: math.Cos(a), Y: -math.Sin(a)}
		down := vec.Vec3Float{Z: 1}
		return vec.Orientation{Pos: pos, Right: fwd.Cross(down), Down: down, Forward: fwd}
	}
	return vec.DefaultOrientation(center)
}

// parseEntities разбирает текст лампа сущностей: { "key" "value" ... }
func parseEntities(text string) []map[string]string {
	var (
		out     []map[string]string
		cur     map[string]string
		pending []string
	)
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '{':
			cur = make(map[string]string)
			pending = pending[:0]
		case '}':
			if cur != nil {
				out = append(out, cur)
			}
			cur = nil
		case '"':
			j := strings.IndexByte(text[i+1:], '"')
			if j < 0 {
				return out
			}
			pending = append(pending, text[i+1:i+1+j])
			i += j + 1
			if len(pending) == 2 && cur != nil {
				cur[pending[0]] = pending[1]
				pending = pending[:0]
			}
		}
	}
	return out
}

// LoadBSP читает карту BSP из файла
func LoadBSP(path string, opts LoadOptions) (*World, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadBSP(f, opts)
}
