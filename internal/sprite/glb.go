package sprite

import (
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/annel0/voxel-engine/internal/world"
)

// Mesh треугольная сетка поверхности модели
type Mesh struct {
	Positions [][3]float32
	Normals   [][3]float32
	Colors    [][4]float32
	Indices   []uint32
}

type dirSpec struct {
	normal [3]float32
	u, v   int
	du, dv [3]int
}

var directions = []dirSpec{
	{[3]float32{1, 0, 0}, 1, 2, [3]int{0, 1, 0}, [3]int{0, 0, 1}},
	{[3]float32{-1, 0, 0}, 1, 2, [3]int{0, 1, 0}, [3]int{0, 0, 1}},
	{[3]float32{0, 1, 0}, 0, 2, [3]int{1, 0, 0}, [3]int{0, 0, 1}},
	{[3]float32{0, -1, 0}, 0, 2, [3]int{1, 0, 0}, [3]int{0, 0, 1}},
	{[3]float32{0, 0, 1}, 0, 1, [3]int{1, 0, 0}, [3]int{0, 1, 0}},
	{[3]float32{0, 0, -1}, 0, 1, [3]int{1, 0, 0}, [3]int{0, 1, 0}},
}

// colorAt цвет вокселя модели или 0 для воздуха; к цвету добавлен бит присутствия
func (m *Model) colorAt(p [3]int) uint32 {
	v, ok := m.Voxel(p[0], p[1], p[2])
	if !ok {
		return 0
	}
	return uint32(world.VoxelColor(v)) | 1<<24
}

func (mesh *Mesh) addQuad(dir dirSpec, start [3]int, w, h int, color uint32, perp int) {
	base := [3]float32{}
	base[perp] = float32(start[0])
	if dir.normal[perp] > 0 {
		base[perp]++
	}
	base[dir.u] = float32(start[1])
	base[dir.v] = float32(start[2])

	corner := func(a, b int) [3]float32 {
		return [3]float32{
			base[0] + float32(dir.du[0]*a+dir.dv[0]*b),
			base[1] + float32(dir.du[1]*a+dir.dv[1]*b),
			base[2] + float32(dir.du[2]*a+dir.dv[2]*b),
		}
	}
	verts := [4][3]float32{corner(0, 0), corner(h, 0), corner(h, w), corner(0, w)}

	swap := (dir.normal[perp] < 0) != (perp == 1)
	if swap {
		verts[1], verts[3] = verts[3], verts[1]
	}

	c := world.Color(color)
	rgba := [4]float32{float32(c.R()) / 255, float32(c.G()) / 255, float32(c.B()) / 255, 1}
	baseIdx := uint32(len(mesh.Positions))
	for _, v := range verts {
		mesh.Positions = append(mesh.Positions, v)
		mesh.Normals = append(mesh.Normals, dir.normal)
		mesh.Colors = append(mesh.Colors, rgba)
	}
	mesh.Indices = append(mesh.Indices, baseIdx, baseIdx+1, baseIdx+2, baseIdx, baseIdx+2, baseIdx+3)
}

// GreedyMesh строит сетку модели, объединяя соседние грани одного цвета в прямоугольники
func GreedyMesh(m *Model) *Mesh {
	mesh := &Mesh{}
	dims := [3]int{m.XSize, m.YSize, m.ZSize}

	for _, dir := range directions {
		perp := 3 - dir.u - dir.v

		for p := 0; p < dims[perp]; p++ {
			mask := make([][]uint32, dims[dir.u])
			visited := make([][]bool, dims[dir.u])
			for i := range mask {
				mask[i] = make([]uint32, dims[dir.v])
				visited[i] = make([]bool, dims[dir.v])
			}

			for u := 0; u < dims[dir.u]; u++ {
				for v := 0; v < dims[dir.v]; v++ {
					pos := [3]int{}
					pos[dir.u] = u
					pos[dir.v] = v
					pos[perp] = p

					voxel := m.colorAt(pos)
					if voxel == 0 {
						continue
					}
					adj := pos
					if dir.normal[perp] < 0 {
						adj[perp] = p - 1
					} else {
						adj[perp] = p + 1
					}
					if m.colorAt(adj) == 0 {
						mask[u][v] = voxel
					}
				}
			}

			for u := 0; u < dims[dir.u]; u++ {
				for v := 0; v < dims[dir.v]; {
					if mask[u][v] == 0 || visited[u][v] {
						v++
						continue
					}
					color := mask[u][v]
					width := 1
					for w := v + 1; w < dims[dir.v] && mask[u][w] == color && !visited[u][w]; w++ {
						width++
					}
					height := 1
					stop := false
					for h := u + 1; h < dims[dir.u] && !stop; h++ {
						for w := v; w < v+width; w++ {
							if mask[h][w] != color || visited[h][w] {
								stop = true
								break
							}
						}
						if !stop {
							height++
						}
					}
					for hu := u; hu < u+height; hu++ {
						for hv := v; hv < v+width; hv++ {
							visited[hu][hv] = true
						}
					}
					mesh.addQuad(dir, [3]int{p, u, v}, width, height, color, perp)
					v += width
				}
			}
		}
	}
	return mesh
}

// BuildGLTF собирает документ glTF с одной сеткой модели
func BuildGLTF(m *Model, name string) *gltf.Document {
	mesh := GreedyMesh(m)

	doc := gltf.NewDocument()
	doc.Asset.Generator = "voxel-engine kv6 -> glb"

	posAccessor := modeler.WritePosition(doc, mesh.Positions)
	normalAccessor := modeler.WriteNormal(doc, mesh.Normals)
	colorAccessor := modeler.WriteColor(doc, mesh.Colors)
	indicesAccessor := modeler.WriteIndices(doc, mesh.Indices)

	prim := &gltf.Primitive{
		Attributes: gltf.PrimitiveAttributes{
			gltf.POSITION: posAccessor,
			gltf.NORMAL:   normalAccessor,
			gltf.COLOR_0:  colorAccessor,
		},
		Indices:  gltf.Index(indicesAccessor),
		Material: gltf.Index(0),
	}
	doc.Materials = []*gltf.Material{{
		Name:      "voxel",
		AlphaMode: gltf.AlphaOpaque,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float64{1, 1, 1, 1},
			MetallicFactor:  gltf.Float(0),
			RoughnessFactor: gltf.Float(1),
		},
	}}
	doc.Meshes = []*gltf.Mesh{{Name: name, Primitives: []*gltf.Primitive{prim}}}
	// glTF использует ось Y вверх: z модели (вниз) переводится в -Y
	doc.Nodes = []*gltf.Node{{
		Name:     name,
		Mesh:     gltf.Index(0),
		Rotation: [4]float64{0.7071067811865476, 0, 0, 0.7071067811865476},
	}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)
	return doc
}

// ExportGLB сохраняет модель в бинарный glTF
func ExportGLB(m *Model, name, path string) error {
	return gltf.SaveBinary(BuildGLTF(m, name), path)
}
