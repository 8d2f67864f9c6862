package sprite

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
)

func boxModel(t *testing.T, xs, ys, zs int, c world.Color) *Model {
	t.Helper()
	m, err := NewModel(xs, ys, zs, vec.Vec3Float{X: float64(xs) / 2, Y: float64(ys) / 2, Z: float64(zs) / 2})
	require.NoError(t, err)
	for x := 0; x < xs; x++ {
		for y := 0; y < ys; y++ {
			for z := 0; z < zs; z++ {
				require.NoError(t, m.Set(x, y, z, c.Voxel()))
			}
		}
	}
	return m
}

func TestModel_Set(t *testing.T) {
	m, err := NewModel(2, 2, 8, vec.Vec3Float{})
	require.NoError(t, err)

	require.NoError(t, m.Set(0, 0, 1, 1))
	require.NoError(t, m.Set(0, 0, 2, 2))
	require.NoError(t, m.Set(0, 0, 5, 5))
	require.NoError(t, m.Set(0, 0, 2, 7), "перезапись существующего вокселя")
	assert.Error(t, m.Set(0, 0, 4, 4), "вставка выше последнего отрезка не поддерживается")
	assert.Error(t, m.Set(3, 0, 0, 1), "вне модели")

	assert.Len(t, m.Column(0, 0), 2)
	v, ok := m.Voxel(0, 0, 2)
	assert.True(t, ok)
	assert.Equal(t, uint32(7), v)
	assert.False(t, m.IsSolid(0, 0, 3))
	assert.Equal(t, 3, m.VoxelCount())

	_, err = NewModel(0, 1, 1, vec.Vec3Float{})
	assert.Error(t, err)
}

func TestKV6_RoundTrip(t *testing.T) {
	red := world.RGB(200, 10, 10)
	m := boxModel(t, 3, 4, 5, red)
	// полость и отдельный воксель другого цвета
	m.columns[1*m.YSize+1] = []world.Span{
		{Z0: 0, Z1: 1, Solid: true, Colors: []uint32{red.Voxel()}},
		{Z0: 3, Z1: 5, Solid: true, Colors: []uint32{world.RGB(0, 0, 255).Voxel(), red.Voxel()}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteKV6(&buf, m))

	got, err := ReadKV6(&buf)
	require.NoError(t, err)
	assert.Equal(t, m.XSize, got.XSize)
	assert.Equal(t, m.YSize, got.YSize)
	assert.Equal(t, m.ZSize, got.ZSize)
	assert.InDelta(t, m.Pivot.X, got.Pivot.X, 1e-6)
	assert.Equal(t, m.VoxelCount(), got.VoxelCount(), "внутренние воксели должны восстановиться")

	for x := 0; x < m.XSize; x++ {
		for y := 0; y < m.YSize; y++ {
			for z := 0; z < m.ZSize; z++ {
				want, wantOK := m.Voxel(x, y, z)
				v, ok := got.Voxel(x, y, z)
				require.Equal(t, wantOK, ok, "воксель (%d,%d,%d)", x, y, z)
				if ok {
					assert.Equal(t, world.VoxelColor(want), world.VoxelColor(v), "цвет (%d,%d,%d)", x, y, z)
				}
			}
		}
	}
}

func TestKV6_Malformed(t *testing.T) {
	_, err := ReadKV6(bytes.NewReader([]byte("Kvx")))
	assert.ErrorIs(t, err, ErrKV6Truncated)

	_, err = ReadKV6(bytes.NewReader(make([]byte, 64)))
	assert.ErrorIs(t, err, ErrKV6Magic)

	var buf bytes.Buffer
	require.NoError(t, WriteKV6(&buf, boxModel(t, 2, 2, 2, world.RGB(1, 2, 3))))
	data := buf.Bytes()
	_, err = ReadKV6(bytes.NewReader(data[:len(data)-3]))
	assert.ErrorIs(t, err, ErrKV6Truncated)
}

func TestKV6_Files(t *testing.T) {
	path := filepath.Join(t.TempDir(), "box.kv6")
	require.NoError(t, SaveKV6(path, boxModel(t, 2, 3, 4, world.RGB(9, 9, 9))))

	m, err := LoadKV6(path)
	require.NoError(t, err)
	assert.Equal(t, 24, m.VoxelCount())

	_, err = LoadKV6(filepath.Join(t.TempDir(), "missing.kv6"))
	assert.Error(t, err)
}

func TestNormals(t *testing.T) {
	for i := 0; i < NormalCount; i++ {
		assert.InDelta(t, 1.0, Normal(uint8(i)).Length(), 1e-9)
	}
	up := vec.Vec3Float{Z: -1}
	assert.Greater(t, Normal(NearestNormal(up)).Dot(up), 0.95)
	assert.Equal(t, vec.Vec3Float{}, Normal(255))
}

func TestSprite_Transforms(t *testing.T) {
	s := NewCallerOwned(boxModel(t, 4, 4, 4, world.RGB(1, 1, 1)), "box")
	s.Pos = vec.Vec3Float{X: 10, Y: 20, Z: 30}
	s.Rotate(vec.Vec3Float{Z: 1}, 0.7)

	p := vec.Vec3Float{X: 1.5, Y: 3, Z: 0.25}
	w := s.LocalToWorld(p)
	back, ok := s.WorldToLocal(w)
	require.True(t, ok)
	assert.InDelta(t, p.X, back.X, 1e-9)
	assert.InDelta(t, p.Y, back.Y, 1e-9)
	assert.InDelta(t, p.Z, back.Z, 1e-9)

	s.Place(s.Pos, vec.Vec3Float{X: 1}, vec.Vec3Float{Y: 1}, vec.Vec3Float{Z: 1})
	b := s.WorldBounds()
	assert.Equal(t, vec.Vec3{X: 8, Y: 18, Z: 28}, b.Min)
	assert.Equal(t, vec.Vec3{X: 11, Y: 21, Z: 31}, b.Max)

	s.Place(s.Pos, vec.Vec3Float{X: 1}, vec.Vec3Float{X: 1}, vec.Vec3Float{Z: 1})
	_, ok = s.WorldToLocal(w)
	assert.False(t, ok, "вырожденный базис")
}

func TestRegistry_Ownership(t *testing.T) {
	path := filepath.Join(t.TempDir(), "box.kv6")
	require.NoError(t, SaveKV6(path, boxModel(t, 2, 2, 2, world.RGB(5, 5, 5))))

	r := NewRegistry()
	a, err := r.Load(path)
	require.NoError(t, err)
	b, err := r.Load(path)
	require.NoError(t, err)

	assert.Equal(t, EngineManaged, a.Owner)
	assert.Same(t, a.Model, b.Model, "модель кэшируется по пути")
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, r.Count())

	got, ok := r.Get(a.ID)
	assert.True(t, ok)
	assert.Same(t, a, got)

	assert.ErrorIs(t, r.Release(a), ErrEngineManaged)
	assert.False(t, a.Released())

	own := NewCallerOwned(boxModel(t, 1, 1, 1, world.RGB(1, 1, 1)), "own")
	assert.NoError(t, r.Release(own))
	assert.True(t, own.Released())
	assert.Nil(t, own.Model)
	assert.ErrorIs(t, r.Release(own), ErrAlreadyReleased)

	_, err = r.Load(filepath.Join(t.TempDir(), "nope.kv6"))
	assert.Error(t, err)

	r.CloseAll()
	assert.True(t, a.Released())
	assert.Equal(t, 0, r.Count())
	_, err = r.Load(path)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMelt(t *testing.T) {
	w, err := world.New(32, 32, 1)
	require.NoError(t, err)
	stone := world.RGB(100, 100, 100)
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			w.SetSpan(x, y, 16, 32, true, func(int) uint32 { return stone.Voxel() })
		}
	}
	center := vec.Vec3{X: 16, Y: 16, Z: 16}
	r := 3.5

	expected := 0
	var inside []vec.Vec3
	for z := 10; z <= 22; z++ {
		for y := 10; y <= 22; y++ {
			for x := 10; x <= 22; x++ {
				p := vec.Vec3{X: x, Y: y, Z: z}
				if float64(p.DistanceSq(center)) <= r*r {
					inside = append(inside, p)
					if w.IsSolid(x, y, z) {
						expected++
					}
				}
			}
		}
	}

	s, count, err := Melt(w, center, r)
	require.NoError(t, err)
	assert.Equal(t, expected, count)
	assert.Equal(t, CallerOwned, s.Owner)
	assert.Equal(t, count, s.Model.VoxelCount())
	assert.Equal(t, center.Center(), s.Pos)
	for _, p := range inside {
		assert.False(t, w.IsSolid(p.X, p.Y, p.Z), "воксель %v должен быть удален", p)
	}
	assert.True(t, w.IsSolid(16, 16, 20), "вне шара мир не меняется")

	// центр спрайта переводится в центр исходного вокселя
	assert.Equal(t, center.Center(), s.LocalToWorld(vec.Vec3Float{X: 3.5, Y: 3.5, Z: 3.5}))

	empty, n, err := Melt(w, center, r)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, empty.Model.VoxelCount())

	_, _, err = Melt(w, center, -1)
	assert.Error(t, err)
}

func TestMeltClipsToWorld(t *testing.T) {
	w, err := world.New(32, 32, 1)
	require.NoError(t, err)
	stone := world.RGB(90, 90, 90)
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			w.SetSpan(x, y, 16, 32, true, func(int) uint32 { return stone.Voxel() })
		}
	}

	center := vec.Vec3{X: 0, Y: 31, Z: 20}
	s, count, err := Melt(w, center, 1e12)
	require.NoError(t, err)
	assert.Equal(t, 32*32*16, count)
	assert.Equal(t, count, s.Model.VoxelCount())
	assert.LessOrEqual(t, s.Model.XSize, 32)
	assert.LessOrEqual(t, s.Model.YSize, 32)
	assert.LessOrEqual(t, s.Model.ZSize, 32)
	assert.False(t, w.IsSolid(31, 0, 31))
	// модельный воксель (0,0,0) соответствует углу карты
	assert.Equal(t, vec.Vec3Float{X: 0.5, Y: 0.5, Z: 0.5}, s.LocalToWorld(vec.Vec3Float{X: 0.5, Y: 0.5, Z: 0.5}))

	outside, n, err := Melt(w, vec.Vec3{X: -100, Y: -100, Z: 5}, 3)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, outside.Model.VoxelCount())

	_, _, err = Melt(w, center, math.Inf(1))
	assert.Error(t, err)
}

func TestGreedyMeshAndGLB(t *testing.T) {
	one := boxModel(t, 1, 1, 1, world.RGB(255, 0, 0))
	mesh := GreedyMesh(one)
	assert.Len(t, mesh.Positions, 24, "шесть граней по четыре вершины")
	assert.Len(t, mesh.Indices, 36)

	bar := boxModel(t, 4, 1, 1, world.RGB(0, 255, 0))
	assert.Len(t, GreedyMesh(bar).Indices, 36, "грани одного цвета объединяются")

	path := filepath.Join(t.TempDir(), "box.glb")
	require.NoError(t, ExportGLB(bar, "bar", path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	doc, err := gltf.Open(path)
	require.NoError(t, err)
	require.Len(t, doc.Meshes, 1)
	prim := doc.Meshes[0].Primitives[0]
	for _, attr := range []string{gltf.POSITION, gltf.NORMAL, gltf.COLOR_0} {
		idx, ok := prim.Attributes[attr]
		require.True(t, ok, attr)
		assert.Less(t, idx, len(doc.Accessors))
	}
	require.NotNil(t, prim.Indices)
	assert.Equal(t, 36, doc.Accessors[*prim.Indices].Count)
	require.Len(t, doc.Materials, 1)
	assert.Equal(t, "voxel", doc.Materials[0].Name)
}
