package world

import (
	"math"
	"testing"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorld(t *testing.T, vsid, maxZ int) *World {
	t.Helper()
	w, err := New(vsid, maxZ, 3)
	require.NoError(t, err)
	return w
}

func solidValue(c Color) func(int) uint32 {
	return func(int) uint32 { return c.Voxel() }
}

func TestWorld_Creation(t *testing.T) {
	w := newTestWorld(t, 16, 32)

	assert.Equal(t, 16, w.VSID(), "VSID должен совпадать")
	assert.Equal(t, 32, w.MaxZ(), "MaxZ должен совпадать")
	assert.Equal(t, 16, w.MaxXYDimension())
	assert.Equal(t, 3, w.Levels(), "должно быть 3 уровня детализации")
	assert.Equal(t, 8, w.Level(1).VSID())
	assert.Equal(t, 16, w.Level(1).MaxZ())
	assert.Equal(t, 16*16, w.RunCount(), "пустой мир: один отрезок воздуха на колонку")

	_, err := New(12, 32, 1)
	assert.ErrorIs(t, err, ErrInvalidSize, "VSID не степень двойки")
	_, err = New(16, 0, 1)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestWorld_BoundsSemantics(t *testing.T) {
	w := newTestWorld(t, 4, 8)

	assert.False(t, w.IsSolid(-1, 0, 3), "вне карты по x воздух")
	assert.False(t, w.IsSolid(0, 4, 3), "вне карты по y воздух")
	assert.False(t, w.IsSolid(0, 0, -1), "над картой воздух")
	assert.True(t, w.IsSolid(0, 0, 8), "под дном твердо")
}

func TestWorld_SetSpanKeepsInvariant(t *testing.T) {
	w := newTestWorld(t, 4, 16)
	red := RGB(255, 0, 0)
	blue := RGB(0, 0, 255)

	w.SetSpan(1, 1, 4, 10, true, solidValue(red))
	w.SetSpan(1, 1, 8, 12, true, solidValue(blue))
	w.SetSpan(1, 1, 6, 7, false, nil)

	col := w.Column(1, 1)
	require.NoError(t, validateSpans(col, 16), "отрезки должны покрывать колонку")
	for i := 1; i < len(col); i++ {
		assert.False(t, canMerge(col[i-1], col[i]), "соседние отрезки должны быть склеены")
	}

	for z := 0; z < 16; z++ {
		expected := z >= 4 && z < 12 && z != 6
		assert.Equal(t, expected, w.IsSolid(1, 1, z), "z=%d", z)
	}

	v, ok := w.Voxel(1, 1, 9)
	require.True(t, ok)
	assert.Equal(t, red, VoxelColor(v), "существующие воксели сохраняют цвет")
	v, _ = w.Voxel(1, 1, 11)
	assert.Equal(t, blue, VoxelColor(v), "новые воксели получают цвет вставки")

	assert.Equal(t, 1, w.DirtyCount())
	assert.Equal(t, []vec.Vec2{{X: 1, Y: 1}}, w.DirtyColumns())
	w.ClearDirty()
	assert.Equal(t, 0, w.DirtyCount())
}

func TestWorld_SetVoxelValueSplitsUniform(t *testing.T) {
	w := newTestWorld(t, 2, 16)
	w.FillSpan(0, 0, 4, 16, DefaultFill)
	require.Len(t, w.Column(0, 0), 2)

	lit := WithLight(DefaultFill, 200)
	assert.True(t, w.SetVoxelValue(0, 0, 9, lit))
	assert.False(t, w.SetVoxelValue(0, 0, 1, lit), "воздух нельзя перекрасить")

	v, ok := w.Voxel(0, 0, 9)
	require.True(t, ok)
	assert.Equal(t, uint8(200), VoxelLight(v))
	v, _ = w.Voxel(0, 0, 10)
	assert.Equal(t, DefaultFill, v, "соседние воксели не меняются")
	require.NoError(t, validateSpans(w.Column(0, 0), 16))
}

func TestWorld_ArenaReusesFreedRuns(t *testing.T) {
	w := newTestWorld(t, 2, 16)
	base := w.Base()

	for i := 0; i < 50; i++ {
		w.SetVoxel(0, 0, i%16, true, RGB(1, 2, 3).Voxel())
		w.SetVoxel(0, 0, i%16, false, 0)
	}
	assert.Equal(t, 4, base.RunCount(), "после удаления колонка снова один отрезок")
	assert.LessOrEqual(t, len(base.runs), 4+8, "арена не должна расти бесконечно")
}

func TestWorld_SetColumnValidates(t *testing.T) {
	w := newTestWorld(t, 2, 8)

	err := w.SetColumn(0, 0, []Span{{Z0: 0, Z1: 4}, {Z0: 5, Z1: 8, Solid: true, Fill: 1}})
	assert.Error(t, err, "разрыв между отрезками")

	err = w.SetColumn(0, 0, []Span{{Z0: 0, Z1: 4}, {Z0: 4, Z1: 8, Solid: true, Colors: []uint32{1, 2}}})
	assert.Error(t, err, "неверное число цветов")

	err = w.SetColumn(0, 0, []Span{{Z0: 0, Z1: 4}, {Z0: 4, Z1: 8, Solid: true, Fill: 7}})
	require.NoError(t, err)
	assert.Equal(t, 4, w.SurfaceZ(0, 0))
}

func TestWorld_ExposedFaces(t *testing.T) {
	w := newTestWorld(t, 4, 8)
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			w.FillSpan(x, y, 4, 8, DefaultFill)
		}
	}

	assert.Equal(t, FaceNegZ, w.ExposedFaces(1, 1, 4), "поверхность открыта только сверху")
	assert.Equal(t, 0, w.ExposedFaces(1, 1, 6), "внутренний воксель закрыт")
	assert.NotZero(t, w.ExposedFaces(0, 1, 6)&FaceNegX, "граница карты открыта")
	assert.Equal(t, 0, w.ExposedFaces(1, 1, 1), "воздух не имеет граней")
}

func TestColumnCodec(t *testing.T) {
	spans := []Span{
		{Z0: 0, Z1: 3},
		{Z0: 3, Z1: 5, Solid: true, Colors: []uint32{0x80112233, 0x80445566}},
		{Z0: 5, Z1: 8, Solid: true, Fill: DefaultFill},
	}
	data := EncodeColumn(spans)
	decoded, err := DecodeColumn(data, 8)
	require.NoError(t, err)
	assert.Equal(t, spans, decoded)

	_, err = DecodeColumn(data[:len(data)-2], 8)
	assert.Error(t, err, "обрезанные данные")
	_, err = DecodeColumn(data, 9)
	assert.Error(t, err, "колонка не покрывает высоту")
}

func TestColor(t *testing.T) {
	c := RGB(0x12, 0x34, 0x56)
	assert.Equal(t, int32(0x123456), c.Int())
	assert.Equal(t, c, ColorFromInt(c.Int()))
	assert.Equal(t, uint8(0x34), c.G())
	assert.Equal(t, uint32(0x80123456), c.Voxel())
	assert.Equal(t, "#123456", c.String())
	assert.Equal(t, c, Jitter(c, 0, 1, 2, 3))
	assert.Equal(t, Jitter(c, 8, 1, 2, 3), Jitter(c, 8, 1, 2, 3), "дрожание детерминировано")
}

func TestBox(t *testing.T) {
	b := NewBox(vec.Vec3{X: 5, Y: 1, Z: 3}, vec.Vec3{X: 1, Y: 4, Z: 0})
	assert.Equal(t, vec.Vec3{X: 1, Y: 1, Z: 0}, b.Min)
	assert.True(t, b.Contains(vec.Vec3{X: 3, Y: 2, Z: 1}))
	assert.True(t, EmptyBox().Empty())
	assert.Equal(t, b, EmptyBox().Union(b))

	c := b.Expand(2).Clip(4, 4)
	assert.Equal(t, vec.Vec3{}, c.Min)
	assert.Equal(t, vec.Vec3{X: 3, Y: 3, Z: 3}, c.Max)
}

func TestSphereChordsClipToWorld(t *testing.T) {
	w := newTestWorld(t, 16, 16)

	t.Run("малый шар совпадает с перебором", func(t *testing.T) {
		center := vec.Vec3{X: 1, Y: 14, Z: 0}
		const r = 2.5
		got := map[vec.Vec3]bool{}
		w.SphereChords(center, r, func(x, y, z0, z1 int) {
			for z := z0; z < z1; z++ {
				got[vec.Vec3{X: x, Y: y, Z: z}] = true
			}
		})
		want := map[vec.Vec3]bool{}
		for z := 0; z < 16; z++ {
			for y := 0; y < 16; y++ {
				for x := 0; x < 16; x++ {
					p := vec.Vec3{X: x, Y: y, Z: z}
					if float64(p.DistanceSq(center)) <= r*r {
						want[p] = true
					}
				}
			}
		}
		assert.Equal(t, want, got)
	})

	t.Run("огромный радиус обходит только карту", func(t *testing.T) {
		calls := 0
		w.SphereChords(vec.Vec3{X: 8, Y: 8, Z: 8}, 1e300, func(x, y, z0, z1 int) {
			calls++
			assert.True(t, w.Base().InBounds(x, y))
			assert.Equal(t, 0, z0)
			assert.Equal(t, 16, z1)
		})
		assert.Equal(t, 16*16, calls)
	})

	t.Run("шар вне карты", func(t *testing.T) {
		w.SphereChords(vec.Vec3{X: -50, Y: 3, Z: 3}, 4, func(int, int, int, int) {
			t.Fatal("хорд вне карты быть не должно")
		})
		assert.True(t, w.SphereBounds(vec.Vec3{X: -50}, 4).Empty())
		assert.True(t, w.SphereBounds(vec.Vec3{}, math.NaN()).Empty())
	})
}
