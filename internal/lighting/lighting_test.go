package lighting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
)

// flatWorld мир с ровной землей от z=8 до дна
func flatWorld(t *testing.T) *world.World {
	t.Helper()
	w, err := world.New(16, 16, 1)
	require.NoError(t, err)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			w.SetSpan(x, y, 8, 16, true, func(int) uint32 { return world.RGB(100, 100, 100).Voxel() })
		}
	}
	return w
}

func lightAt(t *testing.T, w *world.World, x, y, z int) uint8 {
	t.Helper()
	v, ok := w.Voxel(x, y, z)
	require.True(t, ok)
	return world.VoxelLight(v)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"none": None, "": None, "Estimated_Normal": EstimatedNormal, "2": MultiPointSource,
	} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseMode("bright")
	assert.Error(t, err)
	assert.Equal(t, "multi_point_source", MultiPointSource.String())
}

func TestEstimateNormal(t *testing.T) {
	w := flatWorld(t)
	n := EstimateNormal(w, 5, 5, 8)
	assert.InDelta(t, 0, n.X, 1e-9)
	assert.InDelta(t, 0, n.Y, 1e-9)
	assert.InDelta(t, -1, n.Z, 1e-9, "нормаль ровной земли смотрит вверх")

	w.SetSpan(6, 5, 8, 12, false, nil)
	side := EstimateNormal(w, 7, 5, 10)
	assert.Less(t, side.X, -0.5, "стена ямы смотрит в сторону -X")
}

func TestUpdate_Modes(t *testing.T) {
	w := flatWorld(t)
	l := New(None)
	box := w.Bounds()

	n := l.Update(w, box)
	// верхний слой и боковые грани крайних колонок (за краем карты воздух)
	assert.Equal(t, 16*16+60*7, n)
	assert.Equal(t, uint8(world.NeutralLight), lightAt(t, w, 3, 3, 8))

	require.NoError(t, l.SetMode(EstimatedNormal))
	assert.Equal(t, uint8(world.NeutralLight), lightAt(t, w, 3, 3, 8), "смена режима не пересчитывает значения")

	l.Update(w, box)
	lit := lightAt(t, w, 3, 3, 8)
	assert.Greater(t, lit, uint8(l.Ambient), "земля освещена солнцем")
	assert.Equal(t, uint8(world.NeutralLight), lightAt(t, w, 3, 3, 9), "невидимые воксели не меняются")

	l.SetSun(vec.Vec3Float{Z: 1})
	l.Update(w, box)
	assert.Equal(t, uint8(l.Ambient), lightAt(t, w, 3, 3, 8), "солнце снизу дает только фон")

	require.NoError(t, l.SetMode(MultiPointSource))
	require.NoError(t, l.AddLight(PointLight{Pos: vec.Vec3Float{X: 3.5, Y: 3.5, Z: 6}, Radius: 6, Intensity: 100}))
	l.Update(w, box)
	near := lightAt(t, w, 3, 3, 8)
	far := lightAt(t, w, 14, 14, 8)
	assert.Greater(t, near, far, "источник освещает ближние воксели")
	assert.Equal(t, uint8(l.Ambient), far)

	assert.Len(t, l.Lights(), 1)
	l.ClearLights()
	assert.Empty(t, l.Lights())
	assert.Error(t, l.AddLight(PointLight{Radius: 0}))
	assert.Error(t, l.SetMode(Mode(7)))
}

func TestSetNormFlash(t *testing.T) {
	w := flatWorld(t)
	New(None).Update(w, w.Bounds())

	box := SetNormFlash(w, vec.Vec3Float{X: 8.5, Y: 8.5, Z: 6}, 4, 60)
	assert.True(t, box.Contains(vec.Vec3{X: 8, Y: 8, Z: 8}))

	center := lightAt(t, w, 8, 8, 8)
	assert.Greater(t, center, uint8(world.NeutralLight))
	assert.Equal(t, uint8(world.NeutralLight), lightAt(t, w, 1, 1, 8), "вне радиуса без изменений")

	for i := 0; i < 10; i++ {
		SetNormFlash(w, vec.Vec3Float{X: 8.5, Y: 8.5, Z: 6}, 4, 60)
	}
	assert.Equal(t, uint8(255), lightAt(t, w, 8, 8, 8), "вспышки складываются до насыщения")

	assert.True(t, SetNormFlash(w, vec.Vec3Float{}, 0, 10).Empty())
}
