package physics

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
)

func testWorld(t *testing.T) *world.World {
	t.Helper()
	w, err := world.New(16, 16, 1)
	require.NoError(t, err)
	stone := func(int) uint32 { return world.RGB(90, 90, 90).Voxel() }
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			w.SetSpan(x, y, 12, 16, true, stone)
		}
	}
	// стена x=8, z 4..11
	for y := 0; y < 16; y++ {
		w.SetSpan(8, y, 4, 12, true, stone)
	}
	return w
}

func TestBoxQueries(t *testing.T) {
	w := testWorld(t)
	assert.True(t, IsVoxelSolid(w, vec.Vec3{X: 8, Y: 3, Z: 5}))
	assert.False(t, IsVoxelSolid(w, vec.Vec3{X: 7, Y: 3, Z: 5}))

	assert.True(t, AllVoxelEmpty(w, vec.Vec3{X: 0, Y: 0, Z: 0}, vec.Vec3{X: 7, Y: 15, Z: 11}))
	assert.False(t, AllVoxelEmpty(w, vec.Vec3{X: 7, Y: 0, Z: 11}, vec.Vec3{X: 0, Y: 15, Z: 12}), "угол включительно, порядок углов любой")
	assert.False(t, AllVoxelEmpty(w, vec.Vec3{X: 7, Y: 0, Z: 0}, vec.Vec3{X: 8, Y: 0, Z: 4}))
}

func TestOverlaps(t *testing.T) {
	w := testWorld(t)
	c := NewSphereCollider(0.5)

	assert.False(t, c.Overlaps(w, vec.Vec3Float{X: 7.5, Y: 5.5, Z: 5.5}), "касание стены")
	assert.True(t, c.Overlaps(w, vec.Vec3Float{X: 7.6, Y: 5.5, Z: 5.5}))
	assert.True(t, c.Overlaps(w, vec.Vec3Float{X: 3, Y: 3, Z: 11.6}), "пол")

	point := NewSphereCollider(-1)
	assert.Equal(t, 0.0, point.Radius)
	assert.True(t, point.Overlaps(w, vec.Vec3Float{X: 8.2, Y: 1, Z: 5}))
}

func TestClipMove_Sliding(t *testing.T) {
	w := testWorld(t)
	start := vec.Vec3Float{X: 6, Y: 4, Z: 8}

	got := ClipMove(w, start, vec.Vec3Float{X: 5, Y: 3, Z: 0}, 0.5)
	assert.InDelta(t, 7.5, got.X, 0.01, "упор в стену по X")
	assert.InDelta(t, 7.0, got.Y, 1e-9, "движение по Y не гасится")
	assert.Equal(t, start.Z, got.Z)

	free := ClipMove(w, start, vec.Vec3Float{X: -2, Y: 1, Z: -1}, 0.5)
	assert.Equal(t, vec.Vec3Float{X: 4, Y: 5, Z: 7}, free)

	inside := vec.Vec3Float{X: 8.5, Y: 4, Z: 8}
	assert.Equal(t, inside, ClipMove(w, inside, vec.Vec3Float{X: -3}, 0.5), "старт внутри твердого")
}

func TestClipMove_NeverPenetrates(t *testing.T) {
	w := testWorld(t)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 300; i++ {
		w.SetVoxel(rng.Intn(16), rng.Intn(16), rng.Intn(12), true, world.RGB(1, 1, 1).Voxel())
	}

	c := NewSphereCollider(0.4)
	for i := 0; i < 500; i++ {
		pos := vec.Vec3Float{X: rng.Float64() * 16, Y: rng.Float64() * 16, Z: rng.Float64() * 12}
		if c.Overlaps(w, pos) {
			continue
		}
		delta := vec.RandUnit(rng).Mul(rng.Float64() * 6)
		got := c.ClipMove(w, pos, delta)
		require.False(t, c.Overlaps(w, got), "позиция %v после сдвига %v из %v", got, delta, pos)
	}
}

func TestCanSee(t *testing.T) {
	w := testWorld(t)

	ok, _ := CanSee(w, vec.Vec3Float{X: 2.5, Y: 2.5, Z: 2.5}, vec.Vec3Float{X: 6.5, Y: 9.5, Z: 10.5})
	assert.True(t, ok)

	ok, hit := CanSee(w, vec.Vec3Float{X: 2.5, Y: 3.5, Z: 6.5}, vec.Vec3Float{X: 12.5, Y: 3.5, Z: 6.5})
	assert.False(t, ok)
	assert.Equal(t, vec.Vec3{X: 8, Y: 3, Z: 6}, hit, "первый воксель стены от a")

	ok, hit = CanSee(w, vec.Vec3Float{X: 12.5, Y: 3.5, Z: 6.5}, vec.Vec3Float{X: 2.5, Y: 3.5, Z: 6.5})
	assert.False(t, ok)
	assert.Equal(t, vec.Vec3{X: 8, Y: 3, Z: 6}, hit)

	ok, hit = CanSee(w, vec.Vec3Float{X: 3.5, Y: 3.5, Z: 2.5}, vec.Vec3Float{X: 5.5, Y: 4.5, Z: 14.5})
	assert.False(t, ok)
	assert.True(t, w.IsSolid(hit.X, hit.Y, hit.Z))
	assert.Equal(t, 12, hit.Z, "пол")

	ok, _ = CanSee(w, vec.Vec3Float{X: 1, Y: 1, Z: 1}, vec.Vec3Float{X: 1, Y: 1, Z: 1})
	assert.True(t, ok)
}

func TestCanSee_MatchesSampling(t *testing.T) {
	w := testWorld(t)
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		w.SetVoxel(rng.Intn(16), rng.Intn(16), rng.Intn(12), true, world.RGB(1, 1, 1).Voxel())
	}
	for i := 0; i < 300; i++ {
		a := vec.Vec3Float{X: rng.Float64() * 16, Y: rng.Float64() * 16, Z: rng.Float64() * 12}
		b := vec.Vec3Float{X: rng.Float64() * 16, Y: rng.Float64() * 16, Z: rng.Float64() * 12}
		ok, hit := CanSee(w, a, b)

		// плотная выборка вдоль отрезка
		const samples = 4000
		first, inHit := -1, -1
		for i := 0; i <= samples; i++ {
			p := a.Add(b.Sub(a).Mul(float64(i) / samples)).Floor()
			if first < 0 && w.IsSolid(p.X, p.Y, p.Z) {
				first = i
			}
			if !ok && inHit < 0 && p == hit {
				inHit = i
			}
		}
		if ok {
			assert.Equal(t, -1, first, "отрезок %v-%v видим, но выборка нашла препятствие", a, b)
			continue
		}
		assert.True(t, w.IsSolid(hit.X, hit.Y, hit.Z))
		if first >= 0 && inHit >= 0 {
			assert.LessOrEqual(t, inHit, first, "воксель %v не первый на отрезке %v-%v", hit, a, b)
		}
	}
}

func TestRaycast(t *testing.T) {
	w := testWorld(t)
	hit, ok := Raycast(w, vec.Vec3Float{X: 3.5, Y: 3.5, Z: 0.5}, vec.Vec3Float{Z: 1}, 100)
	require.True(t, ok)
	assert.Equal(t, vec.Vec3{X: 3, Y: 3, Z: 12}, hit.Voxel)
	assert.Equal(t, vec.Vec3{Z: -1}, hit.Normal)
	assert.InDelta(t, 11.5, hit.Dist, 1e-9)

	_, ok = Raycast(w, vec.Vec3Float{X: 3.5, Y: 3.5, Z: 0.5}, vec.Vec3Float{Z: 1}, 5)
	assert.False(t, ok)
	_, ok = Raycast(w, vec.Vec3Float{}, vec.Vec3Float{}, 5)
	assert.False(t, ok)
}
