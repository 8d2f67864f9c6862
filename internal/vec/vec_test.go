package vec

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAxisRotate(t *testing.T) {
	t.Run("поворот вокруг Z на 90 градусов", func(t *testing.T) {
		r := AxisRotate(Vec3Float{X: 1}, Vec3Float{Z: 1}, math.Pi/2)
		assert.InDelta(t, 0, r.X, 1e-9)
		assert.InDelta(t, 1, r.Y, 1e-9)
		assert.InDelta(t, 0, r.Z, 1e-9)
	})

	t.Run("совпадает с ZRotate", func(t *testing.T) {
		v := Vec3Float{X: 0.3, Y: -2, Z: 5}
		a := AxisRotate(v, Vec3Float{Z: 1}, 1.1)
		b := ZRotate(v, 1.1)
		assert.InDelta(t, a.X, b.X, 1e-9)
		assert.InDelta(t, a.Y, b.Y, 1e-9)
		assert.InDelta(t, a.Z, b.Z, 1e-9)
	})

	t.Run("нулевая ось не меняет вектор", func(t *testing.T) {
		v := Vec3Float{X: 1, Y: 2, Z: 3}
		assert.Equal(t, v, AxisRotate(v, Vec3Float{}, 1))
	})
}

func TestOrientationRotateKeepsBasis(t *testing.T) {
	o := DefaultOrientation(Vec3Float{X: 5})
	r := o.Rotate(Vec3Float{X: 1, Y: 1, Z: 1}, 0.7)

	assert.Equal(t, o.Pos, r.Pos)
	assert.InDelta(t, 0, r.Right.Dot(r.Down), 1e-9)
	assert.InDelta(t, 0, r.Right.Dot(r.Forward), 1e-9)
	assert.InDelta(t, 1, r.Forward.Length(), 1e-9)
}

func TestRandUnit(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		assert.InDelta(t, 1, RandUnit(rng).Length(), 1e-9)
	}
}

func TestVec3Helpers(t *testing.T) {
	a := Vec3{X: 1, Y: 5, Z: -2}
	b := Vec3{X: 3, Y: 2, Z: 0}

	assert.Equal(t, Vec3{X: 1, Y: 2, Z: -2}, a.Min(b))
	assert.Equal(t, Vec3{X: 3, Y: 5, Z: 0}, a.Max(b))
	assert.Equal(t, 4+9+4, a.DistanceSq(b))
	assert.Equal(t, Vec3{X: -1, Y: 0, Z: 3}, Vec3Float{X: -0.5, Y: 0.9, Z: 3.2}.Floor())
}
