package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenMipmaps(t *testing.T) {
	w := newTestWorld(t, 8, 16)

	// один воксель даёт твердый грубый воксель на каждом уровне
	w.SetVoxel(3, 5, 9, true, RGB(200, 100, 50).Voxel())
	w.GenAllMipmaps()

	l1 := w.Level(1)
	assert.True(t, l1.IsSolid(1, 2, 4), "уровень 1: (3,5,9)>>1")
	assert.False(t, l1.IsSolid(1, 2, 3))
	v, ok := l1.Voxel(1, 2, 4)
	require.True(t, ok)
	assert.Equal(t, RGB(200, 100, 50), VoxelColor(v), "единственный потомок задаёт цвет")

	l2 := w.Level(2)
	assert.True(t, l2.IsSolid(0, 1, 2))
	for lv := 1; lv < w.Levels(); lv++ {
		l := w.Level(lv)
		for y := 0; y < l.VSID(); y++ {
			for x := 0; x < l.VSID(); x++ {
				require.NoError(t, validateSpans(l.Column(x, y), l.MaxZ()), "уровень %d колонка (%d,%d)", lv, x, y)
			}
		}
	}
}

func TestGenMipmapsAveragesUniform(t *testing.T) {
	w := newTestWorld(t, 4, 8)
	w.FillSpan(0, 0, 4, 8, 0x80000000|0x646464)
	w.FillSpan(1, 0, 4, 8, 0x80000000|0xC8C8C8)
	w.GenMipmaps(0, 0, 1, 1)

	col := w.Level(1).Column(0, 0)
	require.Len(t, col, 2)
	assert.True(t, col[1].Uniform(), "однородные потомки дают однородный отрезок")
	assert.Equal(t, uint32(0x80969696), col[1].Fill)
	assert.Equal(t, 2, col[1].Z0)
}

func TestGenMipmapsOddBoundary(t *testing.T) {
	w := newTestWorld(t, 2, 8)
	w.FillSpan(0, 0, 3, 8, DefaultFill)
	w.GenAllMipmaps()

	l1 := w.Level(1)
	assert.False(t, l1.IsSolid(0, 0, 0))
	assert.True(t, l1.IsSolid(0, 0, 1), "воксель z=1 покрывает потомков 2..3")
	assert.True(t, l1.IsSolid(0, 0, 3))
}
