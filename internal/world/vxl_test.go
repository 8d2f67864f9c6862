package world

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, w *World) *World {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteVXL(&buf, w))
	loaded, err := ReadVXL(&buf, LoadOptions{MaxVSID: 2048, MaxZ: w.MaxZ(), MipLevels: 2})
	require.NoError(t, err)
	return loaded
}

func TestVXL_TwoByTwoMap(t *testing.T) {
	w := newTestWorld(t, 2, 4)
	w.SetVoxel(0, 0, 0, true, RGB(10, 20, 30).Voxel())

	loaded := roundTrip(t, w)
	assert.True(t, loaded.IsSolid(0, 0, 0))
	assert.False(t, loaded.IsSolid(1, 1, 1))
	assert.False(t, loaded.IsSolid(0, 0, 1), "воздух у дна сохраняется")
	assert.True(t, w.Equal(loaded), "поле вокселей должно совпасть")
}

func TestVXL_RoundTripGenerated(t *testing.T) {
	w := newTestWorld(t, 32, 64)
	NewGenerator(7).Generate(w)

	// пещера, нависание и перекрашенный внутренний воксель
	for x := 10; x < 14; x++ {
		w.SetSpan(x, 12, 40, 44, false, nil)
	}
	w.SetSpan(3, 3, 2, 5, true, solidValue(RGB(255, 0, 255)))
	w.SetVoxelValue(20, 20, 62, RGB(1, 2, 3).Voxel())

	loaded := roundTrip(t, w)
	require.True(t, w.Equal(loaded), "load -> save -> load должен сохранять поле")
	assert.Equal(t, w.Start(), loaded.Start(), "ориентация камеры сохраняется")

	// повторный цикл дает тот же файл
	var a, b bytes.Buffer
	require.NoError(t, WriteVXL(&a, w))
	require.NoError(t, WriteVXL(&b, loaded))
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestVXL_BottomAirAtFullDepth(t *testing.T) {
	w := newTestWorld(t, 2, 256)
	var buf bytes.Buffer
	assert.Error(t, WriteVXL(&buf, w), "воздух до дна при max_z=256 не кодируется")

	for x := 0; x < 2; x++ {
		for y := 0; y < 2; y++ {
			w.FillSpan(x, y, 200, 256, DefaultFill)
		}
	}
	loaded := roundTrip(t, w)
	assert.True(t, w.Equal(loaded))
}

func TestVXL_RejectsTallWorld(t *testing.T) {
	w := newTestWorld(t, 4, 512)
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			w.FillSpan(x, y, 300, 512, DefaultFill)
		}
	}
	var buf bytes.Buffer
	err := WriteVXL(&buf, w)
	assert.ErrorIs(t, err, ErrTooTall)
	assert.Zero(t, buf.Len(), "заголовок не должен попасть в выход")
}

func TestVXL_Malformed(t *testing.T) {
	opts := LoadOptions{MaxVSID: 64, MaxZ: 16, MipLevels: 1}

	_, err := ReadVXL(bytes.NewReader([]byte{1, 2, 3}), opts)
	assert.ErrorIs(t, err, ErrTruncated)

	hdr := vxlHeader{Magic: 0xdeadbeef, VSIDX: 2, VSIDY: 2}
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, &hdr))
	_, err = ReadVXL(&buf, opts)
	assert.ErrorIs(t, err, ErrBadMagic)

	hdr = vxlHeader{Magic: vxlMagic, VSIDX: 2, VSIDY: 2}
	buf.Reset()
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, &hdr))
	buf.Write([]byte{0, 20, 20, 0}) // S больше max_z
	_, err = ReadVXL(&buf, opts)
	assert.ErrorIs(t, err, ErrCorrupt)

	hdr = vxlHeader{Magic: vxlMagic, VSIDX: 128, VSIDY: 128}
	buf.Reset()
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, &hdr))
	_, err = ReadVXL(&buf, opts)
	assert.Error(t, err, "размер больше max_vsid")
}

func TestVXL_Files(t *testing.T) {
	w := newTestWorld(t, 4, 8)
	w.SetStart(vec.DefaultOrientation(vec.Vec3Float{X: 1, Y: 2, Z: 3}))
	path := filepath.Join(t.TempDir(), "map.vxl")

	require.NoError(t, SaveVXL(path, w))
	loaded, err := LoadVXL(path, LoadOptions{MaxZ: 8})
	require.NoError(t, err)
	assert.Equal(t, w.Start(), loaded.Start())

	_, err = LoadVXL(filepath.Join(t.TempDir(), "absent.vxl"), LoadOptions{MaxZ: 8})
	assert.Error(t, err)
}

func TestGenerator(t *testing.T) {
	a := newTestWorld(t, 16, 64)
	b := newTestWorld(t, 16, 64)
	NewGenerator(3).Generate(a)
	NewGenerator(3).Generate(b)

	assert.True(t, a.Equal(b), "генерация детерминирована по сиду")
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			z := a.SurfaceZ(x, y)
			require.Less(t, z, 64)
			assert.True(t, a.IsSolid(x, y, 63), "под поверхностью твердо до дна")
			assert.False(t, a.IsSolid(x, y, z-1))
		}
	}
	start := a.Start()
	assert.False(t, a.IsSolid(int(start.Pos.X), int(start.Pos.Y), int(start.Pos.Z)), "камера в воздухе")
}
