package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-engine/internal/logging"
)

func TestMain(m *testing.M) {
	logging.LogDir = ""
	os.Exit(m.Run())
}

func TestGenSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	vxl := filepath.Join(dir, "map.vxl")
	vxz := filepath.Join(dir, "map.vxz")
	back := filepath.Join(dir, "back.vxl")

	require.NoError(t, runGen([]string{"-out", vxl, "-vsid", "64", "-maxz", "64", "-seed", "3"}))
	require.NoError(t, runSnapshot([]string{"-in", vxl, "-out", vxz}))
	require.NoError(t, runSnapshot([]string{"-in", vxz, "-out", back}))

	a, err := loadMap(vxl, 1)
	require.NoError(t, err)
	b, err := loadMap(back, 1)
	require.NoError(t, err)
	assert.True(t, a.Equal(b))

	assert.NoError(t, runInfo([]string{"-in", vxz}))
	assert.ErrorIs(t, runInfo(nil), errMissingPath)
}

func TestRenderWritesPNG(t *testing.T) {
	dir := t.TempDir()
	vxl := filepath.Join(dir, "map.vxl")
	png := filepath.Join(dir, "frame.png")

	require.NoError(t, runGen([]string{"-out", vxl, "-vsid", "64", "-maxz", "64", "-seed", "5"}))
	require.NoError(t, runRender([]string{"-in", vxl, "-out", png, "-w", "48", "-h", "32", "-lighting", "normal", "-pitch", "20"}))

	st, err := os.Stat(png)
	require.NoError(t, err)
	assert.Greater(t, st.Size(), int64(0))

	opts := renderOptions{in: vxl, out: png, width: 48, height: 32, angInc: 1, mode: "normal", fog: -1}

	opts.pitch = 20
	down, err := renderFrame(opts)
	require.NoError(t, err)
	assert.Greater(t, down.Hits, 0, "взгляд вниз должен попадать в рельеф")

	opts.pitch = -60
	up, err := renderFrame(opts)
	require.NoError(t, err)
	assert.Greater(t, down.Hits, up.Hits)

	opts.mode = "bogus"
	_, err = renderFrame(opts)
	assert.Error(t, err)
}

func TestParseVec(t *testing.T) {
	v, err := parseVec("1, 2.5,-3")
	require.NoError(t, err)
	assert.Equal(t, 2.5, v.Y)
	assert.Equal(t, -3.0, v.Z)

	_, err = parseVec("1,2")
	assert.Error(t, err)
	_, err = loadMap("x.obj", 1)
	assert.Error(t, err)
}
