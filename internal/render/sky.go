package render

import (
	"fmt"
	"math"

	"github.com/annel0/voxel-engine/internal/vec"
)

// Sky панорама неба в равнопромежуточной проекции: по горизонтали азимут,
// по вертикали угол от зенита (верх строки 0) до надира
type Sky struct {
	Width, Height int
	Pix           []uint32
}

// NewSky проверяет размеры панорамы
func NewSky(width, height int, pix []uint32) (*Sky, error) {
	if width <= 0 || height <= 0 || len(pix) < width*height {
		return nil, fmt.Errorf("панорама неба %dx%d: %d пикселей", width, height, len(pix))
	}
	return &Sky{Width: width, Height: height, Pix: pix}, nil
}

// Sample цвет неба в направлении dir (ось z вниз)
func (s *Sky) Sample(dir vec.Vec3Float) uint32 {
	d := dir.Normalized()
	u := math.Atan2(d.Y, d.X)/(2*math.Pi) + 0.5
	v := math.Acos(math.Max(-1, math.Min(1, -d.Z))) / math.Pi
	x := min(int(u*float64(s.Width)), s.Width-1)
	y := min(int(v*float64(s.Height)), s.Height-1)
	return s.Pix[y*s.Width+max(x, 0)] | 0xFF000000
}
