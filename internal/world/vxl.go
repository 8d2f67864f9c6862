package world

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/annel0/voxel-engine/internal/vec"
)

// Формат VXL: заголовок, затем колонки (y внешний цикл, x внутренний).
// Колонка: последовательность слабов [N S E A] + цвета BGRA:
// N длина слаба в dword (0 у последнего), S..E цвета верхней поверхности,
// A (у следующего слаба) конец нижних цветов предыдущего твердого участка.
const vxlMagic uint32 = 0x09072000

// VXLMaxZ высота карт VXL: координаты слабов хранятся в одном байте
const VXLMaxZ = 256

// DefaultFill значение неявных (неокрашенных) вокселей VXL
const DefaultFill uint32 = NeutralLight<<24 | 0x6b5a40

var (
	ErrBadMagic  = errors.New("vxl: неверная сигнатура")
	ErrTruncated = errors.New("vxl: файл обрезан")
	ErrCorrupt   = errors.New("vxl: поврежденные данные колонки")
	ErrTooTall   = errors.New("vxl: высота мира больше 256")
)

type vxlHeader struct {
	Magic   uint32
	VSIDX   uint32
	VSIDY   uint32
	Pos     [3]float64
	Right   [3]float64
	Down    [3]float64
	Forward [3]float64
}

// LoadOptions ограничения для загружаемых карт
type LoadOptions struct {
	MaxVSID   int
	MaxZ      int
	MipLevels int
}

func toArr(v vec.Vec3Float) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

func fromArr(a [3]float64) vec.Vec3Float { return vec.Vec3Float{X: a[0], Y: a[1], Z: a[2]} }

// ReadVXL разбирает карту VXL
func ReadVXL(r io.Reader, opts LoadOptions) (*World, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("vxl: чтение: %w", err)
	}

	var hdr vxlHeader
	hdrSize := binary.Size(hdr)
	if len(data) < hdrSize {
		return nil, ErrTruncated
	}
	if err := binary.Read(bytes.NewReader(data[:hdrSize]), binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("vxl: заголовок: %w", err)
	}
	if hdr.Magic != vxlMagic {
		return nil, ErrBadMagic
	}
	vsid := int(hdr.VSIDX)
	if hdr.VSIDX != hdr.VSIDY || !IsPowerOfTwo(vsid) {
		return nil, fmt.Errorf("vxl: неподдерживаемый размер %dx%d", hdr.VSIDX, hdr.VSIDY)
	}
	if opts.MaxVSID > 0 && vsid > opts.MaxVSID {
		return nil, fmt.Errorf("vxl: размер %d больше допустимого %d", vsid, opts.MaxVSID)
	}

	w, err := New(vsid, opts.MaxZ, opts.MipLevels)
	if err != nil {
		return nil, err
	}
	w.start = vec.Orientation{
		Pos:     fromArr(hdr.Pos),
		Right:   fromArr(hdr.Right),
		Down:    fromArr(hdr.Down),
		Forward: fromArr(hdr.Forward),
	}

	off := hdrSize
	base := w.levels[0]
	for y := 0; y < vsid; y++ {
		for x := 0; x < vsid; x++ {
			spans, next, err := parseVXLColumn(data, off, base.maxZ)
			if err != nil {
				return nil, fmt.Errorf("колонка (%d,%d): %w", x, y, err)
			}
			base.writeColumn(x, y, spans)
			off = next
		}
	}
	w.GenAllMipmaps()
	w.ClearDirty()
	return w, nil
}

func readColors(data []byte, off, n int) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(data[off+i*4:])
	}
	return out
}

// parseVXLColumn разбирает слабы одной колонки начиная со смещения off
func parseVXLColumn(data []byte, off, maxZ int) ([]Span, int, error) {
	var spans []Span
	z := 0
	for {
		if off+4 > len(data) {
			return nil, 0, ErrTruncated
		}
		n, s, e := int(data[off]), int(data[off+1]), int(data[off+2])
		ntop := e - s + 1
		if s < z || s > maxZ || ntop < 0 || (ntop > 0 && e >= maxZ) {
			return nil, 0, fmt.Errorf("%w: слаб N=%d S=%d E=%d при z=%d", ErrCorrupt, n, s, e, z)
		}
		if off+4+ntop*4 > len(data) {
			return nil, 0, ErrTruncated
		}

		spans = append(spans, Span{Z0: z, Z1: s})
		if ntop > 0 {
			spans = append(spans, Span{Z0: s, Z1: e + 1, Solid: true, Colors: readColors(data, off+4, ntop)})
		}

		if n == 0 {
			// последний слаб: ниже E все твердое
			spans = append(spans, Span{Z0: s + ntop, Z1: maxZ, Solid: true, Fill: DefaultFill})
			return normalizeSpans(spans), off + 4 + ntop*4, nil
		}

		nbot := (n - 1) - ntop
		next := off + n*4
		if nbot < 0 || next+4 > len(data) {
			return nil, 0, fmt.Errorf("%w: длина слаба %d", ErrCorrupt, n)
		}
		a := int(data[next+3])
		if a > maxZ || a-nbot < s+ntop {
			return nil, 0, fmt.Errorf("%w: A=%d при %d нижних цветах", ErrCorrupt, a, nbot)
		}
		spans = append(spans, Span{Z0: s + ntop, Z1: a - nbot, Solid: true, Fill: DefaultFill})
		if nbot > 0 {
			spans = append(spans, Span{Z0: a - nbot, Z1: a, Solid: true, Colors: readColors(data, off+4+ntop*4, nbot)})
		}
		z = a
		off = next
	}
}

// WriteVXL сериализует уровень 0 мира в формате VXL
func WriteVXL(out io.Writer, w *World) error {
	if w.MaxZ() > VXLMaxZ {
		return fmt.Errorf("%w: max_z=%d", ErrTooTall, w.MaxZ())
	}
	bw := bufio.NewWriter(out)
	hdr := vxlHeader{
		Magic:   vxlMagic,
		VSIDX:   uint32(w.VSID()),
		VSIDY:   uint32(w.VSID()),
		Pos:     toArr(w.start.Pos),
		Right:   toArr(w.start.Right),
		Down:    toArr(w.start.Down),
		Forward: toArr(w.start.Forward),
	}
	if err := binary.Write(bw, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("vxl: запись заголовка: %w", err)
	}

	var buf []byte
	for y := 0; y < w.VSID(); y++ {
		for x := 0; x < w.VSID(); x++ {
			var err error
			buf, err = appendVXLColumn(buf[:0], w, x, y)
			if err != nil {
				return fmt.Errorf("колонка (%d,%d): %w", x, y, err)
			}
			if _, err := bw.Write(buf); err != nil {
				return fmt.Errorf("vxl: запись: %w", err)
			}
		}
	}
	return bw.Flush()
}

type solidRegion struct {
	a, b  int // [a, b)
	spans []Span
}

// solidRegions склеивает подряд идущие твердые отрезки
func solidRegions(spans []Span) []solidRegion {
	var out []solidRegion
	for _, s := range spans {
		if !s.Solid {
			continue
		}
		if n := len(out); n > 0 && out[n-1].b == s.Z0 {
			out[n-1].b = s.Z1
			out[n-1].spans = append(out[n-1].spans, s)
			continue
		}
		out = append(out, solidRegion{a: s.Z0, b: s.Z1, spans: []Span{s}})
	}
	return out
}

// colorMask отмечает воксели участка, которые нельзя оставить неявными:
// открытые хотя бы с одной стороны или отличающиеся от DefaultFill
func colorMask(w *World, x, y int, r solidRegion) []bool {
	mask := make([]bool, r.b-r.a)
	mask[0] = true
	if r.b < w.MaxZ() {
		mask[len(mask)-1] = true
	}
	for _, s := range r.spans {
		for z := s.Z0; z < s.Z1; z++ {
			if s.ValueAt(z) != DefaultFill {
				mask[z-r.a] = true
			}
		}
	}
	for _, d := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
		nx, ny := x+d[0], y+d[1]
		if !w.Base().InBounds(nx, ny) {
			for i := range mask {
				mask[i] = true
			}
			return mask
		}
		for _, s := range w.Column(nx, ny) {
			if s.Solid {
				continue
			}
			for z := max(s.Z0, r.a); z < min(s.Z1, r.b); z++ {
				mask[z-r.a] = true
			}
		}
	}
	return mask
}

// longestGap ищет самый длинный участок неокрашиваемых вокселей [t, u)
func longestGap(mask []bool) (int, int) {
	bestT, bestU := len(mask), len(mask)
	for i := 0; i < len(mask); {
		if mask[i] {
			i++
			continue
		}
		j := i
		for j < len(mask) && !mask[j] {
			j++
		}
		if j-i > bestU-bestT {
			bestT, bestU = i, j
		}
		i = j
	}
	return bestT, bestU
}

func appendColor(buf []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(buf, v)
}

func appendRegionColors(buf []byte, r solidRegion, z0, z1 int) []byte {
	for z := z0; z < z1; z++ {
		s, _ := spanAt(r.spans, z)
		buf = appendColor(buf, s.ValueAt(z))
	}
	return buf
}

func appendVXLColumn(buf []byte, w *World, x, y int) ([]byte, error) {
	maxZ := w.MaxZ()
	regions := solidRegions(w.Column(x, y))
	bottomAir := len(regions) == 0 || regions[len(regions)-1].b < maxZ
	if bottomAir && maxZ > 255 {
		return nil, fmt.Errorf("воздух у дна колонки не представим в VXL при max_z=%d", maxZ)
	}

	prevB := 0
	for i, r := range regions {
		mask := colorMask(w, x, y, r)
		final := i == len(regions)-1 && !bottomAir

		if final {
			last := len(mask) - 1
			for !mask[last] {
				last--
			}
			buf = append(buf, 0, byte(r.a), byte(r.a+last), byte(prevB))
			buf = appendRegionColors(buf, r, r.a, r.a+last+1)
			return buf, nil
		}

		// верхние цвета [a, a+t), неявная середина, нижние цвета [a+u, b)
		t, u := longestGap(mask)
		ntop, nbot := t, len(mask)-u
		n := 1 + ntop + nbot
		if n > 255 {
			return nil, fmt.Errorf("участок [%d,%d) слишком высок для VXL", r.a, r.b)
		}
		buf = append(buf, byte(n), byte(r.a), byte(r.a+ntop-1), byte(prevB))
		buf = appendRegionColors(buf, r, r.a, r.a+ntop)
		buf = appendRegionColors(buf, r, r.a+u, r.b)
		prevB = r.b
	}
	buf = append(buf, 0, byte(maxZ), byte(maxZ-1), byte(prevB))
	return buf, nil
}

// LoadVXL читает карту из файла
func LoadVXL(path string, opts LoadOptions) (*World, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadVXL(f, opts)
}

// SaveVXL записывает карту в файл
func SaveVXL(path string, w *World) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteVXL(f, w); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
