package sprite

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/annel0/voxel-engine/internal/world"
)

// Формат KV6: заголовок, список поверхностных вокселей (x, затем y, затем z),
// xlen[xsiz] и ylen[xsiz*ysiz] с числом вокселей в срезах, необязательная палитра SPal.
const (
	kv6Magic  uint32 = 0x6c78764b // "Kvxl"
	kv6MaxDim        = 1024

	// Биты видимости граней вокселя KV6
	VisNegX   = 1
	VisPosX   = 2
	VisNegY   = 4
	VisPosY   = 8
	VisTop    = 16
	VisBottom = 32
)

var (
	ErrKV6Magic     = errors.New("kv6: неверная сигнатура")
	ErrKV6Truncated = errors.New("kv6: файл обрезан")
	ErrKV6Corrupt   = errors.New("kv6: поврежденные данные")
)

type kv6Header struct {
	Magic     uint32
	XSiz      int32
	YSiz      int32
	ZSiz      int32
	XPiv      float32
	YPiv      float32
	ZPiv      float32
	NumVoxels int32
}

// kv6Voxel поверхностный воксель в файле
type kv6Voxel struct {
	Col uint32
	Z   uint16
	Vis uint8
	Dir uint8
}

// ReadKV6 разбирает модель KV6. Внутренние воксели восстанавливаются между
// вокселями с битами VisTop и VisBottom и получают цвет верхнего вокселя участка.
func ReadKV6(r io.Reader) (*Model, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("kv6: чтение: %w", err)
	}
	rd := bytes.NewReader(data)

	var hdr kv6Header
	if err := binary.Read(rd, binary.LittleEndian, &hdr); err != nil {
		return nil, ErrKV6Truncated
	}
	if hdr.Magic != kv6Magic {
		return nil, ErrKV6Magic
	}
	xs, ys, zs := int(hdr.XSiz), int(hdr.YSiz), int(hdr.ZSiz)
	if xs <= 0 || ys <= 0 || zs <= 0 || xs > kv6MaxDim || ys > kv6MaxDim || zs > kv6MaxDim {
		return nil, fmt.Errorf("%w: размер %dx%dx%d", ErrKV6Corrupt, xs, ys, zs)
	}
	if hdr.NumVoxels < 0 || int64(hdr.NumVoxels)*8 > int64(rd.Len()) {
		return nil, fmt.Errorf("%w: %d вокселей", ErrKV6Truncated, hdr.NumVoxels)
	}

	voxels := make([]kv6Voxel, hdr.NumVoxels)
	if err := binary.Read(rd, binary.LittleEndian, voxels); err != nil {
		return nil, ErrKV6Truncated
	}
	xlen := make([]uint32, xs)
	if err := binary.Read(rd, binary.LittleEndian, xlen); err != nil {
		return nil, ErrKV6Truncated
	}
	ylen := make([]uint16, xs*ys)
	if err := binary.Read(rd, binary.LittleEndian, ylen); err != nil {
		return nil, ErrKV6Truncated
	}
	// палитра SPal не используется

	m, err := NewModel(xs, ys, zs, pivotVec(hdr.XPiv, hdr.YPiv, hdr.ZPiv))
	if err != nil {
		return nil, err
	}

	total := 0
	for _, n := range ylen {
		total += int(n)
	}
	if total != len(voxels) {
		return nil, fmt.Errorf("%w: ylen описывает %d вокселей из %d", ErrKV6Corrupt, total, len(voxels))
	}

	vi := 0
	for x := 0; x < xs; x++ {
		sum := 0
		for y := 0; y < ys; y++ {
			n := int(ylen[x*ys+y])
			sum += n
			if err := fillKV6Column(m, x, y, voxels[vi:vi+n]); err != nil {
				return nil, fmt.Errorf("колонка (%d,%d): %w", x, y, err)
			}
			vi += n
		}
		if sum != int(xlen[x]) {
			return nil, fmt.Errorf("%w: xlen[%d]=%d, а ylen дает %d", ErrKV6Corrupt, x, xlen[x], sum)
		}
	}
	return m, nil
}

// fillKV6Column восстанавливает колонку модели по ее поверхностным вокселям
func fillKV6Column(m *Model, x, y int, vox []kv6Voxel) error {
	inside := false
	var fill uint32
	prevZ := -1
	for _, v := range vox {
		z := int(v.Z)
		if z <= prevZ || z >= m.ZSize {
			return fmt.Errorf("%w: z=%d после %d", ErrKV6Corrupt, z, prevZ)
		}
		if inside {
			for iz := prevZ + 1; iz < z; iz++ {
				if err := m.Set(x, y, iz, fill); err != nil {
					return err
				}
			}
		}
		if v.Vis&VisTop != 0 {
			inside = true
			fill = v.Col
		}
		if err := m.Set(x, y, z, v.Col); err != nil {
			return err
		}
		if v.Vis&VisBottom != 0 {
			inside = false
		}
		prevZ = z
	}
	return nil
}

// WriteKV6 сохраняет модель: записываются только воксели с открытыми гранями
func WriteKV6(w io.Writer, m *Model) error {
	var voxels []kv6Voxel
	xlen := make([]uint32, m.XSize)
	ylen := make([]uint16, m.XSize*m.YSize)

	for x := 0; x < m.XSize; x++ {
		for y := 0; y < m.YSize; y++ {
			n := 0
			for _, s := range m.Column(x, y) {
				for z := s.Z0; z < s.Z1; z++ {
					vis := m.exposed(x, y, z)
					if vis == 0 {
						continue
					}
					voxels = append(voxels, kv6Voxel{
						Col: world.WithLight(s.ValueAt(z), world.NeutralLight),
						Z:   uint16(z),
						Vis: uint8(vis),
						Dir: NearestNormal(faceNormal(vis)),
					})
					n++
				}
			}
			if n > 0xFFFF {
				return fmt.Errorf("kv6: колонка (%d,%d) содержит %d вокселей", x, y, n)
			}
			ylen[x*m.YSize+y] = uint16(n)
			xlen[x] += uint32(n)
		}
	}

	hdr := kv6Header{
		Magic:     kv6Magic,
		XSiz:      int32(m.XSize),
		YSiz:      int32(m.YSize),
		ZSiz:      int32(m.ZSize),
		XPiv:      float32(m.Pivot.X),
		YPiv:      float32(m.Pivot.Y),
		ZPiv:      float32(m.Pivot.Z),
		NumVoxels: int32(len(voxels)),
	}
	bw := bufio.NewWriter(w)
	for _, part := range []any{hdr, voxels, xlen, ylen} {
		if err := binary.Write(bw, binary.LittleEndian, part); err != nil {
			return fmt.Errorf("kv6: запись: %w", err)
		}
	}
	return bw.Flush()
}

// LoadKV6 читает модель из файла
func LoadKV6(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadKV6(bufio.NewReader(f))
}

// SaveKV6 сохраняет модель в файл
func SaveKV6(path string, m *Model) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteKV6(f, m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
