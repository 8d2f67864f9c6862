package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
)

// Снимок мира .vxz: магия, версия, заголовок, затем сжатые zstd колонки
// (uint32 длина + закодированная колонка, y внешний цикл) и xxhash64 несжатых данных.
const (
	snapshotMagic   = "VXZ1"
	snapshotVersion = uint8(1)
)

var (
	ErrSnapshotMagic    = errors.New("snapshot: неверная сигнатура")
	ErrSnapshotChecksum = errors.New("snapshot: контрольная сумма не совпадает")
)

type snapshotHeader struct {
	VSID     uint32
	MaxZ     uint32
	Revision uint64
	Start    [12]float64
}

// WriteSnapshot сжимает мир целиком
func WriteSnapshot(out io.Writer, w *world.World) error {
	st := w.Start()
	hdr := snapshotHeader{
		VSID:     uint32(w.VSID()),
		MaxZ:     uint32(w.MaxZ()),
		Revision: w.Revision(),
		Start: [12]float64{
			st.Pos.X, st.Pos.Y, st.Pos.Z,
			st.Right.X, st.Right.Y, st.Right.Z,
			st.Down.X, st.Down.Y, st.Down.Z,
			st.Forward.X, st.Forward.Y, st.Forward.Z,
		},
	}

	var content bytes.Buffer
	vsid := w.VSID()
	for y := 0; y < vsid; y++ {
		for x := 0; x < vsid; x++ {
			col := world.EncodeColumn(w.Column(x, y))
			_ = binary.Write(&content, binary.LittleEndian, uint32(len(col)))
			content.Write(col)
		}
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()
	compressed := enc.EncodeAll(content.Bytes(), nil)

	var buf bytes.Buffer
	buf.WriteString(snapshotMagic)
	buf.WriteByte(snapshotVersion)
	_ = binary.Write(&buf, binary.LittleEndian, hdr)
	_ = binary.Write(&buf, binary.LittleEndian, xxhash.Sum64(content.Bytes()))
	buf.Write(compressed)
	_, err = out.Write(buf.Bytes())
	return err
}

// ReadSnapshot восстанавливает мир из снимка
func ReadSnapshot(in io.Reader, mipLevels int) (*world.World, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, err
	}
	if len(data) < len(snapshotMagic)+1 || string(data[:len(snapshotMagic)]) != snapshotMagic {
		return nil, ErrSnapshotMagic
	}
	if v := data[len(snapshotMagic)]; v != snapshotVersion {
		return nil, fmt.Errorf("snapshot: версия %d не поддерживается", v)
	}
	r := bytes.NewReader(data[len(snapshotMagic)+1:])
	var hdr snapshotHeader
	var sum uint64
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("snapshot: заголовок: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &sum); err != nil {
		return nil, fmt.Errorf("snapshot: заголовок: %w", err)
	}

	compressed, _ := io.ReadAll(r)
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	content, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("snapshot: распаковка: %w", err)
	}
	if xxhash.Sum64(content) != sum {
		return nil, ErrSnapshotChecksum
	}

	w, err := world.New(int(hdr.VSID), int(hdr.MaxZ), mipLevels)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	w.SetStart(orientationFromArray(hdr.Start))

	vsid := int(hdr.VSID)
	off := 0
	for y := 0; y < vsid; y++ {
		for x := 0; x < vsid; x++ {
			if off+4 > len(content) {
				return nil, fmt.Errorf("snapshot: колонка (%d,%d): данные обрезаны", x, y)
			}
			n := int(binary.LittleEndian.Uint32(content[off:]))
			off += 4
			if off+n > len(content) {
				return nil, fmt.Errorf("snapshot: колонка (%d,%d): данные обрезаны", x, y)
			}
			spans, err := world.DecodeColumn(content[off:off+n], int(hdr.MaxZ))
			if err != nil {
				return nil, fmt.Errorf("snapshot: колонка (%d,%d): %w", x, y, err)
			}
			if err := w.SetColumn(x, y, spans); err != nil {
				return nil, fmt.Errorf("snapshot: колонка (%d,%d): %w", x, y, err)
			}
			off += n
		}
	}
	w.GenAllMipmaps()
	w.ClearDirty()
	return w, nil
}

// SaveSnapshot записывает снимок в файл
func SaveSnapshot(path string, w *world.World) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteSnapshot(f, w); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadSnapshot читает снимок из файла
func LoadSnapshot(path string, mipLevels int) (*world.World, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSnapshot(f, mipLevels)
}

func orientationFromArray(a [12]float64) vec.Orientation {
	v := func(i int) vec.Vec3Float { return vec.Vec3Float{X: a[i], Y: a[i+1], Z: a[i+2]} }
	return vec.Orientation{Pos: v(0), Right: v(3), Down: v(6), Forward: v(9)}
}
