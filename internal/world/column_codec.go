package world

import (
	"encoding/binary"
	"fmt"
)

const (
	spanSolid   = 1 << 0
	spanUniform = 1 << 1
)

// EncodeColumn сериализует колонку для хранилища: count, затем [z0 z1 flags (fill|colors)]
func EncodeColumn(spans []Span) []byte {
	buf := make([]byte, 0, 2+len(spans)*9)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(spans)))
	for _, s := range spans {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(s.Z0))
		buf = binary.LittleEndian.AppendUint16(buf, uint16(s.Z1))
		var flags byte
		if s.Solid {
			flags |= spanSolid
			if s.Uniform() {
				flags |= spanUniform
			}
		}
		buf = append(buf, flags)
		switch {
		case !s.Solid:
		case s.Uniform():
			buf = binary.LittleEndian.AppendUint32(buf, s.Fill)
		default:
			for _, c := range s.Colors {
				buf = binary.LittleEndian.AppendUint32(buf, c)
			}
		}
	}
	return buf
}

// DecodeColumn восстанавливает колонку и проверяет инвариант покрытия [0, maxZ)
func DecodeColumn(data []byte, maxZ int) ([]Span, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("колонка: нет счетчика отрезков")
	}
	n := int(binary.LittleEndian.Uint16(data))
	off := 2
	spans := make([]Span, 0, n)
	for i := 0; i < n; i++ {
		if off+5 > len(data) {
			return nil, fmt.Errorf("колонка: обрезан отрезок %d", i)
		}
		s := Span{
			Z0: int(binary.LittleEndian.Uint16(data[off:])),
			Z1: int(binary.LittleEndian.Uint16(data[off+2:])),
		}
		flags := data[off+4]
		off += 5
		s.Solid = flags&spanSolid != 0
		if s.Solid {
			count := 1
			if flags&spanUniform == 0 {
				count = s.Len()
			}
			if count < 0 || off+count*4 > len(data) {
				return nil, fmt.Errorf("колонка: обрезаны цвета отрезка %d", i)
			}
			if flags&spanUniform != 0 {
				s.Fill = binary.LittleEndian.Uint32(data[off:])
			} else {
				s.Colors = readColors(data, off, count)
			}
			off += count * 4
		}
		spans = append(spans, s)
	}
	if err := validateSpans(spans, maxZ); err != nil {
		return nil, err
	}
	return spans, nil
}
