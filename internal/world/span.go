package world

import "fmt"

// Span отрезок колонки [Z0, Z1) одного состояния
type Span struct {
	Z0, Z1 int
	Solid  bool
	// Colors плотные значения вокселей твердого отрезка (len == Z1-Z0).
	// nil означает однородный отрезок со значением Fill.
	Colors []uint32
	Fill   uint32
}

// Len возвращает высоту отрезка
func (s Span) Len() int {
	return s.Z1 - s.Z0
}

// Uniform истинно для однородного твердого отрезка
func (s Span) Uniform() bool {
	return s.Colors == nil
}

// ValueAt возвращает значение вокселя z внутри отрезка
func (s Span) ValueAt(z int) uint32 {
	if s.Colors != nil {
		return s.Colors[z-s.Z0]
	}
	return s.Fill
}

// Slice возвращает часть отрезка [a, b); цвета разделяются с исходным отрезком
func (s Span) Slice(a, b int) Span {
	out := Span{Z0: a, Z1: b, Solid: s.Solid, Fill: s.Fill}
	if s.Colors != nil {
		out.Colors = s.Colors[a-s.Z0 : b-s.Z0 : b-s.Z0]
	}
	return out
}

func canMerge(a, b Span) bool {
	if a.Solid != b.Solid {
		return false
	}
	if !a.Solid {
		return true
	}
	if a.Uniform() && b.Uniform() {
		return a.Fill == b.Fill
	}
	return !a.Uniform() && !b.Uniform()
}

func merge(a, b Span) Span {
	out := Span{Z0: a.Z0, Z1: b.Z1, Solid: a.Solid, Fill: a.Fill}
	if a.Solid && a.Colors != nil {
		out.Colors = make([]uint32, 0, out.Len())
		out.Colors = append(out.Colors, a.Colors...)
		out.Colors = append(out.Colors, b.Colors...)
	}
	return out
}

// normalizeSpans убирает пустые отрезки и склеивает соседние совместимые
func normalizeSpans(in []Span) []Span {
	out := make([]Span, 0, len(in))
	for _, s := range in {
		if s.Z1 <= s.Z0 {
			continue
		}
		if !s.Solid {
			s.Colors = nil
			s.Fill = 0
		}
		if n := len(out); n > 0 && canMerge(out[n-1], s) {
			out[n-1] = merge(out[n-1], s)
			continue
		}
		out = append(out, s)
	}
	return out
}

// validateSpans проверяет, что отрезки непрерывно покрывают [0, maxZ)
func validateSpans(spans []Span, maxZ int) error {
	z := 0
	for i, s := range spans {
		if s.Z1 < s.Z0 {
			return fmt.Errorf("отрезок %d перевернут: [%d,%d)", i, s.Z0, s.Z1)
		}
		if s.Z0 != z {
			return fmt.Errorf("отрезок %d начинается с %d, ожидалось %d", i, s.Z0, z)
		}
		if s.Solid && s.Colors != nil && len(s.Colors) != s.Len() {
			return fmt.Errorf("отрезок %d: %d цветов на высоту %d", i, len(s.Colors), s.Len())
		}
		z = s.Z1
	}
	if z != maxZ {
		return fmt.Errorf("колонка заканчивается на %d, ожидалось %d", z, maxZ)
	}
	return nil
}

// spanAt ищет отрезок, содержащий z
func spanAt(spans []Span, z int) (Span, bool) {
	for _, s := range spans {
		if z >= s.Z0 && z < s.Z1 {
			return s, true
		}
	}
	return Span{}, false
}
