package world

const noRun int32 = -1

// run запись арены; колонки связаны индексами next, а не указателями
type run struct {
	z0, z1 int32
	next   int32
	solid  bool
	fill   uint32
	colors []uint32
}

// Level хранилище одного уровня детализации: арена отрезков и голова списка для каждой колонки.
// Отрезки колонки непрерывны, не пересекаются и покрывают [0, maxZ).
type Level struct {
	vsid  int
	maxZ  int
	heads []int32
	runs  []run
	free  []int32
}

// NewLevel создает уровень, заполненный воздухом
func NewLevel(vsid, maxZ int) *Level {
	l := &Level{vsid: vsid, maxZ: maxZ}
	l.Clear()
	return l
}

// Clear возвращает уровень в состояние "только воздух"
func (l *Level) Clear() {
	n := l.vsid * l.vsid
	l.heads = make([]int32, n)
	l.runs = make([]run, 0, n)
	l.free = l.free[:0]
	for i := range l.heads {
		l.heads[i] = l.alloc(run{z0: 0, z1: int32(l.maxZ), next: noRun})
	}
}

func (l *Level) VSID() int { return l.vsid }
func (l *Level) MaxZ() int { return l.maxZ }

// InBounds проверяет, что колонка существует
func (l *Level) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < l.vsid && y < l.vsid
}

// RunCount возвращает число занятых записей арены
func (l *Level) RunCount() int {
	return len(l.runs) - len(l.free)
}

func (l *Level) alloc(r run) int32 {
	if n := len(l.free); n > 0 {
		i := l.free[n-1]
		l.free = l.free[:n-1]
		l.runs[i] = r
		return i
	}
	l.runs = append(l.runs, r)
	return int32(len(l.runs) - 1)
}

func (l *Level) releaseChain(i int32) {
	for i != noRun {
		next := l.runs[i].next
		l.runs[i] = run{next: noRun}
		l.free = append(l.free, i)
		i = next
	}
}

// AppendColumn дописывает отрезки колонки в dst. Цвета разделяются с ареной и
// не должны изменяться вызывающим.
func (l *Level) AppendColumn(dst []Span, x, y int) []Span {
	if !l.InBounds(x, y) {
		return dst
	}
	for i := l.heads[y*l.vsid+x]; i != noRun; i = l.runs[i].next {
		r := &l.runs[i]
		dst = append(dst, Span{Z0: int(r.z0), Z1: int(r.z1), Solid: r.solid, Colors: r.colors, Fill: r.fill})
	}
	return dst
}

// Column возвращает отрезки колонки сверху вниз
func (l *Level) Column(x, y int) []Span {
	return l.AppendColumn(nil, x, y)
}

// IsSolid: вне карты по x/y и выше неба (z < 0) воздух, ниже дна (z >= maxZ) твердо
func (l *Level) IsSolid(x, y, z int) bool {
	if !l.InBounds(x, y) || z < 0 {
		return false
	}
	if z >= l.maxZ {
		return true
	}
	for i := l.heads[y*l.vsid+x]; i != noRun; i = l.runs[i].next {
		r := &l.runs[i]
		if int32(z) < r.z1 {
			return r.solid
		}
	}
	return false
}

// Voxel возвращает значение вокселя и признак твердости
func (l *Level) Voxel(x, y, z int) (uint32, bool) {
	if !l.InBounds(x, y) || z < 0 || z >= l.maxZ {
		return 0, false
	}
	for i := l.heads[y*l.vsid+x]; i != noRun; i = l.runs[i].next {
		r := &l.runs[i]
		if int32(z) < r.z1 {
			if !r.solid {
				return 0, false
			}
			if r.colors != nil {
				return r.colors[int32(z)-r.z0], true
			}
			return r.fill, true
		}
	}
	return 0, false
}

// SurfaceZ возвращает z первого твердого вокселя сверху или maxZ
func (l *Level) SurfaceZ(x, y int) int {
	if !l.InBounds(x, y) {
		return l.maxZ
	}
	for i := l.heads[y*l.vsid+x]; i != noRun; i = l.runs[i].next {
		if l.runs[i].solid {
			return int(l.runs[i].z0)
		}
	}
	return l.maxZ
}

// writeColumn нормализует отрезки и перезаписывает цепочку колонки
func (l *Level) writeColumn(x, y int, spans []Span) {
	spans = normalizeSpans(spans)
	idx := y*l.vsid + x
	l.releaseChain(l.heads[idx])

	head, prev := noRun, noRun
	for _, s := range spans {
		r := run{z0: int32(s.Z0), z1: int32(s.Z1), solid: s.Solid, next: noRun}
		if s.Solid {
			if s.Colors != nil {
				r.colors = s.Colors
			} else {
				r.fill = s.Fill
			}
		}
		i := l.alloc(r)
		if prev == noRun {
			head = i
		} else {
			l.runs[prev].next = i
		}
		prev = i
	}
	l.heads[idx] = head
}

// replaceRange заменяет участок [mid.Z0, mid.Z1) колонки отрезком mid
func (l *Level) replaceRange(x, y int, mid Span) {
	old := l.Column(x, y)
	out := make([]Span, 0, len(old)+2)
	for _, s := range old {
		if s.Z0 < mid.Z0 {
			out = append(out, s.Slice(s.Z0, min(s.Z1, mid.Z0)))
		}
	}
	out = append(out, mid)
	for _, s := range old {
		if s.Z1 > mid.Z1 {
			out = append(out, s.Slice(max(s.Z0, mid.Z1), s.Z1))
		}
	}
	l.writeColumn(x, y, out)
}

// clampRange обрезает [z0, z1) по высоте уровня
func (l *Level) clampRange(z0, z1 int) (int, int, bool) {
	z0 = max(z0, 0)
	z1 = min(z1, l.maxZ)
	return z0, z1, z0 < z1
}

// setSpan делает [z0, z1) твердым или воздухом. Уже твердые воксели сохраняют значения,
// новые получают значение value(z).
func (l *Level) setSpan(x, y, z0, z1 int, solid bool, value func(z int) uint32) bool {
	var ok bool
	if z0, z1, ok = l.clampRange(z0, z1); !ok || !l.InBounds(x, y) {
		return false
	}
	if !solid {
		l.replaceRange(x, y, Span{Z0: z0, Z1: z1})
		return true
	}

	colors := make([]uint32, z1-z0)
	filled := make([]bool, z1-z0)
	for _, s := range l.Column(x, y) {
		if !s.Solid {
			continue
		}
		for z := max(s.Z0, z0); z < min(s.Z1, z1); z++ {
			colors[z-z0] = s.ValueAt(z)
			filled[z-z0] = true
		}
	}
	for i := range colors {
		if !filled[i] {
			colors[i] = value(z0 + i)
		}
	}
	l.replaceRange(x, y, Span{Z0: z0, Z1: z1, Solid: true, Colors: colors})
	return true
}

// fillSpan перезаписывает [z0, z1) однородным твердым отрезком
func (l *Level) fillSpan(x, y, z0, z1 int, fill uint32) bool {
	var ok bool
	if z0, z1, ok = l.clampRange(z0, z1); !ok || !l.InBounds(x, y) {
		return false
	}
	l.replaceRange(x, y, Span{Z0: z0, Z1: z1, Solid: true, Fill: fill})
	return true
}

// setValue меняет значение существующего твердого вокселя
func (l *Level) setValue(x, y, z int, v uint32) bool {
	if !l.InBounds(x, y) || z < 0 || z >= l.maxZ {
		return false
	}
	for i := l.heads[y*l.vsid+x]; i != noRun; i = l.runs[i].next {
		r := &l.runs[i]
		if int32(z) >= r.z1 {
			continue
		}
		if !r.solid {
			return false
		}
		if r.colors != nil {
			r.colors[int32(z)-r.z0] = v
			return true
		}
		if r.fill == v {
			return true
		}
		l.replaceRange(x, y, Span{Z0: z, Z1: z + 1, Solid: true, Colors: []uint32{v}})
		return true
	}
	return false
}
