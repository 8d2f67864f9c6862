package world

import "sort"

// GenMipmaps пересчитывает уровни детализации над прямоугольником колонок [x0,x1]x[y0,y1].
// Грубый воксель твердый, если твердый хотя бы один из 8 потомков; значение усредняется.
func (w *World) GenMipmaps(x0, y0, x1, y1 int) {
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	x0, y0 = max(x0, 0), max(y0, 0)
	x1, y1 = min(x1, w.VSID()-1), min(y1, w.VSID()-1)
	if x0 > x1 || y0 > y1 {
		return
	}

	var children [4][]Span
	for lv := 1; lv < len(w.levels); lv++ {
		x0, y0, x1, y1 = x0>>1, y0>>1, x1>>1, y1>>1
		src, dst := w.levels[lv-1], w.levels[lv]
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				for i := 0; i < 4; i++ {
					children[i] = src.AppendColumn(children[i][:0], 2*x+(i&1), 2*y+(i>>1))
				}
				dst.writeColumn(x, y, downsample(children[:], src.maxZ, dst.maxZ))
			}
		}
	}
	w.revision++
}

// GenAllMipmaps пересчитывает мипмапы всей карты
func (w *World) GenAllMipmaps() {
	w.GenMipmaps(0, 0, w.VSID()-1, w.VSID()-1)
}

// downsample строит грубую колонку из четырех колонок-потомков
func downsample(children [][]Span, srcMaxZ, dstMaxZ int) []Span {
	// Границы сегментов, внутри которых каждый потомок однороден
	bounds := []int{0, dstMaxZ}
	for _, col := range children {
		for _, s := range col {
			bounds = append(bounds, s.Z0/2, (s.Z0+1)/2)
		}
	}
	sort.Ints(bounds)

	out := make([]Span, 0, 8)
	for i := 0; i+1 < len(bounds); i++ {
		s0, s1 := bounds[i], min(bounds[i+1], dstMaxZ)
		if s0 >= s1 {
			continue
		}
		out = append(out, downsampleSegment(children, srcMaxZ, s0, s1))
	}
	return out
}

func downsampleSegment(children [][]Span, srcMaxZ, s0, s1 int) Span {
	lo, hi := 2*s0, min(2*s1, srcMaxZ)
	homogeneous := true
	var solid []Span
	for _, col := range children {
		s, ok := spanAt(col, lo)
		if !ok || s.Z1 < hi {
			homogeneous = false
			break
		}
		if s.Solid {
			solid = append(solid, s)
		}
	}

	if homogeneous {
		if len(solid) == 0 {
			return Span{Z0: s0, Z1: s1}
		}
		uniform := true
		for _, s := range solid {
			uniform = uniform && s.Uniform()
		}
		if uniform {
			var acc colorAcc
			for _, s := range solid {
				acc.add(s.Fill)
			}
			return Span{Z0: s0, Z1: s1, Solid: true, Fill: acc.avg()}
		}
	}

	// Общий случай: по вокселю. Неоднородный сегмент всегда длины 1.
	colors := make([]uint32, s1-s0)
	for z := s0; z < s1; z++ {
		var acc colorAcc
		for _, col := range children {
			for dz := 0; dz < 2; dz++ {
				zz := 2*z + dz
				if zz >= srcMaxZ {
					continue
				}
				if s, ok := spanAt(col, zz); ok && s.Solid {
					acc.add(s.ValueAt(zz))
				}
			}
		}
		if acc.n == 0 {
			return Span{Z0: s0, Z1: s1}
		}
		colors[z-s0] = acc.avg()
	}
	return Span{Z0: s0, Z1: s1, Solid: true, Colors: colors}
}

type colorAcc struct {
	a, r, g, b, n uint32
}

func (c *colorAcc) add(v uint32) {
	c.a += v >> 24
	c.r += v >> 16 & 0xFF
	c.g += v >> 8 & 0xFF
	c.b += v & 0xFF
	c.n++
}

func (c *colorAcc) avg() uint32 {
	if c.n == 0 {
		return 0
	}
	return (c.a/c.n)<<24 | (c.r/c.n)<<16 | (c.g/c.n)<<8 | c.b/c.n
}
