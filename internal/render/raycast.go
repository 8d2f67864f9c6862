package render

import (
	"math"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
)

// Грани попадания луча
const (
	faceTop = iota
	faceBottom
	faceSideX
	faceSideY
)

// hit результат луча по миру
type hit struct {
	t     float64 // параметр луча (в длинах dir)
	value uint32
	face  int
	level int
}

// axisDDA начальные значения обхода сетки с шагом scale по одной оси
func axisDDA(o, d float64, cell int, scale float64) (step int, tMax, tDelta float64) {
	switch {
	case d > 0:
		return 1, (float64(cell+1)*scale - o) / d, scale / d
	case d < 0:
		return -1, (o - float64(cell)*scale) / -d, scale / -d
	default:
		return 0, math.Inf(1), math.Inf(1)
	}
}

// castRay идет по колонкам мира двумерным DDA; внутри колонки отрезок луча по z
// проверяется сразу против отрезков колонки. Дальше mipDist*2^L луч переходит на уровень L+1.
func castRay(w *world.World, o, d vec.Vec3Float, maxT, mipDist float64) (hit, bool) {
	level := 0
	lv := w.Level(0)
	scale := 1.0
	cx, cy := int(math.Floor(o.X)), int(math.Floor(o.Y))
	stepX, tMaxX, tDeltaX := axisDDA(o.X, d.X, cx, scale)
	stepY, tMaxY, tDeltaY := axisDDA(o.Y, d.Y, cy, scale)

	var spans []world.Span
	t, face := 0.0, faceTop
	for t <= maxT {
		if d.Z <= 0 && o.Z+d.Z*t < 0 {
			// выше карты и не опускается
			return hit{}, false
		}
		tExit := math.Min(math.Min(tMaxX, tMaxY), maxT)

		if lv.InBounds(cx, cy) {
			spans = lv.AppendColumn(spans[:0], cx, cy)
			if h, ok := hitColumn(spans, o.Z+d.Z*t, o.Z+d.Z*tExit, t, o.Z, d.Z, scale, face); ok {
				h.level = level
				return h, true
			}
		} else if leaving(cx, stepX, lv.VSID()) || leaving(cy, stepY, lv.VSID()) {
			return hit{}, false
		}

		if tMaxX < tMaxY {
			cx += stepX
			t = tMaxX
			tMaxX += tDeltaX
			face = faceSideX
		} else {
			if math.IsInf(tMaxY, 1) {
				return hit{}, false
			}
			cy += stepY
			t = tMaxY
			tMaxY += tDeltaY
			face = faceSideY
		}

		if mipDist > 0 && level+1 < w.Levels() && t > mipDist*float64(int(1)<<level) {
			level++
			lv = w.Level(level)
			scale *= 2
			p := o.Add(d.Mul(t))
			// точка на границе ячейки: сдвиг внутрь по направлению луча
			cx = int(math.Floor((p.X + d.X*1e-9) / scale))
			cy = int(math.Floor((p.Y + d.Y*1e-9) / scale))
			stepX, tMaxX, tDeltaX = axisDDA(o.X, d.X, cx, scale)
			stepY, tMaxY, tDeltaY = axisDDA(o.Y, d.Y, cy, scale)
		}
	}
	return hit{}, false
}

// leaving истинно, если ячейка вне карты и луч удаляется от нее
func leaving(c, step, vsid int) bool {
	return (c < 0 && step <= 0) || (c >= vsid && step >= 0)
}

// hitColumn ищет первый твердый отрезок колонки на участке луча z от zA до zB
// (мировые единицы); tA параметр входа в колонку.
func hitColumn(spans []world.Span, zA, zB, tA, oz, dz, scale float64, sideFace int) (hit, bool) {
	a, b := zA/scale, zB/scale
	if dz >= 0 {
		for _, s := range spans {
			if !s.Solid || float64(s.Z1) <= a {
				continue
			}
			if float64(s.Z0) > b {
				return hit{}, false
			}
			if float64(s.Z0) <= a {
				z := int(math.Floor(a))
				return hit{t: tA, value: s.ValueAt(max(z, s.Z0)), face: sideFace}, true
			}
			return hit{t: (float64(s.Z0)*scale - oz) / dz, value: s.ValueAt(s.Z0), face: faceTop}, true
		}
		return hit{}, false
	}
	// луч идет вверх: отрезки перебираются снизу
	for i := len(spans) - 1; i >= 0; i-- {
		s := spans[i]
		if !s.Solid || float64(s.Z0) >= a {
			continue
		}
		if float64(s.Z1) < b {
			return hit{}, false
		}
		if float64(s.Z1) >= a {
			z := int(math.Floor(a))
			return hit{t: tA, value: s.ValueAt(min(z, s.Z1-1)), face: sideFace}, true
		}
		return hit{t: (float64(s.Z1)*scale - oz) / dz, value: s.ValueAt(s.Z1 - 1), face: faceBottom}, true
	}
	return hit{}, false
}
