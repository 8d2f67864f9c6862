package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics Prometheus-метрики движка. Регистрируются в переданном регистре;
// nil-значение *Metrics ничего не записывает.
type Metrics struct {
	frames        prometheus.Counter
	renderSeconds prometheus.Histogram
	raysCast      prometheus.Counter
	csgOps        *prometheus.CounterVec
	meltedVoxels  prometheus.Counter
	lightUpdates  prometheus.Counter
	litVoxels     prometheus.Counter
	sprites       prometheus.Gauge
	images        prometheus.Gauge
}

// NewMetrics создает метрики и регистрирует их в reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Name:      "frames_rendered_total",
			Help:      "Число кадров, отрисованных Opticast.",
		}),
		renderSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voxel",
			Name:      "render_seconds",
			Help:      "Время рейкаста одного кадра.",
			Buckets:   []float64{0.001, 0.004, 0.016, 0.033, 0.066, 0.125, 0.25, 0.5, 1},
		}),
		raysCast: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Name:      "rays_cast_total",
			Help:      "Число брошенных лучей.",
		}),
		csgOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxel",
			Name:      "csg_operations_total",
			Help:      "Операции редактора по типу и фигуре.",
		}, []string{"op", "shape"}),
		meltedVoxels: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Name:      "melted_voxels_total",
			Help:      "Воксели, перенесенные из мира в спрайты.",
		}),
		lightUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Name:      "lighting_updates_total",
			Help:      "Вызовы пересчета освещения.",
		}),
		litVoxels: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Name:      "lit_voxels_total",
			Help:      "Открытые воксели, обработанные освещением.",
		}),
		sprites: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxel",
			Name:      "sprites_loaded",
			Help:      "Спрайты в реестре движка.",
		}),
		images: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxel",
			Name:      "images_loaded",
			Help:      "Изображения, загруженные движком и не освобожденные.",
		}),
	}
	reg.MustRegister(m.frames, m.renderSeconds, m.raysCast, m.csgOps, m.meltedVoxels,
		m.lightUpdates, m.litVoxels, m.sprites, m.images)
	return m
}

func (m *Metrics) observeFrame(rays int, seconds float64) {
	if m == nil {
		return
	}
	m.frames.Inc()
	m.raysCast.Add(float64(rays))
	m.renderSeconds.Observe(seconds)
}

func (m *Metrics) observeEdit(op, shape string) {
	if m == nil {
		return
	}
	m.csgOps.WithLabelValues(op, shape).Inc()
}

func (m *Metrics) observeMelt(n int) {
	if m == nil {
		return
	}
	m.meltedVoxels.Add(float64(n))
}

func (m *Metrics) observeLighting(n int) {
	if m == nil {
		return
	}
	m.lightUpdates.Inc()
	m.litVoxels.Add(float64(n))
}

func (m *Metrics) setAssets(sprites, images int) {
	if m == nil {
		return
	}
	m.sprites.Set(float64(sprites))
	m.images.Set(float64(images))
}
