package world

import (
	"math/rand"

	"github.com/annel0/voxel-engine/internal/util"
	"github.com/annel0/voxel-engine/internal/vec"
)

// BiomeType представляет тип биома
type BiomeType int

const (
	BiomePlains BiomeType = iota
	BiomeDesert
	BiomeForest
	BiomeMountains
	BiomeWater
)

// Константы высот для генерации (доля от амплитуды рельефа)
const (
	ShallowWaterMax = 0.30 // Ниже - вода
	MountainStart   = 0.72 // Выше - скалы
	SnowStart       = 0.86 // Выше - снег
)

// Generator строит карту по умолчанию: холмистый рельеф из шума Перлина
type Generator struct {
	Seed       int64   // Сид для генерации шума
	NoiseScale float64 // Масштаб основного шума (высота)
	BiomeScale float64 // Масштаб шума биомов
	Relief     float64 // Доля высоты колонки, занятая рельефом
	noise      *util.Noise
}

// NewGenerator создаёт новый генератор карты
func NewGenerator(seed int64) *Generator {
	return &Generator{
		Seed:       seed,
		NoiseScale: 0.012,
		BiomeScale: 0.004,
		Relief:     0.55,
		noise:      util.NewNoise(seed),
	}
}

// Generate заполняет мир рельефом и выставляет стартовую камеру над центром карты
func (g *Generator) Generate(w *World) {
	vsid, maxZ := w.VSID(), w.MaxZ()
	amp := float64(maxZ) * g.Relief
	sea := maxZ - 1 - int(ShallowWaterMax*amp)

	heights := make([]float64, vsid*vsid)
	tops := make([]int, vsid*vsid)
	for y := 0; y < vsid; y++ {
		for x := 0; x < vsid; x++ {
			h := g.noise.Noise2D(float64(x)*g.NoiseScale, float64(y)*g.NoiseScale)
			heights[y*vsid+x] = h
			tops[y*vsid+x] = min(sea, maxZ-1-int(h*amp))
		}
	}

	top := func(x, y int) int {
		x = min(max(x, 0), vsid-1)
		y = min(max(y, 0), vsid-1)
		return tops[y*vsid+x]
	}

	base := w.levels[0]
	for y := 0; y < vsid; y++ {
		for x := 0; x < vsid; x++ {
			h := heights[y*vsid+x]
			z0 := tops[y*vsid+x]
			biome := g.biome(h, g.noise.Noise2D(float64(x)*g.BiomeScale+100, float64(y)*g.BiomeScale+100))

			// окрашенный слой закрывает все грани, открытые соседним рельефом
			deepest := z0
			for _, d := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
				deepest = max(deepest, top(x+d[0], y+d[1]))
			}
			z1 := min(maxZ, max(z0+3, deepest+1))

			colors := make([]uint32, z1-z0)
			for z := z0; z < z1; z++ {
				colors[z-z0] = g.colorFor(biome, h, z-z0, x, y, z).Voxel()
			}
			base.writeColumn(x, y, []Span{
				{Z0: 0, Z1: z0},
				{Z0: z0, Z1: z1, Solid: true, Colors: colors},
				{Z0: z1, Z1: maxZ, Solid: true, Fill: DefaultFill},
			})
		}
	}

	cx, cy := vsid/2, vsid/2
	pos := vec.Vec3Float{X: float64(cx) + 0.5, Y: float64(cy) + 0.5, Z: float64(top(cx, cy)) - 24}
	if pos.Z < 1 {
		pos.Z = 1
	}
	w.start = vec.DefaultOrientation(pos)
	w.revision++
	w.GenAllMipmaps()
}

// biome определяет тип биома на основе значений шума
func (g *Generator) biome(height, biomeValue float64) BiomeType {
	if height < ShallowWaterMax {
		return BiomeWater
	}
	if height > MountainStart {
		return BiomeMountains
	}
	if biomeValue < 0.4 {
		return BiomeDesert
	} else if biomeValue > 0.6 {
		return BiomeForest
	}
	return BiomePlains
}

// colorFor возвращает цвет вокселя на глубине depth от поверхности
func (g *Generator) colorFor(biome BiomeType, height float64, depth, x, y, z int) Color {
	var c Color
	switch biome {
	case BiomeWater:
		c = RGB(40, 80, 160)
	case BiomeDesert:
		c = RGB(200, 180, 110)
	case BiomeForest:
		c = RGB(40, 110, 40)
	case BiomeMountains:
		c = RGB(120, 120, 125)
		if height > SnowStart {
			c = RGB(240, 240, 250)
		}
	default:
		c = RGB(80, 150, 60)
	}
	if depth > 0 && biome != BiomeWater {
		c = RGB(110, 90, 60) // грунт под поверхностью
	}
	return Jitter(c, 6, x, y, z)
}

// RandomSeed возвращает сид для карты, если в конфигурации он не задан
func RandomSeed() int64 {
	return rand.Int63()
}
