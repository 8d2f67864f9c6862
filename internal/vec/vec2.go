package vec

// Vec2 представляет 2D координаты (экранные пиксели, колонки мира)
type Vec2 struct {
	X, Y int
}
