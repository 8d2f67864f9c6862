package engine

import (
	"github.com/annel0/voxel-engine/internal/overlay"
	"github.com/annel0/voxel-engine/internal/render"
	"github.com/annel0/voxel-engine/internal/sprite"
	"github.com/annel0/voxel-engine/internal/vec"
)

// LoadSprite загружает KV6; спрайт принадлежит движку до Close
func (e *Engine) LoadSprite(path string) (*sprite.Sprite, error) {
	const op = "load_sprite"
	if err := e.check(op); err != nil {
		return nil, err
	}
	s, err := e.sprites.Load(path)
	if err != nil {
		return nil, newError(LoadError, op, err)
	}
	e.metrics.setAssets(e.sprites.Count(), len(e.images))
	return s, nil
}

// ReleaseSprite освобождает спрайт вызывающего (расплав, обломки).
// Спрайты движка освобождаются только в Close.
func (e *Engine) ReleaseSprite(s *sprite.Sprite) error {
	const op = "release_sprite"
	if err := e.check(op); err != nil {
		return err
	}
	return wrap(op, e.sprites.Release(s))
}

// DrawSprite рисует спрайт поверх последнего кадра с учетом глубины
func (e *Engine) DrawSprite(s *sprite.Sprite) error {
	const op = "draw_sprite"
	if err := e.check(op); err != nil {
		return err
	}
	_, err := e.rend.DrawSprite(s, e.light.Mode())
	return wrap(op, err)
}

// LoadSky загружает панораму неба; пустой путь возвращает однотонное небо
func (e *Engine) LoadSky(path string) error {
	const op = "load_sky"
	if err := e.check(op); err != nil {
		return err
	}
	if path == "" {
		e.rend.SetSky(nil)
		return nil
	}
	if err := e.loadSky(path); err != nil {
		return newError(LoadError, op, err)
	}
	return nil
}

func (e *Engine) loadSky(path string) error {
	img, err := overlay.LoadImage(path)
	if err != nil {
		return err
	}
	sky, err := render.NewSky(img.Width, img.Height, img.Pix)
	if err != nil {
		return err
	}
	e.rend.SetSky(sky)
	return nil
}

// LoadImage загружает изображение. Вызывающий освобождает его через ReleaseImage
// или Image.Free; оставшиеся освобождаются в Close.
func (e *Engine) LoadImage(path string) (*overlay.Image, error) {
	const op = "load_image"
	if err := e.check(op); err != nil {
		return nil, err
	}
	img, err := overlay.LoadImage(path)
	if err != nil {
		return nil, newError(LoadError, op, err)
	}
	e.images[img.ID] = img
	e.metrics.setAssets(e.sprites.Count(), len(e.images))
	return img, nil
}

// ReleaseImage освобождает пиксели изображения
func (e *Engine) ReleaseImage(img *overlay.Image) error {
	const op = "release_image"
	if err := e.check(op); err != nil {
		return err
	}
	if img == nil {
		return invalidf(op, "изображение не задано")
	}
	if _, ok := e.images[img.ID]; !ok || img.Freed() {
		return newError(InvalidParameter, op, overlay.ErrImageFreed)
	}
	img.Free()
	delete(e.images, img.ID)
	e.metrics.setAssets(e.sprites.Count(), len(e.images))
	return nil
}

// DrawImage рисует изображение на четырехугольнике с мировыми вершинами
func (e *Engine) DrawImage(img *overlay.Image, corners [4]vec.Vec3Float) error {
	const op = "draw_image"
	if err := e.check(op); err != nil {
		return err
	}
	if img == nil {
		return invalidf(op, "изображение не задано")
	}
	_, err := overlay.DrawImage(e.rend, img, corners)
	return wrap(op, err)
}

func (e *Engine) framebuffer(op string) (*render.Framebuffer, error) {
	if err := e.check(op); err != nil {
		return nil, err
	}
	fb := e.rend.Framebuffer()
	if fb == nil {
		return nil, wrap(op, render.ErrNoFramebuffer)
	}
	return fb, nil
}

// DrawLine2D рисует отрезок в экранных координатах
func (e *Engine) DrawLine2D(x0, y0, x1, y1 int, c uint32) error {
	fb, err := e.framebuffer("draw_line_2d")
	if err != nil {
		return err
	}
	overlay.DrawLine2D(fb, x0, y0, x1, y1, c)
	return nil
}

// DrawPoint3D рисует мировую точку с учетом глубины
func (e *Engine) DrawPoint3D(p vec.Vec3Float, c uint32) error {
	if _, err := e.framebuffer("draw_point_3d"); err != nil {
		return err
	}
	overlay.DrawPoint3D(e.rend, p, c)
	return nil
}

// DrawSphereFill рисует заполненную проекцию сферы с учетом глубины
func (e *Engine) DrawSphereFill(center vec.Vec3Float, radius float64, c uint32) error {
	const op = "draw_sphere_fill"
	if _, err := e.framebuffer(op); err != nil {
		return err
	}
	if radius <= 0 {
		return invalidf(op, "радиус %v", radius)
	}
	overlay.DrawSphereFill(e.rend, center, radius, c)
	return nil
}

// Print выводит текст; bg < 0 оставляет фон прозрачным
func (e *Engine) Print(x, y int, fg, bg int64, text string) error {
	fb, err := e.framebuffer("print")
	if err != nil {
		return err
	}
	overlay.Print(fb, x, y, fg, bg, text)
	return nil
}
