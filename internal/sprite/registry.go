package sprite

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/annel0/voxel-engine/internal/logging"
)

var (
	// ErrEngineManaged спрайт реестра нельзя освободить вручную
	ErrEngineManaged = errors.New("sprite: спрайт управляется движком")
	// ErrAlreadyReleased повторное освобождение
	ErrAlreadyReleased = errors.New("sprite: спрайт уже освобожден")
	// ErrClosed реестр закрыт
	ErrClosed = errors.New("sprite: реестр закрыт")
)

// Registry таблица загруженных спрайтов. Модели кэшируются по пути файла.
// Не потокобезопасен.
type Registry struct {
	sprites map[uuid.UUID]*Sprite
	models  map[string]*Model
	closed  bool
}

// NewRegistry создает пустой реестр
func NewRegistry() *Registry {
	return &Registry{
		sprites: make(map[uuid.UUID]*Sprite),
		models:  make(map[string]*Model),
	}
}

// Load загружает KV6 и регистрирует спрайт под управлением движка
func (r *Registry) Load(path string) (*Sprite, error) {
	if r.closed {
		return nil, ErrClosed
	}
	key := filepath.Clean(path)
	m, ok := r.models[key]
	if !ok {
		var err error
		if m, err = LoadKV6(key); err != nil {
			return nil, fmt.Errorf("загрузка спрайта %s: %w", path, err)
		}
		r.models[key] = m
		logging.Debug("Спрайт %s загружен: %dx%dx%d, %d вокселей", key, m.XSize, m.YSize, m.ZSize, m.VoxelCount())
	}
	s := newSprite(m, EngineManaged, filepath.Base(key))
	r.sprites[s.ID] = s
	return s, nil
}

// Get ищет спрайт реестра по идентификатору
func (r *Registry) Get(id uuid.UUID) (*Sprite, bool) {
	s, ok := r.sprites[id]
	return s, ok
}

// Count число зарегистрированных спрайтов
func (r *Registry) Count() int { return len(r.sprites) }

// Release освобождает спрайт в зависимости от владельца: CallerOwned освобождается
// сразу, EngineManaged живет до CloseAll.
func (r *Registry) Release(s *Sprite) error {
	if s == nil {
		return nil
	}
	if s.released {
		return ErrAlreadyReleased
	}
	switch s.Owner {
	case CallerOwned:
		s.released = true
		s.Model = nil
		return nil
	case EngineManaged:
		return ErrEngineManaged
	default:
		return fmt.Errorf("sprite: неизвестный владелец %d", s.Owner)
	}
}

// CloseAll освобождает все спрайты движка и кэш моделей
func (r *Registry) CloseAll() {
	for id, s := range r.sprites {
		s.released = true
		s.Model = nil
		delete(r.sprites, id)
	}
	r.models = make(map[string]*Model)
	r.closed = true
}
