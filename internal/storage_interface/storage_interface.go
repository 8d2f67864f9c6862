package storage_interface

import (
	"github.com/annel0/voxel-engine/internal/world"
)

// WorldStore определяет интерфейс постоянного хранилища мира
type WorldStore interface {
	// SaveWorld записывает мир целиком
	SaveWorld(w *world.World) error

	// SaveDirty записывает изменения с прошлого сохранения и возвращает число колонок
	SaveDirty(w *world.World) (int, error)

	// LoadWorld восстанавливает мир; без сохранения возвращает storage.ErrNoWorld
	LoadWorld(mipLevels int) (*world.World, error)

	// Close закрывает хранилище
	Close() error
}
