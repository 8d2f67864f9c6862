package storage_adapter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/annel0/voxel-engine/internal/storage"
	"github.com/annel0/voxel-engine/internal/world"
)

// FileStorageAdapter хранит мир одним сжатым снимком. Любое сохранение переписывает
// файл целиком через временный файл и rename.
type FileStorageAdapter struct {
	basePath string
	mu       sync.Mutex
	closed   bool
}

// NewFileStorageAdapter создаёт файловый адаптер хранилища
func NewFileStorageAdapter(basePath string) (*FileStorageAdapter, error) {
	// Создаём директорию если её нет
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию %s: %w", basePath, err)
	}
	return &FileStorageAdapter{basePath: basePath}, nil
}

func (fsa *FileStorageAdapter) path() string {
	return filepath.Join(fsa.basePath, "world.vxz")
}

// SaveWorld записывает снимок мира
func (fsa *FileStorageAdapter) SaveWorld(w *world.World) error {
	fsa.mu.Lock()
	defer fsa.mu.Unlock()

	if fsa.closed {
		return fmt.Errorf("хранилище закрыто")
	}
	tmp := fsa.path() + ".tmp"
	if err := storage.SaveSnapshot(tmp, w); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("ошибка записи снимка: %w", err)
	}
	if err := os.Rename(tmp, fsa.path()); err != nil {
		return fmt.Errorf("ошибка замены снимка: %w", err)
	}
	w.ClearDirty()
	return nil
}

// SaveDirty переписывает снимок, если в мире есть изменения
func (fsa *FileStorageAdapter) SaveDirty(w *world.World) (int, error) {
	n := w.DirtyCount()
	if n == 0 {
		return 0, nil
	}
	if err := fsa.SaveWorld(w); err != nil {
		return 0, err
	}
	return n, nil
}

// LoadWorld читает снимок
func (fsa *FileStorageAdapter) LoadWorld(mipLevels int) (*world.World, error) {
	fsa.mu.Lock()
	defer fsa.mu.Unlock()

	w, err := storage.LoadSnapshot(fsa.path(), mipLevels)
	if errors.Is(err, os.ErrNotExist) {
		return nil, storage.ErrNoWorld
	}
	return w, err
}

// Close запрещает дальнейшую запись
func (fsa *FileStorageAdapter) Close() error {
	fsa.mu.Lock()
	fsa.closed = true
	fsa.mu.Unlock()
	return nil
}
