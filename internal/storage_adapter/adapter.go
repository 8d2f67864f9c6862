package storage_adapter

import (
	"fmt"

	"github.com/annel0/voxel-engine/internal/config"
	"github.com/annel0/voxel-engine/internal/storage"
	"github.com/annel0/voxel-engine/internal/storage_interface"
)

// NewStorageProvider выбирает хранилище мира по настройкам: badger по колонкам
// или файл-снимок .vxz
func NewStorageProvider(cfg config.StorageConfig) (storage_interface.WorldStore, error) {
	switch cfg.Backend {
	case "", "badger":
		return storage.NewWorldStorage(cfg)
	case "snapshot":
		return NewFileStorageAdapter(cfg.Path)
	default:
		return nil, fmt.Errorf("неизвестное хранилище %q", cfg.Backend)
	}
}
