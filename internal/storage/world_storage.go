package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v3"

	"github.com/annel0/voxel-engine/internal/config"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
)

// ErrNoWorld в хранилище нет сохраненного мира
var ErrNoWorld = errors.New("storage: мир не сохранен")

const (
	metaKey   = "meta"
	colPrefix = "col:"
)

// WorldStorage хранит колонки мира в BadgerDB под ключами col:x:y
type WorldStorage struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// WorldMeta параметры мира, общие для всех колонок
type WorldMeta struct {
	VSID     int             `json:"vsid"`
	MaxZ     int             `json:"max_z"`
	Start    vec.Orientation `json:"start"`
	Revision uint64          `json:"revision"`
}

// NewWorldStorage открывает хранилище по настройкам; InMemory не пишет на диск
func NewWorldStorage(cfg config.StorageConfig) (*WorldStorage, error) {
	var opts badger.Options
	dbPath := ""
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		dbPath = filepath.Join(cfg.Path, "world")
		opts = badger.DefaultOptions(dbPath)
	}
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &WorldStorage{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
	}, nil
}

// Close закрывает хранилище данных
func (ws *WorldStorage) Close() error {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()

	if !ws.isReady {
		return nil
	}

	ws.isReady = false
	return ws.db.Close()
}

func colKey(x, y int) []byte {
	return []byte(fmt.Sprintf("%s%d:%d", colPrefix, x, y))
}

// SaveWorld записывает все колонки и метаданные
func (ws *WorldStorage) SaveWorld(w *world.World) error {
	vsid := w.VSID()
	cols := make([]vec.Vec2, 0, vsid*vsid)
	for y := 0; y < vsid; y++ {
		for x := 0; x < vsid; x++ {
			cols = append(cols, vec.Vec2{X: x, Y: y})
		}
	}
	if err := ws.writeColumns(w, cols); err != nil {
		return err
	}
	w.ClearDirty()
	return nil
}

// SaveDirty записывает только колонки, измененные с прошлого сохранения.
// Возвращает число записанных колонок.
func (ws *WorldStorage) SaveDirty(w *world.World) (int, error) {
	cols := w.DirtyColumns()
	if len(cols) == 0 {
		return 0, nil
	}
	if err := ws.writeColumns(w, cols); err != nil {
		return 0, err
	}
	w.ClearDirty()
	return len(cols), nil
}

func (ws *WorldStorage) writeColumns(w *world.World, cols []vec.Vec2) error {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return fmt.Errorf("хранилище не готово")
	}

	meta, err := json.Marshal(WorldMeta{VSID: w.VSID(), MaxZ: w.MaxZ(), Start: w.Start(), Revision: w.Revision()})
	if err != nil {
		return fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}

	// WriteBatch сам делит запись на транзакции
	wb := ws.db.NewWriteBatch()
	defer wb.Cancel()
	if err := wb.Set([]byte(metaKey), meta); err != nil {
		return fmt.Errorf("ошибка записи метаданных: %w", err)
	}
	for _, c := range cols {
		if err := wb.Set(colKey(c.X, c.Y), world.EncodeColumn(w.Column(c.X, c.Y))); err != nil {
			return fmt.Errorf("ошибка записи колонки %v: %w", c, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	logging.GetStorageLogger().Debug("Записано %d колонок, ревизия %d", len(cols), w.Revision())
	return nil
}

// Meta читает метаданные сохраненного мира
func (ws *WorldStorage) Meta() (WorldMeta, error) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	var meta WorldMeta
	if !ws.isReady {
		return meta, fmt.Errorf("хранилище не готово")
	}
	err := ws.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return meta, ErrNoWorld
	}
	if err != nil {
		return meta, fmt.Errorf("ошибка чтения метаданных: %w", err)
	}
	return meta, nil
}

// LoadWorld восстанавливает мир. Отсутствующие колонки остаются воздухом.
func (ws *WorldStorage) LoadWorld(mipLevels int) (*world.World, error) {
	meta, err := ws.Meta()
	if err != nil {
		return nil, err
	}
	w, err := world.New(meta.VSID, meta.MaxZ, mipLevels)
	if err != nil {
		return nil, fmt.Errorf("метаданные мира: %w", err)
	}
	w.SetStart(meta.Start)

	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	loaded := 0
	err = ws.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(colPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var x, y int
			if _, err := fmt.Sscanf(string(item.Key()), colPrefix+"%d:%d", &x, &y); err != nil {
				return fmt.Errorf("ключ %q: %w", item.Key(), err)
			}
			err := item.Value(func(val []byte) error {
				spans, err := world.DecodeColumn(val, meta.MaxZ)
				if err != nil {
					return err
				}
				return w.SetColumn(x, y, spans)
			})
			if err != nil {
				return fmt.Errorf("колонка (%d,%d): %w", x, y, err)
			}
			loaded++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	w.GenAllMipmaps()
	w.ClearDirty()
	logging.GetStorageLogger().Info("Мир %dx%dx%d восстановлен: %d колонок", meta.VSID, meta.VSID, meta.MaxZ, loaded)
	return w, nil
}
