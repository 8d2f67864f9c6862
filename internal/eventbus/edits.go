package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/annel0/voxel-engine/internal/engine"
	"github.com/annel0/voxel-engine/internal/logging"
)

// Типы событий движка
const (
	TypeWorldEdit   = "WorldEdit"
	TypeWorldSaved  = "WorldSaved"
	TypeWorldLoaded = "WorldLoaded"
)

// WorldEdit полезная нагрузка события правки мира
type WorldEdit struct {
	Op       string `json:"op"`
	Shape    string `json:"shape"`
	Min      [3]int `json:"min"`
	Max      [3]int `json:"max"`
	Revision uint64 `json:"revision"`
}

// WorldSaved полезная нагрузка событий сохранения и загрузки
type WorldSaved struct {
	Columns  int    `json:"columns"`
	Revision uint64 `json:"revision"`
}

// NewEnvelope упаковывает payload в JSON-конверт
func NewEnvelope(source, eventType string, payload interface{}) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventType: eventType,
		Version:   1,
		Payload:   data,
	}, nil
}

// EditHook возвращает обработчик для engine.WithEditHook, публикующий правки в шину.
// Ошибки публикации только логируются: правка мира уже произошла.
func EditHook(bus EventBus, source string) func(engine.EditEvent) {
	return func(ev engine.EditEvent) {
		env, err := NewEnvelope(source, TypeWorldEdit, WorldEdit{
			Op:       ev.Op,
			Shape:    ev.Shape,
			Min:      [3]int{ev.Box.Min.X, ev.Box.Min.Y, ev.Box.Min.Z},
			Max:      [3]int{ev.Box.Max.X, ev.Box.Max.Y, ev.Box.Max.Z},
			Revision: ev.Revision,
		})
		if err != nil {
			logging.Error("EventBus: ошибка сериализации правки: %v", err)
			return
		}
		env.Timestamp = ev.At.UTC()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := bus.Publish(ctx, env); err != nil {
			logging.Warn("EventBus: правка r%d не опубликована: %v", ev.Revision, err)
		}
	}
}

// DecodeWorldEdit разбирает полезную нагрузку события WorldEdit
func DecodeWorldEdit(ev *Envelope) (WorldEdit, error) {
	var we WorldEdit
	err := json.Unmarshal(ev.Payload, &we)
	return we, err
}
