package eventbus

import (
	"context"

	"github.com/annel0/voxel-engine/internal/logging"
)

// StartLoggingListener подписывается на все события и пишет их в лог на уровне DEBUG.
// Правки мира печатаются с границами изменений.
func StartLoggingListener(bus EventBus) (Subscription, error) {
	sub, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		if ev.EventType == TypeWorldEdit {
			if edit, err := DecodeWorldEdit(ev); err == nil {
				logging.Debug("[EventBus] %s src=%s %s %s %v..%v rev=%d", ev.EventType, ev.Source, edit.Op, edit.Shape, edit.Min, edit.Max, edit.Revision)
				return
			}
		}
		logging.Debug("[EventBus] %s %s src=%s size=%dB", ev.ID, ev.EventType, ev.Source, len(ev.Payload))
	})
	if err != nil {
		return nil, err
	}
	logging.Info("LoggingListener: подписка на все события активирована")
	return sub, nil
}
