package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/annel0/voxel-engine/internal/eventbus"
)

const streamKeepAlive = 15 * time.Second

// handleEventStream отдает события шины как Server-Sent Events.
// Фильтр: ?type=WorldEdit&type=WorldSaved, пусто означает все типы.
func (rs *RestServer) handleEventStream(c *gin.Context) {
	if rs.bus == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "шина событий не подключена"})
		return
	}

	// Медленный клиент теряет события, шину он не тормозит
	events := make(chan *eventbus.Envelope, 64)
	ctx := c.Request.Context()
	sub, err := rs.bus.Subscribe(ctx, eventbus.Filter{Types: c.QueryArray("type")}, func(_ context.Context, ev *eventbus.Envelope) {
		select {
		case events <- ev:
		default:
		}
	})
	if err != nil {
		rs.fail(c, err)
		return
	}
	defer sub.Unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	ticker := time.NewTicker(streamKeepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev := <-events:
			c.SSEvent(ev.EventType, json.RawMessage(ev.Payload))
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		case <-ctx.Done():
			return false
		}
	})
}
