package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/annel0/voxel-engine/internal/eventbus"
	"github.com/annel0/voxel-engine/internal/logging"
)

// OutboundWebhook представляет исходящий webhook
type OutboundWebhook struct {
	ID           uint64     `json:"id"`
	Name         string     `json:"name" binding:"required"`
	URL          string     `json:"url" binding:"required"`
	Secret       string     `json:"secret,omitempty"`
	Events       []string   `json:"events" binding:"required"` // типы событий шины или "*"
	Active       bool       `json:"active"`
	Timeout      int        `json:"timeout"` // Таймаут в секундах
	RetryCount   int        `json:"retry_count"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsed     *time.Time `json:"last_used,omitempty"`
	FailureCount int        `json:"failure_count"`
}

// OutboundWebhookEvent тело запроса к webhook'у
type OutboundWebhookEvent struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Timestamp int64           `json:"timestamp"`
	ServerID  string          `json:"server_id"`
	Data      json.RawMessage `json:"data"`
}

// OutboundWebhookManager пересылает события шины на зарегистрированные URL
type OutboundWebhookManager struct {
	webhooks   map[uint64]*OutboundWebhook
	eventQueue chan OutboundWebhookEvent
	mu         sync.RWMutex
	nextID     uint64
	httpClient *http.Client
	serverID   string
	log        *logging.Logger
	sub        eventbus.Subscription
	closeOnce  sync.Once
	wg         sync.WaitGroup
	retryDelay time.Duration
}

// NewOutboundWebhookManager создает новый менеджер исходящих webhook'ов
func NewOutboundWebhookManager(serverID string, log *logging.Logger) *OutboundWebhookManager {
	manager := &OutboundWebhookManager{
		webhooks:   make(map[uint64]*OutboundWebhook),
		eventQueue: make(chan OutboundWebhookEvent, 1000),
		nextID:     1,
		serverID:   serverID,
		log:        log,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retryDelay: time.Second,
	}

	manager.wg.Add(1)
	go manager.eventWorker()
	return manager
}

// Attach подписывает менеджер на все события шины
func (owm *OutboundWebhookManager) Attach(bus eventbus.EventBus) error {
	sub, err := bus.Subscribe(context.Background(), eventbus.Filter{}, func(ctx context.Context, ev *eventbus.Envelope) {
		owm.SendEvent(OutboundWebhookEvent{
			ID:        ev.ID,
			EventType: ev.EventType,
			Timestamp: ev.Timestamp.Unix(),
			ServerID:  owm.serverID,
			Data:      json.RawMessage(ev.Payload),
		})
	})
	if err != nil {
		return err
	}
	owm.sub = sub
	return nil
}

// AddWebhook добавляет новый webhook
func (owm *OutboundWebhookManager) AddWebhook(webhook OutboundWebhook) *OutboundWebhook {
	owm.mu.Lock()
	defer owm.mu.Unlock()

	webhook.ID = owm.nextID
	owm.nextID++
	webhook.CreatedAt = time.Now()
	webhook.Active = true

	if webhook.Timeout == 0 {
		webhook.Timeout = 30
	}
	if webhook.RetryCount == 0 {
		webhook.RetryCount = 3
	}

	owm.webhooks[webhook.ID] = &webhook
	cp := webhook
	return &cp
}

// GetWebhooks возвращает копии всех webhook'ов
func (owm *OutboundWebhookManager) GetWebhooks() []OutboundWebhook {
	owm.mu.RLock()
	defer owm.mu.RUnlock()

	webhooks := make([]OutboundWebhook, 0, len(owm.webhooks))
	for _, webhook := range owm.webhooks {
		webhooks = append(webhooks, *webhook)
	}
	return webhooks
}

// GetWebhook возвращает копию webhook'а по ID
func (owm *OutboundWebhookManager) GetWebhook(id uint64) (OutboundWebhook, bool) {
	owm.mu.RLock()
	defer owm.mu.RUnlock()

	webhook, exists := owm.webhooks[id]
	if !exists {
		return OutboundWebhook{}, false
	}
	return *webhook, true
}

// UpdateWebhook обновляет непустые поля webhook'а
func (owm *OutboundWebhookManager) UpdateWebhook(id uint64, updates OutboundWebhook) (OutboundWebhook, bool) {
	owm.mu.Lock()
	defer owm.mu.Unlock()

	webhook, exists := owm.webhooks[id]
	if !exists {
		return OutboundWebhook{}, false
	}

	if updates.Name != "" {
		webhook.Name = updates.Name
	}
	if updates.URL != "" {
		webhook.URL = updates.URL
	}
	if updates.Secret != "" {
		webhook.Secret = updates.Secret
	}
	if len(updates.Events) > 0 {
		webhook.Events = updates.Events
	}
	if updates.Timeout > 0 {
		webhook.Timeout = updates.Timeout
	}
	if updates.RetryCount >= 0 {
		webhook.RetryCount = updates.RetryCount
	}
	webhook.Active = updates.Active

	return *webhook, true
}

// DeleteWebhook удаляет webhook
func (owm *OutboundWebhookManager) DeleteWebhook(id uint64) bool {
	owm.mu.Lock()
	defer owm.mu.Unlock()

	if _, exists := owm.webhooks[id]; !exists {
		return false
	}
	delete(owm.webhooks, id)
	return true
}

// SendEvent ставит событие в очередь рассылки
func (owm *OutboundWebhookManager) SendEvent(event OutboundWebhookEvent) {
	select {
	case owm.eventQueue <- event:
	default:
		owm.log.Warn("Очередь webhook'ов переполнена, событие %s пропущено", event.EventType)
	}
}

// Close отписывается от шины и дожидается рассылки очереди
func (owm *OutboundWebhookManager) Close() {
	owm.closeOnce.Do(func() {
		if owm.sub != nil {
			owm.sub.Unsubscribe()
		}
		close(owm.eventQueue)
		owm.wg.Wait()
	})
}

// eventWorker обрабатывает события из очереди
func (owm *OutboundWebhookManager) eventWorker() {
	defer owm.wg.Done()
	for event := range owm.eventQueue {
		owm.processEvent(event)
	}
}

// processEvent отправляет событие всем подписанным webhook'ам
func (owm *OutboundWebhookManager) processEvent(event OutboundWebhookEvent) {
	owm.mu.RLock()
	var targets []OutboundWebhook
	for _, webhook := range owm.webhooks {
		if webhook.Active && isSubscribedToEvent(webhook, event.EventType) {
			targets = append(targets, *webhook)
		}
	}
	owm.mu.RUnlock()

	var wg sync.WaitGroup
	for _, webhook := range targets {
		wg.Add(1)
		go func(wh OutboundWebhook) {
			defer wg.Done()
			owm.record(wh.ID, owm.sendToWebhook(wh, event))
		}(webhook)
	}
	wg.Wait()
}

// isSubscribedToEvent проверяет, подписан ли webhook на событие
func isSubscribedToEvent(webhook *OutboundWebhook, eventType string) bool {
	for _, subscribedEvent := range webhook.Events {
		if subscribedEvent == eventType || subscribedEvent == "*" {
			return true
		}
	}
	return false
}

// sendToWebhook отправляет событие с повторами; возвращает успех доставки
func (owm *OutboundWebhookManager) sendToWebhook(webhook OutboundWebhook, event OutboundWebhookEvent) bool {
	jsonData, err := json.Marshal(event)
	if err != nil {
		owm.log.Error("Ошибка маршалинга события для webhook %s: %v", webhook.Name, err)
		return false
	}

	for attempt := 0; attempt <= webhook.RetryCount; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * owm.retryDelay)
		}
		status, err := owm.post(webhook, event, jsonData)
		if err != nil {
			owm.log.Warn("Попытка %d/%d для webhook %s: %v", attempt+1, webhook.RetryCount+1, webhook.Name, err)
			continue
		}
		if status >= 200 && status < 300 {
			owm.log.Debug("Событие %s отправлено в webhook %s", event.EventType, webhook.Name)
			return true
		}
		owm.log.Warn("Webhook %s вернул статус %d на попытке %d", webhook.Name, status, attempt+1)
	}
	return false
}

// post выполняет один запрос; тело пересоздаётся для каждой попытки
func (owm *OutboundWebhookManager) post(webhook OutboundWebhook, event OutboundWebhookEvent, body []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(webhook.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "voxel-engine/1.0")
	req.Header.Set("X-Event-Type", event.EventType)
	req.Header.Set("X-Server-ID", event.ServerID)
	if webhook.Secret != "" {
		req.Header.Set("X-Webhook-Signature", Sign(body, webhook.Secret))
	}

	resp, err := owm.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func (owm *OutboundWebhookManager) record(id uint64, success bool) {
	owm.mu.Lock()
	defer owm.mu.Unlock()
	webhook, ok := owm.webhooks[id]
	if !ok {
		return
	}
	now := time.Now()
	webhook.LastUsed = &now
	if !success {
		webhook.FailureCount++
	}
}

// Sign HMAC-SHA256 подпись тела в формате "sha256=<hex>"
func Sign(data []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// GetEventTypes возвращает доступные типы событий
func (owm *OutboundWebhookManager) GetEventTypes() []string {
	return []string{
		eventbus.TypeWorldEdit,
		eventbus.TypeWorldSaved,
		eventbus.TypeWorldLoaded,
	}
}
