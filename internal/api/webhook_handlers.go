package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// webhookUpdate частичное обновление: обязательных полей нет
type webhookUpdate struct {
	Name       string   `json:"name"`
	URL        string   `json:"url"`
	Secret     string   `json:"secret"`
	Events     []string `json:"events"`
	Active     bool     `json:"active"`
	Timeout    int      `json:"timeout"`
	RetryCount *int     `json:"retry_count"`
}

func webhookID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "Неверный ID webhook'а")
		return 0, false
	}
	return id, true
}

func webhookNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Webhook не найден"})
}

// handleGetOutboundWebhooks возвращает список исходящих webhook'ов
func (rs *RestServer) handleGetOutboundWebhooks(c *gin.Context) {
	webhooks := rs.outboundWebhooks.GetWebhooks()
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Список webhook'ов получен",
		Data: map[string]interface{}{
			"webhooks": webhooks,
			"total":    len(webhooks),
		},
	})
}

// handleCreateOutboundWebhook создает новый исходящий webhook
func (rs *RestServer) handleCreateOutboundWebhook(c *gin.Context) {
	var webhook OutboundWebhook
	if err := c.ShouldBindJSON(&webhook); err != nil {
		badRequest(c, "Неверный формат webhook'а: "+err.Error())
		return
	}
	if len(webhook.Events) == 0 {
		badRequest(c, "Обязательные поля: name, url, events")
		return
	}

	c.JSON(http.StatusCreated, GenericResponse{
		Success: true,
		Message: "Webhook создан успешно",
		Data:    rs.outboundWebhooks.AddWebhook(webhook),
	})
}

// handleGetOutboundWebhook возвращает webhook по ID
func (rs *RestServer) handleGetOutboundWebhook(c *gin.Context) {
	id, ok := webhookID(c)
	if !ok {
		return
	}
	webhook, found := rs.outboundWebhooks.GetWebhook(id)
	if !found {
		webhookNotFound(c)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Webhook найден", Data: webhook})
}

// handleUpdateOutboundWebhook обновляет webhook
func (rs *RestServer) handleUpdateOutboundWebhook(c *gin.Context) {
	id, ok := webhookID(c)
	if !ok {
		return
	}
	var req webhookUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверный формат обновлений: "+err.Error())
		return
	}

	updates := OutboundWebhook{
		Name:       req.Name,
		URL:        req.URL,
		Secret:     req.Secret,
		Events:     req.Events,
		Active:     req.Active,
		Timeout:    req.Timeout,
		RetryCount: -1,
	}
	if req.RetryCount != nil {
		updates.RetryCount = *req.RetryCount
	}
	webhook, found := rs.outboundWebhooks.UpdateWebhook(id, updates)
	if !found {
		webhookNotFound(c)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Webhook обновлен успешно", Data: webhook})
}

// handleDeleteOutboundWebhook удаляет webhook
func (rs *RestServer) handleDeleteOutboundWebhook(c *gin.Context) {
	id, ok := webhookID(c)
	if !ok {
		return
	}
	if !rs.outboundWebhooks.DeleteWebhook(id) {
		webhookNotFound(c)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Webhook удален успешно"})
}

// handleGetWebhookEventTypes возвращает типы событий, на которые можно подписаться
func (rs *RestServer) handleGetWebhookEventTypes(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Типы событий",
		Data:    rs.outboundWebhooks.GetEventTypes(),
	})
}
