// Package api предоставляет REST API для осмотра и правки мира: информация о карте,
// колонки и воксели, рендер кадра в PNG, CSG-правки, сохранение и загрузка.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/voxel-engine/internal/cache"
	"github.com/annel0/voxel-engine/internal/engine"
	"github.com/annel0/voxel-engine/internal/eventbus"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/middleware"
	"github.com/annel0/voxel-engine/internal/storage"
	"github.com/annel0/voxel-engine/internal/storage_interface"
)

// RestServer представляет REST API сервер
type RestServer struct {
	router     *gin.Engine
	httpServer *http.Server
	port       string

	// mu сериализует доступ к движку: он однопоточный
	mu     sync.Mutex
	engine *engine.Engine

	store    storage_interface.WorldStore
	frames   cache.CacheRepo
	frameTTL time.Duration
	bus      eventbus.EventBus
	source   string

	metrics          *ServerMetrics
	outboundWebhooks *OutboundWebhookManager
	tracer           trace.Tracer
	log              *logging.Logger
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port     string                       // адрес для запуска сервера, например ":8088"
	Engine   *engine.Engine               // движок с загруженным миром
	Store    storage_interface.WorldStore // хранилище мира; nil отключает save/load
	Cache    cache.CacheRepo              // кеш кадров; nil означает кеш в памяти
	FrameTTL time.Duration                // время жизни кадра в кеше
	Bus      eventbus.EventBus            // шина событий; nil отключает вебхуки
	Source   string                       // имя узла в событиях
	Registry *prometheus.Registry         // реестр метрик для /metrics
	Logger   *logging.Logger              // логгер компонента api
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) (*RestServer, error) {
	if config.Engine == nil {
		return nil, errors.New("api: движок не задан")
	}
	if config.Port == "" {
		config.Port = ":8088"
	}
	if config.Cache == nil {
		config.Cache = cache.NewMemoryCache()
	}
	if config.FrameTTL == 0 {
		config.FrameTTL = 30 * time.Second
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}
	if config.Source == "" {
		config.Source = "voxserver"
	}
	if config.Logger == nil {
		config.Logger = logging.GetAPILogger()
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware("voxel_api"))
	router.Use(middleware.NewRequestLogger(config.Logger).Handler())

	promMw := middleware.NewPrometheusMiddleware("voxel_api", config.Registry)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Registry)

	server := &RestServer{
		router:   router,
		port:     config.Port,
		engine:   config.Engine,
		store:    config.Store,
		frames:   config.Cache,
		frameTTL: config.FrameTTL,
		bus:      config.Bus,
		source:   config.Source,
		metrics:  NewServerMetrics(),
		tracer:   otel.Tracer("github.com/annel0/voxel-engine/internal/api"),
		log:      config.Logger,
	}

	server.outboundWebhooks = NewOutboundWebhookManager(config.Source, config.Logger)
	if config.Bus != nil {
		if err := server.outboundWebhooks.Attach(config.Bus); err != nil {
			return nil, fmt.Errorf("api: подписка вебхуков: %w", err)
		}
	}

	server.setupRoutes()
	return server, nil
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	// Middleware для CORS
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	api := rs.router.Group("/api")
	{
		api.GET("/stats", rs.handleStats)

		w := api.Group("/world")
		w.GET("", rs.handleWorldInfo)
		w.GET("/column", rs.handleColumn)
		w.GET("/voxel", rs.handleVoxel)
		w.POST("/edit", rs.handleEdit)
		w.POST("/update", rs.handleUpdate)
		w.POST("/save", rs.handleSave)
		w.POST("/load", rs.handleLoad)

		api.POST("/render", rs.handleRender)
		api.POST("/can-see", rs.handleCanSee)
		api.GET("/events/stream", rs.handleEventStream)

		// Управление исходящими webhook'ами
		hooks := api.Group("/webhooks")
		hooks.GET("", rs.handleGetOutboundWebhooks)
		hooks.POST("", rs.handleCreateOutboundWebhook)
		hooks.GET("/events", rs.handleGetWebhookEventTypes)
		hooks.GET("/:id", rs.handleGetOutboundWebhook)
		hooks.PUT("/:id", rs.handleUpdateOutboundWebhook)
		hooks.DELETE("/:id", rs.handleDeleteOutboundWebhook)
	}

	// Health check
	rs.router.GET("/health", rs.handleHealth)
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Handler возвращает http.Handler сервера (для тестов и встраивания)
func (rs *RestServer) Handler() http.Handler { return rs.router }

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// handleStats возвращает статистику процесса, движка и кеша
func (rs *RestServer) handleStats(c *gin.Context) {
	memoryMB, _ := rs.metrics.GetMemoryUsage()
	cpuPercent, _ := rs.metrics.GetCPUUsage()

	rs.mu.Lock()
	frame := rs.engine.LastFrame()
	rs.mu.Unlock()

	stats := map[string]interface{}{
		"server": map[string]interface{}{
			"uptime":      rs.metrics.GetUptime(),
			"memory_mb":   fmt.Sprintf("%.2f", memoryMB),
			"cpu_percent": fmt.Sprintf("%.2f", cpuPercent),
			"server_time": time.Now().Unix(),
		},
		"memory_details": rs.metrics.GetDetailedMemoryStats(),
		"last_frame": map[string]interface{}{
			"rays":        frame.Rays,
			"duration_ms": float64(frame.Duration.Microseconds()) / 1000,
		},
		"frame_cache": rs.frames.GetMetrics(),
	}
	if rs.bus != nil {
		stats["eventbus"] = rs.bus.Metrics()
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика получена",
		Data:    stats,
	})
}

// Start запускает REST сервер и блокируется до Shutdown
func (rs *RestServer) Start() error {
	rs.httpServer = &http.Server{
		Addr:              rs.port,
		Handler:           rs.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	rs.log.Info("REST API слушает %s", rs.port)
	if err := rs.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown останавливает HTTP-сервер и рассылку вебхуков
func (rs *RestServer) Shutdown(ctx context.Context) error {
	rs.outboundWebhooks.Close()
	if rs.httpServer == nil {
		return nil
	}
	return rs.httpServer.Shutdown(ctx)
}

// fail отвечает ошибкой движка с подходящим HTTP-статусом
func (rs *RestServer) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrInvalidParameter), errors.Is(err, engine.ErrOutOfBounds):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrNoWorld):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrInit):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		rs.log.Error("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, GenericResponse{Success: false, Message: err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: msg})
}

// publish отправляет событие в шину, если она настроена
func (rs *RestServer) publish(ctx context.Context, eventType string, payload interface{}) {
	if rs.bus == nil {
		return
	}
	env, err := eventbus.NewEnvelope(rs.source, eventType, payload)
	if err == nil {
		err = rs.bus.Publish(ctx, env)
	}
	if err != nil {
		rs.log.Warn("событие %s не опубликовано: %v", eventType, err)
	}
}
