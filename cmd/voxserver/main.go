package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/annel0/voxel-engine/internal/api"
	"github.com/annel0/voxel-engine/internal/cache"
	"github.com/annel0/voxel-engine/internal/config"
	"github.com/annel0/voxel-engine/internal/engine"
	"github.com/annel0/voxel-engine/internal/eventbus"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/observability"
	"github.com/annel0/voxel-engine/internal/storage"
	"github.com/annel0/voxel-engine/internal/storage_adapter"
	"github.com/annel0/voxel-engine/internal/storage_interface"
)

const source = "voxserver"

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $VOXEL_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}
	if cfg.Logging.Dir != "" {
		logging.LogDir = cfg.Logging.Dir
	}
	if err := logging.InitDefaultLogger(source); err != nil {
		log.Fatalf("Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer logging.CloseAll()
	logging.SetLevel(logging.ParseLevel(cfg.Logging.Level))

	logging.Info("Запуск voxel-engine сервера...")

	ctx := context.Background()
	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		log.Fatalf("Ошибка инициализации OpenTelemetry: %v", err)
	}
	defer shutdownTelemetry(ctx)

	// === МЕТРИКИ ===
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// === ШИНА СОБЫТИЙ ===
	bus, err := newBus(cfg.EventBus)
	if err != nil {
		log.Fatalf("Ошибка подключения шины событий: %v", err)
	}
	defer bus.Close()
	if _, err := eventbus.StartLoggingListener(bus); err != nil {
		logging.Warn("LoggingListener не запущен: %v", err)
	}
	exporter := eventbus.NewMetricsExporter(bus, reg)
	exporter.Start(time.Second)
	defer exporter.Stop()

	// === ХРАНИЛИЩЕ И ДВИЖОК ===
	store, err := storage_adapter.NewStorageProvider(cfg.Storage)
	if err != nil {
		log.Fatalf("Ошибка открытия хранилища: %v", err)
	}
	defer store.Close()

	eng, err := engine.New(cfg,
		engine.WithMetrics(engine.NewMetrics(reg)),
		engine.WithEditHook(eventbus.EditHook(bus, source)),
	)
	if err != nil {
		log.Fatalf("Ошибка создания движка: %v", err)
	}
	defer eng.Close()

	if err := loadWorld(eng, store, cfg.Engine.MipLevels); err != nil {
		log.Fatalf("Ошибка загрузки мира: %v", err)
	}

	frames, err := cache.New(cfg.Cache.GetRedisURL(), cfg.Cache.TTLSeconds)
	if err != nil {
		logging.Warn("Redis недоступен (%v), кадры кешируются в памяти", err)
		frames = cache.NewMemoryCache()
	}
	defer frames.Close()

	// === REST API ===
	server, err := api.NewRestServer(api.Config{
		Port:     ":" + strconv.Itoa(cfg.Server.GetRESTPort()),
		Engine:   eng,
		Store:    store,
		Cache:    frames,
		FrameTTL: time.Duration(cfg.Cache.TTLSeconds) * time.Second,
		Bus:      bus,
		Source:   source,
		Registry: reg,
	})
	if err != nil {
		log.Fatalf("Ошибка создания REST API: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	logging.Info("Сервер готов: REST API http://localhost:%d, /metrics, /health", cfg.Server.GetRESTPort())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info("Получен сигнал %v, завершение работы...", sig)
	case err := <-errCh:
		if err != nil {
			logging.Error("REST API остановлен с ошибкой: %v", err)
		}
	}

	// === GRACEFUL SHUTDOWN ===
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error("Ошибка остановки REST API: %v", err)
	}

	if n, err := store.SaveDirty(eng.World()); err != nil {
		logging.Error("Ошибка сохранения мира: %v", err)
	} else {
		logging.Info("Сохранено колонок: %d", n)
	}
	logging.Info("Сервер остановлен")
}

// newBus выбирает JetStream при заданном адресе NATS, иначе шину в памяти
func newBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	url := cfg.GetURL()
	if url == "" {
		return eventbus.NewMemoryBus(1024), nil
	}
	return eventbus.NewJetStreamBus(url, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
}

// loadWorld восстанавливает мир из хранилища; при пустом хранилище генерирует карту по умолчанию
func loadWorld(eng *engine.Engine, store storage_interface.WorldStore, mipLevels int) error {
	w, err := store.LoadWorld(mipLevels)
	switch {
	case err == nil:
		logging.Info("Мир загружен из хранилища: %dx%dx%d", w.VSID(), w.VSID(), w.MaxZ())
		return eng.SetWorld(w)
	case errors.Is(err, storage.ErrNoWorld):
		logging.Info("Хранилище пусто, генерируется карта по умолчанию")
		if err := eng.LoadDefaultMap(); err != nil {
			return err
		}
		return store.SaveWorld(eng.World())
	default:
		return err
	}
}
