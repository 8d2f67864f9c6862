package logging

import (
	"fmt"
	"sort"
	"sync"
)

// Компоненты с собственным файлом логов
const (
	ComponentEngine  = "engine"
	ComponentStorage = "storage"
	ComponentAPI     = "api"
)

// registry хранит логгеры компонентов; уровень консоли общий для всех
type registry struct {
	mu      sync.Mutex
	loggers map[string]*Logger
	level   LogLevel
}

var components = &registry{loggers: make(map[string]*Logger), level: INFO}

func (r *registry) get(component string) *Logger {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.loggers[component]; ok {
		return l
	}
	l, err := NewLogger(component)
	if err != nil {
		// Без файла, только консоль
		defaultLogger.Warn("логгер %s без файла: %v", component, err)
		l = NewConsoleLogger(component, defaultLogger.consoleLogger.Writer())
	}
	l.SetLevel(r.level)
	r.loggers[component] = l
	return l
}

// GetComponentLogger возвращает логгер компонента, создавая его при первом обращении
func GetComponentLogger(component string) *Logger {
	return components.get(component)
}

func GetEngineLogger() *Logger  { return GetComponentLogger(ComponentEngine) }
func GetStorageLogger() *Logger { return GetComponentLogger(ComponentStorage) }
func GetAPILogger() *Logger     { return GetComponentLogger(ComponentAPI) }

// SetLevel меняет уровень консоли пакетного логгера и всех компонентов,
// включая созданные позже
func SetLevel(level LogLevel) {
	components.mu.Lock()
	components.level = level
	for _, l := range components.loggers {
		l.SetLevel(level)
	}
	components.mu.Unlock()
	SetDefaultLevel(level)
}

// Components возвращает имена созданных логгеров по алфавиту
func Components() []string {
	components.mu.Lock()
	defer components.mu.Unlock()

	names := make([]string, 0, len(components.loggers))
	for name := range components.loggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CloseAll закрывает файлы всех логгеров компонентов
func CloseAll() error {
	components.mu.Lock()
	defer components.mu.Unlock()

	var firstErr error
	for name, l := range components.loggers {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("logging: закрытие %s: %w", name, err)
		}
		delete(components.loggers, name)
	}
	return firstErr
}
