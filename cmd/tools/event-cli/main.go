package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/annel0/voxel-engine/internal/eventbus"
)

const (
	defaultNATSURL = "nats://127.0.0.1:4222"
	timeFormat     = "2006-01-02T15:04:05Z"
)

func main() {
	var (
		natsURL    = flag.String("nats", defaultNATSURL, "NATS server address")
		stream     = flag.String("stream", "VOXEL_EDITS", "JetStream stream name")
		command    = flag.String("cmd", "tail", "Command: tail, stats, types")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated)")
		sources    = flag.String("sources", "", "Event sources filter (comma-separated)")
		limit      = flag.Int("limit", 0, "Stop after N events (0 = until Ctrl+C)")
		duration   = flag.Duration("for", 10*time.Second, "Collection window for stats")
	)
	flag.Parse()

	if *command == "types" {
		for _, t := range []string{eventbus.TypeWorldEdit, eventbus.TypeWorldSaved, eventbus.TypeWorldLoaded} {
			fmt.Println(t)
		}
		return
	}

	bus, err := eventbus.NewJetStreamBus(*natsURL, *stream, 0)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer bus.Close()

	filter := eventbus.Filter{
		Types:   parseStringList(*eventTypes),
		Sources: parseStringList(*sources),
	}

	switch *command {
	case "tail":
		if err := tailEvents(bus, filter, *limit); err != nil {
			log.Fatalf("Tail failed: %v", err)
		}
	case "stats":
		if err := showStats(bus, filter, *duration); err != nil {
			log.Fatalf("Stats failed: %v", err)
		}
	default:
		fmt.Printf("Unknown command: %s\n", *command)
		flag.Usage()
		os.Exit(1)
	}
}

// tailEvents печатает события по мере поступления
func tailEvents(bus eventbus.EventBus, filter eventbus.Filter, limit int) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("Tailing events (limit: %d)\n", limit)
	var mu sync.Mutex
	count := 0
	sub, err := bus.Subscribe(ctx, filter, func(_ context.Context, ev *eventbus.Envelope) {
		mu.Lock()
		defer mu.Unlock()
		if limit > 0 && count >= limit {
			return
		}
		printEvent(ev)
		count++
		if limit > 0 && count >= limit {
			cancel()
		}
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	fmt.Printf("\nTotal events: %d\n", count)
	return nil
}

// showStats считает события по типам за окно window
func showStats(bus eventbus.EventBus, filter eventbus.Filter, window time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), window)
	defer cancel()

	var mu sync.Mutex
	byType := make(map[string]int)
	voxels := 0
	sub, err := bus.Subscribe(ctx, filter, func(_ context.Context, ev *eventbus.Envelope) {
		mu.Lock()
		defer mu.Unlock()
		byType[ev.EventType]++
		if ev.EventType == eventbus.TypeWorldEdit {
			if we, err := eventbus.DecodeWorldEdit(ev); err == nil {
				voxels += boxVolume(we)
			}
		}
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	start := time.Now()
	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	fmt.Printf("Period: %s - %s\n", start.UTC().Format(timeFormat), time.Now().UTC().Format(timeFormat))
	for t, n := range byType {
		fmt.Printf("  %s: %d events\n", t, n)
	}
	fmt.Printf("Edited volume (bounding boxes): %d voxels\n", voxels)
	return nil
}

func boxVolume(we eventbus.WorldEdit) int {
	v := 1
	for i := 0; i < 3; i++ {
		d := we.Max[i] - we.Min[i] + 1
		if d <= 0 {
			return 0
		}
		v *= d
	}
	return v
}

func printEvent(ev *eventbus.Envelope) {
	fmt.Printf("[%s] %s/%s %s\n", ev.Timestamp.UTC().Format(timeFormat), ev.Source, ev.EventType, ev.ID)
	switch ev.EventType {
	case eventbus.TypeWorldEdit:
		if we, err := eventbus.DecodeWorldEdit(ev); err == nil {
			fmt.Printf("  %s %s %v..%v r%d\n", we.Op, we.Shape, we.Min, we.Max, we.Revision)
		}
	default:
		var payload map[string]interface{}
		if err := json.Unmarshal(ev.Payload, &payload); err == nil {
			fmt.Printf("  %v\n", payload)
		}
	}
}

func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
