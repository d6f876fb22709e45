package analytics

import (
	"context"
	"sync"
	"time"
)

const maxEvents = 100

// Event описывает одно продуктовое событие.
type Event struct {
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Stats содержит сводку по накопленным событиям.
type Stats struct {
	Total  int            `json:"total"`
	ByName map[string]int `json:"byName"`
	Recent []Event        `json:"recent"`
}

// Tracker накапливает события в памяти (не более maxEvents последних) и держит
// очередь на отправку во внешний коллектор, если он настроен.
type Tracker struct {
	mu      sync.Mutex
	events  []Event
	pending []Event
	client  *Client
}

// NewTracker создаёт трекер событий. client может быть nil — тогда события
// только накапливаются в памяти.
func NewTracker(client *Client) *Tracker {
	return &Tracker{client: client}
}

// Track регистрирует событие.
func (t *Tracker) Track(name string, properties map[string]any) {
	e := Event{
		Name:       name,
		Properties: properties,
		Timestamp:  time.Now(),
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.events = append(t.events, e)
	if len(t.events) > maxEvents {
		t.events = t.events[len(t.events)-maxEvents:]
	}

	if t.client != nil {
		t.pending = append(t.pending, e)
	}
}

// GetStats возвращает сводку по накопленным событиям.
func (t *Tracker) GetStats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	byName := make(map[string]int, len(t.events))
	for _, e := range t.events {
		byName[e.Name]++
	}

	recent := t.events
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}

	return Stats{
		Total:  len(t.events),
		ByName: byName,
		Recent: append([]Event(nil), recent...),
	}
}

// StartFlush запускает фоновую отправку накопленных событий коллектору.
// Без настроенного клиента ничего не делает.
func (t *Tracker) StartFlush(ctx context.Context, interval time.Duration) {
	if t.client == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.flush(ctx)
			}
		}
	}()
}

func (t *Tracker) flush(ctx context.Context) {
	t.mu.Lock()
	batch := t.pending
	t.pending = nil
	t.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	if err := t.client.SendEvents(ctx, batch); err != nil {
		// Возвращаем пакет в очередь, отправим в следующий тик.
		t.mu.Lock()
		t.pending = append(batch, t.pending...)
		t.mu.Unlock()
	}
}
