// Package notify рассылает события изменения документов подписчикам.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Topic - вид документа, на изменения которого подписываются.
type Topic string

const (
	TopicPosts    Topic = "posts"
	TopicIdeas    Topic = "ideas"
	TopicStrategy Topic = "strategy"
	TopicSettings Topic = "settings"
)

// Event - одно изменение.
type Event struct {
	Topic  Topic     `json:"topic"`
	Action string    `json:"action"`
	ID     string    `json:"id"`
	Data   any       `json:"data,omitempty"`
	At     time.Time `json:"at"`
}

// Observer хранит каналы подписчиков.
type Observer struct {
	mu sync.RWMutex
	//   map[topic] map[subscriberID] channel
	subs   map[Topic]map[string]chan Event
	buffer int
}

// NewObserver - конструктор наблюдателя. buffer - емкость канала подписчика.
func NewObserver(buffer int) *Observer {
	if buffer < 1 {
		buffer = 1
	}
	return &Observer{
		subs:   make(map[Topic]map[string]chan Event),
		buffer: buffer,
	}
}

// Subscribe возвращает канал событий по topics (пусто - все темы).
// Канал закрывается, когда ctx отменен.
func (o *Observer) Subscribe(ctx context.Context, topics ...Topic) <-chan Event {
	if len(topics) == 0 {
		topics = []Topic{TopicPosts, TopicIdeas, TopicStrategy, TopicSettings}
	}
	ch := make(chan Event, o.buffer)
	subID := uuid.NewString()

	o.mu.Lock()
	for _, t := range topics {
		if o.subs[t] == nil {
			o.subs[t] = make(map[string]chan Event)
		}
		o.subs[t][subID] = ch
	}
	o.mu.Unlock()

	// Горутина для очистки при отключении клиента
	go func() {
		<-ctx.Done()
		o.mu.Lock()
		for _, t := range topics {
			if topicSubs, ok := o.subs[t]; ok {
				delete(topicSubs, subID)
				if len(topicSubs) == 0 {
					delete(o.subs, t)
				}
			}
		}
		close(ch)
		o.mu.Unlock()
	}()

	return ch
}

// Publish рассылает событие без блокировки: медленный подписчик его пропускает.
func (o *Observer) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, ch := range o.subs[e.Topic] {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribers возвращает число подписчиков темы.
func (o *Observer) Subscribers(t Topic) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.subs[t])
}
