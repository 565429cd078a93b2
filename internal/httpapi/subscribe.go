package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/UkralStul/content-alchemy/internal/notify"
	"github.com/gorilla/websocket"
)

const (
	keepAlivePingInterval = 10 * time.Second
	writeWait             = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// subscribe отдает события изменений в websocket. ?topics=posts,ideas
// ограничивает темы, по умолчанию - все.
func (s *Server) subscribe(w http.ResponseWriter, r *http.Request) {
	var topics []notify.Topic
	if raw := r.URL.Query().Get("topics"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			topics = append(topics, notify.Topic(strings.TrimSpace(t)))
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := s.Observer.Subscribe(ctx, topics...)

	// Читаем, чтобы заметить закрытие соединения клиентом
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(keepAlivePingInterval)
	defer ping.Stop()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
