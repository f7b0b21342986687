package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"bazaar.com/internal/domain/entity"
	"bazaar.com/internal/infrastructure/logger"
)

const (
	streamBuffer    = 64
	streamWriteWait = 10 * time.Second
	streamPingEvery = 30 * time.Second
)

// EventSubscriber is satisfied by the in-process event bus
type EventSubscriber interface {
	Subscribe(ctx context.Context, topic string, consumer string, handler func(context.Context, entity.Event) error)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EventStream fans committed ledger events out to websocket clients. Streams
// are closed when the lifetime context passed to NewEventStream is done, since
// http.Server.Shutdown does not track hijacked connections.
type EventStream struct {
	lifetime   context.Context
	subscriber EventSubscriber
	topics     []string
	logger     logger.Logger
}

func NewEventStream(lifetime context.Context, subscriber EventSubscriber, topics []string, logger logger.Logger) *EventStream {
	return &EventStream{
		lifetime:   lifetime,
		subscriber: subscriber,
		topics:     topics,
		logger:     logger,
	}
}

// ServeHTTP handles GET /events/stream. An optional ?type= filter restricts
// the stream to one event type.
func (s *EventStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger := requestLoggerFrom(r.Context(), s.logger)
	filter := entity.EventType(r.URL.Query().Get("type"))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		requestLogger.LogWarning(r.Context(), "WebSocket upgrade failed", "reason", err.Error())
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(s.lifetime)
	defer cancel()

	events := make(chan entity.Event, streamBuffer)
	for _, topic := range s.topics {
		s.subscriber.Subscribe(ctx, topic, "websocket:"+RequestID(r.Context()), func(ctx context.Context, event entity.Event) error {
			if filter != "" && event.Type != filter {
				return nil
			}
			select {
			case events <- event:
			case <-ctx.Done():
			default:
				// Slow client, drop
			}
			return nil
		})
	}

	// Reader detects the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingEvery)
	defer ping.Stop()

	requestLogger.LogInfo(r.Context(), "Event stream opened", "filter", string(filter))
	for {
		select {
		case <-ctx.Done():
			if s.lifetime.Err() != nil {
				msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteWait))
			}
			requestLogger.LogInfo(r.Context(), "Event stream closed")
			return
		case event := <-events:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}
