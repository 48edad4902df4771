package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"ecostore/internal/events"
	"ecostore/internal/middleware"
	"ecostore/internal/services"
)

// StreamEvent is the SSE event name used for order frames.
const StreamEvent = "order"

// StreamHandler serves the admin dashboard's live order feed as
// server-sent events.
type StreamHandler struct {
	broadcaster *events.Broadcaster
	authService *services.AuthService
	// Heartbeat is the interval between keep-alive comments. It is also how
	// quickly a vanished client is noticed.
	Heartbeat time.Duration
	// MaxAge closes a stream after it has been open this long; clients
	// reconnect. Zero keeps streams open until the client leaves.
	MaxAge time.Duration
}

// NewStreamHandler creates a StreamHandler fed by broadcaster.
func NewStreamHandler(broadcaster *events.Broadcaster, authService *services.AuthService, heartbeat time.Duration) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return &StreamHandler{
		broadcaster: broadcaster,
		authService: authService,
		Heartbeat:   heartbeat,
	}
}

// RegisterRoutes registers GET /orders/stream.
func (h *StreamHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/orders/stream", middleware.AuthRequired(h.authService), h.HandleStream)
}

// HandleStream writes order events to the client until it disconnects.
func (h *StreamHandler) HandleStream(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	feed, cancel := h.broadcaster.Subscribe()
	remote := c.IP()
	heartbeat, maxAge := h.Heartbeat, h.MaxAge

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		log.Printf("Order stream opened for %s", remote)

		fmt.Fprintf(w, "retry: %d\n\n", heartbeat.Milliseconds())
		if err := w.Flush(); err != nil {
			return
		}

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		var expired <-chan time.Time
		if maxAge > 0 {
			timer := time.NewTimer(maxAge)
			defer timer.Stop()
			expired = timer.C
		}

		for {
			select {
			case event, ok := <-feed:
				if !ok {
					return
				}
				if err := writeEvent(w, event); err != nil {
					log.Printf("Order stream for %s closed: %v", remote, err)
					return
				}
			case <-ticker.C:
				fmt.Fprint(w, ": ping\n\n")
				if err := w.Flush(); err != nil {
					log.Printf("Order stream for %s closed: %v", remote, err)
					return
				}
			case <-expired:
				return
			}
		}
	}))
	return nil
}

func writeEvent(w *bufio.Writer, event events.OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.ID, StreamEvent, data)
	return w.Flush()
}
