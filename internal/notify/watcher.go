// Package notify follows the backend's live order feed.
package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"ecostore/internal/events"
)

// ErrUnauthorized is returned when the feed rejects the admin token.
var ErrUnauthorized = errors.New("order stream: admin token rejected")

var errStreamClosed = errors.New("stream closed by server")

// Config configures a Watcher.
type Config struct {
	// URL is the full stream endpoint, e.g. http://host/api/orders/stream.
	URL   string
	Token string
	// RetryBase is the first reconnect delay; it doubles up to MaxRetry.
	RetryBase time.Duration
	MaxRetry  time.Duration
}

// Watcher reads order events from the server-sent event feed and
// reconnects when the connection drops.
type Watcher struct {
	cfg    Config
	client *http.Client
}

// NewWatcher creates a Watcher for cfg.
func NewWatcher(cfg Config) *Watcher {
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.MaxRetry < cfg.RetryBase {
		cfg.MaxRetry = 30 * time.Second
	}
	return &Watcher{cfg: cfg, client: &http.Client{}}
}

// Watch calls handler for each order event until ctx is done or the token is
// rejected.
func (w *Watcher) Watch(ctx context.Context, handler func(events.OrderEvent)) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.cfg.RetryBase
	b.MaxInterval = w.cfg.MaxRetry
	b.MaxElapsedTime = 0
	b.Reset()

	for {
		connected, err := w.stream(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrUnauthorized) {
			return err
		}
		if connected {
			b.Reset()
		}

		wait := b.NextBackOff()
		log.Printf("Order stream disconnected: %v; reconnecting in %s", err, wait)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// stream runs one connection. connected reports whether the server accepted
// it, so the caller can reset its backoff.
func (w *Watcher) stream(ctx context.Context, handler func(events.OrderEvent)) (connected bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.cfg.URL, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")
	if w.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+w.cfg.Token)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return false, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return false, fmt.Errorf("order stream: unexpected status %d", resp.StatusCode)
	}

	err = readFrames(resp.Body, func(f frame) {
		if f.event != "" && f.event != "order" {
			return
		}
		var event events.OrderEvent
		if err := json.Unmarshal([]byte(f.data), &event); err != nil {
			log.Printf("Skipping malformed order frame %q: %v", f.id, err)
			return
		}
		handler(event)
	})
	if err == nil {
		err = errStreamClosed
	}
	return true, err
}

type frame struct {
	id    string
	event string
	data  string
}

// readFrames parses a server-sent event stream and calls fn for every frame
// that carries data. Comments and retry hints are skipped. It returns nil
// at EOF.
func readFrames(r io.Reader, fn func(frame)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var cur frame
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if len(data) > 0 {
				cur.data = strings.Join(data, "\n")
				fn(cur)
			}
			cur, data = frame{}, nil
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "id":
			cur.id = value
		case "event":
			cur.event = value
		case "data":
			data = append(data, value)
		}
	}
	return scanner.Err()
}
