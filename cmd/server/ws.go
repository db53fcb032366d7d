package main

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-toan6/internal/progress"
)

const wsWriteTimeout = 5 * time.Second

// outlineHub fans outline updates out to websocket subscribers. Each subscriber only ever
// holds the latest outline.
type outlineHub struct {
	mu     sync.Mutex
	subs   map[chan progress.Outline]struct{}
	closed bool
}

func newOutlineHub() *outlineHub {
	return &outlineHub{subs: make(map[chan progress.Outline]struct{})}
}

func (h *outlineHub) subscribe() (<-chan progress.Outline, func()) {
	ch := make(chan progress.Outline, 1)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
}

// broadcast replaces any undelivered outline with o. It never blocks.
func (h *outlineHub) broadcast(o progress.Outline) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case <-ch:
		default:
		}
		ch <- o
	}
}

func (h *outlineHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

func (h *outlineHub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// handler sends the current outline on connect and every update after it.
func (h *outlineHub) handler(current func() progress.Outline) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			slog.Warn("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		updates, unsubscribe := h.subscribe()
		defer unsubscribe()

		ctx := conn.CloseRead(r.Context())
		if err := writeOutline(ctx, conn, current()); err != nil {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case o, ok := <-updates:
				if !ok {
					conn.Close(websocket.StatusGoingAway, "server shutting down")
					return
				}
				if err := writeOutline(ctx, conn, o); err != nil {
					slog.Debug("outline subscriber gone", "error", err)
					return
				}
			}
		}
	})
}

func writeOutline(ctx context.Context, conn *websocket.Conn, o progress.Outline) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, map[string]any{"type": "outline", "outline": o})
}
