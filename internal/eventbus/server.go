package eventbus

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// A same-machine control-plane surface has no browser-origin threat
	// model to enforce; the embedding process decides who can reach this
	// port at all.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Router builds the chi-routed HTTP surface this package requires the core
// to expose for its out-of-scope UI collaborator: a websocket event feed
// at /events and a Prometheus scrape endpoint at /metrics.
func (b *Bus) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/events", b.serveWS)
	r.Handle("/metrics", promhttp.HandlerFor(b.metrics.registry, promhttp.HandlerOpts{}))
	return r
}

func (b *Bus) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	frames, unsubscribe := b.Subscribe()
	defer unsubscribe()

	// A read pump drains (and discards) client messages solely to notice
	// disconnects via the resulting error/close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			data, err := json.Marshal(f)
			if err != nil {
				b.log.Warn().Err(err).Str("kind", string(f.Kind)).Msg("marshal frame")
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}
