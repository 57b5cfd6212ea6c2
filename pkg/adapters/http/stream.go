package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/intentflow/pkg/domain"
	"github.com/aretw0/intentflow/pkg/lifecycle"
)

const streamBuffer = 10

// ActionSnapshot labels the first frame of a stream, which carries the
// current snapshot rather than a change.
const ActionSnapshot domain.Action = "snapshot"

// StreamManager fans the changes of each workspace out to stream clients.
// One watcher per workspace runs while at least one client is subscribed.
type StreamManager struct {
	mu          sync.Mutex
	subscribers map[string]map[chan lifecycle.Change]struct{} // workspace -> set of channels
	pumps       map[string]context.CancelFunc
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan lifecycle.Change]struct{}),
		pumps:       make(map[string]context.CancelFunc),
		logger:      logger,
	}
}

// Subscribe registers a client for the workspace changes.
func (sm *StreamManager) Subscribe(st *lifecycle.Store) (<-chan lifecycle.Change, func()) {
	key := st.Key()

	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan lifecycle.Change, streamBuffer)
	subs, ok := sm.subscribers[key]
	if !ok {
		subs = make(map[chan lifecycle.Change]struct{})
		sm.subscribers[key] = subs

		ctx, cancel := context.WithCancel(context.Background())
		sm.pumps[key] = cancel
		go sm.pump(ctx, key, st.Watch(ctx))
	}
	subs[ch] = struct{}{}

	return ch, func() { sm.unsubscribe(key, ch) }
}

func (sm *StreamManager) unsubscribe(key string, ch chan lifecycle.Change) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	subs, ok := sm.subscribers[key]
	if !ok {
		return
	}
	if _, ok := subs[ch]; !ok {
		return
	}
	delete(subs, ch)
	close(ch)
	if len(subs) == 0 {
		sm.stop(key)
	}
}

// Drop disconnects every client of the workspace.
func (sm *StreamManager) Drop(key string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for ch := range sm.subscribers[key] {
		close(ch)
	}
	sm.stop(key)
}

func (sm *StreamManager) stop(key string) {
	if cancel, ok := sm.pumps[key]; ok {
		cancel()
	}
	delete(sm.pumps, key)
	delete(sm.subscribers, key)
}

func (sm *StreamManager) pump(ctx context.Context, key string, changes <-chan lifecycle.Change) {
	for c := range changes {
		if ctx.Err() != nil {
			return
		}
		sm.Broadcast(key, c)
	}
}

// Broadcast delivers c to every client of the workspace, dropping it for
// clients whose buffer is full.
func (sm *StreamManager) Broadcast(key string, c lifecycle.Change) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for ch := range sm.subscribers[key] {
		select {
		case ch <- c:
		default:
			sm.logger.Warn("Stream client buffer full, dropping change", "workspace", key, "seq", c.Snapshot.Seq)
		}
	}
}

// parseWatch splits the comma separated watch filter.
func parseWatch(raw string) []string {
	var areas []string
	for _, area := range strings.Split(raw, ",") {
		if area = strings.TrimSpace(area); area != "" {
			areas = append(areas, area)
		}
	}
	return areas
}

// wanted reports whether a change passes the watch filter. Changes without a
// diff (hydration, identical snapshots) only pass an empty filter.
func wanted(c lifecycle.Change, areas []string) bool {
	if len(areas) == 0 {
		return true
	}
	for _, area := range areas {
		if c.Diff.Touches(area) {
			return true
		}
	}
	return false
}

// SubscribeEvents streams workspace changes as server-sent events. The
// optional watch parameter restricts the stream to changes touching the
// listed areas.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}
	st, err := s.open(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(st)
	defer cancel()
	if s.Metrics != nil {
		defer s.Metrics.TrackSubscriber("sse")()
	}
	watch := parseWatch(r.URL.Query().Get("watch"))
	s.logger.Info("SSE: Subscribing to workspace", "workspace", st.Key(), "watch", watch)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	if err := writeEvent(w, "snapshot", lifecycle.Change{Action: ActionSnapshot, Snapshot: st.Snapshot()}); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected", "workspace", st.Key())
			return
		case c, ok := <-ch:
			if !ok {
				return
			}
			if !wanted(c, watch) {
				continue
			}
			if err := writeEvent(w, "", c); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, c lifecycle.Change) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if event != "" {
		_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	} else {
		_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	}
	return err
}
