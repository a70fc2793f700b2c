package events

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"
)

// Feeds lists every feed the crawler publishes.
var Feeds = []string{FeedState, FeedProduct, FeedExport, FeedFault}

// ParseFeeds reads a comma separated feed filter. An empty filter selects
// every feed; unknown names are rejected.
func ParseFeeds(q string) (map[string]bool, error) {
	if strings.TrimSpace(q) == "" {
		return nil, nil
	}
	out := make(map[string]bool)
	for _, f := range strings.Split(q, ",") {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		if !slices.Contains(Feeds, f) {
			return nil, fmt.Errorf("unknown feed %q (want one of %s)", f, strings.Join(Feeds, ", "))
		}
		out[f] = true
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// heartbeat keeps idle streams open through proxies while the crawler sits
// off-session.
const heartbeat = 30 * time.Second

// SSEHandler streams crawler events. Clients may filter feeds via
// ?feeds=product,export. Each event carries an increasing id.
func SSEHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}
		feedFilter, err := ParseFeeds(r.URL.Query().Get("feeds"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		var seq uint64
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				fmt.Fprint(w, ": keep-alive\n\n")
				flusher.Flush()
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if feedFilter != nil && !feedFilter[evt.Feed] {
					continue
				}
				seq++
				fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", seq, evt.Feed, evt.Payload)
				flusher.Flush()
			}
		}
	}
}
