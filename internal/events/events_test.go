package events

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPublishDropsForSlowSubscriber(t *testing.T) {
	b := NewBroker()
	id, ch := b.Subscribe()
	defer b.Unsubscribe(id)

	for i := 0; i < subscriberBufSize+10; i++ {
		b.Publish(Event{Feed: FeedState, Payload: "x"})
	}
	if got := len(ch); got != subscriberBufSize {
		t.Fatalf("buffered = %d; want %d", got, subscriberBufSize)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	id, ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d; want 1", b.ClientCount())
	}
	b.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Fatal("channel still open after Unsubscribe")
	}
	if b.ClientCount() != 0 {
		t.Fatalf("ClientCount() = %d; want 0", b.ClientCount())
	}
}

func TestPublishJSONNilPublisher(t *testing.T) {
	PublishJSON(nil, FeedState, map[string]string{"a": "b"})
}

func TestSSEHandlerFiltersFeeds(t *testing.T) {
	b := NewBroker()
	srv := httptest.NewServer(SSEHandler(b))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?feeds=export", nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q; want text/event-stream", ct)
	}

	for b.ClientCount() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	b.Publish(Event{Feed: FeedState, Payload: `{"state":"AwaitSession"}`})
	PublishJSON(b, FeedExport, map[string]int{"products": 2})

	sc := bufio.NewScanner(resp.Body)
	var lines []string
	for sc.Scan() {
		if sc.Text() == "" {
			break
		}
		lines = append(lines, sc.Text())
	}
	got := strings.Join(lines, "\n")
	if want := "id: 1\nevent: export\ndata: {\"products\":2}"; got != want {
		t.Fatalf("stream = %q; want %q", got, want)
	}
}

func TestSSEHandlerRejectsUnknownFeed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?feeds=export,quotes", nil)
	w := httptest.NewRecorder()
	SSEHandler(NewBroker())(w, req)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), `unknown feed "quotes"`) {
		t.Fatalf("response = %d %q; want 400 unknown feed", w.Code, w.Body.String())
	}
}

func TestParseFeeds(t *testing.T) {
	got, err := ParseFeeds(" Export , fault,")
	if err != nil {
		t.Fatalf("ParseFeeds() error = %v", err)
	}
	if len(got) != 2 || !got[FeedExport] || !got[FeedFault] {
		t.Fatalf("ParseFeeds() = %v; want export and fault", got)
	}
	for _, q := range []string{"", " , "} {
		if all, err := ParseFeeds(q); all != nil || err != nil {
			t.Fatalf("ParseFeeds(%q) = %v, %v; want nil, nil", q, all, err)
		}
	}
}
