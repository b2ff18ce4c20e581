package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/blogsync/internal/articles"
)

// collect reads frames from ch for d.
func collect(ch chan []byte, d time.Duration) []string {
	var out []string
	deadline := time.After(d)
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, string(msg))
		case <-deadline:
			return out
		}
	}
}

func countType(frames []string, typ string) int {
	n := 0
	for _, f := range frames {
		if strings.Contains(f, "event: "+typ+"\n") {
			n++
		}
	}
	return n
}

func TestBroker_ClientLifecycle(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	a, c := b.Subscribe(), b.Subscribe()
	if n := b.ClientCount(); n != 2 {
		t.Fatalf("clients = %d, want 2", n)
	}
	b.Unsubscribe(a)
	if _, ok := <-a; ok {
		t.Error("unsubscribed channel still open")
	}
	if n := b.ClientCount(); n != 1 {
		t.Errorf("clients = %d, want 1", n)
	}
	b.Unsubscribe(c)
}

func TestBroker_NotifyCarriesArticlePayload(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Notify(articles.ChangeEvent{Kind: articles.EventGenerated, Path: "data/md/a.md", Title: "A", Articles: 3})

	frames := collect(ch, 100*time.Millisecond)
	if len(frames) != 2 {
		t.Fatalf("frames = %q, want article event and index.changed", frames)
	}
	want := "id: 1\nevent: article.generated\ndata: {\"path\":\"data/md/a.md\",\"title\":\"A\",\"articles\":3}\n\n"
	if frames[0] != want {
		t.Errorf("frame = %q, want %q", frames[0], want)
	}
	if !strings.HasPrefix(frames[1], "id: 2\nevent: index.changed\n") || !strings.Contains(frames[1], `"articles":3`) {
		t.Errorf("summary frame = %q", frames[1])
	}
}

func TestBroker_IndexChangedCoalesced(t *testing.T) {
	b := NewBroker(150 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Notify(articles.ChangeEvent{Kind: articles.EventUpdated, Path: "data/md/a.md", Articles: 3})
	b.Notify(articles.ChangeEvent{Kind: articles.EventUpdated, Path: "data/md/b.md", Articles: 3})
	b.Notify(articles.ChangeEvent{Kind: articles.EventGenerated, Path: "data/md/c.md", Articles: 4})

	early := collect(ch, 50*time.Millisecond)
	if n := countType(early, articles.EventUpdated) + countType(early, articles.EventGenerated); n != 3 {
		t.Errorf("article events = %d, want 3", n)
	}
	if n := countType(early, EventIndexChanged); n != 1 {
		t.Errorf("index.changed inside window = %d, want 1", n)
	}

	late := collect(ch, 300*time.Millisecond)
	if n := countType(late, EventIndexChanged); n != 1 {
		t.Fatalf("trailing index.changed = %d, want 1 (%q)", n, late)
	}
	if !strings.Contains(late[0], `"articles":4`) || !strings.Contains(late[0], `"lastPath":"data/md/c.md"`) {
		t.Errorf("trailing summary = %q, want latest state", late[0])
	}
}

func TestBroker_SlowClientDoesNotBlock(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	slow := b.Subscribe()
	defer b.Unsubscribe(slow)

	for i := 0; i < clientBuffer+10; i++ {
		b.Publish(Event{Type: articles.EventRebuilt, Data: map[string]int{"n": i}})
	}
	deadline := time.Now().Add(time.Second)
	for len(slow) < clientBuffer {
		if time.Now().After(deadline) {
			t.Fatalf("buffered = %d, want %d", len(slow), clientBuffer)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if n := b.ClientCount(); n != 1 {
		t.Errorf("clients = %d, want the slow client kept", n)
	}
}

// flushRecorder is an httptest.ResponseRecorder safe to read while the
// handler is still writing.
type flushRecorder struct {
	mu  sync.Mutex
	rec *httptest.ResponseRecorder
}

func (f *flushRecorder) Header() http.Header { return f.rec.Header() }

func (f *flushRecorder) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rec.Write(p)
}

func (f *flushRecorder) WriteHeader(code int) { f.rec.WriteHeader(code) }

func (f *flushRecorder) Flush() {}

func (f *flushRecorder) body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rec.Body.String()
}

func TestBroker_ServeHTTP(t *testing.T) {
	b := NewBroker(time.Hour)
	b.keepAlive = 20 * time.Millisecond
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := &flushRecorder{rec: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for b.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	b.Notify(articles.ChangeEvent{Kind: articles.EventUpdated, Path: "data/md/x.md", Title: "X", Articles: 1})
	time.Sleep(60 * time.Millisecond)
	cancel()
	<-done

	body := w.body()
	if w.rec.Header().Get("Content-Type") != "text/event-stream" {
		t.Errorf("content type = %q", w.rec.Header().Get("Content-Type"))
	}
	for _, want := range []string{"retry: 3000\n\n", "event: article.updated\n", `"title":"X"`, ": keep-alive\n\n"} {
		if !strings.Contains(body, want) {
			t.Errorf("stream missing %q:\n%s", want, body)
		}
	}

	deadline = time.Now().Add(time.Second)
	for b.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client not removed after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroker_CloseDisconnectsClients(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()

	b.Close()
	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("subscriber channel still open")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
	if n := b.ClientCount(); n != 0 {
		t.Errorf("clients after close = %d", n)
	}

	b.Publish(Event{Type: articles.EventUpdated})
	b.Notify(articles.ChangeEvent{Kind: articles.EventUpdated})
	if _, ok := <-b.Subscribe(); ok {
		t.Error("subscribe after close returned an open channel")
	}
}
