package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/eligibility-intake/internal/app"
)

type sseEvent struct {
	name string
	data []byte
}

// readEvents parses an event stream until it ends or ctx is done.
func readEvents(ctx context.Context, body io.Reader) <-chan sseEvent {
	out := make(chan sseEvent, 16)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(body)
		var name string
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				select {
				case out <- sseEvent{name: name, data: []byte(strings.TrimPrefix(line, "data: "))}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func nextEvent(t *testing.T, events <-chan sseEvent) (sseEvent, bool) {
	t.Helper()
	select {
	case ev, ok := <-events:
		return ev, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return sseEvent{}, false
	}
}

func openStream(t *testing.T, ctx context.Context, client *http.Client, url string) <-chan sseEvent {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/api/view/stream", nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	return readEvents(ctx, resp.Body)
}

func TestViewStream_PushesChanges(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.handler)
	defer ts.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}
	defer client.CloseIdleConnections()

	resp, err := client.Get(ts.URL + "/api/view")
	require.NoError(t, err)
	resp.Body.Close()

	events := openStream(t, ctx, client, ts.URL)
	ev, ok := nextEvent(t, events)
	require.True(t, ok)
	assert.Equal(t, "view", ev.name)
	var view app.View
	require.NoError(t, json.Unmarshal(ev.data, &view))
	assert.Equal(t, app.StateCollecting, view.State)

	resp, err = client.Post(ts.URL+"/api/auth/show", "application/json", strings.NewReader(`{"mode":"login"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ev, ok = nextEvent(t, events)
	require.True(t, ok)
	require.NoError(t, json.Unmarshal(ev.data, &view))
	assert.Equal(t, app.StateAuthenticating, view.State)
	assert.Equal(t, app.AuthLogin, view.AuthMode)
}

func TestViewStream_EndsOnShutdown(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.handler)
	defer ts.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &http.Client{}
	defer client.CloseIdleConnections()

	events := openStream(t, ctx, client, ts.URL)
	_, ok := nextEvent(t, events)
	require.True(t, ok)

	close(f.server.shutdown)

	ev, ok := nextEvent(t, events)
	require.True(t, ok)
	assert.Equal(t, "error", ev.name)
	_, ok = nextEvent(t, events)
	assert.False(t, ok, "stream should end after shutdown")
}
