package notify

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mbolis/quick-questionnaire/export"
	"github.com/mbolis/quick-questionnaire/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type endpoint struct {
	mu       sync.Mutex
	statuses []int
	bodies   [][]byte
	headers  []http.Header
}

func (e *endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bodies = append(e.bodies, body)
	e.headers = append(e.headers, r.Header.Clone())
	status := http.StatusOK
	if n := len(e.bodies); n <= len(e.statuses) {
		status = e.statuses[n-1]
	}
	w.WriteHeader(status)
}

func (e *endpoint) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.bodies)
}

func payload() Payload {
	inst := model.Instance{ID: "q1", Variant: model.Motion, ClientName: "Acme", ProductName: "Widget"}
	rows := []export.Row{{Section: "Basics", Question: "Idea?", Answer: "A video", Files: []string{}}}
	return NewPayload(inst, "http://localhost/questionnaires/motion/acme?token=t", time.Date(2024, 1, 2, 3, 4, 5, 6e6, time.UTC), rows)
}

func TestNotifyPostsPayload(t *testing.T) {
	defer goleak.VerifyNone(t)
	ep := &endpoint{}
	srv := httptest.NewServer(ep)
	defer srv.Close()

	n := New(srv.URL, time.Second)
	n.Notify(payload())
	n.Wait()

	require.Equal(t, 1, ep.calls())
	assert.Equal(t, "application/json; charset=utf-8", ep.headers[0].Get("Content-Type"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(ep.bodies[0], &got))
	assert.Equal(t, "q1", got["questionnaire_id"])
	assert.Equal(t, "motion", got["variant"])
	assert.Equal(t, "2024-01-02T03:04:05.006Z", got["submitted_at"])
	assert.Equal(t, "http://localhost/questionnaires/motion/acme?token=t", got["link"])
	responses := got["responses"].([]any)
	require.Len(t, responses, 1)
	assert.Equal(t, map[string]any{"section": "Basics", "question": "Idea?", "answer": "A video", "files": []any{}}, responses[0])
}

func TestNotifyRetriesServerErrors(t *testing.T) {
	defer goleak.VerifyNone(t)
	ep := &endpoint{statuses: []int{http.StatusBadGateway, http.StatusServiceUnavailable}}
	srv := httptest.NewServer(ep)
	defer srv.Close()

	n := New(srv.URL, 10*time.Second)
	n.Notify(payload())
	n.Wait()
	assert.Equal(t, 3, ep.calls())
}

func TestNotifyDoesNotRetryClientErrors(t *testing.T) {
	defer goleak.VerifyNone(t)
	ep := &endpoint{statuses: []int{http.StatusBadRequest}}
	srv := httptest.NewServer(ep)
	defer srv.Close()

	n := New(srv.URL, time.Second)
	n.Notify(payload())
	n.Wait()
	assert.Equal(t, 1, ep.calls())
}

func TestNotifyReturnsImmediately(t *testing.T) {
	defer goleak.VerifyNone(t)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()

	n := New(srv.URL, 5*time.Second)
	start := time.Now()
	n.Notify(payload())
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	close(release)
	n.Wait()
}

func TestNotifyWithoutEndpointIsSilent(t *testing.T) {
	defer goleak.VerifyNone(t)
	n := New("", 0)
	n.Notify(payload())
	n.Wait()
}

func TestNotifyUnreachableEndpointIsSwallowed(t *testing.T) {
	defer goleak.VerifyNone(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	n := New(url, time.Second)
	n.Notify(payload())
	n.Wait()
}
