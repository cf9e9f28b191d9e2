package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easel-ai/easel/internal/event"
	"github.com/easel-ai/easel/internal/persist"
	"github.com/easel-ai/easel/internal/provider"
	"github.com/easel-ai/easel/internal/session"
	"github.com/easel-ai/easel/internal/storage"
	"github.com/easel-ai/easel/internal/tool"
	"github.com/easel-ai/easel/pkg/types"
)

type echoClient struct{}

func (echoClient) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	last := req.Messages[len(req.Messages)-1]
	texts := last.Texts()
	reply := "nothing to echo"
	if len(texts) > 0 {
		reply = "echo: " + texts[len(texts)-1]
	}
	return &provider.Response{
		Blocks:     []types.Block{types.NewTextBlock(reply)},
		StopReason: "end_turn",
	}, nil
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	bus := event.NewBus()
	t.Cleanup(func() { _ = bus.Close() })
	reg := session.NewRegistry(
		echoClient{},
		tool.NewRegistry(),
		persist.NewStore(storage.New(t.TempDir())),
		bus,
		session.Options{Model: "test-model"},
	)
	srv := New(DefaultConfig(), reg)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts
}

func doJSON(t *testing.T, method, url string, body string) (*http.Response, []byte) {
	t.Helper()
	var req *http.Request
	var err error
	if body == "" {
		req, err = http.NewRequest(method, url, nil)
	} else {
		req, err = http.NewRequest(method, url, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	buf := new(strings.Builder)
	_, err = bufio.NewReader(resp.Body).WriteTo(buf)
	require.NoError(t, err)
	return resp, []byte(buf.String())
}

func createSession(t *testing.T, baseURL, name string) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, baseURL+"/session", `{"name":"`+name+`"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out createSessionResponse
	require.NoError(t, json.Unmarshal(body, &out))
	require.NotEmpty(t, out.ID)
	return out.ID
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestSessionLifecycle(t *testing.T) {
	_, ts := newTestServer(t)

	id := createSession(t, ts.URL, "alpha")

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/session", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var infos []types.SessionInfo
	require.NoError(t, json.Unmarshal(body, &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, id, infos[0].ID)
	assert.Equal(t, "alpha", infos[0].Name)

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/session/"+id, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/session", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))

	// Operations on a dead session report not found.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/session/"+id+"/message", `{"text":"hi"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/session/"+id+"/cancel", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/session/"+id, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSendMessageAndTranscript(t *testing.T) {
	_, ts := newTestServer(t)
	id := createSession(t, ts.URL, "alpha")

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/session/"+id+"/message", `{"text":"hello"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/session/"+id+"/message", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var msgs []types.Message
	require.NoError(t, json.Unmarshal(body, &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, types.RoleUser, msgs[0].Role)
	assert.Equal(t, []string{"echo: hello"}, msgs[1].Texts())
}

func TestSendMessageValidation(t *testing.T) {
	_, ts := newTestServer(t)
	id := createSession(t, ts.URL, "alpha")

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/session/"+id+"/message", `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/session/"+id+"/message", `{broken`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestKillAll(t *testing.T) {
	_, ts := newTestServer(t)
	createSession(t, ts.URL, "a")
	createSession(t, ts.URL, "b")

	resp, _ := doJSON(t, http.MethodDelete, ts.URL+"/session", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/session", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))
}

func TestSessionEventsStream(t *testing.T) {
	_, ts := newTestServer(t)
	id := createSession(t, ts.URL, "alpha")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/session/"+id+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 100)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	waitFor := func(substr string) string {
		t.Helper()
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					t.Fatalf("stream closed before %q", substr)
				}
				if strings.Contains(line, substr) {
					return line
				}
			case <-ctx.Done():
				t.Fatalf("timed out waiting for %q", substr)
			}
		}
	}

	waitFor("event: connected")

	go func() {
		resp, err := http.Post(ts.URL+"/session/"+id+"/message", "application/json",
			strings.NewReader(`{"text":"ping"}`))
		if err == nil {
			resp.Body.Close()
		}
	}()

	chunk := waitFor("event: output.chunk")
	assert.Contains(t, chunk, "output.chunk")
	waitFor("event: turn.completed")
}

func TestEventsForUnknownSession(t *testing.T) {
	_, ts := newTestServer(t)
	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/session/nope/events", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
