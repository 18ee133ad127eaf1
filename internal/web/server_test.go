package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/focus-timer/internal/control"
	"github.com/sweeney/focus-timer/internal/logic"
	"github.com/sweeney/focus-timer/internal/status"
)

// timerSender applies commands directly to a timer, standing in for the
// run loop.
type timerSender struct {
	mu      sync.Mutex
	timer   *logic.Timer
	tracker *status.Tracker
	got     []control.Command
	err     error
}

func (s *timerSender) Send(_ context.Context, cmd control.Command) (control.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, cmd)
	if s.err != nil {
		return control.Result{}, s.err
	}
	res, _, _ := control.Apply(s.timer, cmd)
	s.tracker.Update(s.timer.State(), s.timer.Config(), s.timer.Counts())
	return res, nil
}

func (s *timerSender) commands() []control.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]control.Command(nil), s.got...)
}

func newTestServer(t *testing.T, opts Options) (*httptest.Server, *status.Tracker, *timerSender) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := status.NewTracker(start, status.Config{
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
		TopicPrefix: "focus/timer",
		HTTPAddr:    ":8080",
	})
	timer, err := logic.New(logic.TestConfig())
	require.NoError(t, err)
	tr.Update(timer.State(), timer.Config(), timer.Counts())

	sender := &timerSender{timer: timer, tracker: tr}
	srv := New(":0", tr, sender, opts)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr, sender
}

func postJSON(t *testing.T, url, body string) (*http.Response, ActionResponse) {
	t.Helper()
	var rdr io.Reader = http.NoBody
	if body != "" {
		rdr = strings.NewReader(body)
	}
	resp, err := http.Post(url, "application/json", rdr)
	require.NoError(t, err)
	defer resp.Body.Close()

	var ar ActionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ar))
	return resp, ar
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr, _ := newTestServer(t, Options{})
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var sj status.StatusJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sj))
	assert.Equal(t, "IDLE", sj.Status.Phase)
	assert.Equal(t, "Configure Block", sj.Status.Label)
	assert.True(t, sj.Status.Actions.Start)
	assert.True(t, sj.Status.MQTT.Connected)
	assert.Equal(t, 20, sj.Status.Next.BlockSeconds)
}

func TestHTMLEndpointIdle(t *testing.T) {
	ts, _, _ := newTestServer(t, Options{})

	for _, path := range []string{"/", "/index.html"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
		html := string(body)
		assert.Contains(t, html, "Configure Block")
		assert.Contains(t, html, `action="/api/start"`)
		assert.NotContains(t, html, `action="/api/abort"`)
		assert.NotContains(t, html, `http-equiv="refresh"`)
		assert.Contains(t, html, "tcp://192.168.1.200:1883")
	}
}

func TestHTMLEndpointActive(t *testing.T) {
	ts, tr, _ := newTestServer(t, Options{})
	tr.Update(
		logic.State{Phase: logic.PhaseChunkActive, SecondsRemaining: 1500, CurrentChunk: 2, TotalChunks: 3, ChunkDuration: 700},
		logic.DefaultConfig(), logic.Counts{BlocksStarted: 1},
	)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	html := string(body)
	assert.Contains(t, html, "Working")
	assert.Contains(t, html, "25:00")
	assert.Contains(t, html, "Chunk 2 of 3")
	assert.Contains(t, html, `action="/api/abort"`)
	assert.NotContains(t, html, `action="/api/start"`)
	assert.Contains(t, html, `http-equiv="refresh"`)
}

func TestHTMLEndpointShowsBufferedMessages(t *testing.T) {
	ts, tr, _ := newTestServer(t, Options{})
	tr.SetMQTTBuffered(4)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Contains(t, string(body), "disconnected (4 buffered)")
}

func TestHTMLEndpointLocked(t *testing.T) {
	ts, tr, _ := newTestServer(t, Options{})
	tr.Update(logic.State{Phase: logic.PhaseNeutralReset, SecondsRemaining: 900}, logic.DefaultConfig(), logic.Counts{})

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	html := string(body)
	assert.Contains(t, html, "Cooldown Period")
	assert.Contains(t, html, "15:00")
	assert.Contains(t, html, "Cannot start until cooldown completes")
	assert.NotContains(t, html, "<button")
}

func TestNotFound(t *testing.T) {
	ts, _, _ := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStartWithoutBody(t *testing.T) {
	ts, tr, sender := newTestServer(t, Options{})

	resp, ar := postJSON(t, ts.URL+"/api/start", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, ar.Applied)
	require.NotNil(t, ar.Status)
	assert.Equal(t, "CHUNK_ACTIVE", ar.Status.Status.Phase)
	assert.Equal(t, logic.PhaseChunkActive, tr.Snapshot().Timer.Phase)

	cmds := sender.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, control.KindStart, cmds[0].Kind)
	assert.Equal(t, "http", cmds[0].Source)
}

func TestStartWithConfig(t *testing.T) {
	ts, tr, sender := newTestServer(t, Options{})

	resp, ar := postJSON(t, ts.URL+"/api/start", `{"block_minutes":"30","chunks":"3","break_minutes":"2"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, ar.Applied)

	snap := tr.Snapshot()
	assert.Equal(t, 600, snap.Timer.ChunkDuration)
	assert.Equal(t, 600, snap.Timer.SecondsRemaining)
	assert.Equal(t, 3, snap.Timer.TotalChunks)
	assert.Equal(t, control.KindConfigureStart, sender.commands()[0].Kind)
}

func TestStartTwiceConflicts(t *testing.T) {
	ts, _, _ := newTestServer(t, Options{})

	postJSON(t, ts.URL+"/api/start", "")
	resp, ar := postJSON(t, ts.URL+"/api/start", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.False(t, ar.Applied)
	assert.Empty(t, ar.Error)
}

func TestAbort(t *testing.T) {
	ts, tr, _ := newTestServer(t, Options{})

	resp, _ := postJSON(t, ts.URL+"/api/abort", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "abort from idle is ignored")

	postJSON(t, ts.URL+"/api/start", "")
	resp, ar := postJSON(t, ts.URL+"/api/abort", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, ar.Applied)
	assert.Equal(t, logic.PhaseNeutralReset, tr.Snapshot().Timer.Phase)
}

func TestConfigure(t *testing.T) {
	ts, tr, _ := newTestServer(t, Options{})

	resp, ar := postJSON(t, ts.URL+"/api/config", `{"block_minutes":"45","chunks":"0","break_minutes":"0"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, ar.Applied)

	snap := tr.Snapshot()
	assert.Equal(t, logic.PhaseIdle, snap.Timer.Phase)
	assert.Equal(t, 2700, snap.Next.BlockDuration)
	assert.Equal(t, 0, snap.Next.TotalChunks)
}

func TestConfigureBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"not a number", `{"block_minutes":"abc","chunks":"0","break_minutes":"0"}`},
		{"missing field", `{"block_minutes":"30"}`},
		{"zero block", `{"block_minutes":"0","chunks":"0","break_minutes":"0"}`},
		{"negative", `{"block_minutes":"30","chunks":"-1","break_minutes":"0"}`},
		{"too large", `{"block_minutes":"5000","chunks":"0","break_minutes":"0"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, _, sender := newTestServer(t, Options{})
			resp, ar := postJSON(t, ts.URL+"/api/config", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.False(t, ar.Applied)
			assert.NotEmpty(t, ar.Error)
			assert.Empty(t, sender.commands(), "bad input never reaches the timer")
		})
	}
}

func TestConfigureRejectedByTimer(t *testing.T) {
	ts, tr, _ := newTestServer(t, Options{})

	// 1 minute cannot be split into 100 chunks of at least a second.
	resp, ar := postJSON(t, ts.URL+"/api/config", `{"block_minutes":"1","chunks":"100","break_minutes":"0"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.False(t, ar.Applied)
	assert.Contains(t, ar.Error, "invalid")
	assert.Equal(t, 20, tr.Snapshot().Next.BlockDuration, "config unchanged")
}

func TestFormPostRedirects(t *testing.T) {
	ts, tr, _ := newTestServer(t, Options{})
	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}

	form := url.Values{"block_minutes": {"10"}, "chunks": {"2"}, "break_minutes": {"1"}}
	resp, err := client.PostForm(ts.URL+"/api/start", form)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.Equal(t, logic.PhaseChunkActive, tr.Snapshot().Timer.Phase)
	assert.Equal(t, 300, tr.Snapshot().Timer.SecondsRemaining)
}

func TestMultipartFormPost(t *testing.T) {
	ts, tr, sender := newTestServer(t, Options{})
	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("block_minutes", "50"))
	require.NoError(t, mw.WriteField("chunks", "5"))
	require.NoError(t, mw.WriteField("break_minutes", "3"))
	require.NoError(t, mw.Close())

	resp, err := client.Post(ts.URL+"/api/start", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Len(t, sender.commands(), 1)
	assert.Equal(t, control.KindConfigureStart, sender.commands()[0].Kind)

	snap := tr.Snapshot()
	assert.Equal(t, logic.PhaseChunkActive, snap.Timer.Phase)
	assert.Equal(t, 600, snap.Timer.SecondsRemaining)
	assert.Equal(t, 5, snap.Timer.TotalChunks)
}

func TestSendNotDelivered(t *testing.T) {
	ts, _, sender := newTestServer(t, Options{})
	sender.err = fmt.Errorf("%w: %w", control.ErrNotDelivered, context.DeadlineExceeded)

	resp, ar := postJSON(t, ts.URL+"/api/start", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.False(t, ar.Applied)
	assert.Contains(t, ar.Error, "not delivered")
}

func TestSendPendingIsAccepted(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{})
	timer, err := logic.New(logic.TestConfig())
	require.NoError(t, err)

	// Nobody reads the bus until the handler has given up.
	bus := control.NewBus(1)
	srv := New(":0", tr, bus, Options{})
	srv.timeout = 20 * time.Millisecond
	ts := httptest.NewServer(srv.httpServer.Handler)
	defer ts.Close()

	resp, ar := postJSON(t, ts.URL+"/api/start", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.False(t, ar.Applied)
	assert.Contains(t, ar.Error, "outcome unknown")

	cmd := <-bus.C()
	res, _, ok := control.Apply(timer, cmd)
	assert.True(t, ok)
	assert.True(t, res.Applied)
	assert.Equal(t, "http", cmd.Source)
	assert.Equal(t, logic.PhaseChunkActive, timer.State().Phase)
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _, _ := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/api/start")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestReadOnlyServer(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{})
	srv := New(":0", tr, nil, Options{})
	ts := httptest.NewServer(srv.httpServer.Handler)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/start", "application/json", http.NoBody)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.NotContains(t, string(body), "<form")
}

func TestRateLimit(t *testing.T) {
	ts, _, _ := newTestServer(t, Options{RateLimit: 0.001, RateBurst: 2})

	for i := 0; i < 2; i++ {
		resp, _ := postJSON(t, ts.URL+"/api/abort", "")
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	}
	resp, ar := postJSON(t, ts.URL+"/api/abort", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "rate limit exceeded", ar.Error)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))

	// Reads are never throttled.
	r, err := http.Get(ts.URL + "/index.json")
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusOK, r.StatusCode)
}

func TestIPLimiterSweepsIdleVisitors(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newIPLimiter(1, 1)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("10.0.0.1"))
	assert.False(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.2"), "limits are per IP")

	now = now.Add(visitorTTL + time.Minute)
	assert.True(t, l.allow("10.0.0.3"))
	assert.Len(t, l.visitors, 1)
}

func TestServeAndShutdown(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{})
	srv := New("127.0.0.1:0", tr, nil, Options{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/index.json")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.ErrorIs(t, <-done, http.ErrServerClosed)
}
