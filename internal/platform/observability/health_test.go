package observability

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDBDown = errors.New("connection refused")

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(_ context.Context) error { return f.err }

func newTestServer(p Pinger) *Server {
	logger := zerolog.Nop()
	return NewServer(0, 0, p, &logger)
}

func get(t *testing.T, h http.Handler, path string) (int, string, http.Header) {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)

	return rec.Code, string(body), rec.Header()
}

func TestHandler_Root(t *testing.T) {
	code, body, header := get(t, newTestServer(nil).Handler(), "/")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "application/json", header.Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok","service":"Telegram OCR Bot"}`, body)
}

func TestHandler_UnknownPath(t *testing.T) {
	code, _, _ := get(t, newTestServer(nil).Handler(), "/nope")

	assert.Equal(t, http.StatusNotFound, code)
}

func TestHandler_Healthz(t *testing.T) {
	code, body, _ := get(t, newTestServer(fakePinger{err: errDBDown}).Handler(), "/healthz")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", body)
}

func TestHandler_Readyz(t *testing.T) {
	tests := []struct {
		name     string
		pinger   Pinger
		wantCode int
		wantBody string
	}{
		{name: "no journal", pinger: nil, wantCode: http.StatusOK, wantBody: "OK"},
		{name: "journal up", pinger: fakePinger{}, wantCode: http.StatusOK, wantBody: "OK"},
		{name: "journal down", pinger: fakePinger{err: errDBDown}, wantCode: http.StatusServiceUnavailable, wantBody: "DB error: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body, _ := get(t, newTestServer(tt.pinger).Handler(), "/readyz")

			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestHandler_Metrics(t *testing.T) {
	ImagesReceived.WithLabelValues("photo").Inc()

	code, body, _ := get(t, newTestServer(nil).Handler(), "/metrics")

	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "relay_images_received_total")
}

func TestServe_StopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)

	go func() {
		errCh <- newTestServer(nil).Serve(ctx, ln)
	}()

	client := &http.Client{Timeout: 2 * time.Second, Transport: &http.Transport{DisableKeepAlives: true}}

	resp, err := client.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}
