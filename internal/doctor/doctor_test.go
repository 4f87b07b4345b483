package doctor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sltk-monitor/internal/model"
)

type stubHealth struct {
	report model.HealthReport
	err    error
}

func (s stubHealth) Health(context.Context) (model.HealthReport, error) {
	return s.report, s.err
}

func pushServer(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestRunAllChecksPass(t *testing.T) {
	res, err := Run(context.Background(), stubHealth{report: model.HealthReport{Status: "running", Message: "SLTK Monitor API"}}, Options{
		PushURL:   pushServer(t),
		ReportDir: t.TempDir(),
		Timeout:   2 * time.Second,
	})
	require.NoError(t, err)
	assert.True(t, res.OK, "%+v", res.Checks)
	require.Len(t, res.Checks, 3)
	assert.Equal(t, "status running (SLTK Monitor API)", res.Checks[0].Message)
}

func TestRunReportsFailures(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	res, err := Run(context.Background(), stubHealth{err: errors.New("connection refused")}, Options{
		PushURL:   "ws://127.0.0.1:1/ws",
		ReportDir: filepath.Join(blocker, "sub"),
		Timeout:   time.Second,
	})
	require.NoError(t, err)
	assert.False(t, res.OK)
	for _, c := range res.Checks {
		assert.False(t, c.OK, c.Name)
		assert.NotEmpty(t, c.Message, c.Name)
	}
	assert.Equal(t, "connection refused", res.Checks[0].Message)
}

func TestRunMissingPushURL(t *testing.T) {
	res, err := Run(context.Background(), stubHealth{report: model.HealthReport{Status: "running"}}, Options{ReportDir: t.TempDir()})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, "no push URL configured", res.Checks[1].Message)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, stubHealth{}, Options{ReportDir: t.TempDir()})
	assert.ErrorIs(t, err, context.Canceled)
}
