package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jplfaria/gem-flux-mcp/internal/config"
)

func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("GEMFLUX_SOLVER_URL", "http://127.0.0.1:1")
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	return cfg
}

// TestNewApp verifies that the default wiring loads the embedded data and
// answers tool calls that need no solver.
func TestNewApp(t *testing.T) {
	cfg := loadTestConfig(t)
	a, err := newApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.close()

	resp, err := a.server.HandleRequest(context.Background(),
		[]byte(`{"jsonrpc":"2.0","id":1,"method":"list_media"}`))
	require.NoError(t, err)

	var out struct {
		Result struct {
			Total      int `json:"total_media"`
			Predefined int `json:"predefined_count"`
		} `json:"result"`
		Error interface{} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp, &out))
	assert.Nil(t, out.Error)
	assert.Greater(t, out.Result.Predefined, 0)
	assert.Equal(t, out.Result.Predefined, out.Result.Total)

	rec := httptest.NewRecorder()
	a.metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "gemflux_session_records")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNewApp_BadDataPaths(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.Data.MediaFile = t.TempDir() + "/missing.yaml"
	_, err := newApp(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "media library")

	cfg = loadTestConfig(t)
	cfg.Data.TemplateDir = t.TempDir()
	_, err = newApp(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "templates")
}

// TestNewApp_WatchesTemplateDir verifies that template edits are picked up
// without a restart.
func TestNewApp_WatchesTemplateDir(t *testing.T) {
	dir := t.TempDir()
	writeTemplate := func(id string) {
		doc := "id: " + id + "\nmetabolites: [{id: a_c}]\nreactions:\n  - {id: r_c, direction: '>', stoichiometry: {a_c: 1}}\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "t.yaml"), []byte(doc), 0o600))
	}
	writeTemplate("First")

	cfg := loadTestConfig(t)
	cfg.Data.TemplateDir = dir
	cfg.Data.WatchTemplates = true
	a, err := newApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.close()

	templateIDs := func() []string {
		resp, err := a.server.HandleRequest(context.Background(),
			[]byte(`{"jsonrpc":"2.0","id":1,"method":"list_templates"}`))
		require.NoError(t, err)
		var out struct {
			Result struct {
				Templates []struct {
					ID string `json:"id"`
				} `json:"templates"`
			} `json:"result"`
		}
		require.NoError(t, json.Unmarshal(resp, &out))
		ids := make([]string, 0, len(out.Result.Templates))
		for _, tmpl := range out.Result.Templates {
			ids = append(ids, tmpl.ID)
		}
		return ids
	}
	assert.Equal(t, []string{"First"}, templateIDs())

	time.Sleep(50 * time.Millisecond)
	writeTemplate("Second")
	assert.Eventually(t, func() bool {
		ids := templateIDs()
		return len(ids) == 1 && ids[0] == "Second"
	}, 3*time.Second, 20*time.Millisecond)
}

// TestApplyFlags verifies that only flags given on the command line replace
// environment settings.
func TestApplyFlags(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.Server.Addr = "0.0.0.0:9000"

	cmd := &cobra.Command{}
	cmd.Flags().StringVar(&serveTransport, "transport", "", "")
	cmd.Flags().StringVar(&serveAddr, "addr", "", "")
	cmd.Flags().StringVar(&serveLogLevel, "log-level", "", "")
	t.Cleanup(func() { serveTransport, serveAddr, serveLogLevel = "", "", "" })

	require.NoError(t, cmd.Flags().Set("transport", "websocket"))
	require.NoError(t, cmd.Flags().Set("log-level", "debug"))

	applyFlags(cmd, cfg)
	assert.Equal(t, config.TransportWebSocket, cfg.Server.Transport)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger("warn")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))

	_, err = newLogger("loud")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "gemflux-mcp dev\n", out.String())
}

func TestHealth(t *testing.T) {
	cfg := loadTestConfig(t)
	a, err := newApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.close()

	rec := httptest.NewRecorder()
	a.health(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, 200, rec.Code)
	assert.JSONEq(t, `{"status":"ok","solver_circuit":"closed"}`, rec.Body.String())
}
