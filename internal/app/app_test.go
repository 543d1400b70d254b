package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/flowdash/internal/workflow"
)

func TestNewApp_DefaultPipeline(t *testing.T) {
	t.Parallel()

	// --- Arrange & Act ---
	a, logs := SetupAppTest(t, TestConfig())

	// --- Assert ---
	assert.Len(t, a.Store().Nodes(), 5)
	assert.False(t, a.Simulator().Running(), "nothing runs before Run")
	assert.Contains(t, logs.String(), "Pipeline loaded.")
	assert.Contains(t, logs.String(), "pipeline=validation")
}

func TestNewApp_PipelineFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "p.hcl")
	src := "pipeline \"tiny\" {\n  node \"only\" {\n    label = \"Only\"\n  }\n}\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))

	cfg := TestConfig()
	cfg.PipelinePath = path
	a, _ := SetupAppTest(t, cfg)

	nodes := a.Store().Nodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, "Only", nodes[0].Label)
	assert.Equal(t, workflow.StatusIdle, nodes[0].Status)
}

func TestNewApp_BadPipeline(t *testing.T) {
	t.Parallel()

	cfg := TestConfig()
	cfg.PipelinePath = filepath.Join(t.TempDir(), "missing.hcl")
	validated, err := NewConfig(cfg)
	require.NoError(t, err)

	_, err = NewApp(context.Background(), &SafeBuffer{}, validated)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read pipeline file")
}

func TestApp_Handler(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	a, _ := SetupAppTest(t, TestConfig())
	ts := httptest.NewServer(a.Handler())
	t.Cleanup(ts.Close)

	// --- Act & Assert ---
	resp, err := ts.Client().Get(ts.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK\n", string(body))

	loginBody, _ := json.Marshal(map[string]string{"email": "analyst@corp.io", "password": "pw"})
	resp, err = ts.Client().Post(ts.URL+"/api/login", "application/json", bytes.NewReader(loginBody))
	require.NoError(t, err)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/workflow", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	resp, err = ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestApp_Run(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	a, logs := SetupAppTest(t, TestConfig())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	// --- Act ---
	go func() { done <- a.Run(ctx) }()
	require.Eventually(t, func() bool { return a.Addr() != "" }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + a.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, a.Simulator().Running(), "simulator waits for a viewer")

	cancel()

	// --- Assert ---
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	out := logs.String()
	assert.Contains(t, out, "Server listening")
	assert.Contains(t, out, "Server stopped")
}

func TestApp_RunSimulateWithoutViewers(t *testing.T) {
	t.Parallel()

	cfg := TestConfig()
	cfg.SimulateWithoutViewers = true
	a, _ := SetupAppTest(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- a.Run(ctx) }()
	require.Eventually(t, a.Simulator().Running, 2*time.Second, 10*time.Millisecond)
	assert.True(t, a.Store().Connected())

	cancel()
	require.NoError(t, <-done)
	assert.False(t, a.Simulator().Running(), "shutdown stops the simulator")
}

func TestApp_RunListenError(t *testing.T) {
	t.Parallel()

	cfg := TestConfig()
	cfg.Addr = "256.0.0.1:bad"
	a, _ := SetupAppTest(t, cfg)

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := newLogger("warn", "json", &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := strings.TrimSpace(buf.String())
	require.NotEmpty(t, out)
	assert.NotContains(t, out, "hidden")

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, ServiceName, rec["service"])
	assert.Equal(t, "v", rec["k"])
}
