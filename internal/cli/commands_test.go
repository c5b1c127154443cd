package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fieldcheck/internal/asset"
	"github.com/roach88/fieldcheck/internal/queue"
	"github.com/roach88/fieldcheck/internal/store"
	"github.com/roach88/fieldcheck/internal/testutil"
)

// assetServer is an in-process remote asset service.
type assetServer struct {
	mu          sync.Mutex
	assets      map[string]map[string]any
	checkStatus int
	checkBody   map[string]any
	checks      []asset.CheckRequest
}

func newAssetServer(t *testing.T) (*assetServer, string) {
	t.Helper()
	s := &assetServer{
		assets: map[string]map[string]any{
			"AST-1": {"asset_id": "AST-1", "asset_name": "Oscilloscope", "status": "available", "department_name": "Physics", "room_number": "204"},
		},
		checkStatus: http.StatusOK,
		checkBody:   map[string]any{"success": true},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/assets/", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		a, ok := s.assets[r.URL.Path[len("/api/assets/"):]]
		if !ok {
			writeTestJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "not found"})
			return
		}
		writeTestJSON(w, http.StatusOK, map[string]any{"success": true, "data": a})
	})
	mux.HandleFunc("/api/assets", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"items": []any{}}})
	})
	mux.HandleFunc("/api/checks", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		var req asset.CheckRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if s.checkStatus < 300 {
			s.checks = append(s.checks, req)
		}
		writeTestJSON(w, s.checkStatus, s.checkBody)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return s, srv.URL + "/api"
}

func (s *assetServer) reject(status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkStatus = status
	s.checkBody = map[string]any{"success": false, "message": message}
}

func (s *assetServer) accepted() []asset.CheckRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]asset.CheckRequest(nil), s.checks...)
}

func writeTestJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// env is a config file plus database shared by several invocations.
type env struct {
	config string
	db     string
}

func newEnv(t *testing.T, baseURL string) env {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "fieldcheck.yaml")
	body := fmt.Sprintf("remote:\n  base_url: %q\n  timeout: 2s\nlog:\n  level: error\n", baseURL)
	require.NoError(t, os.WriteFile(cfg, []byte(body), 0o644))
	return env{config: cfg, db: filepath.Join(dir, "fieldcheck.db")}
}

// execute runs the CLI and returns stdout.
func (e env) execute(args ...string) (string, error) {
	return e.executeContext(context.Background(), args...)
}

func (e env) executeContext(ctx context.Context, args ...string) (string, error) {
	out := &bytes.Buffer{}
	cmd := newRootCommand(&RootOptions{
		AppOptions: nil,
	})
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", e.config, "--db", e.db}, args...))
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestResolveCommand_RemoteThenCache(t *testing.T) {
	_, url := newAssetServer(t)
	e := newEnv(t, url)

	out, err := e.execute("resolve", "AST-1")
	require.NoError(t, err)
	assert.Contains(t, out, "AST-1  Oscilloscope  [remote]")
	assert.Contains(t, out, "location:  Physics / 204")

	out, err = e.execute("resolve", "AST-1", "--offline")
	require.NoError(t, err)
	assert.Contains(t, out, "[cache]")
}

func TestResolveCommand_ScanRecordOffline(t *testing.T) {
	e := newEnv(t, "")

	out, err := e.execute("--format", "json", "resolve", `{"id":"AST-9","name":"Bench PSU"}`)
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Asset  asset.ResolvedAsset `json:"asset"`
			Source string              `json:"source"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "AST-9", resp.Data.Asset.AssetID)
	assert.Equal(t, "scan", resp.Data.Source)
}

func TestResolveCommand_NotFound(t *testing.T) {
	_, url := newAssetServer(t)
	e := newEnv(t, url)

	out, err := e.execute("resolve", "AST-404")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [NOT_FOUND]")
	assert.Contains(t, out, "AST-404")
}

func TestCheckCommand_Sent(t *testing.T) {
	srv, url := newAssetServer(t)
	e := newEnv(t, url)

	out, err := e.execute("check", "AST-1", "--status", "damaged", "--remark", "cracked housing", "--date", "2024-01-15")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Check for AST-1 sent")

	got := srv.accepted()
	require.Len(t, got, 1)
	assert.Equal(t, asset.CheckDamaged, got[0].CheckStatus)
	assert.Equal(t, "cracked housing", got[0].Remark)
	assert.Equal(t, "2024-01-15", got[0].CheckDate.String())
}

func TestCheckCommand_RejectedNotQueued(t *testing.T) {
	srv, url := newAssetServer(t)
	srv.reject(http.StatusBadRequest, "invalid status")
	e := newEnv(t, url)

	out, err := e.execute("check", "AST-1", "--status", "available", "--date", "2024-01-15")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [VALIDATION_REJECTED]: invalid status")

	out, err = e.execute("pending")
	require.NoError(t, err)
	assert.Equal(t, "0 check(s) pending\n", out)
}

func TestCheckCommand_OfflineThenDrain(t *testing.T) {
	srv, url := newAssetServer(t)
	e := newEnv(t, url)

	out, err := e.execute("check", `{"id":"AST-1"}`, "--status", "available", "--date", "2024-01-15", "--offline")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Check for AST-1 saved for later")
	assert.Empty(t, srv.accepted())

	out, err = e.execute("pending", "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "1 check(s) pending")
	assert.Contains(t, out, "AST-1")
	assert.Contains(t, out, "2024-01-15")

	out, err = e.execute("drain")
	require.NoError(t, err)
	assert.Equal(t, "Drained: 1 sent, 0 failed, 0 pending\n", out)
	require.Len(t, srv.accepted(), 1)

	out, err = e.execute("--format", "json", "pending")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","data":{"count":0}}`, out)
}

func TestCheckCommand_ServerErrorQueues(t *testing.T) {
	srv, url := newAssetServer(t)
	srv.reject(http.StatusServiceUnavailable, "maintenance")
	e := newEnv(t, url)

	out, err := e.execute("check", "AST-1", "--status", "in_use", "--date", "2024-01-15")
	require.NoError(t, err)
	assert.Contains(t, out, "saved for later")
	assert.Contains(t, out, "reason: remote service returned 503")

	out, err = e.execute("drain")
	require.NoError(t, err)
	assert.Equal(t, "Drained: 0 sent, 1 failed, 1 pending\n", out)
}

func TestCheckCommand_InvalidInput(t *testing.T) {
	_, url := newAssetServer(t)
	e := newEnv(t, url)

	out, err := e.execute("check", "AST-1", "--status", "exploded")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [INVALID_INPUT]")

	_, err = e.execute("check", "AST-1", "--status", "available", "--date", "15/01/2024")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = e.execute("check", "AST-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestDrainCommand_Offline(t *testing.T) {
	e := newEnv(t, "")

	out, err := e.execute("drain")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [OFFLINE]")
}

func TestCommand_BadConfig(t *testing.T) {
	e := newEnv(t, "")
	require.NoError(t, os.WriteFile(e.config, []byte("colour: blue\n"), 0o644))

	out, err := e.execute("pending")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [CONFIG_ERROR]")
}

func TestPendingCommand_SetsAsideUnreadable(t *testing.T) {
	e := newEnv(t, "")

	s, err := store.Open(e.db)
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), queue.Bucket, "garbage", []byte("not json")))
	require.NoError(t, s.Close())

	out, err := e.execute("pending")
	require.NoError(t, err)
	assert.Equal(t, "0 check(s) pending\n1 unreadable check(s) set aside\n", out)
}

func TestRunCommand_StopsOnContext(t *testing.T) {
	e := newEnv(t, "")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	out, err := e.executeContext(ctx, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "fieldcheck running")
}

func TestRunCommand_DrainsWhenSignalComesUp(t *testing.T) {
	srv, url := newAssetServer(t)
	e := newEnv(t, url)

	// warm the cache so the offline check can resolve AST-1
	_, err := e.execute("resolve", "AST-1")
	require.NoError(t, err)
	_, err = e.execute("check", "AST-1", "--status", "lost", "--date", "2024-01-15", "--offline")
	require.NoError(t, err)

	signal := testutil.NewFakeSignal(false)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		cmd := newRootCommand(&RootOptions{AppOptions: appSignal(signal)})
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"--config", e.config, "--db", e.db, "run"})
		done <- cmd.ExecuteContext(ctx)
	}()

	signal.SetOnline(true)
	assert.Eventually(t, func() bool { return len(srv.accepted()) == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestVersionCommand(t *testing.T) {
	e := newEnv(t, "")

	out, err := e.execute("version")
	require.NoError(t, err)
	assert.Equal(t, "fieldcheck dev\n", out)
}
