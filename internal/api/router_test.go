package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CaioWing/harbor-console/internal/api/middleware"
	"github.com/CaioWing/harbor-console/internal/auth"
	"github.com/CaioWing/harbor-console/internal/client"
	"github.com/CaioWing/harbor-console/internal/logstream"
	"github.com/CaioWing/harbor-console/internal/repository/memory"
	"github.com/CaioWing/harbor-console/internal/service"
	"github.com/CaioWing/harbor-console/internal/storage/local"
	"github.com/CaioWing/harbor-console/internal/transfer"
)

// fakeBackend stands in for the fleet backend's list, mutation, upload and
// log socket endpoints.
type fakeBackend struct {
	mu        sync.Mutex
	mutations []string
	chunks    int
	rejectDel bool
}

func (b *fakeBackend) handler(t *testing.T) http.Handler {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ui/bff/devices", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"data":[{"id":"dev-1","last_state":"finished"},{"id":"dev-2"}],"draw":1,"recordsTotal":2,"recordsFiltered":2}`)
	})
	mux.HandleFunc("PATCH /ui/bff/devices", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.mutations = append(b.mutations, "PATCH "+string(body))
		b.mu.Unlock()
		io.WriteString(w, `{"success":true}`)
	})
	mux.HandleFunc("DELETE /ui/bff/devices", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"detail":"device is in an active rollout"}`)
	})
	mux.HandleFunc("GET /ui/bff/{list...}", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":[],"draw":1,"recordsTotal":0,"recordsFiltered":0}`)
	})
	mux.HandleFunc("POST /ui/bff/software", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		b.mu.Lock()
		b.chunks++
		b.mu.Unlock()
		io.WriteString(w, `{}`)
	})
	mux.HandleFunc("GET /realtime/logs/{id}", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteJSON(map[string]interface{}{"log": "booting\n", "clear": true, "progress": 10})
		conn.WriteJSON(map[string]interface{}{"log": "installed\n", "clear": false, "progress": 100})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	return mux
}

type testEnv struct {
	srv       *httptest.Server
	backend   *fakeBackend
	transfers *service.TransferService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	backend := &fakeBackend{}
	backendSrv := httptest.NewServer(backend.handler(t))
	t.Cleanup(backendSrv.Close)

	cl, err := client.New(backendSrv.URL, client.WithLogger(log), client.WithToken("backend-token"))
	require.NoError(t, err)

	audit := service.NewAuditService(memory.NewAuditRepo(0), log)
	views, err := service.NewViews(service.ViewDeps{
		Fetcher:      cl,
		Mutator:      cl,
		Audit:        audit,
		PollInterval: time.Hour,
		RefreshDelay: time.Hour,
		PageLength:   10,
		Logger:       log,
	}, cl)
	require.NoError(t, err)
	t.Cleanup(views.Close)

	store, err := local.New(t.TempDir())
	require.NoError(t, err)

	metrics := middleware.NewMetrics()
	banners := &service.Banners{}
	ctrl := transfer.New(cl,
		transfer.WithChunkSize(4),
		transfer.WithSettleDelay(0),
		transfer.WithLogger(log),
		transfer.WithObserver(banners),
		transfer.WithObserver(metrics),
	)
	transfers := service.NewTransferService(context.Background(), ctrl, store, banners, audit, log)

	creds, err := auth.NewCredentials("admin", "secret", "")
	require.NoError(t, err)

	router := NewRouter(RouterDeps{
		Views:     views,
		Transfers: transfers,
		AuditSvc:  audit,
		Staging:   store,
		MaxStaged: 1 << 20,
		LogDialer: func(ctx context.Context, device string) (*logstream.Stream, error) {
			return logstream.Dial(ctx, cl.BaseURL(), device, cl.AuthHeader(), log)
		},
		JWTManager:  auth.NewJWTManager("test-secret", time.Hour),
		Credentials: creds,
		Metrics:     metrics,
		CORSOrigins: "http://localhost:3000",
		Logger:      log,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, backend: backend, transfers: transfers}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body io.Reader) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &out)
	return resp, out
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	resp, out := e.do(t, http.MethodPost, "/api/v1/console/auth/login", "",
		strings.NewReader(`{"username":"admin","password":"secret"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := out["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestRouter_Login(t *testing.T) {
	env := newTestEnv(t)

	resp, out := env.do(t, http.MethodPost, "/api/v1/console/auth/login", "",
		strings.NewReader(`{"username":"admin","password":"wrong"}`))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid credentials", out["detail"])

	resp, _ = env.do(t, http.MethodGet, "/api/v1/console/views/devices", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token := env.login(t)
	resp, out = env.do(t, http.MethodPost, "/api/v1/console/auth/refresh", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, out["token"])
}

func TestRouter_BulkActionFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	resp, out := env.do(t, http.MethodPost, "/api/v1/console/views/devices/refresh", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []interface{}{"dev-1", "dev-2"}, out["ids"])

	resp, out = env.do(t, http.MethodPost, "/api/v1/console/views/devices/selection", token,
		strings.NewReader(`{"select":["dev-2","gone"]}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []interface{}{"dev-2"}, out["selected"])
	gates := out["gates"].(map[string]interface{})
	assert.Equal(t, true, gates["rename"])

	resp, _ = env.do(t, http.MethodPost, "/api/v1/console/views/devices/actions/force_update", token, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	env.backend.mu.Lock()
	mutations := append([]string(nil), env.backend.mutations...)
	env.backend.mu.Unlock()
	assert.Equal(t, []string{`PATCH {"devices":["dev-2"],"force_update":true}`}, mutations)

	resp, out = env.do(t, http.MethodPost, "/api/v1/console/views/devices/actions/delete", token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "device is in an active rollout", out["detail"])

	resp, out = env.do(t, http.MethodGet, "/api/v1/console/audit?view=devices", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := out["data"].([]interface{})
	require.Len(t, entries, 1)
	assert.Equal(t, "devices.force_update", entries[0].(map[string]interface{})["action"])

	resp, out = env.do(t, http.MethodGet, "/api/v1/console/audit?target=dev-2", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, out["data"], 1)

	resp, out = env.do(t, http.MethodGet, "/api/v1/console/audit?target=dev-9", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, out["data"], 0)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/console/audit?since=yesterday", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/console/views/artifacts", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_InvalidParams(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	resp, _ := env.do(t, http.MethodPut, "/api/v1/console/views/devices/params", token,
		strings.NewReader(`{"start":0,"length":10,"order":[{"column":1,"dir":"asc"}]}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, out := env.do(t, http.MethodPut, "/api/v1/console/views/devices/params", token,
		strings.NewReader(`{"start":0,"length":25,"order":[{"column":0,"dir":"desc"}]}`))
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, float64(25), out["length"])
}

func TestRouter_StagedUpload(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	resp, out := env.do(t, http.MethodPut, "/api/v1/console/staging/fw.swu", token, bytes.NewReader([]byte("0123456789")))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, float64(10), out["size"])

	resp, _ = env.do(t, http.MethodPost, "/api/v1/console/transfers", token, strings.NewReader(`{}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/console/transfers", token, strings.NewReader(`{"file":"fw.swu"}`))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	env.transfers.Wait()

	env.backend.mu.Lock()
	chunks := env.backend.chunks
	env.backend.mu.Unlock()
	assert.Equal(t, 3, chunks)

	resp, out = env.do(t, http.MethodGet, "/api/v1/console/transfers/current", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := out["session"].(map[string]interface{})
	assert.Contains(t, []interface{}{"completed", "idle"}, session["status"])

	metricsResp, err := http.Get(env.srv.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	body, _ := io.ReadAll(metricsResp.Body)
	assert.Contains(t, string(body), `harbor_console_transfers_total{kind="local_file",status="completed"} 1`)
}

func TestRouter_LogRelay(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/api/v1/console/logs/dev-1?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var snap logstream.Snapshot
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, "booting\n", snap.Text)

	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, "booting\ninstalled\n", snap.Text)
	require.NotNil(t, snap.Progress)
	assert.Equal(t, 100, *snap.Progress)
}

func TestRouter_HealthAndDocs(t *testing.T) {
	env := newTestEnv(t)

	resp, out := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", out["status"])

	resp, err := http.Get(env.srv.URL + "/docs/openapi.yaml")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))
}
