package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/watcher/pkg/clock"
	"github.com/dukex/watcher/pkg/cmd"
	"github.com/dukex/watcher/pkg/condition"
	"github.com/dukex/watcher/pkg/config"
	"github.com/dukex/watcher/pkg/execution"
	"github.com/dukex/watcher/pkg/history"
	"github.com/dukex/watcher/pkg/models"
	"github.com/dukex/watcher/pkg/persistence/file"
	"github.com/dukex/watcher/pkg/trigger"
	"github.com/dukex/watcher/pkg/trigger/manual"
	"github.com/dukex/watcher/pkg/watch"
	"github.com/dukex/watcher/pkg/web"
)

const cpuWatch = `{
	"name": "High CPU",
	"input": {"simple": {"cpu": 95}},
	"condition": {"compare": {"ctx.payload.cpu": {"gte": 90}}},
	"throttle_period": "0s",
	"actions": [
		{"id": "notify", "type": "log", "config": {"message": "cpu at {{ .ctx.payload.cpu }}"}}
	]
}`

type testAPI struct {
	app     *fiber.App
	store   *watch.Store
	service *execution.Service
}

func setupTestApp(t *testing.T) *testAPI {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	ctx := context.Background()

	p := file.NewPersistence(t.TempDir())
	store := watch.NewStore(logger, p)
	components := cmd.NewRegistry(logger, nil)
	conditions := condition.NewDefaultRegistry()

	parser, err := watch.NewParser(conditions, components)
	require.NoError(t, err)

	service := execution.NewService(logger, config.DefaultEngine(), store, conditions, components, history.NewPersistenceSink(p))
	service.Start()

	manualEngine := manual.NewEngine(logger, clock.System())
	manager := trigger.NewManager(logger, manualEngine)
	require.NoError(t, manager.Start(ctx, trigger.NewAsyncListener(logger, service)))

	t.Cleanup(func() {
		_ = manager.Stop(ctx)
		_ = service.Stop(ctx)
	})

	handlers := web.NewAPIHandlers(store, parser, service, manager, manualEngine, p,
		validator.New(validator.WithRequiredStructEnabled()), 50)

	app := fiber.New()
	handlers.Register(app)

	return &testAPI{app: app, store: store, service: service}
}

func (a *testAPI) do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.app.Test(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

func TestAPIHandlers_PutWatch(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedError  string
	}{
		{name: "valid watch", body: cpuWatch, expectedStatus: http.StatusCreated},
		{name: "invalid json", body: `{"name":`, expectedStatus: http.StatusBadRequest},
		{
			name:           "unknown condition",
			body:           `{"condition": {"sometimes": {}}}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "sometimes",
		},
		{
			name:           "unknown action type",
			body:           `{"actions": [{"id": "a", "type": "pager"}]}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "pager",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := setupTestApp(t)

			status, body := api.do(t, http.MethodPut, "/watches/cpu_high", tt.body)

			assert.Equal(t, tt.expectedStatus, status, string(body))

			if tt.expectedError != "" {
				assert.Contains(t, string(body), tt.expectedError)
			}
		})
	}
}

func TestAPIHandlers_WatchLifecycle(t *testing.T) {
	api := setupTestApp(t)

	status, _ := api.do(t, http.MethodPut, "/watches/cpu_high", cpuWatch)
	require.Equal(t, http.StatusCreated, status)

	status, _ = api.do(t, http.MethodPut, "/watches/cpu_high", cpuWatch)
	require.Equal(t, http.StatusOK, status)

	status, body := api.do(t, http.MethodGet, "/watches/cpu_high", "")
	require.Equal(t, http.StatusOK, status)

	var w models.Watch
	require.NoError(t, json.Unmarshal(body, &w))
	assert.Equal(t, "High CPU", w.Name)
	assert.Equal(t, []string{"notify"}, w.ActionIDs())

	status, body = api.do(t, http.MethodGet, "/watches", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"total_count":1`)

	status, _ = api.do(t, http.MethodDelete, "/watches/cpu_high", "")
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = api.do(t, http.MethodDelete, "/watches/cpu_high", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = api.do(t, http.MethodGet, "/watches/cpu_high", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, string(body), "watch_not_found")
}

func TestAPIHandlers_ExecuteWatch(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
		actionStatus   models.StepStatus
	}{
		{name: "simulates by default", body: "", expectedStatus: http.StatusOK, actionStatus: models.StepSimulated},
		{name: "execute mode", body: `{"action_modes": {"notify": "execute"}}`, expectedStatus: http.StatusOK, actionStatus: models.StepSuccess},
		{name: "skip all", body: `{"action_modes": {"_all": "skip"}}`, expectedStatus: http.StatusOK, actionStatus: models.StepSkipped},
		{name: "invalid mode", body: `{"action_modes": {"notify": "later"}}`, expectedStatus: http.StatusBadRequest},
		{name: "unknown action", body: `{"action_modes": {"page": "skip"}}`, expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := setupTestApp(t)

			status, _ := api.do(t, http.MethodPut, "/watches/cpu_high", cpuWatch)
			require.Equal(t, http.StatusCreated, status)

			status, body := api.do(t, http.MethodPost, "/watches/cpu_high/_execute", tt.body)
			require.Equal(t, tt.expectedStatus, status, string(body))

			if tt.expectedStatus != http.StatusOK {
				return
			}

			var record models.WatchRecord
			require.NoError(t, json.Unmarshal(body, &record))
			assert.Equal(t, models.ExecutionStateExecuted, record.State)
			require.Len(t, record.Result.Actions, 1)
			assert.Equal(t, tt.actionStatus, record.Result.Actions[0].Status)
		})
	}
}

func TestAPIHandlers_ExecuteMissingWatch(t *testing.T) {
	api := setupTestApp(t)

	status, _ := api.do(t, http.MethodPost, "/watches/nope/_execute", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_AckAndHistory(t *testing.T) {
	api := setupTestApp(t)

	status, _ := api.do(t, http.MethodPut, "/watches/cpu_high", cpuWatch)
	require.Equal(t, http.StatusCreated, status)

	status, body := api.do(t, http.MethodPost, "/watches/cpu_high/_execute",
		`{"action_modes": {"_all": "execute"}, "record_execution": true}`)
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = api.do(t, http.MethodPost, "/watches/cpu_high/_ack", `{"action_ids": ["notify"]}`)
	require.Equal(t, http.StatusOK, status, string(body))

	var watchStatus models.WatchStatus
	require.NoError(t, json.Unmarshal(body, &watchStatus))
	assert.Equal(t, models.AckAcked, watchStatus.Actions["notify"].AckState)

	status, _ = api.do(t, http.MethodPost, "/watches/cpu_high/_ack", `{"action_ids": ["page"]}`)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = api.do(t, http.MethodGet, "/watches/cpu_high/history", "")
	require.Equal(t, http.StatusOK, status)

	var historyResponse web.HistoryResponse
	require.NoError(t, json.Unmarshal(body, &historyResponse))
	require.Len(t, historyResponse.Records, 1)
	assert.True(t, strings.HasPrefix(historyResponse.Records[0].ID, "cpu_high_"))

	status, _ = api.do(t, http.MethodGet, "/watches/cpu_high/history?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIHandlers_TriggerWatch(t *testing.T) {
	api := setupTestApp(t)

	status, _ := api.do(t, http.MethodPut, "/watches/cpu_high", cpuWatch)
	require.Equal(t, http.StatusCreated, status)

	status, _ = api.do(t, http.MethodPost, "/watches/cpu_high/_trigger", `{"data": {"reason": "test"}}`)
	require.Equal(t, http.StatusAccepted, status)

	assert.Eventually(t, func() bool {
		_, body := api.do(t, http.MethodGet, "/watches/cpu_high/history", "")

		var historyResponse web.HistoryResponse
		if json.Unmarshal(body, &historyResponse) != nil || len(historyResponse.Records) != 1 {
			return false
		}

		record := historyResponse.Records[0]

		return record.State == models.ExecutionStateExecuted &&
			record.TriggerEvent.Type == models.TriggerTypeManual &&
			record.TriggerEvent.Data["reason"] == "test"
	}, 5*time.Second, 20*time.Millisecond)

	status, _ = api.do(t, http.MethodPost, "/watches/unknown/_trigger", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_TriggerWatchKeepsWatchID(t *testing.T) {
	api := setupTestApp(t)

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"cpu": 95}`))
	}))
	defer slow.Close()

	slowWatch := strings.Replace(cpuWatch,
		`"input": {"simple": {"cpu": 95}}`,
		`"input": {"http": {"request": {"url": "`+slow.URL+`/slow"}}}`, 1)

	status, _ := api.do(t, http.MethodPut, "/watches/cpu_high", slowWatch)
	require.Equal(t, http.StatusCreated, status)

	status, _ = api.do(t, http.MethodPost, "/watches/cpu_high/_trigger", "")
	require.Equal(t, http.StatusAccepted, status)

	// Same length as cpu_high so a reused request buffer would overwrite it.
	for range 20 {
		status, _ = api.do(t, http.MethodGet, "/watches/XXXXXXXX/history", "")
		require.Equal(t, http.StatusOK, status)
	}

	assert.Eventually(t, func() bool {
		_, body := api.do(t, http.MethodGet, "/watches/cpu_high/history", "")

		var historyResponse web.HistoryResponse
		if json.Unmarshal(body, &historyResponse) != nil || len(historyResponse.Records) != 1 {
			return false
		}

		record := historyResponse.Records[0]

		return record.WatchID == "cpu_high" &&
			record.TriggerEvent.WatchID == "cpu_high" &&
			record.State == models.ExecutionStateExecuted
	}, 5*time.Second, 20*time.Millisecond)

	_, body := api.do(t, http.MethodGet, "/watches/XXXXXXXX/history", "")

	var other web.HistoryResponse
	require.NoError(t, json.Unmarshal(body, &other))
	assert.Empty(t, other.Records)
}

func TestAPIHandlers_StatsAndHealth(t *testing.T) {
	api := setupTestApp(t)

	status, body := api.do(t, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, status)

	var stats models.Stats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.True(t, stats.Started)
	assert.Empty(t, stats.CurrentExecutions)

	status, body = api.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "healthy")

	require.NoError(t, api.service.Stop(context.Background()))

	status, _ = api.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
}
