package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/alarm-coordinator/internal/config"
	domain "github.com/oshokin/alarm-coordinator/internal/domain/alarm"
	"github.com/oshokin/alarm-coordinator/internal/service/common"
	"github.com/oshokin/alarm-coordinator/internal/service/server"
)

const (
	testAlarmID      = "A1"
	testSystemID     = "hub-1"
	testWebhookToken = "s3cret"

	closedEvent = `[{"meta":{"alarm_id":"A1"},"event_type":"alarm.closed"}]`
)

// remoteService emulates the monitoring service endpoints used by the coordinator.
type remoteService struct {
	creates atomic.Int32
	cancels atomic.Int32
	events  atomic.Int32
}

func (r *remoteService) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Header.Get("system-id") != testSystemID {
		w.WriteHeader(http.StatusUnauthorized)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	switch {
	case req.Method == http.MethodPost && req.URL.Path == "/createsecurityalarm":
		r.creates.Add(1)
		_, _ = w.Write([]byte(`{"AlarmID":"` + testAlarmID + `","Status":"ACTIVE","OwnerID":"U1"}`))
	case req.Method == http.MethodPost && req.URL.Path == "/cancelalarm/"+testAlarmID:
		r.cancels.Add(1)
		_, _ = w.Write([]byte(`{"status":"CANCELED"}`))
	case req.Method == http.MethodGet && req.URL.Path == "/getalarmstatus/"+testAlarmID:
		_, _ = w.Write([]byte(`{"alarm_id":"` + testAlarmID + `","status":"ACTIVE"}`))
	case req.Method == http.MethodPost && req.URL.Path == "/createevent/"+testAlarmID:
		r.events.Add(1)
		_, _ = w.Write([]byte(`{}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type coordinator struct {
	grpcAddress    string
	webhookAddress string
	stop           func()
}

// startCoordinator runs the real coordinator on ephemeral ports and waits
// until both listeners are bound.
func startCoordinator(t *testing.T, remoteURL, dir string) *coordinator {
	t.Helper()

	cfgPath := filepath.Join(dir, "settings.yaml")

	settings := config.Default()
	settings.ListenAddress = "127.0.0.1:0"
	settings.Webhook.ListenAddress = "127.0.0.1:0"
	settings.Webhook.Token = testWebhookToken
	settings.Remote.BaseURL = remoteURL
	settings.Remote.SystemID = testSystemID
	settings.Remote.AuthToken = "token"
	settings.Remote.RetryCount = 0
	settings.StateFile = filepath.Join(dir, "state.json")
	settings.JournalFile = filepath.Join(dir, "journal.db")
	settings.LogLevel = "error"
	settings.LogFormat = ""
	settings.Sensors = []config.Sensor{{EntityID: "binary_sensor.door", DeviceClass: "door", Name: "Front door"}}

	require.NoError(t, config.Save(cfgPath, settings))

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan [2]string, 1)
	done := make(chan error, 1)

	go func() {
		done <- server.Run(ctx, &server.Options{
			ConfigPath: cfgPath,
			Ready: func(grpcAddress, webhookAddress string) {
				ready <- [2]string{grpcAddress, webhookAddress}
			},
		})
	}()

	var addresses [2]string

	select {
	case addresses = <-ready:
	case err := <-done:
		cancel()
		require.FailNow(t, "coordinator exited before becoming ready", "error: %v", err)
	case <-time.After(10 * time.Second):
		cancel()
		require.FailNow(t, "coordinator did not become ready")
	}

	return &coordinator{
		grpcAddress:    addresses[0],
		webhookAddress: addresses[1],
		stop: func() {
			cancel()

			select {
			case err := <-done:
				require.NoError(t, err)
			case <-time.After(10 * time.Second):
				require.FailNow(t, "coordinator did not stop")
			}
		},
	}
}

func dial(t *testing.T, address string) *common.Client {
	t.Helper()

	c, err := common.Dial(context.Background(), address, common.WithCallTimeout(5*time.Second))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = c.Close()
	})

	return c
}

func postWebhook(t *testing.T, address, token, body string) int {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost,
		"http://"+address+"/api/webhook/"+config.DefaultWebhookID, bytes.NewBufferString(body))
	require.NoError(t, err)

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Token", token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	return resp.StatusCode
}

// TestCoordinator_Lifecycle drives a full alarm through the real server:
// panel trigger, confirmation, a pushed closed event, a sensor event and cancellation.
func TestCoordinator_Lifecycle(t *testing.T) {
	remote := new(remoteService)
	remoteServer := httptest.NewServer(remote)
	t.Cleanup(remoteServer.Close)

	dir := t.TempDir()
	node := startCoordinator(t, remoteServer.URL, dir)
	defer node.stop()

	ctx := context.Background()
	c := dial(t, node.grpcAddress)
	actor := &domain.Actor{Hostname: "test-host", Username: "tester"}

	// The panel trigger only records a pending alarm.
	state, err := c.Panel(ctx, actor, "trigger")
	require.NoError(t, err)
	require.Equal(t, "triggered", state.Mode)
	require.Equal(t, domain.StatusPending, state.Session.Status)
	require.Empty(t, state.Session.AlarmID)
	require.Zero(t, remote.creates.Load())

	// Confirmation escalates it to the remote service.
	session, err := c.Confirm(ctx, actor)
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, session.Status)
	require.Equal(t, testAlarmID, session.AlarmID)
	require.Equal(t, int32(1), remote.creates.Load())

	// The webhook rejects a wrong token and accepts the right one.
	require.Equal(t, http.StatusUnauthorized,
		postWebhook(t, node.webhookAddress, "wrong", closedEvent))
	require.Equal(t, http.StatusOK,
		postWebhook(t, node.webhookAddress, testWebhookToken, closedEvent))

	// A closed event is recorded but the alarm stays tracked.
	session, err = c.Session(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, session.Status)
	require.Equal(t, testAlarmID, session.AlarmID)
	require.Equal(t, domain.EventClosed, session.LastEventType)
	require.Equal(t, string(domain.StatusClosed), session.RemoteStatus)

	_, err = c.CreateEvent(ctx, actor, domain.Sensor{EntityID: "binary_sensor.door"})
	require.NoError(t, err)
	require.Equal(t, int32(1), remote.events.Load())

	session, err = c.Status(ctx, actor)
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, session.Status)

	session, err = c.Cancel(ctx, actor)
	require.NoError(t, err)
	require.Equal(t, domain.StatusNone, session.Status)
	require.Empty(t, session.AlarmID)
	require.Equal(t, int32(1), remote.cancels.Load())

	// The journal lists the newest transition first.
	history, err := c.History(ctx, 10)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(history), 3)
	require.Equal(t, domain.StatusActive, history[0].From)
	require.Equal(t, domain.StatusNone, history[0].To)
	require.Equal(t, "tester@test-host", history[0].Actor)

	last := history[len(history)-1]
	require.Equal(t, domain.StatusNone, last.From)
	require.Equal(t, domain.StatusPending, last.To)

	_, err = os.Stat(filepath.Join(dir, "state.json"))
	require.NoError(t, err)
}

// TestCoordinator_RestoresSession checks that an active alarm survives a restart.
func TestCoordinator_RestoresSession(t *testing.T) {
	remote := new(remoteService)
	remoteServer := httptest.NewServer(remote)
	t.Cleanup(remoteServer.Close)

	dir := t.TempDir()
	ctx := context.Background()
	actor := &domain.Actor{Hostname: "test-host", Username: "tester"}

	first := startCoordinator(t, remoteServer.URL, dir)

	c := dial(t, first.grpcAddress)

	_, err := c.Trigger(ctx, actor, domain.KindNameSecurity,
		[]domain.Sensor{{EntityID: "binary_sensor.door"}})
	require.NoError(t, err)

	session, err := c.Confirm(ctx, actor)
	require.NoError(t, err)
	require.Equal(t, testAlarmID, session.AlarmID)

	first.stop()

	data, err := os.ReadFile(filepath.Join(dir, "state.json"))
	require.NoError(t, err)

	var stored map[string]any
	require.NoError(t, json.Unmarshal(data, &stored))
	require.Contains(t, string(data), testAlarmID)

	second := startCoordinator(t, remoteServer.URL, dir)
	defer second.stop()

	restored, err := dial(t, second.grpcAddress).Session(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, restored.Status)
	require.Equal(t, testAlarmID, restored.AlarmID)
	require.Equal(t, int32(1), remote.creates.Load())
}
