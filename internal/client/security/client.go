package security

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/alarm-coordinator/internal/config"
	domain "github.com/oshokin/alarm-coordinator/internal/domain/alarm"
	"github.com/oshokin/alarm-coordinator/internal/logger"
)

// Header names understood by the remote service.
const (
	HeaderAuthToken      = "auth-token"
	HeaderSystemID       = "system-id"
	HeaderRequestID      = "X-Request-ID"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// Client talks to the remote security service.
type Client struct {
	// http is the configured resty client.
	http *resty.Client
	// timeout bounds a whole call including retries.
	timeout time.Duration
}

// errEmptyAlarmID is returned when an alarm id is required but missing.
var errEmptyAlarmID = errors.New("alarm id must be provided")

// New builds a client from the remote settings.
func New(ctx context.Context, cfg *config.Remote) *Client {
	restLogger := logger.Leveled(logger.FromContext(ctx).Named("remote"), zapcore.WarnLevel)

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetHeader(HeaderSystemID, cfg.SystemID).
		SetHeader(HeaderAuthToken, cfg.AuthToken).
		SetLogger(restLogger).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryMaxWait).
		AddRetryCondition(func(_ *resty.Response, err error) bool {
			// Retry transport failures only; any HTTP answer is final.
			return err != nil
		})

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultRemoteTimeout
	}

	return &Client{
		http:    httpClient,
		timeout: timeout,
	}
}

// CreateAlarm creates an alarm of the given kind. The idempotency key lets
// the remote service collapse duplicates of the same pending alarm.
func (c *Client) CreateAlarm(
	ctx context.Context,
	kind domain.Kind,
	idempotencyKey string,
	payload domain.CreatePayload,
) (*domain.RemoteRecord, error) {
	request := c.request(ctx).SetBody(payload)
	if idempotencyKey != "" {
		request.SetHeader(HeaderIdempotencyKey, idempotencyKey)
	}

	return c.do(ctx, "create "+kind.Name()+" alarm", request, http.MethodPost, "/"+kind.Endpoint())
}

// CancelAlarm cancels the alarm and returns the status reported by the service.
func (c *Client) CancelAlarm(ctx context.Context, alarmID string) (*domain.RemoteRecord, error) {
	if alarmID == "" {
		return nil, errEmptyAlarmID
	}

	return c.do(ctx, "cancel alarm", c.request(ctx), http.MethodPost, "/cancelalarm/"+alarmID)
}

// GetAlarmStatus fetches the current status of the alarm.
func (c *Client) GetAlarmStatus(ctx context.Context, alarmID string) (*domain.RemoteRecord, error) {
	if alarmID == "" {
		return nil, errEmptyAlarmID
	}

	return c.do(ctx, "get alarm status", c.request(ctx), http.MethodGet, "/getalarmstatus/"+alarmID)
}

// CreateEvent attaches a sensor event to an existing alarm.
func (c *Client) CreateEvent(ctx context.Context, alarmID string, payload domain.CreatePayload) error {
	if alarmID == "" {
		return errEmptyAlarmID
	}

	_, err := c.do(ctx, "create event", c.request(ctx).SetBody(payload), http.MethodPost, "/createevent/"+alarmID)

	return err
}

// CreateAlert posts a standalone alert not tied to any alarm.
func (c *Client) CreateAlert(ctx context.Context, alert domain.Alert) error {
	_, err := c.do(ctx, "create alert", c.request(ctx).SetBody(alert), http.MethodPost, "/createalert/0")

	return err
}

// request returns a request carrying a fresh request id.
func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetHeader(HeaderRequestID, uuid.NewString())
}

// do executes the request under the call timeout and classifies the outcome.
func (c *Client) do(
	ctx context.Context,
	operation string,
	request *resty.Request,
	method, path string,
) (*domain.RemoteRecord, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	request.SetContext(callCtx)

	response, err := request.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", operation, domain.ErrNetwork, err)
	}

	logger.DebugKV(ctx, "Remote call finished",
		"operation", operation,
		"status_code", response.StatusCode(),
		"attempts", request.Attempt,
		"duration", response.Time().String(),
	)

	if err = classify(response); err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	record, err := decodeRecord(response.Body())
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", operation, domain.ErrServer, err)
	}

	return record, nil
}

// classify maps an HTTP answer to the domain error taxonomy.
func classify(response *resty.Response) error {
	code := response.StatusCode()

	switch {
	case code >= http.StatusOK && code < http.StatusMultipleChoices:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", domain.ErrAuth, code)
	default:
		return fmt.Errorf("%w: status %d: %s", domain.ErrServer, code, truncate(response.String(), 256))
	}
}

// decodeRecord reads a response body into a RemoteRecord. Endpoints disagree
// on key spelling (AlarmID, alarm_id, alarmId), so keys are compared after
// lowercasing and dropping underscores. An empty body yields an empty record.
func decodeRecord(body []byte) (*domain.RemoteRecord, error) {
	record := new(domain.RemoteRecord)
	if len(strings.TrimSpace(string(body))) == 0 {
		return record, nil
	}

	// Numbers stay json.Number so large numeric ids keep every digit.
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		fields[normalizeKey(k)] = v
	}

	record.AlarmID = firstString(fields, "alarmid", "id")
	record.Status = firstString(fields, "status")
	record.OwnerID = firstString(fields, "ownerid", "owner")
	record.Message = firstString(fields, "message")

	if createdAt := firstString(fields, "createdat"); createdAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			record.CreatedAt = t
		}
	}

	return record, nil
}

func normalizeKey(k string) string {
	return strings.ReplaceAll(strings.ToLower(k), "_", "")
}

func firstString(fields map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := fields[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		}
	}

	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}
