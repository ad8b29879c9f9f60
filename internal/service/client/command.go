package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oshokin/alarm-coordinator/internal/config"
	domain "github.com/oshokin/alarm-coordinator/internal/domain/alarm"
	"github.com/oshokin/alarm-coordinator/internal/logger"
	"github.com/oshokin/alarm-coordinator/internal/service/common"
)

// Action is an alarm-panel subcommand.
type Action string

// Supported actions.
const (
	ActionTrigger Action = "trigger"
	ActionDisarm  Action = "disarm"
	ActionArmHome Action = "arm-home"
	ActionArmAway Action = "arm-away"
	ActionRaise   Action = "raise"
	ActionConfirm Action = "confirm"
	ActionCancel  Action = "cancel"
	ActionStatus  Action = "status"
	ActionEvent   Action = "event"
	ActionAlert   Action = "alert"
	ActionSession Action = "session"
	ActionHistory Action = "history"
)

// Options configures one alarm-panel invocation.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ServerAddress overrides the coordinator address from config when specified.
	ServerAddress string
	// Action selects the operation.
	Action Action
	// Kind is the alarm type for raise.
	Kind string
	// Sensors are the entity ids for raise and event.
	Sensors []string
	// Alert is the alert posted by the alert action.
	Alert domain.Alert
	// Limit bounds the history listing.
	Limit int
	// Retry keeps retrying transient failures until success or cancellation.
	Retry bool
	// Out receives the result, stdout when nil.
	Out io.Writer
}

// DefaultHistoryLimit is the default number of transitions listed by history.
const DefaultHistoryLimit = 20

// defaultRetryInterval defines the delay between attempts when retrying.
const defaultRetryInterval = 1 * time.Second

// errUnknownAction is returned for an unsupported action.
var errUnknownAction = errors.New("unknown action")

// Run performs the requested action against the coordinator, retrying
// transient failures when asked to.
//
//nolint:cyclop // Retry loop mirrors the attempt/ticker structure used by every client.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alarm-panel")

	// Load settings from configuration file.
	cfg, err := config.LoadClient(opts.ConfigPath)
	if err != nil {
		return err
	}

	// Use server address from options if provided, otherwise use config.
	serverAddress := cfg.ListenAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	// Identify current user and hostname for the audit trail.
	actor, err := common.DetectActor()
	if err != nil {
		return err
	}

	// Connect to the coordinator with timeout from config.
	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return err
	}

	// Close connection on function exit.
	defer func() {
		_ = client.Close()
	}()

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	logger.DebugKV(ctx, "Running panel action", "server_address", serverAddress, "action", opts.Action)

	// attempt tries once, returns (completed, error).
	attempt := func() (bool, error) {
		err := perform(ctx, client, actor, opts, out)
		if err == nil {
			return true, nil
		}

		if opts.Retry && isRetryable(err) {
			logger.WarnKV(ctx, "Action failed, retrying", "action", opts.Action, "error", err)

			return false, nil
		}

		return false, err
	}

	// Attempt immediately before starting retry loop.
	if done, err := attempt(); err != nil || done {
		return err
	}

	// Setup retry timer for subsequent attempts.
	ticker := time.NewTicker(defaultRetryInterval)
	defer ticker.Stop()

	// Retry loop until success or cancellation.
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			done, err := attempt()
			if err != nil || done {
				return err
			}
		}
	}
}

// perform runs the action once and prints its result.
//
//nolint:cyclop,funlen // One branch per action.
func perform(ctx context.Context, client *common.Client, actor *domain.Actor, opts *Options, out io.Writer) error {
	switch opts.Action {
	case ActionTrigger, ActionDisarm, ActionArmHome, ActionArmAway:
		state, err := client.Panel(ctx, actor, string(opts.Action))
		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(out, "panel: %s\n%s\n", state.Mode, FormatSession(state.Session))

		return err

	case ActionRaise:
		sensors := make([]domain.Sensor, 0, len(opts.Sensors))
		for _, id := range opts.Sensors {
			sensors = append(sensors, domain.Sensor{EntityID: id})
		}

		return printSession(out)(client.Trigger(ctx, actor, opts.Kind, sensors))

	case ActionConfirm:
		return printSession(out)(client.Confirm(ctx, actor))

	case ActionCancel:
		return printSession(out)(client.Cancel(ctx, actor))

	case ActionStatus:
		return printSession(out)(client.Status(ctx, actor))

	case ActionSession:
		return printSession(out)(client.Session(ctx))

	case ActionEvent:
		var lastErr error

		for _, id := range opts.Sensors {
			if _, err := client.CreateEvent(ctx, actor, domain.Sensor{EntityID: id}); err != nil {
				lastErr = err
			}
		}

		if lastErr != nil {
			return lastErr
		}

		return printSession(out)(client.Session(ctx))

	case ActionAlert:
		if err := client.CreateAlert(ctx, actor, opts.Alert); err != nil {
			return err
		}

		_, err := fmt.Fprintf(out, "alert %q sent\n", opts.Alert.Type)

		return err

	case ActionHistory:
		transitions, err := client.History(ctx, opts.Limit)
		if err != nil {
			return err
		}

		return FormatHistory(out, transitions)

	default:
		return fmt.Errorf("%w: %q", errUnknownAction, opts.Action)
	}
}

func printSession(out io.Writer) func(*domain.Session, error) error {
	return func(session *domain.Session, err error) error {
		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(out, FormatSession(session))

		return err
	}
}

// isRetryable reports whether a failed call may succeed later.
func isRetryable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted:
		return true
	default:
		return false
	}
}

// FormatSession renders a session on one line.
func FormatSession(session *domain.Session) string {
	if session == nil {
		return "<nil session>"
	}

	parts := []string{"status=" + string(session.Status)}

	add := func(key, value string) {
		if value != "" {
			parts = append(parts, key+"="+value)
		}
	}

	add("alarm_id", session.AlarmID)
	add("kind", domain.KindName(session.Kind))
	add("owner_id", session.OwnerID)
	add("remote_status", session.RemoteStatus)
	add("last_event", session.LastEventType)

	if !session.UpdatedAt.IsZero() {
		add("updated_at", session.UpdatedAt.Format(time.RFC3339))
	}

	return strings.Join(parts, " ")
}

// FormatHistory renders transitions as a table.
func FormatHistory(out io.Writer, transitions []*domain.Transition) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "AT\tFROM\tTO\tALARM\tKIND\tEVENT\tACTOR")

	for _, t := range transitions {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.At.Format(time.RFC3339), t.From, t.To, dash(t.AlarmID), dash(t.Kind), dash(t.Event), dash(t.Actor))
	}

	return w.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
