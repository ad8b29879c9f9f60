package panel

import (
	"context"
	"fmt"
	"strings"
	"sync"

	domain "github.com/oshokin/alarm-coordinator/internal/domain/alarm"
	"github.com/oshokin/alarm-coordinator/internal/logger"
)

// Mode is the display mode of the panel.
type Mode string

// Panel modes.
const (
	ModeDisarmed  Mode = "disarmed"
	ModeArmedHome Mode = "armed_home"
	ModeArmedAway Mode = "armed_away"
	ModeTriggered Mode = "triggered"
)

// Command is an operator action on the panel.
type Command string

// Panel commands.
const (
	CommandTrigger Command = "trigger"
	CommandDisarm  Command = "disarm"
	CommandArmHome Command = "arm_home"
	CommandArmAway Command = "arm_away"
)

// ParseCommand parses a command name. Dashes are accepted in place of underscores.
func ParseCommand(s string) (Command, error) {
	c := Command(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))

	switch c {
	case CommandTrigger, CommandDisarm, CommandArmHome, CommandArmAway:
		return c, nil
	default:
		return "", fmt.Errorf("%w: unknown panel command %q", domain.ErrValidation, s)
	}
}

// Lifecycle is the part of the lifecycle service the panel drives.
type Lifecycle interface {
	TriggerSensorEvent(ctx context.Context, sensors []domain.Sensor, kind domain.Kind) (*domain.Session, error)
	Cancel(ctx context.Context) (*domain.Session, error)
	Session(ctx context.Context) *domain.Session
	Subscribe(fn func(*domain.Session))
}

// State is what the panel renders.
type State struct {
	// Mode is the local display mode.
	Mode Mode
	// Session is the last session the panel was notified about.
	Session *domain.Session
}

// Panel is the alarm control panel. Arming only changes the display mode;
// triggering and disarming go through the lifecycle service.
type Panel struct {
	lifecycle Lifecycle
	mode      Mode
	session   *domain.Session
	mu        sync.RWMutex
}

// New creates a panel bound to lc and subscribes it to session changes.
// A restored in-flight session starts the panel in the triggered mode.
func New(ctx context.Context, lc Lifecycle) *Panel {
	session := lc.Session(ctx)

	mode := ModeDisarmed
	if session.Status.InFlight() {
		mode = ModeTriggered
	}

	p := &Panel{
		lifecycle: lc,
		mode:      mode,
		session:   session,
	}

	lc.Subscribe(p.render)

	return p
}

// Execute runs a panel command.
func (p *Panel) Execute(ctx context.Context, cmd Command) (*State, error) {
	switch cmd {
	case CommandTrigger:
		return p.Trigger(ctx)
	case CommandDisarm:
		return p.Disarm(ctx)
	case CommandArmHome:
		return p.ArmHome(ctx), nil
	case CommandArmAway:
		return p.ArmAway(ctx), nil
	default:
		return nil, fmt.Errorf("%w: unknown panel command %q", domain.ErrValidation, cmd)
	}
}

// Trigger raises a pending security alarm.
func (p *Panel) Trigger(ctx context.Context) (*State, error) {
	p.setMode(ctx, ModeTriggered)

	if _, err := p.lifecycle.TriggerSensorEvent(ctx, nil, domain.Security{}); err != nil {
		return p.State(), fmt.Errorf("trigger: %w", err)
	}

	return p.State(), nil
}

// Disarm cancels the pending or active alarm.
func (p *Panel) Disarm(ctx context.Context) (*State, error) {
	p.setMode(ctx, ModeDisarmed)

	if _, err := p.lifecycle.Cancel(ctx); err != nil {
		return p.State(), fmt.Errorf("disarm: %w", err)
	}

	return p.State(), nil
}

// ArmHome switches the display mode to armed home.
func (p *Panel) ArmHome(ctx context.Context) *State {
	p.setMode(ctx, ModeArmedHome)

	return p.State()
}

// ArmAway switches the display mode to armed away.
func (p *Panel) ArmAway(ctx context.Context) *State {
	p.setMode(ctx, ModeArmedAway)

	return p.State()
}

// State returns what the panel currently shows.
func (p *Panel) State() *State {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return &State{
		Mode:    p.mode,
		Session: p.session.Clone(),
	}
}

func (p *Panel) setMode(ctx context.Context, mode Mode) {
	p.mu.Lock()
	previous := p.mode
	p.mode = mode
	p.mu.Unlock()

	logger.InfoKV(ctx, "Panel mode changed", "from", previous, "to", mode)
}

func (p *Panel) render(session *domain.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.session = session
}
