package widget

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type State int

const (
	Idle State = iota
	Prompting
	Submitting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Prompting:
		return "prompting"
	case Submitting:
		return "submitting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrNoTarget     = errors.New("widget: no selection control targeted")
	ErrNoCreateURL  = errors.New("widget: control has no creation endpoint")
	ErrNotPrompting = errors.New("widget: creation dialog is not open")
	ErrEmptyName    = errors.New("name is required")
)

// Result is a successful create-or-lookup answer.
type Result struct {
	ID      string
	Name    string
	Created bool
}

// Creator sends a name to a creation endpoint.
type Creator interface {
	Create(ctx context.Context, url, name string) (Result, error)
}

// Dialog is the creation prompt shared by every control on a form. It holds
// one active target at a time; opening it for another field replaces the
// previous target.
type Dialog struct {
	Creator Creator
	// OnError receives failed creations; the target control is untouched.
	OnError func(target *Control, err error)
	// Timeout bounds each creation request when positive.
	Timeout time.Duration

	mu       sync.Mutex
	state    State
	visible  bool
	input    string
	message  string
	target   *Control
	inflight int
}

func NewDialog(creator Creator) *Dialog {
	return &Dialog{Creator: creator, Timeout: 30 * time.Second}
}

// OpenCreation points the dialog at target and shows an empty prompt.
func (d *Dialog) OpenCreation(target *Control) error {
	if target == nil {
		return ErrNoTarget
	}
	if target.CreateURL == "" {
		return ErrNoCreateURL
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.target = target
	d.input = ""
	d.message = ""
	d.visible = true
	d.state = Prompting
	return nil
}

// SetInput records what the user typed in the prompt.
func (d *Dialog) SetInput(s string) {
	d.mu.Lock()
	d.input = s
	d.mu.Unlock()
}

// Cancel closes the prompt and forgets the target.
func (d *Dialog) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Prompting {
		return
	}
	d.target = nil
	d.visible = false
	d.message = ""
	d.state = d.restingState()
}

// Pending tracks one dispatched creation request.
type Pending struct {
	Target *Control
	Name   string

	done   chan struct{}
	result Result
	err    error
}

func (p *Pending) Done() <-chan struct{} { return p.done }

// Result blocks until the request resolves.
func (p *Pending) Result() (Result, error) {
	<-p.done
	return p.result, p.err
}

// Submit validates name locally, dismisses the prompt and dispatches the
// request. The target control changes only when a successful response
// arrives. A blank name returns ErrEmptyName and leaves the prompt open.
func (d *Dialog) Submit(ctx context.Context, name string) (*Pending, error) {
	d.mu.Lock()
	if d.state != Prompting || d.target == nil {
		d.mu.Unlock()
		return nil, ErrNotPrompting
	}
	d.input = name
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		d.message = ErrEmptyName.Error()
		d.mu.Unlock()
		return nil, ErrEmptyName
	}

	p := &Pending{Target: d.target, Name: trimmed, done: make(chan struct{})}
	d.target = nil
	d.visible = false
	d.message = ""
	d.state = Submitting
	d.inflight++
	d.mu.Unlock()

	go d.run(ctx, p)
	return p, nil
}

func (d *Dialog) run(ctx context.Context, p *Pending) {
	defer close(p.done)
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	res, err := d.Creator.Create(ctx, p.Target.CreateURL, p.Name)
	if err == nil && res.ID == "" {
		err = errors.New("widget: response carried no identifier")
	}
	p.result, p.err = res, err

	if err != nil {
		log.Warn().Err(err).Str("field", p.Target.Name).Str("entity", p.Target.EntityType).Msg("inline creation failed")
		if d.OnError != nil {
			d.OnError(p.Target, err)
		}
	} else {
		p.Target.InsertOrSelect(res.ID, res.Name)
	}

	d.mu.Lock()
	d.inflight--
	if d.state == Submitting && d.inflight == 0 {
		d.state = Idle
	}
	d.mu.Unlock()
}

// restingState is the state once the prompt is closed; caller holds mu.
func (d *Dialog) restingState() State {
	if d.inflight > 0 {
		return Submitting
	}
	return Idle
}

func (d *Dialog) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Dialog) Visible() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.visible
}

// Message is the inline validation text shown in the prompt.
func (d *Dialog) Message() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.message
}

func (d *Dialog) Input() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.input
}

func (d *Dialog) Target() *Control {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.target
}
