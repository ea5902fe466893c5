package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitegen-portal/internal/generation"
)

// State is the lifecycle position of a Poller.
type State string

// Poller states.
const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StatePolling    State = "polling"
	StateCancelling State = "cancelling"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// DefaultInterval is the delay between status polls.
const DefaultInterval = 5 * time.Second

// Errors reported by Wait and the control methods.
var (
	ErrAlreadyStarted   = errors.New("poller already started")
	ErrNotStarted       = errors.New("poller not started")
	ErrStopped          = errors.New("poller stopped")
	ErrGenerationFailed = errors.New("generation failed")
)

// API is the subset of Client the Poller drives.
type API interface {
	Generate(ctx context.Context, req generation.Request) (generation.Response, error)
	Status(ctx context.Context, clientID string) (generation.ProgressRecord, error)
	Cancel(ctx context.Context, clientID string) error
}

// Options tunes a Poller.
type Options struct {
	Interval time.Duration
	// OnUpdate receives every record fetched, in order, from the polling
	// goroutine. It may call Stop or Cancel.
	OnUpdate func(generation.ProgressRecord)
	Logger   *zap.Logger
}

// Poller follows a single generation run. Polls are strictly sequential: the
// next one is scheduled only after the previous one returns.
type Poller struct {
	api  API
	opts Options

	mu       sync.Mutex
	state    State
	clientID string
	last     generation.ProgressRecord
	err      error
	cancel   context.CancelFunc
	done     chan struct{}
	exited   chan struct{}
	updating bool
}

// New creates an idle Poller.
func New(api API, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Poller{
		api:    api,
		opts:   opts,
		state:  StateIdle,
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

// Start submits req and begins polling the returned client ID.
func (p *Poller) Start(ctx context.Context, req generation.Request) (string, error) {
	if err := p.transition(StateIdle, StateRequesting); err != nil {
		return "", err
	}
	resp, err := p.api.Generate(ctx, req)
	if err != nil {
		p.finish(StateError, generation.ProgressRecord{}, err)
		return "", err
	}
	p.begin(resp.ClientID)
	return resp.ClientID, nil
}

// Watch begins polling an existing run.
func (p *Poller) Watch(clientID string) error {
	if clientID == "" {
		return errors.New("client id is required")
	}
	if err := p.transition(StateIdle, StateRequesting); err != nil {
		return err
	}
	p.begin(clientID)
	return nil
}

// Cancel asks the portal to cancel the run. Polling continues until the
// cancelled record is observed.
func (p *Poller) Cancel(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StatePolling {
		state := p.state
		p.mu.Unlock()
		if state == StateCancelling {
			return nil
		}
		return fmt.Errorf("cannot cancel in state %s", state)
	}
	p.state = StateCancelling
	id := p.clientID
	p.mu.Unlock()

	if err := p.api.Cancel(ctx, id); err != nil {
		p.mu.Lock()
		if p.state == StateCancelling {
			p.state = StatePolling
		}
		p.mu.Unlock()
		return err
	}
	return nil
}

// Stop ends polling without waiting for a terminal status and releases the
// timer. Wait then returns ErrStopped. Stop is safe to call more than once.
// Called from outside OnUpdate it returns once the polling goroutine has
// exited; called from OnUpdate it returns at once and the loop exits when the
// callback returns.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	updating := p.updating
	if !p.terminalLocked() {
		p.state = StateIdle
		p.err = ErrStopped
		close(p.done)
	}
	p.mu.Unlock()
	if cancel != nil {
		cancel()
		if !updating {
			<-p.exited
		}
	}
}

// Wait blocks until the run finishes, Stop is called, or ctx ends. It returns
// the last record and, for failed runs, an error wrapping ErrGenerationFailed.
func (p *Poller) Wait(ctx context.Context) (generation.ProgressRecord, error) {
	select {
	case <-p.done:
	case <-ctx.Done():
		return p.Last(), ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last.Clone(), p.err
}

// State reports the current state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// ClientID reports the run being followed.
func (p *Poller) ClientID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clientID
}

// Last returns the most recent record seen.
func (p *Poller) Last() generation.ProgressRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last.Clone()
}

func (p *Poller) transition(from, to State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.terminalLocked() {
		return ErrStopped
	}
	if p.state != from {
		return ErrAlreadyStarted
	}
	p.state = to
	return nil
}

func (p *Poller) begin(clientID string) {
	ctx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.clientID = clientID
	if p.terminalLocked() {
		p.mu.Unlock()
		cancel()
		return
	}
	p.state = StatePolling
	p.cancel = cancel
	p.mu.Unlock()
	go p.run(ctx, clientID)
}

func (p *Poller) run(ctx context.Context, clientID string) {
	defer close(p.exited)
	timer := time.NewTimer(0)
	defer timer.Stop()
	logger := p.opts.Logger.With(zap.String("client_id", clientID))

	for {
		select {
		case <-ctx.Done():
			p.finish(StateIdle, p.Last(), ErrStopped)
			return
		case <-timer.C:
		}

		rec, err := p.api.Status(ctx, clientID)
		if err != nil {
			if ctx.Err() != nil {
				p.finish(StateIdle, p.Last(), ErrStopped)
				return
			}
			logger.Warn("status poll failed", zap.Error(err))
			p.finish(StateError, p.Last(), err)
			return
		}
		if ctx.Err() != nil {
			p.finish(StateIdle, p.Last(), ErrStopped)
			return
		}
		p.record(rec)
		p.notify(rec)
		if ctx.Err() != nil {
			p.finish(StateIdle, p.Last(), ErrStopped)
			return
		}

		switch rec.Status {
		case generation.StatusCompleted:
			p.finish(StateCompleted, rec, nil)
			return
		case generation.StatusError:
			msg := rec.Error
			if msg == "" {
				msg = rec.Message
			}
			p.finish(StateError, rec, fmt.Errorf("%w: %s", ErrGenerationFailed, msg))
			return
		}
		timer.Reset(p.opts.Interval)
	}
}

func (p *Poller) notify(rec generation.ProgressRecord) {
	if p.opts.OnUpdate == nil {
		return
	}
	p.mu.Lock()
	p.updating = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.updating = false
		p.mu.Unlock()
	}()
	p.opts.OnUpdate(rec.Clone())
}

func (p *Poller) record(rec generation.ProgressRecord) {
	p.mu.Lock()
	p.last = rec.Clone()
	p.mu.Unlock()
}

func (p *Poller) finish(state State, rec generation.ProgressRecord, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.terminalLocked() {
		return
	}
	p.state = state
	p.last = rec.Clone()
	p.err = err
	if p.cancel != nil {
		p.cancel()
	}
	close(p.done)
}

// terminalLocked reports whether done has been closed.
func (p *Poller) terminalLocked() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}
