package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"quill/internal/logging"
	"quill/internal/models"
	"quill/internal/stream"
)

var (
	ErrEmptyPrompt     = errors.New("please enter a story idea")
	ErrBusy            = errors.New("a story is already being generated")
	ErrStreamTruncated = errors.New("stream ended before [DONE]")
	ErrStreamIdle      = errors.New("stream went idle")
)

// State is the lifecycle position of one generation.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateStreaming
	StateReconciling
	StateSettled
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateStreaming:
		return "streaming"
	case StateReconciling:
		return "reconciling"
	case StateSettled:
		return "settled"
	default:
		return "errored"
	}
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateSettled || s == StateErrored
}

// Backend is the part of the story service a session needs.
type Backend interface {
	Generate(ctx context.Context, req models.GenerationRequest) (io.ReadCloser, error)
	ListStories(ctx context.Context) ([]models.Item, error)
}

// Formatter renders finished content as rich markup. glamour's
// TermRenderer satisfies it.
type Formatter interface {
	Render(in string) (string, error)
}

// FragmentFunc receives the full accumulated text after every fragment.
type FragmentFunc func(accumulated string)

// Result is what a settled session hands back.
type Result struct {
	Item   models.Item
	Markup string
	// Reconciled is false when the server list was empty, leaving the item
	// without an id.
	Reconciled bool
}

// CountWords counts whitespace-delimited non-empty tokens.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

type Option func(*Engine)

func WithFormatter(f Formatter) Option {
	return func(e *Engine) { e.formatter = f }
}

// WithIdleTimeout aborts a stream when no bytes arrive for d. Zero disables it.
func WithIdleTimeout(d time.Duration) Option {
	return func(e *Engine) { e.idleTimeout = d }
}

// WithStateHook is called on every transition, from the generating goroutine.
func WithStateHook(fn func(State)) Option {
	return func(e *Engine) { e.onState = fn }
}

// Engine runs generation sessions one at a time.
type Engine struct {
	backend     Backend
	formatter   Formatter
	idleTimeout time.Duration
	onState     func(State)
	gate        Gate

	mu    sync.Mutex
	state State
}

func NewEngine(backend Backend, opts ...Option) *Engine {
	e := &Engine{backend: backend}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the state of the most recent session.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Busy reports whether a session currently owns the engine.
func (e *Engine) Busy() bool {
	return e.gate.Held()
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	logging.WithField("state", s.String()).Debug("session transition")
	if e.onState != nil {
		e.onState(s)
	}
}

// Generate runs one session to Settled or Errored. An empty prompt is
// rejected before any network call and leaves the state untouched.
func (e *Engine) Generate(ctx context.Context, req models.GenerationRequest, onFragment FragmentFunc) (*Result, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return nil, ErrEmptyPrompt
	}
	req.Stream = true

	token, ok := e.gate.Acquire()
	if !ok {
		return nil, ErrBusy
	}
	defer e.gate.Release(token)

	res, err := e.run(ctx, req, onFragment)
	if err != nil {
		e.setState(StateErrored)
		logging.WithField("prompt", req.Prompt).Errorf("generation failed: %v", err)
		return nil, err
	}
	e.setState(StateSettled)
	return res, nil
}

func (e *Engine) run(ctx context.Context, req models.GenerationRequest, onFragment FragmentFunc) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var idled atomic.Bool
	var timer *time.Timer
	if e.idleTimeout > 0 {
		timer = time.AfterFunc(e.idleTimeout, func() {
			idled.Store(true)
			cancel()
		})
		defer timer.Stop()
	}
	idleErr := func(err error) error {
		if idled.Load() {
			return fmt.Errorf("%w after %s: %v", ErrStreamIdle, e.idleTimeout, err)
		}
		return err
	}

	e.setState(StateRequesting)
	body, err := e.backend.Generate(ctx, req)
	if err != nil {
		return nil, idleErr(fmt.Errorf("generate: %w", err))
	}
	defer body.Close()

	var r io.Reader = body
	if timer != nil {
		r = &idleReader{r: body, timer: timer, d: e.idleTimeout}
	}

	e.setState(StateStreaming)
	var content strings.Builder
	done, err := stream.ReadAll(r, func(ev stream.Event) error {
		switch ev.Type {
		case stream.EventFragment:
			content.WriteString(ev.Text)
			if onFragment != nil {
				onFragment(content.String())
			}
		case stream.EventUnparseable:
			logging.WithField("payload", truncate(ev.Raw, 200)).Debug("dropping malformed stream line")
		}
		return nil
	})
	if err != nil {
		return nil, idleErr(fmt.Errorf("read stream: %w", err))
	}
	if !done {
		return nil, ErrStreamTruncated
	}

	e.setState(StateReconciling)
	final := content.String()
	item := models.Item{
		Prompt:    req.Prompt,
		Content:   final,
		Genre:     req.Genre,
		Tone:      req.Tone,
		Length:    req.Length,
		Language:  req.Language,
		WordCount: CountWords(final),
	}

	markup := final
	if e.formatter != nil {
		if rendered, ferr := e.formatter.Render(final); ferr == nil {
			markup = strings.TrimSpace(rendered)
		} else {
			logging.Warnf("markup render failed, showing plain text: %v", ferr)
		}
	}

	// The server lists newest first, so the head of the list is the story
	// that was just generated. Content is not compared.
	stories, err := e.backend.ListStories(ctx)
	if err != nil {
		return nil, idleErr(fmt.Errorf("reconcile: %w", err))
	}
	res := &Result{Item: item, Markup: markup}
	if len(stories) > 0 {
		head := stories[0]
		res.Item.ID = head.ID
		res.Item.Favorite = head.Favorite
		res.Item.CreatedAt = head.CreatedAt
		res.Reconciled = true
	} else {
		logging.Warnf("reconciliation found no stories; %d-word story stays without id", item.WordCount)
	}
	return res, nil
}

type idleReader struct {
	r     io.Reader
	timer *time.Timer
	d     time.Duration
}

func (ir *idleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 {
		ir.timer.Reset(ir.d)
	}
	return n, err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
