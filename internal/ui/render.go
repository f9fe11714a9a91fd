package ui

import (
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

// MarkdownFormatter renders settled stories with glamour. The renderer is
// rebuilt when the terminal width changes, so it is guarded for use from
// the generating goroutine.
type MarkdownFormatter struct {
	mu    sync.Mutex
	style string
	width int
	r     *glamour.TermRenderer
}

func NewMarkdownFormatter(style string, width int) *MarkdownFormatter {
	f := &MarkdownFormatter{style: style}
	f.SetWidth(width)
	return f
}

func (f *MarkdownFormatter) SetWidth(width int) {
	if width < 20 {
		width = 20
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.r != nil && f.width == width {
		return
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(f.style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return
	}
	f.r = r
	f.width = width
}

func (f *MarkdownFormatter) Render(in string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.r == nil {
		return in, nil
	}
	out, err := f.r.Render(in)
	if err != nil {
		return in, err
	}
	return strings.TrimSpace(out), nil
}

// outbox lets background work post messages into the running program.
type outbox struct {
	mu   sync.Mutex
	send func(tea.Msg)
}

func (o *outbox) attach(send func(tea.Msg)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.send = send
}

func (o *outbox) Send(msg tea.Msg) {
	o.mu.Lock()
	send := o.send
	o.mu.Unlock()
	if send != nil {
		send(msg)
	}
}
