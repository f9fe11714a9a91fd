package stream

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	dataPrefix = "data: "
	doneMarker = "[DONE]"
)

// EventType tags a StreamEvent.
type EventType int

const (
	EventFragment    EventType = iota // A piece of generated text
	EventTerminator                   // The [DONE] sentinel
	EventUnparseable                  // A data line whose payload was not usable
)

func (t EventType) String() string {
	switch t {
	case EventFragment:
		return "fragment"
	case EventTerminator:
		return "terminator"
	default:
		return "unparseable"
	}
}

// Event is one decoded protocol event.
type Event struct {
	Type EventType
	Text string // Set for EventFragment
	Raw  string // Original payload, set for EventUnparseable
}

type fragmentPayload struct {
	Content *string `json:"content"`
}

// Parser turns arbitrarily split chunks of an event stream into events.
// Bytes after the last newline are held back until the next Feed, so a
// line (or a multi-byte rune) split across chunks is decoded whole.
type Parser struct {
	residual []byte
	done     bool
}

func NewParser() *Parser {
	return &Parser{}
}

// Done reports whether the terminator has been seen.
func (p *Parser) Done() bool {
	return p.done
}

// Feed consumes one chunk and returns the events of every line it completed.
func (p *Parser) Feed(chunk []byte) []Event {
	if p.done || len(chunk) == 0 {
		return nil
	}

	buf := append(p.residual, chunk...)
	var events []Event
	for {
		idx := bytes.IndexByte(buf, '\n')
		if idx < 0 {
			break
		}
		line := buf[:idx]
		buf = buf[idx+1:]
		if ev, ok := classify(line); ok {
			events = append(events, ev)
			if ev.Type == EventTerminator {
				p.done = true
				p.residual = nil
				return events
			}
		}
	}

	// Copy so the residual never aliases the caller's chunk.
	p.residual = append([]byte(nil), buf...)
	return events
}

// Flush classifies a final line that was never newline-terminated. Call it
// once the body has been fully read.
func (p *Parser) Flush() []Event {
	if p.done || len(p.residual) == 0 {
		p.residual = nil
		return nil
	}
	line := p.residual
	p.residual = nil
	ev, ok := classify(line)
	if !ok {
		return nil
	}
	if ev.Type == EventTerminator {
		p.done = true
	}
	return []Event{ev}
}

func classify(line []byte) (Event, bool) {
	s := strings.TrimSuffix(string(line), "\r")
	if !strings.HasPrefix(s, dataPrefix) {
		return Event{}, false
	}
	data := strings.TrimPrefix(s, dataPrefix)
	if data == doneMarker {
		return Event{Type: EventTerminator}, true
	}

	var payload fragmentPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil || payload.Content == nil || *payload.Content == "" {
		return Event{Type: EventUnparseable, Raw: data}, true
	}
	return Event{Type: EventFragment, Text: *payload.Content}, true
}
