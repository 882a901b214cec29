package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/killallgit/canvaschat/pkg/chat"
	"github.com/killallgit/canvaschat/pkg/diff"
	"github.com/killallgit/canvaschat/pkg/logger"
)

var (
	// ErrNotStreaming is returned for calls that need a streaming assembler
	ErrNotStreaming = errors.New("assembler is not streaming")
	// ErrAlreadyStarted is returned when Start is called twice
	ErrAlreadyStarted = errors.New("assembler already started")
	// ErrStaleEpoch is returned by a Store that has moved on to a newer epoch
	ErrStaleEpoch = errors.New("stream epoch is no longer current")
)

// FailureNotice replaces the assistant message when a stream fails.
const FailureNotice = "Sorry, something went wrong."

// Store is the conversation log as seen by one assembler. Every write
// carries the assembler's epoch; a store refuses writes from an epoch that
// is no longer current with ErrStaleEpoch.
type Store interface {
	AppendMessage(epoch uint64, msg chat.Message) error
	ReplaceLastContent(epoch uint64, id, content string) error
}

// Assembler turns the chunks of one streamed reply into conversation
// updates and events. Chunks are applied in call order; methods are meant to
// be called from a single goroutine, usually through Run.
type Assembler struct {
	epoch   uint64
	store   Store
	onEvent func(Event)
	log     *logger.ComponentLogger

	mu        sync.Mutex
	state     State
	buffer    strings.Builder
	messageID string
	display   string
	diffSent  bool
}

// NewAssembler creates an idle assembler for epoch. onEvent may be nil.
func NewAssembler(epoch uint64, store Store, onEvent func(Event)) *Assembler {
	if onEvent == nil {
		onEvent = func(Event) {}
	}
	return &Assembler{
		epoch:   epoch,
		store:   store,
		onEvent: onEvent,
		log:     logger.WithComponent("assembler"),
	}
}

// State returns the current state
func (a *Assembler) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// MessageID returns the ID of the assistant message the assembler owns
func (a *Assembler) MessageID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.messageID
}

// Buffer returns the raw text received so far
func (a *Assembler) Buffer() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buffer.String()
}

// Start moves Idle to Streaming and appends an empty assistant message.
func (a *Assembler) Start() error {
	a.mu.Lock()
	if a.state != StateIdle {
		a.mu.Unlock()
		return ErrAlreadyStarted
	}

	msg := chat.NewAssistantMessage("")
	if err := a.store.AppendMessage(a.epoch, msg); err != nil {
		events := a.abandonLocked(err)
		a.mu.Unlock()
		a.emit(events)
		return err
	}
	a.messageID = msg.ID
	a.state = StateStreaming
	a.mu.Unlock()

	a.log.Debug("Stream started", "epoch", a.epoch, "message_id", msg.ID)
	a.emit([]Event{{Type: EventStarted}})
	return nil
}

// OnChunk appends text to the buffer and refreshes the displayed content.
// The first complete diff section is reported once with EventDiffAvailable.
func (a *Assembler) OnChunk(text string) error {
	a.mu.Lock()
	if a.state != StateStreaming {
		a.mu.Unlock()
		return ErrNotStreaming
	}

	a.buffer.WriteString(text)
	section := diff.Extract(a.buffer.String())

	var events []Event
	if err := a.setDisplayLocked(section.Conversational(), &events); err != nil {
		a.mu.Unlock()
		a.emit(events)
		return err
	}
	if section.Kind == diff.CompleteSection && !a.diffSent {
		a.diffSent = true
		events = append(events, Event{Type: EventDiffAvailable, Diff: section.Body})
	}
	a.mu.Unlock()

	a.emit(events)
	return nil
}

// OnStreamEnd moves Streaming to Completed. A diff section that never
// closed is shown as plain text.
func (a *Assembler) OnStreamEnd() error {
	a.mu.Lock()
	if a.state != StateStreaming {
		a.mu.Unlock()
		return ErrNotStreaming
	}

	var events []Event
	buffer := a.buffer.String()
	if section := diff.Extract(buffer); section.Kind == diff.PartialSection {
		a.log.Warn("Stream ended inside a diff section", "epoch", a.epoch, "bytes", len(buffer))
		if err := a.setDisplayLocked(buffer, &events); err != nil {
			a.mu.Unlock()
			a.emit(events)
			return err
		}
	}
	a.state = StateCompleted
	events = append(events, Event{Type: EventCompleted})
	a.mu.Unlock()

	a.log.Debug("Stream completed", "epoch", a.epoch, "bytes", len(buffer))
	a.emit(events)
	return nil
}

// OnStreamError moves Streaming to Failed and replaces the message with
// FailureNotice. The error itself only goes to the log and the event.
func (a *Assembler) OnStreamError(streamErr error) error {
	a.mu.Lock()
	if a.state != StateStreaming {
		a.mu.Unlock()
		return ErrNotStreaming
	}

	a.log.Error("Stream failed", "epoch", a.epoch, "error", streamErr)

	var events []Event
	if err := a.setDisplayLocked(FailureNotice, &events); err != nil {
		a.mu.Unlock()
		a.emit(events)
		return err
	}
	a.state = StateFailed
	events = append(events, Event{Type: EventFailed, Err: streamErr})
	a.mu.Unlock()

	a.emit(events)
	return nil
}

// Fail is OnStreamError for a stream that never opened. It starts the
// assembler first when needed so the failure notice has a message to go in.
func (a *Assembler) Fail(openErr error) error {
	if a.State() == StateIdle {
		if err := a.Start(); err != nil {
			return err
		}
	}
	return a.OnStreamError(openErr)
}

// Run drives the assembler from a transport channel until the stream ends,
// fails, or ctx is cancelled, and returns the final state. A closed channel
// is end of stream and a chunk carrying an error is a stream failure.
func (a *Assembler) Run(ctx context.Context, chunks <-chan chat.StreamChunk) State {
	if a.State() == StateIdle {
		if err := a.Start(); err != nil {
			return a.State()
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			a.abandon(err)
			return a.State()
		}

		select {
		case <-ctx.Done():
			a.abandon(ctx.Err())
			return a.State()
		case chunk, ok := <-chunks:
			switch {
			case !ok:
				if err := a.OnStreamEnd(); err != nil {
					a.log.Debug("Stream end not recorded", "epoch", a.epoch, "error", err)
				}
				return a.State()
			case chunk.Err != nil:
				if err := a.OnStreamError(chunk.Err); err != nil {
					a.log.Debug("Stream failure not recorded", "epoch", a.epoch, "error", err)
				}
				return a.State()
			default:
				if err := a.OnChunk(chunk.Content); err != nil {
					a.log.Debug("Chunk not recorded", "epoch", a.epoch, "error", err)
					return a.State()
				}
			}
		}
	}
}

// abandon stops the assembler without touching the store
func (a *Assembler) abandon(reason error) {
	a.mu.Lock()
	if a.state.IsTerminal() {
		a.mu.Unlock()
		return
	}
	events := a.abandonLocked(reason)
	a.mu.Unlock()
	a.emit(events)
}

func (a *Assembler) abandonLocked(reason error) []Event {
	a.state = StateAbandoned
	a.log.Debug("Stream abandoned", "epoch", a.epoch, "reason", reason)
	return []Event{{Type: EventAbandoned, Err: reason}}
}

// setDisplayLocked writes content to the store when it changed. A refused
// write abandons the assembler.
func (a *Assembler) setDisplayLocked(content string, events *[]Event) error {
	if content == a.display {
		return nil
	}
	if err := a.store.ReplaceLastContent(a.epoch, a.messageID, content); err != nil {
		*events = append(*events, a.abandonLocked(err)...)
		if errors.Is(err, ErrStaleEpoch) {
			return err
		}
		return fmt.Errorf("failed to update message: %w", err)
	}
	a.display = content
	*events = append(*events, Event{Type: EventTextUpdated})
	return nil
}

// emit stamps and delivers events outside the lock
func (a *Assembler) emit(events []Event) {
	if len(events) == 0 {
		return
	}
	a.mu.Lock()
	id, text := a.messageID, a.display
	a.mu.Unlock()

	for _, e := range events {
		e.Epoch = a.epoch
		e.MessageID = id
		if e.Type != EventAbandoned {
			e.Text = text
		}
		a.onEvent(e)
	}
}
