package controllers

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/killallgit/canvaschat/pkg/chat"
	"github.com/killallgit/canvaschat/pkg/config"
	"github.com/killallgit/canvaschat/pkg/diff"
	"github.com/killallgit/canvaschat/pkg/logger"
	"github.com/killallgit/canvaschat/pkg/stream"
)

var (
	// ErrEmptyMessage is returned by SendMessage for blank input
	ErrEmptyMessage = errors.New("message is empty")
	// ErrNoPendingPatch is returned when there is no proposal to accept or reject
	ErrNoPendingPatch = errors.New("no pending patch")
)

// updateBuffer bounds how far an exchange may run ahead of its reader
const updateBuffer = 256

// Options configure a Controller
type Options struct {
	SystemPrompt        string
	Model               string
	InitialCanvas       string
	MaxCompletionTokens int
	AllowOffset         bool
	EmbedUserEdits      bool
}

// OptionsFromConfig builds controller options from the loaded configuration
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SystemPrompt:        cfg.SystemPrompt,
		Model:               cfg.GetActiveProviderModel(),
		InitialCanvas:       cfg.Canvas.InitialText,
		MaxCompletionTokens: cfg.Transport.MaxCompletionTokens,
		AllowOffset:         cfg.Canvas.AllowOffset,
		EmbedUserEdits:      cfg.Canvas.EmbedUserEdits,
	}
}

// Controller owns one chat session: the conversation, the canvas and at
// most one in-flight exchange with the model.
type Controller struct {
	id        string
	transport chat.Transport
	opts      Options
	store     *conversationStore
	log       *logger.ComponentLogger

	mu         sync.Mutex
	canvas     string
	userEdited bool
	allowEdits bool
	pending    *Proposal
	status     stream.State
	cancel     context.CancelFunc
}

// exchange is the per-epoch state shared by an assembler and its callbacks
type exchange struct {
	ctx        context.Context
	epoch      uint64
	allowEdits bool
	updates    chan Update
}

// NewController creates a controller that streams replies through transport
func NewController(transport chat.Transport, opts Options) *Controller {
	conv := chat.NewConversationWithSystem(opts.Model, opts.SystemPrompt)
	return &Controller{
		id:        uuid.New().String(),
		transport: transport,
		opts:      opts,
		store:     newConversationStore(conv),
		log:       logger.WithComponent("chat_controller"),
		canvas:    opts.InitialCanvas,
		status:    stream.StateIdle,
	}
}

// ID returns the session identifier
func (c *Controller) ID() string {
	return c.id
}

// SendMessage appends a user message and streams the assistant's reply.
//
// Any exchange still in flight is abandoned first. canvasText is the current
// canvas; an empty string sends no canvas and leaves the committed canvas
// unchanged. With allowEdits and a canvas, a diff proposed by the reply is
// applied to the canvas as soon as it is complete.
//
// The returned channel carries the exchange's updates and is closed when the
// exchange completes, fails or is abandoned. Callers must drain it or cancel
// ctx.
func (c *Controller) SendMessage(ctx context.Context, text, canvasText string, allowEdits bool) (<-chan Update, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	c.mu.Lock()
	if canvasText != "" {
		c.recordCanvasLocked(canvasText)
	}

	epoch := c.store.advance()
	if c.cancel != nil {
		c.cancel()
	}
	exCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.allowEdits = allowEdits
	c.pending = nil
	c.status = stream.StateIdle

	userMsg := chat.NewUserMessage(text)
	if err := c.store.AppendMessage(epoch, userMsg); err != nil {
		c.mu.Unlock()
		cancel()
		return nil, err
	}

	req := chat.NewChatRequest(chat.GetMessages(c.store.conversation()), canvasText, allowEdits, c.opts.MaxCompletionTokens)
	if c.opts.EmbedUserEdits && c.userEdited && strings.TrimSpace(canvasText) != "" && len(req.Messages) > 0 {
		req.Messages[len(req.Messages)-1].Content = EmbedCanvas(c.canvas, userMsg.Content)
	}
	c.mu.Unlock()

	ex := &exchange{
		ctx:        exCtx,
		epoch:      epoch,
		allowEdits: req.AICanEditCanvas,
		updates:    make(chan Update, updateBuffer),
	}
	assembler := stream.NewAssembler(epoch, c.store, func(e stream.Event) {
		c.handleEvent(ex, e)
	})

	c.log.Debug("Sending message", "session", c.id, "epoch", epoch, "messages", len(req.Messages), "canvas", req.HasCanvas(), "allow_edits", allowEdits)
	logger.LogChatHistory(chat.RoleUser, userMsg.Content)

	if err := assembler.Start(); err != nil {
		// A newer exchange already took over
		close(ex.updates)
		return ex.updates, nil
	}

	go func() {
		defer cancel()
		defer close(ex.updates)

		chunks, err := c.transport.Open(exCtx, req)
		if err != nil {
			if exCtx.Err() != nil {
				assembler.Run(exCtx, nil)
				return
			}
			assembler.Fail(err)
			return
		}
		final := assembler.Run(exCtx, chunks)
		if final == stream.StateCompleted {
			logger.LogChatHistory(chat.RoleAssistant, assembler.Buffer())
		}
	}()

	return ex.updates, nil
}

// EmbedCanvas builds the user prompt that carries an edited canvas inline.
func EmbedCanvas(canvas, message string) string {
	return "Canvas Content:\n---\n" + canvas + "\n---\n\nUser Message:\n---\n" + message
}

// handleEvent turns assembler events into session changes and updates. It
// runs on the assembler's goroutine and never calls back into the assembler.
func (c *Controller) handleEvent(ex *exchange, e stream.Event) {
	update := Update{
		Type:      updateTypeFor(e.Type),
		Epoch:     e.Epoch,
		MessageID: e.MessageID,
		Text:      e.Text,
		Diff:      e.Diff,
		Error:     e.Err,
	}
	var extra []Update

	c.mu.Lock()
	current := ex.epoch == c.store.current()
	if !current && e.Type != stream.EventAbandoned {
		c.mu.Unlock()
		c.log.Debug("Dropping stale event", "epoch", ex.epoch, "event", e.Type.String())
		return
	}
	if current {
		switch e.Type {
		case stream.EventStarted:
			c.status = stream.StateStreaming
		case stream.EventCompleted:
			c.status = stream.StateCompleted
		case stream.EventFailed:
			c.status = stream.StateFailed
		case stream.EventAbandoned:
			c.status = stream.StateAbandoned
		case stream.EventDiffAvailable:
			if u, ok := c.proposeLocked(ex, e); ok {
				extra = append(extra, u)
			}
		}
	}
	c.mu.Unlock()

	if e.Type == stream.EventAbandoned {
		select {
		case ex.updates <- update:
		default:
		}
		return
	}

	c.send(ex, update)
	for _, u := range extra {
		c.send(ex, u)
	}
}

// proposeLocked records a surfaced diff. With edits allowed it is applied
// straight away and the outcome is returned as an extra update.
func (c *Controller) proposeLocked(ex *exchange, e stream.Event) (Update, bool) {
	proposal := &Proposal{Diff: e.Diff, MessageID: e.MessageID, Epoch: e.Epoch}
	if !ex.allowEdits {
		c.pending = proposal
		return Update{}, false
	}

	result := diff.ApplyWithOptions(c.canvas, e.Diff, diff.Options{AllowOffset: c.opts.AllowOffset})
	if result.IsApplied() {
		c.canvas = result.Text
		c.userEdited = false
		c.pending = nil
		c.log.Info("Applied proposed patch", "session", c.id, "epoch", e.Epoch)
		return Update{Type: PatchApplied, Epoch: e.Epoch, MessageID: e.MessageID, Diff: e.Diff, Canvas: result.Text}, true
	}

	proposal.Reason = result.Reason
	c.pending = proposal
	c.log.Warn("Proposed patch rejected", "session", c.id, "epoch", e.Epoch, "reason", result.Reason)
	return Update{Type: PatchRejected, Epoch: e.Epoch, MessageID: e.MessageID, Diff: e.Diff, Reason: result.Reason}, true
}

func (c *Controller) send(ex *exchange, u Update) {
	select {
	case ex.updates <- u:
	case <-ex.ctx.Done():
	}
}

// AcceptPatch applies the pending proposal to the current canvas. On
// Applied the canvas is committed and the proposal cleared; on Rejected both
// are left untouched.
func (c *Controller) AcceptPatch() (diff.PatchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return diff.PatchResult{}, ErrNoPendingPatch
	}

	result := diff.ApplyWithOptions(c.canvas, c.pending.Diff, diff.Options{AllowOffset: c.opts.AllowOffset})
	if !result.IsApplied() {
		c.pending.Reason = result.Reason
		c.log.Warn("Patch rejected", "session", c.id, "reason", result.Reason)
		return result, nil
	}

	c.canvas = result.Text
	c.userEdited = false
	c.pending = nil
	c.log.Info("Patch accepted", "session", c.id)
	return result, nil
}

// RejectPatch drops the pending proposal
func (c *Controller) RejectPatch() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return ErrNoPendingPatch
	}
	c.pending = nil
	return nil
}

// SetCanvas records user edits to the canvas
func (c *Controller) SetCanvas(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recordCanvasLocked(text)
}

func (c *Controller) recordCanvasLocked(text string) {
	if text != c.canvas {
		c.canvas = text
		c.userEdited = true
	}
}

// Cancel abandons the in-flight exchange, if any
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.advance()
	c.abandonLocked()
}

// abandonLocked cancels the exchange context. The epoch must already have
// moved on so late events from the exchange are treated as stale.
func (c *Controller) abandonLocked() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	c.cancel = nil
	if !c.status.IsTerminal() {
		c.status = stream.StateAbandoned
	}
}

// Reset abandons any exchange and clears the conversation, keeping the
// system prompt. The canvas is kept.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.reset(chat.ResetConversation(c.store.conversation()))
	c.abandonLocked()
	c.pending = nil
	c.status = stream.StateIdle
}

// Session returns a snapshot of the session
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	var pending *Proposal
	if c.pending != nil {
		p := *c.pending
		pending = &p
	}
	return Session{
		ID:         c.id,
		Messages:   chat.GetMessages(c.store.conversation()),
		Canvas:     c.canvas,
		Pending:    pending,
		Status:     c.status.String(),
		Epoch:      c.store.current(),
		AllowEdits: c.allowEdits,
	}
}

// Canvas returns the committed canvas text
func (c *Controller) Canvas() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canvas
}

// Status returns the state of the latest exchange
func (c *Controller) Status() stream.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}
