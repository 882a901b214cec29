package headless

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/killallgit/canvaschat/pkg/chat"
	"github.com/killallgit/canvaschat/pkg/controllers"
	"github.com/killallgit/canvaschat/pkg/logger"
	"github.com/killallgit/canvaschat/pkg/tokens"
)

var (
	// ErrExchangeFailed is returned when the reply stream fails
	ErrExchangeFailed = errors.New("exchange failed")
	// ErrExchangeAbandoned is returned when the run is interrupted
	ErrExchangeAbandoned = errors.New("exchange abandoned")
)

// runner runs one controller exchange in headless mode
type runner struct {
	ctrl    *controllers.Controller
	output  *Output
	counter *tokens.TokenCounter
	opts    Options
	log     *logger.ComponentLogger
}

func newRunner(ctrl *controllers.Controller, output *Output, counter *tokens.TokenCounter, opts Options) *runner {
	return &runner{
		ctrl:    ctrl,
		output:  output,
		counter: counter,
		opts:    opts,
		log:     logger.WithComponent("headless"),
	}
}

// run sends the prompt with the canvas file, streams the reply and writes
// the canvas back when a proposed patch applied.
func (r *runner) run(ctx context.Context) error {
	canvas, err := r.readCanvas()
	if err != nil {
		return err
	}

	updates, err := r.ctrl.SendMessage(ctx, r.opts.Prompt, canvas, r.opts.AllowEdits)
	if err != nil {
		return err
	}

	handler := newHeadlessStreamHandler(r.output)
	var (
		final    controllers.UpdateType
		applied  bool
		writeErr error
	)
	for update := range updates {
		switch update.Type {
		case controllers.TextUpdated:
			handler.OnText(update.Text)
		case controllers.DiffAvailable:
			r.output.Diff(update.Diff)
		case controllers.PatchApplied:
			if err := r.writeCanvas(update.Canvas); err != nil {
				// the exchange keeps streaming, so the channel is still drained
				writeErr = err
				continue
			}
			applied = true
		case controllers.PatchRejected:
			r.output.Warning("Patch not applied: " + update.Reason)
		}
		if update.Type.IsTerminal() {
			final = update.Type
		}
	}
	handler.Finish()

	if writeErr != nil {
		r.output.Error(writeErr.Error())
		return writeErr
	}

	switch final {
	case controllers.StreamFailed:
		return ErrExchangeFailed
	case controllers.StreamAbandoned:
		return ErrExchangeAbandoned
	}

	session := r.ctrl.Session()
	switch {
	case applied && r.opts.CanvasPath != "":
		r.output.Status(fmt.Sprintf("Applied changes to %s", r.opts.CanvasPath))
	case applied:
		r.output.Status("Applied changes to the canvas")
	case session.Pending != nil && !r.opts.AllowEdits:
		r.output.Status("Run again with --allow-edits to apply the proposed changes")
	}

	sent, received := r.countTokens(session, canvas, handler.GetContent())
	r.output.Tokens(sent, received)

	r.log.Debug("Headless exchange complete", "session", session.ID, "applied", applied, "tokens_sent", sent, "tokens_received", received)
	return nil
}

// countTokens counts the request as sent, everything before the reply,
// and the reply text
func (r *runner) countTokens(session controllers.Session, canvas, reply string) (int, int) {
	history := session.Messages
	if n := len(history); n > 0 && history[n-1].Role == chat.RoleAssistant {
		history = history[:n-1]
	}
	req := chat.NewChatRequest(history, canvas, r.opts.AllowEdits, 0)
	return r.counter.CountRequest(req), r.counter.CountTokens(reply)
}

func (r *runner) readCanvas() (string, error) {
	if r.opts.CanvasPath == "" {
		return r.ctrl.Canvas(), nil
	}
	data, err := os.ReadFile(r.opts.CanvasPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read canvas: %w", err)
	}
	return string(data), nil
}

func (r *runner) writeCanvas(text string) error {
	if r.opts.CanvasPath == "" {
		return nil
	}
	if err := os.WriteFile(r.opts.CanvasPath, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write canvas: %w", err)
	}
	return nil
}
