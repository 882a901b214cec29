package headless

import (
	"context"
	"fmt"
	"os"

	"github.com/killallgit/canvaschat/pkg/controllers"
	"github.com/killallgit/canvaschat/pkg/tokens"
)

// Options configure a headless run
type Options struct {
	Prompt     string
	CanvasPath string // file used as the canvas; empty runs without one
	AllowEdits bool
	Model      string // selects the token encoding for the usage summary
}

// RunHeadless executes a single prompt in headless mode
// This is the main entry point for headless/CLI execution
func RunHeadless(ctx context.Context, ctrl *controllers.Controller, opts Options) error {
	if opts.Prompt == "" {
		return fmt.Errorf("prompt cannot be empty in headless mode")
	}

	r := newRunner(ctrl, NewOutput(os.Stdout), tokens.NewTokenCounter(opts.Model), opts)
	if err := r.run(ctx); err != nil {
		return fmt.Errorf("failed to execute prompt: %w", err)
	}
	return nil
}
