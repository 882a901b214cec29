package controllers

import (
	"fmt"

	"github.com/killallgit/canvaschat/pkg/chat"
	"github.com/killallgit/canvaschat/pkg/config"
)

// NewControllerFromConfig creates a controller using the transport selected
// by cfg.Transport.Mode
func NewControllerFromConfig(cfg *config.Config) (*Controller, error) {
	transport, err := chat.NewTransport(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}
	return NewController(transport, OptionsFromConfig(cfg)), nil
}

// Factory creates controllers that share one transport
type Factory struct {
	transport chat.Transport
	opts      Options
}

// NewFactory returns a Factory for transport and opts
func NewFactory(transport chat.Transport, opts Options) *Factory {
	return &Factory{transport: transport, opts: opts}
}

// NewFactoryFromConfig returns a Factory using the configured transport
func NewFactoryFromConfig(cfg *config.Config) (*Factory, error) {
	transport, err := chat.NewTransport(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}
	return NewFactory(transport, OptionsFromConfig(cfg)), nil
}

// New creates a controller for a new session
func (f *Factory) New() *Controller {
	return NewController(f.transport, f.opts)
}
