package cmd

import (
	"context"
	"fmt"

	"github.com/killallgit/canvaschat/pkg/config"
	"github.com/killallgit/canvaschat/pkg/controllers"
	"github.com/killallgit/canvaschat/pkg/headless"
	"github.com/killallgit/canvaschat/pkg/logger"
)

// AppConfig contains all configuration needed to run a headless exchange
type AppConfig struct {
	Config     *config.Config
	Prompt     string
	CanvasPath string
	AllowEdits bool
}

// RunApplication runs one exchange against the configured transport
func RunApplication(ctx context.Context, appCfg *AppConfig) error {
	log := logger.WithComponent("app")
	log.Info("Application starting", "transport", appCfg.Config.Transport.Mode, "model", appCfg.Config.GetActiveProviderModel())

	ctrl, err := controllers.NewControllerFromConfig(appCfg.Config)
	if err != nil {
		return fmt.Errorf("failed to create chat controller: %w", err)
	}

	return headless.RunHeadless(ctx, ctrl, headless.Options{
		Prompt:     appCfg.Prompt,
		CanvasPath: appCfg.CanvasPath,
		AllowEdits: appCfg.AllowEdits,
		Model:      appCfg.Config.GetActiveProviderModel(),
	})
}
