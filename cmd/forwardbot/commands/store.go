package commands

import (
	"context"
	"fmt"

	"github.com/Sumitpatel080/Forward/internal/app"
	"github.com/Sumitpatel080/Forward/internal/config"
	"github.com/Sumitpatel080/Forward/internal/storage"
	logx "github.com/Sumitpatel080/Forward/pkg/logx"
)

// openStore opens the configured store without starting the bot. The token
// and owner checks are skipped so the CLI works with a partial config.
func openStore(ctx context.Context) (storage.Store, error) {
	if err := config.LoadDotEnv(envPath); err != nil {
		return nil, err
	}
	cfg, err := config.NewManager(cfgPath).Parse()
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", cfgPath, err)
	}
	return app.OpenStore(ctx, cfg, logx.Nop())
}
