package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/hadijannat/titan-aas/config"
	"github.com/hadijannat/titan-aas/logging"
	"github.com/hadijannat/titan-aas/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the entities and descriptors schema",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(logging.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: cfg.ServiceName,
		Version: cfg.ServiceVersion,
	}).WithField("component", "migrate")

	ctx := context.Background()

	st, err := store.New(ctx, cfg.StoreURL)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("entities schema migrated")

	if _, err := store.NewDescriptorStore(cfg.StoreURL); err != nil {
		return err
	}
	logger.Info("descriptors schema migrated")

	return nil
}
