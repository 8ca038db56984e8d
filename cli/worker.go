package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hadijannat/titan-aas/broadcast"
	"github.com/hadijannat/titan-aas/cache"
	"github.com/hadijannat/titan-aas/config"
	"github.com/hadijannat/titan-aas/eventlog"
	"github.com/hadijannat/titan-aas/leader"
	"github.com/hadijannat/titan-aas/logging"
	"github.com/hadijannat/titan-aas/model"
	"github.com/hadijannat/titan-aas/singlewriter"
	"github.com/hadijannat/titan-aas/store"

	"github.com/redis/go-redis/v9"
)

var workerEntityKind string

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the Single-Writer for one entity kind (Shell, Submodel, or ConceptDescription)",
	RunE:  runWorker,
}

func init() {
	workerCmd.Flags().StringVar(&workerEntityKind, "entity-kind", "", "entity kind this worker applies mutations for (required)")
	_ = workerCmd.MarkFlagRequired("entity-kind")
}

func runWorker(cmd *cobra.Command, args []string) error {
	kind := model.Kind(workerEntityKind)
	switch kind {
	case model.KindShell, model.KindSubmodel, model.KindConceptDescription:
	default:
		return &unsupportedKindError{kind: workerEntityKind}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(logging.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: cfg.ServiceName,
		Version: cfg.ServiceVersion,
	}).WithField("component", "worker").WithField("entity_kind", workerEntityKind)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.New(ctx, cfg.StoreURL)
	if err != nil {
		return err
	}
	defer st.Close()

	c, err := cache.New(ctx, cfg.CacheURL)
	if err != nil {
		logger.WithError(err).Warn("cache unavailable at startup, continuing in fail-open mode")
		c = nil
	}

	events, err := eventlog.New(ctx, cfg.EventLogURL, eventlog.Config{
		Partitions:                  cfg.EventLogPartitions,
		InlinePayloadThresholdBytes: cfg.InlinePayloadThresholdBytes,
	})
	if err != nil {
		return err
	}
	defer events.Close()

	hub := broadcast.NewHub(logger)

	// A nil *cache.Cache has to reach singlewriter.New as a nil interface,
	// or the worker's nil check on its cache never fires.
	var entityCache singlewriter.EntityCache
	if c != nil {
		entityCache = c
	}

	instanceID := uuid.NewString()
	w := singlewriter.New(events, st, entityCache, hub, events.LoadPayload, logger, singlewriter.Config{
		EntityKind: kind,
		Partitions: cfg.EventLogPartitions,
		ConsumerID: "single-writer-" + instanceID,
		BlockFor:   5 * time.Second,
	})

	redisOpts, err := redis.ParseURL(cfg.EventLogURL)
	if err != nil {
		return err
	}
	leaderClient := redis.NewClient(redisOpts)
	defer leaderClient.Close()

	go runDLQSweeper(ctx, leaderClient, events, kind, cfg, logger, instanceID)

	logger.Info("single-writer started")
	w.Run(ctx)
	logger.Info("single-writer stopped")
	return nil
}

// runDLQSweeper is the one singleton background task per entity kind
// that re-claims deliveries idle past the claim timeout and moves them
// to the stream's DLQ, elected via a
// Redis lease so exactly one worker process does it even when several
// replicas run the same --entity-kind.
func runDLQSweeper(ctx context.Context, client redis.UniversalClient, events *eventlog.Log, kind model.Kind, cfg *config.TitanConfig, logger *logrus.Entry, instanceID string) {
	role := "dlq-sweep:" + string(kind)
	claimTimeout := time.Duration(cfg.EventClaimTimeoutMs) * time.Millisecond
	sweep := func(sweepCtx context.Context) error {
		ticker := time.NewTicker(claimTimeout)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return sweepCtx.Err()
			case <-ticker.C:
				for p := 0; p < events.Partitions(); p++ {
					streamKey := events.StreamKeyForPartition(string(kind), p)
					claimed, err := events.Claim(sweepCtx, streamKey, "dlq-sweeper-"+instanceID, claimTimeout, 64)
					if err != nil {
						logger.WithError(err).Warn("dlq sweep claim failed")
						continue
					}
					for _, d := range claimed {
						if err := events.MoveToDLQ(sweepCtx, d); err != nil {
							logger.WithError(err).Warn("dlq sweep move failed")
						}
					}
					if len(claimed) > 0 {
						logger.WithField("count", len(claimed)).Info("moved idle deliveries to the DLQ")
					}
				}
			}
		}
	}
	if err := leader.Run(ctx, client, role, instanceID, cfg.LeaseTTL, cfg.LeaseRenew, sweep); err != nil && ctx.Err() == nil {
		logger.WithError(err).Error("dlq sweeper exited")
	}
}

type unsupportedKindError struct {
	kind string
}

func (e *unsupportedKindError) Error() string {
	return "unsupported --entity-kind " + e.kind + ": must be Shell, Submodel, or ConceptDescription"
}
