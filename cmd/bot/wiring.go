package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"governance_reminder_bot/internal/domain/proposal"
	"governance_reminder_bot/internal/domain/recipient"
	"governance_reminder_bot/internal/domain/reminder"
	"governance_reminder_bot/internal/infra/cache"
	"governance_reminder_bot/internal/infra/chain"
	"governance_reminder_bot/internal/infra/config"
	idb "governance_reminder_bot/internal/infra/database"
	"governance_reminder_bot/internal/infra/logger"
	"governance_reminder_bot/internal/infra/memory"
	"governance_reminder_bot/internal/infra/snapshot"
	"governance_reminder_bot/internal/infra/watcher"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type stores struct {
	proposals  proposal.Repository
	recipients recipient.Repository
	votes      reminder.VoteRepository
	seen       proposal.SeenStore

	db  *sql.DB
	rdb *redis.Client
}

func (s *stores) Close() {
	if s.rdb != nil {
		s.rdb.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}

// openStores uses postgres when DATABASE_URL is set and memory otherwise.
// The seen set prefers redis, then postgres, then memory.
func openStores(ctx context.Context, cfg *config.AppConfig, log *logrus.Entry) (*stores, error) {
	st := &stores{}

	if cfg.DatabaseURL != "" {
		db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := idb.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		st.db = db
		st.proposals = idb.NewPostgresProposalRepository(db)
		st.recipients = idb.NewPostgresRecipientRepository(db)
		st.votes = idb.NewPostgresVoteRepository(db)
		st.seen = idb.NewPostgresSeenStore(db)
		log.Info("Database connection established successfully.")
	} else {
		st.proposals = memory.NewProposalRepository()
		st.recipients = memory.NewRecipientRepository()
		st.votes = memory.NewVoteRepository()
		st.seen = memory.NewSeenStore()
		log.Warn("DATABASE_URL not set; state is kept in memory and lost on restart")
	}

	if cfg.RedisURL != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		rdb, err := cache.NewRedisClient(pingCtx, cfg.RedisURL)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable; keeping seen proposals in the primary store")
		} else {
			st.rdb = rdb
			st.seen = cache.NewRedisSeenStore(rdb, "")
			log.Info("Seen proposals are tracked in redis")
		}
	}
	return st, nil
}

type scheduledWatcher struct {
	watcher  *watcher.Watcher
	interval time.Duration
}

func buildWatchers(ctx context.Context, cfg *config.AppConfig, seen proposal.SeenStore, intake proposal.Intake) ([]scheduledWatcher, error) {
	wcfg := watcher.Config{BackoffMin: cfg.WatcherBackoffMin, BackoffMax: cfg.WatcherBackoffMax}
	log := logger.Component("watcher")
	var out []scheduledWatcher

	if cfg.SnapshotEnabled() {
		client := snapshot.NewClient(cfg.SnapshotAPIURL, nil)
		src := watcher.NewSnapshotSource(client, cfg.SnapshotSpace, cfg.SnapshotFetchLimit)
		out = append(out, scheduledWatcher{
			watcher:  watcher.New(src, seen, intake, wcfg, log),
			interval: cfg.SnapshotPollInterval,
		})
	}

	if cfg.OnChainEnabled() {
		if !common.IsHexAddress(cfg.EventContractAddress) {
			return nil, fmt.Errorf("EVENT_CONTRACT_ADDRESS %q is not a valid address", cfg.EventContractAddress)
		}
		client, err := chain.Dial(ctx, cfg.EthRPCURL)
		if err != nil {
			return nil, err
		}
		poller, err := chain.NewProposalPoller(client, common.HexToAddress(cfg.EventContractAddress), logger.Component("chain"))
		if err != nil {
			return nil, err
		}
		src := watcher.NewOnChainSource(poller, watcher.OnChainConfig{
			LinksBaseURL:     cfg.LinksBaseURL,
			ChainPrefix:      cfg.ChainPrefix,
			FrontendContract: cfg.FrontendContractAddress,
			BlockTime:        cfg.AverageBlockTime,
		})
		out = append(out, scheduledWatcher{
			watcher:  watcher.New(src, seen, intake, wcfg, log),
			interval: cfg.OnChainPollInterval,
		})
	}
	return out, nil
}
