package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rushteam/recflow/config"
	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/notify"
	"github.com/rushteam/recflow/service"
	"github.com/rushteam/recflow/store"
)

// app 是按配置装配好的运行时。
type app struct {
	cfg        *config.Config
	snapshot   *store.Snapshot
	kv         core.KeyValueStore
	repo       *store.RecommendationRepo
	dispatcher core.Dispatcher
	generator  *service.Generator
	history    *service.History

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (a *app, err error) {
	if cfg.Snapshot == "" {
		return nil, core.NewValidationError("snapshot path is required (--snapshot or snapshot in config)")
	}
	a = &app{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.snapshot, err = store.LoadSnapshot(cfg.Snapshot)
	if err != nil {
		return nil, err
	}

	var redisStore *store.RedisStore
	if cfg.Store.Driver == config.DriverRedis || cfg.Notify.Driver == config.DriverRedis {
		redisStore, err = store.NewRedisStore(ctx, cfg.Store.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, redisStore.Close)
	}

	switch cfg.Store.Driver {
	case config.DriverRedis:
		a.kv = redisStore
	default:
		mem := store.NewMemoryStore()
		a.closers = append(a.closers, mem.Close)
		a.kv = mem
	}
	a.repo = store.NewRecommendationRepo(a.kv)

	switch cfg.Notify.Driver {
	case config.DriverRedis:
		a.dispatcher = notify.NewRedisDispatcher(redisStore.Client(), cfg.Notify.ChannelPrefix)
	default:
		a.dispatcher = notify.NewLogDispatcher()
	}
	if cfg.Notify.BreakerEnabled {
		a.dispatcher = notify.NewBreakerDispatcher(a.dispatcher, cfg.Notify.Breaker)
	}

	postProcess, err := cfg.BuildPostProcess(a.kv)
	if err != nil {
		return nil, fmt.Errorf("build post process: %w", err)
	}
	defaultAlgorithm, err := core.ParseAlgorithm(cfg.Generate.DefaultAlgorithm)
	if err != nil {
		return nil, err
	}
	registry := service.NewAlgorithmRegistry(service.ScoringOptions{
		Weights:        cfg.Scoring.Weights,
		CategoryBonus:  cfg.Scoring.CategoryBonus,
		KeywordBonus:   cfg.Scoring.KeywordBonus,
		TrendingWindow: cfg.Scoring.TrendingWindow,
		HybridTimeout:  cfg.Scoring.HybridTimeout,
	})

	a.generator, err = service.NewGenerator(service.Deps{
		Users:      a.snapshot,
		Events:     a.snapshot,
		Catalog:    a.snapshot,
		Store:      a.repo,
		Dispatcher: a.dispatcher,
	},
		service.WithAlgorithms(registry),
		service.WithPostProcess(postProcess),
		service.WithDefaultAlgorithm(defaultAlgorithm),
	)
	if err != nil {
		return nil, err
	}
	a.history = service.NewHistory(a.repo, a.snapshot, nil)
	return a, nil
}

func (a *app) batch() (*service.BatchOrchestrator, error) {
	return service.NewBatchOrchestrator(a.generator, service.BatchOptions{
		MaxUsers:    a.cfg.Batch.MaxUsers,
		Concurrency: a.cfg.Batch.Concurrency,
		Throttle:    a.cfg.Batch.Throttle,
		Eligibility: a.cfg.Batch.Eligibility,
	})
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
