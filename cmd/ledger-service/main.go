// cmd/ledger-service/main.go
package main

import (
	"context"
	"os"
	"strings"

	"associate-ledger/internal/pkg/bootstrap"
	"associate-ledger/internal/pkg/logger"
	"associate-ledger/internal/pkg/mq"
	"associate-ledger/internal/pkg/redis"
	"associate-ledger/internal/service/ledger/application"
	"associate-ledger/internal/service/ledger/domain"
	"associate-ledger/internal/service/ledger/domain/port"
	"associate-ledger/internal/service/ledger/infrastructure"
	"associate-ledger/internal/service/ledger/infrastructure/adapter"
	"associate-ledger/internal/service/ledger/interfaces"
	"associate-ledger/internal/zookeeper"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
)

const (
	serviceName = "ledger-service"
)

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	if err := bootstrap.Init(); err != nil {
		logger.L().Fatal().Err(err).Msg("Failed to load configuration")
	}

	err := bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      serviceName,
		RegisterHandlers: registerHandlers,
	})
	if err != nil {
		logger.L().Error().Err(err).Msg("Service exited with error")
		os.Exit(1)
	}
}

// registerHandlers 组装账本服务的全部依赖。
// 未配置的基础设施退化为进程内实现，便于本地运行。
func registerHandlers(appCtx bootstrap.AppCtx) (cleanup func(context.Context), err error) {
	ctx := appCtx.Ctx
	cfg := appCtx.Config

	var closers []func(context.Context)
	cleanup = func(ctx context.Context) {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i](ctx)
		}
	}
	defer func() {
		if err != nil {
			cleanup(context.Background())
		}
	}()

	// 1. 单写者锁：必须在加载状态之前获得
	var writerLock *zookeeper.DistributedLock
	if cfg.Infra.Zookeeper.Servers != "" {
		conn, err := zookeeper.Connect(splitList(cfg.Infra.Zookeeper.Servers), cfg.Infra.Zookeeper.SessionTimeout)
		if err != nil {
			return nil, err
		}
		closers = append(closers, func(context.Context) { conn.Close() })

		lock, err := zookeeper.NewDistributedLock(conn, cfg.Infra.Zookeeper.WriterLock)
		if err != nil {
			return nil, err
		}
		logger.L().Info().Str("lock", cfg.Infra.Zookeeper.WriterLock).Msg("Waiting for ledger writer lock...")
		if err := lock.Lock(ctx); err != nil {
			return nil, errors.WithMessage(err, "acquire ledger writer lock")
		}
		closers = append(closers, func(context.Context) {
			if err := lock.Unlock(); err != nil {
				logger.L().Error().Err(err).Msg("Error releasing ledger writer lock")
			}
		})
		logger.L().Info().Msg("✅ Acquired ledger writer lock.")
		writerLock = lock
	}

	// 2. 持久化并恢复账本
	var store domain.LedgerStore
	if cfg.Infra.MySQL.Addr != "" {
		db, err := infrastructure.OpenMySQL(infrastructure.MySQLOptions{
			Addr:         cfg.Infra.MySQL.Addr,
			User:         cfg.Infra.MySQL.User,
			Password:     cfg.Infra.MySQL.Password,
			Database:     cfg.Infra.MySQL.Database,
			MaxOpenConns: cfg.Infra.MySQL.MaxOpenConns,
		})
		if err != nil {
			return nil, err
		}
		closers = append(closers, func(context.Context) {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		})
		gormStore := infrastructure.NewGormStore(db)
		if cfg.Infra.MySQL.AutoMigrate {
			if err := gormStore.Migrate(ctx); err != nil {
				return nil, err
			}
		}
		store = gormStore
	} else {
		logger.L().Warn().Msg("⚠️ infra.mysql not configured, ledger state is kept in memory only")
		store = infrastructure.NewMemoryStore()
	}

	snap, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	ledger, err := domain.Restore(snap)
	if err != nil {
		return nil, errors.WithMessage(err, "restore ledger")
	}
	logger.L().Info().Int("associates", ledger.AssociateCount()).Msg("✅ Ledger state restored.")

	// 3. 下单幂等
	var guard port.IdempotencyGuard
	if cfg.Infra.Redis.Addrs != "" {
		client, err := redis.NewClient(ctx, cfg.Infra.Redis.Addrs, cfg.Infra.Redis.Password)
		if err != nil {
			return nil, err
		}
		closers = append(closers, func(context.Context) { client.Close() })
		if guard, err = adapter.NewRedisIdempotencyGuard(ctx, client, cfg.Idempotency.TTL); err != nil {
			return nil, err
		}
	} else {
		guard = adapter.NewMemoryIdempotencyGuard()
	}

	// 4. 领域事件
	var publisher port.EventPublisher = adapter.LogEventPublisher{}
	if cfg.Infra.Kafka.Brokers != "" {
		kafkaPublisher := adapter.NewKafkaEventPublisher(mq.NewKafkaWriter(splitList(cfg.Infra.Kafka.Brokers), cfg.Infra.Kafka.Topic))
		closers = append(closers, func(context.Context) {
			if err := kafkaPublisher.Close(); err != nil {
				logger.L().Error().Err(err).Msg("Error closing kafka writer")
			}
		})
		publisher = kafkaPublisher
	}

	// 5. 结算配置
	settings, err := buildSettings(cfg)
	if err != nil {
		return nil, err
	}

	service := application.NewLedgerService(ledger, store, publisher, guard, otel.Tracer(serviceName), settings)
	interfaces.NewLedgerHandler(service).RegisterRoutes(appCtx.Mux)

	// 会话过期后临时节点已被删除，其他实例可能已成为写入者，本实例只能继续提供读服务
	if writerLock != nil {
		go func() {
			select {
			case <-writerLock.Lost():
				service.Fence(errors.New("zookeeper session expired"))
				logger.L().Error().Str("lock", cfg.Infra.Zookeeper.WriterLock).Msg("🛑 Ledger writer lock lost, mutations disabled. Restart the instance to rejoin.")
			case <-ctx.Done():
			}
		}()
	}
	return cleanup, nil
}

func buildSettings(cfg *bootstrap.Config) (application.Settings, error) {
	var settings application.Settings
	var err error
	if settings.Bonus, err = domain.NewBonusSchedule(cfg.Settlement.BonusLevels); err != nil {
		return settings, errors.WithMessage(err, "settlement.bonus_levels")
	}
	if settings.Commission, err = domain.NewCommissionSchedule(cfg.Settlement.CommissionBPS); err != nil {
		return settings, errors.WithMessage(err, "settlement.commission_bps")
	}
	if expr := strings.TrimSpace(cfg.Settlement.QualificationRule); expr != "" {
		rule, err := adapter.NewCELQualificationRule(expr)
		if err != nil {
			return settings, errors.WithMessage(err, "settlement.qualification_rule")
		}
		settings.Rule = rule
	}
	for _, p := range cfg.Access.BootstrapAdmins {
		settings.BootstrapAdmins = append(settings.BootstrapAdmins, domain.Principal(p))
	}
	return settings, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
