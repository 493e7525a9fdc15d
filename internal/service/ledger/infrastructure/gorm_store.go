// internal/service/ledger/infrastructure/gorm_store.go
package infrastructure

import (
	"context"
	"time"

	"associate-ledger/internal/pkg/logger"
	"associate-ledger/internal/service/ledger/domain"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"golang.org/x/sync/errgroup"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// MySQLOptions 是连接 MySQL 所需的参数
type MySQLOptions struct {
	Addr         string
	User         string
	Password     string
	Database     string
	MaxOpenConns int
}

// OpenMySQL 打开 MySQL 连接并注册 OpenTelemetry 插件
func OpenMySQL(opts MySQLOptions) (*gorm.DB, error) {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = opts.Addr
	cfg.User = opts.User
	cfg.Passwd = opts.Password
	cfg.DBName = opts.Database
	cfg.ParseTime = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}

	db, err := gorm.Open(gormmysql.Open(cfg.FormatDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open mysql %s/%s", opts.Addr, opts.Database)
	}
	if err := db.Use(otelgorm.NewPlugin(otelgorm.WithDBName(opts.Database), otelgorm.WithoutQueryVariables())); err != nil {
		return nil, errors.Wrap(err, "register otelgorm plugin")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql.DB")
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		sqlDB.SetMaxIdleConns(opts.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.L().Info().Str("addr", opts.Addr).Str("database", opts.Database).Msg("✅ Connected to MySQL.")
	return db, nil
}

// GormStore 是 domain.LedgerStore 的关系型数据库实现。
// 每个变更集在一个事务中写入；奖金记录与佣金记录只追加。
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate 创建或更新账本表结构
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
		return errors.Wrap(err, "auto migrate ledger tables")
	}
	return nil
}

// Load 并发读取全部表并组成快照
func (s *GormStore) Load(ctx context.Context) (domain.Snapshot, error) {
	var (
		associates  []associateModel
		roles       []roleModel
		wallets     []walletModel
		products    []productModel
		idProducts  []idProductModel
		orders      []orderModel
		bonuses     []bonusRecordModel
		commissions []commissionRecordModel
		payouts     []payoutModel
		aggregate   []bonusAggregateModel
	)

	g, gctx := errgroup.WithContext(ctx)
	find := func(table string, dest interface{}) {
		g.Go(func() error {
			if err := s.db.WithContext(gctx).Find(dest).Error; err != nil {
				return errors.Wrapf(err, "load %s", table)
			}
			return nil
		})
	}
	find("associates", &associates)
	find("roles", &roles)
	find("wallets", &wallets)
	find("products", &products)
	find("id products", &idProducts)
	find("orders", &orders)
	find("bonus records", &bonuses)
	find("commission records", &commissions)
	find("payout requests", &payouts)
	find("bonus aggregate", &aggregate)
	if err := g.Wait(); err != nil {
		return domain.Snapshot{}, err
	}

	snap := domain.Snapshot{
		Roles:     make(map[domain.Principal]domain.Role, len(roles)),
		Aggregate: aggregateFromModels(aggregate),
	}
	for _, m := range associates {
		snap.Associates = append(snap.Associates, m.toDomain())
	}
	for _, m := range roles {
		role, err := domain.ParseRole(m.Role)
		if err != nil {
			return domain.Snapshot{}, errors.WithMessagef(err, "load role of %s", m.Principal)
		}
		snap.Roles[domain.Principal(m.Principal)] = role
	}
	for _, m := range wallets {
		snap.Wallets = append(snap.Wallets, m.toDomain())
	}
	for _, m := range products {
		snap.Products = append(snap.Products, m.toDomain())
	}
	for _, m := range idProducts {
		snap.IDProducts = append(snap.IDProducts, m.ProductID)
	}
	for _, m := range orders {
		snap.Orders = append(snap.Orders, m.toDomain())
	}
	for _, m := range bonuses {
		snap.Bonuses = append(snap.Bonuses, m.toDomain())
	}
	for _, m := range commissions {
		snap.Commissions = append(snap.Commissions, m.toDomain())
	}
	for _, m := range payouts {
		snap.Payouts = append(snap.Payouts, m.toDomain())
	}
	return snap, nil
}

// Commit 在一个事务中持久化变更集
func (s *GormStore) Commit(ctx context.Context, cs *domain.Changeset) error {
	if cs.Empty() {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upsert := func() *gorm.DB { return tx.Clauses(clause.OnConflict{UpdateAll: true}) }

		if len(cs.Associates) > 0 {
			rows := make([]associateModel, 0, len(cs.Associates))
			for _, a := range cs.Associates {
				rows = append(rows, toAssociateModel(a))
			}
			if err := upsert().Create(&rows).Error; err != nil {
				return errors.Wrap(err, "upsert associates")
			}
		}
		if len(cs.Roles) > 0 {
			rows := make([]roleModel, 0, len(cs.Roles))
			for p, r := range cs.Roles {
				rows = append(rows, roleModel{Principal: string(p), Role: string(r)})
			}
			if err := upsert().Create(&rows).Error; err != nil {
				return errors.Wrap(err, "upsert roles")
			}
		}
		if len(cs.Wallets) > 0 {
			rows := make([]walletModel, 0, len(cs.Wallets))
			for _, w := range cs.Wallets {
				rows = append(rows, toWalletModel(w))
			}
			if err := upsert().Create(&rows).Error; err != nil {
				return errors.Wrap(err, "upsert wallets")
			}
		}
		if len(cs.Products) > 0 {
			rows := make([]productModel, 0, len(cs.Products))
			for _, p := range cs.Products {
				rows = append(rows, toProductModel(p))
			}
			if err := upsert().Create(&rows).Error; err != nil {
				return errors.Wrap(err, "upsert products")
			}
		}
		for id, designated := range cs.IDProducts {
			var err error
			if designated {
				err = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&idProductModel{ProductID: id}).Error
			} else {
				err = tx.Delete(&idProductModel{}, "product_id = ?", id).Error
			}
			if err != nil {
				return errors.Wrapf(err, "update id product %d", id)
			}
		}
		if len(cs.Orders) > 0 {
			rows := make([]orderModel, 0, len(cs.Orders))
			for _, o := range cs.Orders {
				rows = append(rows, toOrderModel(o))
			}
			if err := upsert().Create(&rows).Error; err != nil {
				return errors.Wrap(err, "upsert orders")
			}
		}
		if len(cs.Bonuses) > 0 {
			rows := make([]bonusRecordModel, 0, len(cs.Bonuses))
			for _, r := range cs.Bonuses {
				rows = append(rows, toBonusRecordModel(r))
			}
			if err := tx.Create(&rows).Error; err != nil {
				return errors.Wrap(err, "append referral bonus records")
			}
		}
		if len(cs.Commissions) > 0 {
			rows := make([]commissionRecordModel, 0, len(cs.Commissions))
			for _, r := range cs.Commissions {
				rows = append(rows, toCommissionRecordModel(r))
			}
			if err := tx.Create(&rows).Error; err != nil {
				return errors.Wrap(err, "append commission records")
			}
		}
		if len(cs.Payouts) > 0 {
			rows := make([]payoutModel, 0, len(cs.Payouts))
			for _, p := range cs.Payouts {
				rows = append(rows, toPayoutModel(p))
			}
			if err := upsert().Create(&rows).Error; err != nil {
				return errors.Wrap(err, "upsert payout requests")
			}
		}
		if cs.Aggregate != nil {
			rows := toAggregateModels(*cs.Aggregate)
			if err := upsert().Create(&rows).Error; err != nil {
				return errors.Wrap(err, "upsert bonus aggregate")
			}
		}
		return nil
	})
	if err != nil {
		return errors.WithMessage(err, "ledger transaction rolled back")
	}
	return nil
}
