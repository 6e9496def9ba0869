package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/intenza/hfeval/internal/model"
)

// PostgreSQLConfig PostgreSQL配置
type PostgreSQLConfig struct {
	Host            string        `yaml:"host" env:"POSTGRES_HOST" default:"localhost"`
	Port            int           `yaml:"port" env:"POSTGRES_PORT" default:"5432"`
	Database        string        `yaml:"database" env:"POSTGRES_DB" default:"hfeval"`
	Username        string        `yaml:"username" env:"POSTGRES_USER" default:"postgres"`
	Password        string        `yaml:"password" env:"POSTGRES_PASSWORD" default:""`
	SSLMode         string        `yaml:"ssl_mode" env:"POSTGRES_SSLMODE" default:"disable"`
	Schema          string        `yaml:"schema" env:"POSTGRES_SCHEMA" default:"hfeval"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"POSTGRES_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"POSTGRES_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"POSTGRES_CONN_MAX_LIFETIME" default:"5m"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env:"POSTGRES_CONN_MAX_IDLE_TIME" default:"5m"`
	BatchSize       int           `yaml:"batch_size" env:"POSTGRES_BATCH_SIZE" default:"100"`
}

// PostgreSQLDB PostgreSQL記錄儲存
type PostgreSQLDB struct {
	db     *gorm.DB
	config *PostgreSQLConfig
}

// NewPostgreSQLDB 建立PostgreSQL連線
func NewPostgreSQLDB(config *PostgreSQLConfig) (*PostgreSQLDB, error) {
	if config.Schema == "" {
		config.Schema = "hfeval"
		log.Printf("WARNING: Schema為空，使用預設值: hfeval")
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s search_path=%s",
		config.Host, config.Port, config.Username, config.Password, config.Database, config.SSLMode, config.Schema)

	gormConfig := &gorm.Config{}
	if log.Default().Writer() == os.Stdout {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("連線資料庫失敗: %w", err)
	}
	if err := db.Exec(fmt.Sprintf("SET search_path TO %s", config.Schema)).Error; err != nil {
		return nil, fmt.Errorf("設定schema失敗: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("取得連線池失敗: %w", err)
	}
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("資料庫ping失敗: %w", err)
	}

	return &PostgreSQLDB{
		db:     db,
		config: config,
	}, nil
}

// CreateTables 建立表結構
func (p *PostgreSQLDB) CreateTables(ctx context.Context) error {
	err := p.db.WithContext(ctx).AutoMigrate(
		&EvalRecordRow{},
		&BatchRow{},
	)
	if err != nil {
		return fmt.Errorf("自動遷移失敗: %w", err)
	}
	return nil
}

// AppendBatch 附加一批記錄
// 批次中繼資料與記錄列在同一交易內寫入；
// 批次只追加，不會就地更新
func (p *PostgreSQLDB) AppendBatch(ctx context.Context, batch *model.RecordBatch) error {
	rows := make([]*EvalRecordRow, 0, len(batch.Records))
	for _, r := range batch.Records {
		rows = append(rows, FromRecord(batch.BatchID, r))
	}

	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		meta := fmt.Sprintf(`{"record_count":%d}`, len(rows))
		batchRow := &BatchRow{
			ID:          batch.BatchID,
			Tester:      batch.Tester,
			MachineCode: batch.MachineCode,
			RecordCount: len(rows),
			Meta:        []byte(meta),
			CreatedAt:   batch.CreatedAt,
		}
		if err := tx.Create(batchRow).Error; err != nil {
			return fmt.Errorf("寫入批次中繼資料失敗: %w", err)
		}

		if err := tx.CreateInBatches(rows, p.config.BatchSize).Error; err != nil {
			return fmt.Errorf("批量寫入記錄失敗: %w", err)
		}
		return nil
	})
}

// DeleteByMachine 刪除某測試者在某機台的全部記錄
// 「修正已完成機台」時由持久層同步移除舊批次
func (p *PostgreSQLDB) DeleteByMachine(ctx context.Context, tester, machineCode string) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tester = ? AND machine_code = ?", tester, machineCode).
			Delete(&EvalRecordRow{}).Error; err != nil {
			return fmt.Errorf("刪除記錄失敗: %w", err)
		}
		if err := tx.Where("tester = ? AND machine_code = ?", tester, machineCode).
			Delete(&BatchRow{}).Error; err != nil {
			return fmt.Errorf("刪除批次失敗: %w", err)
		}
		return nil
	})
}

// ListAll 依記錄時間序列出全部記錄
func (p *PostgreSQLDB) ListAll(ctx context.Context) ([]*model.Record, error) {
	var rows []*EvalRecordRow
	err := p.db.WithContext(ctx).
		Order("recorded_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("列出記錄失敗: %w", err)
	}
	return toRecords(rows), nil
}

// ListByTesterSince 列出某測試者自指定時間起的記錄
// 「下載今天資料」使用當日零點作為起點
func (p *PostgreSQLDB) ListByTesterSince(ctx context.Context, tester string, since time.Time) ([]*model.Record, error) {
	var rows []*EvalRecordRow
	err := p.db.WithContext(ctx).
		Where("tester = ? AND recorded_at >= ?", tester, since).
		Order("recorded_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("列出測試者記錄失敗: %w", err)
	}
	return toRecords(rows), nil
}

// ListBatches 依建立時間倒序列出批次中繼資料
func (p *PostgreSQLDB) ListBatches(ctx context.Context, limit, offset int) ([]*BatchRow, error) {
	var batches []*BatchRow
	err := p.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&batches).Error
	if err != nil {
		return nil, fmt.Errorf("列出批次失敗: %w", err)
	}
	return batches, nil
}

// GetBatch 取得批次中繼資料
func (p *PostgreSQLDB) GetBatch(ctx context.Context, batchID string) (*BatchRow, error) {
	var batch BatchRow
	err := p.db.WithContext(ctx).First(&batch, "id = ?", batchID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, model.NewNotFoundError("批次不存在: " + batchID)
		}
		return nil, fmt.Errorf("取得批次失敗: %w", err)
	}
	return &batch, nil
}

// Close 關閉資料庫連線
func (p *PostgreSQLDB) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping 測試連線
func (p *PostgreSQLDB) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// GetDB 取得原始gorm連線
func (p *PostgreSQLDB) GetDB() *gorm.DB {
	return p.db
}

func toRecords(rows []*EvalRecordRow) []*model.Record {
	records := make([]*model.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.ToRecord())
	}
	return records
}

// DatabaseInterface 記錄儲存介面
type DatabaseInterface interface {
	CreateTables(ctx context.Context) error
	AppendBatch(ctx context.Context, batch *model.RecordBatch) error
	DeleteByMachine(ctx context.Context, tester, machineCode string) error
	ListAll(ctx context.Context) ([]*model.Record, error)
	ListByTesterSince(ctx context.Context, tester string, since time.Time) ([]*model.Record, error)
	ListBatches(ctx context.Context, limit, offset int) ([]*BatchRow, error)
	GetBatch(ctx context.Context, batchID string) (*BatchRow, error)

	Close() error
	Ping(ctx context.Context) error
}
