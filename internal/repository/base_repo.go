package repository

import (
	"context"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/supportdesk/internal/config"
	"github.com/mbeoliero/supportdesk/internal/entity"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Repositories holds all repositories
type Repositories struct {
	DB            *gorm.DB
	Redis         *redis.Client
	Conversation  *ConversationRepo
	Message       *MessageRepo
	Note          *NoteRepo
	VoiceTemplate *VoiceTemplateRepo
}

// NewRepositories opens the configured database and redis and creates all repositories
func NewRepositories(cfg *config.Config) (*Repositories, error) {
	db, err := initDB(cfg)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = initRedis(cfg)
	}

	return NewRepositoriesWithDB(db, rdb), nil
}

// NewRepositoriesWithDB wires repositories over an already opened database; rdb may be nil
func NewRepositoriesWithDB(db *gorm.DB, rdb *redis.Client) *Repositories {
	return &Repositories{
		DB:            db,
		Redis:         rdb,
		Conversation:  NewConversationRepo(db),
		Message:       NewMessageRepo(db),
		Note:          NewNoteRepo(db),
		VoiceTemplate: NewVoiceTemplateRepo(db),
	}
}

// initDB opens MySQL or the embedded sqlite database
func initDB(cfg *config.Config) (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if cfg.Server.Mode == "debug" {
		logLevel = logger.Info
	} else {
		logLevel = logger.Warn
	}
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	}

	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "mysql":
		dialector = mysql.Open(cfg.Database.MySQL.DSN())
	default:
		dialector = sqlite.Open(cfg.Database.SQLitePath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if cfg.Database.Driver == "mysql" {
		sqlDB.SetMaxOpenConns(cfg.Database.MySQL.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.Database.MySQL.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(time.Hour)
	} else {
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

// initRedis initializes Redis connection
func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// Migrate creates or updates all tables
func (r *Repositories) Migrate(ctx context.Context) error {
	return r.DB.WithContext(ctx).AutoMigrate(
		&entity.Conversation{},
		&entity.MessageLog{},
		&entity.Note{},
		&entity.VoiceTemplate{},
	)
}

// Close closes all connections
func (r *Repositories) Close() error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		return err
	}
	if r.Redis != nil {
		return r.Redis.Close()
	}
	return nil
}

// CheckConnection checks if database and redis connections are alive
func (r *Repositories) CheckConnection(ctx context.Context) error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		log.CtxError(ctx, "database ping failed: %v", err)
		return err
	}

	if r.Redis != nil {
		if err := r.Redis.Ping(ctx).Err(); err != nil {
			log.CtxError(ctx, "redis ping failed: %v", err)
			return err
		}
	}

	return nil
}
