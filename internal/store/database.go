package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/capitalize-ai/support-inbox/internal/model"
	"github.com/capitalize-ai/support-inbox/pkg/logger"
)

// OpenPostgres connects to PostgreSQL.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	config := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Error),
		TranslateError: true,
	}

	db, err := gorm.Open(postgres.Open(dsn), config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Models lists every persisted model in dependency order.
func Models() []any {
	return []any{
		&model.Role{},
		&model.User{},
		&model.Contact{},
		&model.Conversation{},
		&model.Message{},
	}
}

// Migrate creates or updates the schema and the partial unique indexes
// gorm tags cannot express.
func Migrate(ctx context.Context, db *gorm.DB, log *logger.Logger) error {
	log.Info("running database migrations")

	if err := db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to run AutoMigrate: %w", err)
	}

	indexes := []string{
		// One live contact per canonical phone; soft-deleted rows release it.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_contacts_phone_live ON contacts(phone_number) WHERE deleted_at IS NULL`,

		// At most one open conversation per contact.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_open_contact ON conversations(contact_id) WHERE status <> 'resolved'`,

		// Role names are unique among active roles.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_roles_active_name ON roles(name) WHERE is_active`,
	}

	for _, idx := range indexes {
		if err := db.WithContext(ctx).Exec(idx).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	log.Info("database migrations completed", zap.Int("models", len(Models())))
	return nil
}
