// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-api/internal/domain/cart"
	"github.com/your-org/marketplace-api/internal/domain/inventory"
	"github.com/your-org/marketplace-api/internal/domain/order"
	"github.com/your-org/marketplace-api/internal/domain/product"
	"github.com/your-org/marketplace-api/internal/domain/upload"
	"github.com/your-org/marketplace-api/internal/domain/user"
	"gorm.io/gorm"
)

// Migration handles schema migrations and development seeding
type Migration struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB, logger *logrus.Logger) *Migration {
	return &Migration{
		db:     db,
		logger: logger,
	}
}

// Models lists every persisted model in dependency order
func Models() []interface{} {
	return []interface{}{
		&user.User{},
		&product.Category{},
		&product.Product{},
		&product.Review{},
		&cart.Cart{},
		&cart.CartItem{},
		&order.Order{},
		&order.OrderItem{},
		&order.StatusHistory{},
		&inventory.Movement{},
		&upload.UploadedFile{},
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	m.logger.Info("Running database auto-migrations")

	for _, model := range Models() {
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}

	m.logger.Info("Database auto-migrations completed")
	return nil
}

// CreateIndexes adds the secondary indexes struct tags do not express.
// Failures are logged and counted; they never abort startup.
func (m *Migration) CreateIndexes() error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_users_email_verified ON users(email_verified)",
		"CREATE INDEX IF NOT EXISTS idx_products_in_stock ON products(in_stock)",
		"CREATE INDEX IF NOT EXISTS idx_products_rating ON products(average_rating DESC)",
		"CREATE INDEX IF NOT EXISTS idx_products_created_at ON products(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_products_category_price ON products(category_id, price)",
		"CREATE INDEX IF NOT EXISTS idx_reviews_user ON reviews(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders(status, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_order_items_product ON order_items(product_id)",
	}
	if m.db.Dialector.Name() == "postgres" {
		indexes = append(indexes,
			"CREATE INDEX IF NOT EXISTS idx_products_search ON products USING gin (to_tsvector('simple', name || ' ' || coalesce(description, '')))",
		)
	}

	failed := 0
	for _, ddl := range indexes {
		if err := m.db.Exec(ddl).Error; err != nil {
			failed++
			m.logger.WithError(err).WithField("ddl", ddl).Warn("Failed to create index")
		}
	}

	m.logger.WithFields(logrus.Fields{
		"created": len(indexes) - failed,
		"failed":  failed,
	}).Info("Secondary indexes processed")

	if failed > 0 {
		return fmt.Errorf("%d of %d indexes failed", failed, len(indexes))
	}
	return nil
}

// TableCounts reports the number of rows per table
func (m *Migration) TableCounts() (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, model := range Models() {
		stmt := &gorm.Statement{DB: m.db}
		if err := stmt.Parse(model); err != nil {
			return nil, fmt.Errorf("failed to parse model %T: %w", model, err)
		}
		var n int64
		if err := m.db.Table(stmt.Schema.Table).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", stmt.Schema.Table, err)
		}
		counts[stmt.Schema.Table] = n
	}
	return counts, nil
}
