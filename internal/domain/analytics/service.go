// internal/domain/analytics/service.go
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-api/internal/config"
	"gorm.io/gorm"
)

const cachePrefix = "stats:"

// Service computes catalog and order statistics for sellers and admins
type Service struct {
	db     *gorm.DB
	cache  *redis.Client
	config *config.Config
	logger *logrus.Logger
}

// NewService creates a new statistics service. cache may be nil.
func NewService(db *gorm.DB, cache *redis.Client, cfg *config.Config, logger *logrus.Logger) *Service {
	return &Service{
		db:     db,
		cache:  cache,
		config: cfg,
		logger: logger,
	}
}

// CategoryStats aggregates the live products of one category
type CategoryStats struct {
	CategoryID    uint            `json:"category_id"`
	CategoryName  string          `json:"category_name"`
	TotalProducts int64           `json:"total_products"`
	AvgPrice      decimal.Decimal `json:"avg_price"`
	MinPrice      decimal.Decimal `json:"min_price"`
	MaxPrice      decimal.Decimal `json:"max_price"`
	TotalStock    int64           `json:"total_stock"`
}

// TopProduct is a row of the most expensive products list
type TopProduct struct {
	ID            uint            `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	AverageRating float64         `json:"average_rating"`
	ReviewCount   int             `json:"review_count"`
	SellerID      uint            `json:"seller_id"`
	SellerName    string          `json:"seller_name"`
}

// LowStockProduct is a purchasable product running out of stock
type LowStockProduct struct {
	ID         uint            `json:"id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	SellerID   uint            `json:"seller_id"`
	SellerName string          `json:"seller_name"`
}

// LowStockReport is the low stock list with the threshold it was built for
type LowStockReport struct {
	Threshold int               `json:"threshold"`
	Products  []LowStockProduct `json:"products"`
}

// PricedProduct is a name/price pair inside a price bucket
type PricedProduct struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// PriceBucket counts products with Min <= price < Max. A nil Max is open ended.
type PriceBucket struct {
	Label    string           `json:"label"`
	Min      decimal.Decimal  `json:"min"`
	Max      *decimal.Decimal `json:"max"`
	Count    int64            `json:"count"`
	Products []PricedProduct  `json:"products"`
}

// StatusCount is the number and value of orders in one status
type StatusCount struct {
	Status string          `json:"status"`
	Count  int64           `json:"count"`
	Value  decimal.Decimal `json:"value"`
}

// OrderSummary breaks orders down by status
type OrderSummary struct {
	TotalOrders int64           `json:"total_orders"`
	Revenue     decimal.Decimal `json:"revenue"`
	ByStatus    []StatusCount   `json:"by_status"`
}

// PriceBoundaries are the lower edges of the price distribution buckets
var PriceBoundaries = []int64{0, 50, 100, 200, 500, 1000}

// ProductStatsByCategory aggregates non-deleted products per category
func (s *Service) ProductStatsByCategory(ctx context.Context) ([]CategoryStats, error) {
	var stats []CategoryStats
	err := s.cached(ctx, "products", &stats, func() error {
		rows, err := s.db.WithContext(ctx).Raw(`
			SELECT
				c.id,
				c.name,
				COUNT(p.id),
				AVG(p.price),
				MIN(p.price),
				MAX(p.price),
				COALESCE(SUM(p.quantity), 0)
			FROM products p
			JOIN categories c ON c.id = p.category_id
			WHERE p.deleted_at IS NULL
			GROUP BY c.id, c.name
			ORDER BY c.name
		`).Rows()
		if err != nil {
			return fmt.Errorf("failed to get category stats: %w", err)
		}
		defer rows.Close()

		stats = make([]CategoryStats, 0)
		for rows.Next() {
			var row CategoryStats
			var avg decimal.NullDecimal
			if err := rows.Scan(&row.CategoryID, &row.CategoryName, &row.TotalProducts, &avg, &row.MinPrice, &row.MaxPrice, &row.TotalStock); err != nil {
				return fmt.Errorf("failed to scan category stats: %w", err)
			}
			row.AvgPrice = avg.Decimal.Round(2)
			stats = append(stats, row)
		}
		return rows.Err()
	})
	return stats, err
}

// TopProducts lists the most expensive products, limit defaulting to the configured value
func (s *Service) TopProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	if limit <= 0 {
		limit = s.config.Stats.DefaultTopLimit
	}
	if limit > 100 {
		limit = 100
	}

	var products []TopProduct
	err := s.cached(ctx, fmt.Sprintf("top:%d", limit), &products, func() error {
		products = make([]TopProduct, 0, limit)
		err := s.db.WithContext(ctx).
			Table("products p").
			Select(`p.id, p.name, p.price, p.average_rating, p.review_count, p.seller_id,
				TRIM(COALESCE(u.first_name, '') || ' ' || COALESCE(u.last_name, '')) AS seller_name`).
			Joins("LEFT JOIN users u ON u.id = p.seller_id").
			Where("p.deleted_at IS NULL").
			Order("p.price DESC, p.id ASC").
			Limit(limit).
			Scan(&products).Error
		if err != nil {
			return fmt.Errorf("failed to get top products: %w", err)
		}
		return nil
	})
	return products, err
}

// LowStock lists purchasable products with quantity <= threshold, lowest first
func (s *Service) LowStock(ctx context.Context, threshold int) (*LowStockReport, error) {
	if threshold < 0 {
		threshold = s.config.Stats.DefaultLowStockThreshold
	}

	report := &LowStockReport{Threshold: threshold}
	err := s.cached(ctx, fmt.Sprintf("low-stock:%d", threshold), report, func() error {
		report.Products = make([]LowStockProduct, 0)
		err := s.db.WithContext(ctx).
			Table("products p").
			Select(`p.id, p.name, p.quantity, p.price, p.seller_id,
				TRIM(COALESCE(u.first_name, '') || ' ' || COALESCE(u.last_name, '')) AS seller_name`).
			Joins("LEFT JOIN users u ON u.id = p.seller_id").
			Where("p.deleted_at IS NULL AND p.in_stock = ? AND p.quantity <= ?", true, threshold).
			Order("p.quantity ASC, p.id ASC").
			Scan(&report.Products).Error
		if err != nil {
			return fmt.Errorf("failed to get low stock products: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// PriceDistribution buckets non-deleted products by price. Every bucket is
// returned, including empty ones.
func (s *Service) PriceDistribution(ctx context.Context) ([]PriceBucket, error) {
	var buckets []PriceBucket
	err := s.cached(ctx, "price-distribution", &buckets, func() error {
		buckets = newBuckets()

		rows, err := s.db.WithContext(ctx).
			Table("products").
			Select("name, price").
			Where("deleted_at IS NULL").
			Order("price ASC, id ASC").
			Rows()
		if err != nil {
			return fmt.Errorf("failed to get price distribution: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var p PricedProduct
			if err := rows.Scan(&p.Name, &p.Price); err != nil {
				return fmt.Errorf("failed to scan product price: %w", err)
			}
			b := &buckets[bucketIndex(p.Price)]
			b.Count++
			b.Products = append(b.Products, p)
		}
		return rows.Err()
	})
	return buckets, err
}

// OrderSummary counts orders per status. Revenue excludes cancelled orders.
func (s *Service) OrderSummary(ctx context.Context) (*OrderSummary, error) {
	summary := &OrderSummary{}
	err := s.cached(ctx, "orders", summary, func() error {
		var rows []StatusCount
		err := s.db.WithContext(ctx).
			Table("orders").
			Select("status, COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS value").
			Group("status").
			Order("status").
			Scan(&rows).Error
		if err != nil {
			return fmt.Errorf("failed to get order summary: %w", err)
		}

		summary.ByStatus = rows
		summary.Revenue = decimal.Zero
		for _, r := range rows {
			summary.TotalOrders += r.Count
			if r.Status != "cancelled" {
				summary.Revenue = summary.Revenue.Add(r.Value)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// cached serves key from Redis when present; otherwise it runs load and
// stores dest. Cache failures are logged and never fail the request.
func (s *Service) cached(ctx context.Context, key string, dest interface{}, load func() error) error {
	if s.cache == nil || s.config.Stats.CacheTTL <= 0 {
		return load()
	}
	key = cachePrefix + key

	raw, err := s.cache.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(raw, dest); jsonErr == nil {
			return nil
		}
		s.logger.WithField("key", key).Warn("Discarding unreadable stats cache entry")
	case !errors.Is(err, redis.Nil):
		s.logger.WithError(err).WithField("key", key).Warn("Stats cache read failed")
	}

	if err := load(); err != nil {
		return err
	}

	payload, err := json.Marshal(dest)
	if err != nil {
		return nil
	}
	if err := s.cache.Set(ctx, key, payload, s.config.Stats.CacheTTL).Err(); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Stats cache write failed")
	}
	return nil
}

// Invalidate drops every cached statistic
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	iter := s.cache.Scan(ctx, 0, cachePrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan stats cache: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return s.cache.Del(ctx, keys...).Err()
}

func newBuckets() []PriceBucket {
	buckets := make([]PriceBucket, len(PriceBoundaries))
	for i, lo := range PriceBoundaries {
		b := PriceBucket{Min: decimal.NewFromInt(lo), Products: make([]PricedProduct, 0)}
		if i+1 < len(PriceBoundaries) {
			hi := decimal.NewFromInt(PriceBoundaries[i+1])
			b.Max = &hi
			b.Label = fmt.Sprintf("%d-%d", lo, PriceBoundaries[i+1])
		} else {
			b.Label = fmt.Sprintf("%d+", lo)
		}
		buckets[i] = b
	}
	return buckets
}

func bucketIndex(price decimal.Decimal) int {
	idx := 0
	for i, lo := range PriceBoundaries {
		if price.GreaterThanOrEqual(decimal.NewFromInt(lo)) {
			idx = i
		}
	}
	return idx
}

