// internal/infrastructure/database/postgres/seed.go
package postgres

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-api/internal/domain/product"
	"github.com/your-org/marketplace-api/internal/domain/user"
	"github.com/your-org/marketplace-api/internal/pkg/auth"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed seed.yaml
var defaultSeed []byte

// SeedData is the shape of the seed file
type SeedData struct {
	Users []struct {
		Email     string `yaml:"email"`
		Password  string `yaml:"password"`
		FirstName string `yaml:"first_name"`
		LastName  string `yaml:"last_name"`
		Role      string `yaml:"role"`
	} `yaml:"users"`
	Categories []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"categories"`
	Products []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Price       string `yaml:"price"`
		Category    string `yaml:"category"`
		Seller      string `yaml:"seller"`
		Quantity    int    `yaml:"quantity"`
		OutOfStock  bool   `yaml:"out_of_stock"`
	} `yaml:"products"`
	Reviews []struct {
		User     string `yaml:"user"`
		Product  string `yaml:"product"`
		Rating   int    `yaml:"rating"`
		Comment  string `yaml:"comment"`
		Verified bool   `yaml:"verified"`
	} `yaml:"reviews"`
}

// LoadSeed reads path, or the embedded default seed when path is empty
func LoadSeed(path string) (*SeedData, error) {
	raw := defaultSeed
	if path != "" {
		var err error
		if raw, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("failed to read seed file: %w", err)
		}
	}

	var data SeedData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &data, nil
}

// Seed inserts the seed rows that do not exist yet. Running it twice is a no-op.
func (m *Migration) Seed(data *SeedData, passwords *auth.PasswordManager) error {
	return m.db.Transaction(func(tx *gorm.DB) error {
		users := make(map[string]uint)
		for _, u := range data.Users {
			role := user.Role(u.Role)
			if !role.Valid() {
				return fmt.Errorf("seed user %s has unknown role %q", u.Email, u.Role)
			}
			hash, err := passwords.HashPassword(u.Password)
			if err != nil {
				return fmt.Errorf("failed to hash seed password: %w", err)
			}
			row := user.User{
				Email:         u.Email,
				Password:      hash,
				FirstName:     u.FirstName,
				LastName:      u.LastName,
				Role:          role,
				IsActive:      true,
				EmailVerified: true,
			}
			if err := tx.Where("email = ?", u.Email).Attrs(row).FirstOrCreate(&row).Error; err != nil {
				return fmt.Errorf("failed to seed user %s: %w", u.Email, err)
			}
			users[u.Email] = row.ID
		}

		categories := make(map[string]uint)
		for _, c := range data.Categories {
			row := product.Category{Name: c.Name, Description: c.Description}
			if err := tx.Where("name = ?", c.Name).Attrs(row).FirstOrCreate(&row).Error; err != nil {
				return fmt.Errorf("failed to seed category %s: %w", c.Name, err)
			}
			categories[c.Name] = row.ID
		}

		products := make(map[string]uint)
		for _, p := range data.Products {
			categoryID, ok := categories[p.Category]
			if !ok {
				return fmt.Errorf("seed product %s references unknown category %s", p.Name, p.Category)
			}
			sellerID, ok := users[p.Seller]
			if !ok {
				return fmt.Errorf("seed product %s references unknown seller %s", p.Name, p.Seller)
			}
			price, err := decimal.NewFromString(p.Price)
			if err != nil {
				return fmt.Errorf("seed product %s has invalid price: %w", p.Name, err)
			}

			row := product.Product{
				Name:        p.Name,
				Description: p.Description,
				Price:       price,
				CategoryID:  categoryID,
				SellerID:    sellerID,
				InStock:     !p.OutOfStock,
				Quantity:    p.Quantity,
			}
			err = tx.Where("name = ? AND seller_id = ?", p.Name, sellerID).Attrs(row).FirstOrCreate(&row).Error
			if err != nil {
				return fmt.Errorf("failed to seed product %s: %w", p.Name, err)
			}
			products[p.Name] = row.ID
		}

		touched := make(map[uint]struct{})
		for _, r := range data.Reviews {
			userID, ok := users[r.User]
			if !ok {
				return fmt.Errorf("seed review references unknown user %s", r.User)
			}
			productID, ok := products[r.Product]
			if !ok {
				return fmt.Errorf("seed review references unknown product %s", r.Product)
			}
			row := product.Review{
				UserID:    userID,
				ProductID: productID,
				Rating:    r.Rating,
				Comment:   r.Comment,
				Verified:  r.Verified,
			}
			err := tx.Where("user_id = ? AND product_id = ?", userID, productID).Attrs(row).FirstOrCreate(&row).Error
			if err != nil {
				return fmt.Errorf("failed to seed review: %w", err)
			}
			touched[productID] = struct{}{}
		}

		for productID := range touched {
			if err := refreshRating(tx, productID); err != nil {
				return err
			}
		}

		m.logger.WithFields(logrus.Fields{
			"users":      len(users),
			"categories": len(categories),
			"products":   len(products),
			"reviews":    len(data.Reviews),
		}).Info("Seed data applied")
		return nil
	})
}

func refreshRating(tx *gorm.DB, productID uint) error {
	var agg struct {
		Count int64
		Avg   *float64
	}
	err := tx.Model(&product.Review{}).
		Select("COUNT(*) AS count, AVG(rating) AS avg").
		Where("product_id = ?", productID).
		Scan(&agg).Error
	if err != nil {
		return fmt.Errorf("failed to aggregate seed reviews: %w", err)
	}
	if agg.Avg == nil {
		return errors.New("seed review aggregate returned no rows")
	}

	return tx.Model(&product.Product{}).
		Where("id = ?", productID).
		UpdateColumns(map[string]interface{}{
			"average_rating": math.Round(*agg.Avg*10) / 10,
			"review_count":   agg.Count,
		}).Error
}
