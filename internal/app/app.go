// internal/app/app.go
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-api/internal/config"
	"github.com/your-org/marketplace-api/internal/domain/analytics"
	"github.com/your-org/marketplace-api/internal/domain/cart"
	"github.com/your-org/marketplace-api/internal/domain/inventory"
	"github.com/your-org/marketplace-api/internal/domain/notification"
	"github.com/your-org/marketplace-api/internal/domain/order"
	"github.com/your-org/marketplace-api/internal/domain/product"
	"github.com/your-org/marketplace-api/internal/domain/upload"
	"github.com/your-org/marketplace-api/internal/domain/user"
	httpserver "github.com/your-org/marketplace-api/internal/interfaces/http"
	"github.com/your-org/marketplace-api/internal/interfaces/http/handlers"
	"github.com/your-org/marketplace-api/internal/interfaces/http/routes"
	"github.com/your-org/marketplace-api/internal/pkg/auth"
	"github.com/your-org/marketplace-api/internal/pkg/email"
	"github.com/your-org/marketplace-api/internal/pkg/pdf"
	"gorm.io/gorm"
)

// Options are the already opened resources the application runs on
type Options struct {
	Config *config.Config
	Logger *logrus.Logger
	DB     *gorm.DB
	// Redis is optional; without it stats are not cached and rate limiting
	// is per process
	Redis  *redis.Client
	Mailer *email.Service
	Checks map[string]httpserver.HealthChecker
}

// App holds the wired services and the HTTP server
type App struct {
	Server     *httpserver.Server
	Dispatcher *notification.Dispatcher
	Users      *user.Service
	Orders     *order.Service
	Stats      *analytics.Service
}

// New wires every service and handler
func New(opts Options) (*App, error) {
	cfg, log, db := opts.Config, opts.Logger, opts.DB

	mailer := opts.Mailer
	if mailer == nil {
		var err error
		if mailer, err = email.NewService(cfg, log); err != nil {
			return nil, fmt.Errorf("failed to create email service: %w", err)
		}
	}

	// the dispatcher resolves recipients through the user service, which in
	// turn notifies through the dispatcher
	var users *user.Service
	recipients := notification.RecipientResolverFunc(func(ctx context.Context, userID uint) (notification.Recipient, error) {
		return users.ResolveRecipient(ctx, userID)
	})
	sink := notification.NewEmailSink(mailer, cfg.Security.PasswordResetTokenTTL.String())
	dispatcher := notification.NewDispatcher(sink, recipients, log, cfg.Notification)

	users = user.NewService(db, cfg, dispatcher, log)
	admins := user.NewAdminService(db, log)

	ledger := inventory.NewLedger(db)
	productStore := product.NewStore()
	products := product.NewService(db, cfg, productStore, ledger, log)
	categories := product.NewCategoryService(db, log)
	reviews := product.NewReviewService(db, productStore, log)

	cartStore := cart.NewStore()
	carts := cart.NewService(db, cartStore, productStore, log)
	orders := order.NewService(db, cfg, order.NewStore(), cartStore, productStore, ledger, dispatcher, log)

	stats := analytics.NewService(db, opts.Redis, cfg, log)
	uploads := upload.NewService(db, cfg, log)

	h := &routes.Handlers{
		Auth:      handlers.NewAuthHandler(users, log),
		Profile:   handlers.NewUserProfileHandler(users, log),
		UserAdmin: handlers.NewUserAdminHandler(admins, log),
		Category:  handlers.NewCategoryHandler(categories, log),
		Product:   handlers.NewProductHandler(products, log),
		Review:    handlers.NewReviewHandler(reviews, log),
		Cart:      handlers.NewCartHandler(carts, log),
		Order:     handlers.NewOrderHandler(orders, log),
		Invoice:   handlers.NewInvoiceHandler(orders, pdf.NewService(cfg), users, log),
		Analytics: handlers.NewAnalyticsHandler(stats, log),
		Upload:    handlers.NewUploadHandler(uploads, users, log),
	}

	server, err := httpserver.NewServer(cfg, log, opts.Redis, &routes.Dependencies{
		Config:   cfg,
		JWT:      auth.NewJWTManager(cfg),
		Users:    users,
		Handlers: h,
	}, opts.Checks)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return &App{
		Server:     server,
		Dispatcher: dispatcher,
		Users:      users,
		Orders:     orders,
		Stats:      stats,
	}, nil
}
