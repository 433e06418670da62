// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/your-org/marketplace-api/internal/config"
	"github.com/your-org/marketplace-api/internal/domain/user"
	"github.com/your-org/marketplace-api/internal/interfaces/http/handlers"
	"github.com/your-org/marketplace-api/internal/interfaces/http/middleware"
	"github.com/your-org/marketplace-api/internal/pkg/auth"
)

// Handlers groups every HTTP handler the API exposes
type Handlers struct {
	Auth      *handlers.AuthHandler
	Profile   *handlers.UserProfileHandler
	UserAdmin *handlers.UserAdminHandler
	Category  *handlers.CategoryHandler
	Product   *handlers.ProductHandler
	Review    *handlers.ReviewHandler
	Cart      *handlers.CartHandler
	Order     *handlers.OrderHandler
	Invoice   *handlers.InvoiceHandler
	Analytics *handlers.AnalyticsHandler
	Upload    *handlers.UploadHandler
}

// Dependencies carries what the route table needs besides the handlers
type Dependencies struct {
	Config   *config.Config
	JWT      *auth.JWTManager
	Users    middleware.UserLookup
	Handlers *Handlers
}

// SetupRoutes registers the whole API under rg
func SetupRoutes(rg *gin.RouterGroup, deps *Dependencies) {
	authed := middleware.AuthMiddleware(deps.JWT, deps.Users)
	limit := middleware.BodyLimit(deps.Config.Server.MaxBodyBytes)
	h := deps.Handlers

	api := rg.Group("", limit)
	SetupAuthRoutes(api, h)
	SetupUserRoutes(api, h, authed)
	SetupCatalogRoutes(api, h, authed)
	SetupOrderRoutes(api, h, authed)
	SetupStatsRoutes(api, h, authed)
	SetupAdminRoutes(api, h, authed)

	// multipart bodies get their own ceiling
	uploadLimit := deps.Config.Upload.MaxSize*int64(deps.Config.Upload.MaxFiles) + 1<<20
	SetupUploadRoutes(rg, h, authed, middleware.BodyLimit(uploadLimit))
}

// SetupAuthRoutes sets up authentication related routes
func SetupAuthRoutes(rg *gin.RouterGroup, h *Handlers) {
	a := rg.Group("/auth")
	{
		a.POST("/register", h.Auth.Register)
		a.POST("/login", h.Auth.Login)
		a.POST("/refresh", h.Auth.RefreshToken)
		a.GET("/activate/:token", h.Auth.Activate)
		a.POST("/forgot-password", h.Auth.ForgotPassword)
		a.POST("/reset-password", h.Auth.ResetPassword)
	}
}

// SetupUserRoutes sets up the caller's own profile routes
func SetupUserRoutes(rg *gin.RouterGroup, h *Handlers, authed gin.HandlerFunc) {
	users := rg.Group("/users", authed)
	{
		users.GET("/me", h.Profile.GetProfile)
		users.PUT("/me", h.Profile.UpdateProfile)
		users.PUT("/me/password", h.Profile.ChangePassword)
	}
}

// SetupCatalogRoutes sets up categories, products and reviews
func SetupCatalogRoutes(rg *gin.RouterGroup, h *Handlers, authed gin.HandlerFunc) {
	categories := rg.Group("/categories")
	{
		categories.GET("", h.Category.GetCategories)
		categories.GET("/:id", h.Category.GetCategory)

		admin := categories.Group("", authed, middleware.RequireRoles(user.RoleAdmin))
		admin.POST("", h.Category.CreateCategory)
		admin.PUT("/:id", h.Category.UpdateCategory)
		admin.DELETE("/:id", h.Category.DeleteCategory)
	}

	products := rg.Group("/products")
	{
		products.GET("", h.Product.GetProducts)
		products.GET("/:id", h.Product.GetProduct)
		products.GET("/:id/reviews", h.Review.GetProductReviews)

		// ownership is checked per product by the service
		sellers := products.Group("", authed, middleware.RequireRoles(user.RoleSeller))
		sellers.POST("", h.Product.CreateProduct)
		sellers.PUT("/:id", h.Product.UpdateProduct)
		sellers.DELETE("/:id", h.Product.DeleteProduct)
		sellers.PUT("/:id/stock", h.Product.UpdateStock)
		sellers.GET("/:id/movements", h.Product.GetMovements)
	}

	reviews := rg.Group("/reviews", authed, middleware.RequireRoles(user.RoleBuyer))
	{
		reviews.POST("", h.Review.CreateReview)
		reviews.GET("/me", h.Review.GetMyReviews)
		reviews.PUT("/:id", h.Review.UpdateReview)
		reviews.DELETE("/:id", h.Review.DeleteReview)
	}
}

// SetupOrderRoutes sets up cart and order routes
func SetupOrderRoutes(rg *gin.RouterGroup, h *Handlers, authed gin.HandlerFunc) {
	cart := rg.Group("/cart", authed)
	{
		cart.GET("", h.Cart.GetCart)
		cart.DELETE("", h.Cart.ClearCart)
		cart.POST("/items", h.Cart.AddItem)
		cart.PUT("/items/:id", h.Cart.UpdateItem)
		cart.DELETE("/items/:id", h.Cart.RemoveItem)
	}

	orders := rg.Group("/orders", authed)
	{
		buyers := orders.Group("", middleware.RequireRoles(user.RoleBuyer))
		buyers.POST("", h.Order.CreateOrder)
		buyers.GET("", h.Order.GetOrders)
		buyers.GET("/:id", h.Order.GetOrder)
		buyers.PUT("/:id/cancel", h.Order.CancelOrder)
		buyers.GET("/:id/invoice", h.Invoice.GenerateInvoice)

		orders.PUT("/:id/status", middleware.RequireRoles(user.RoleSeller), h.Order.UpdateStatus)
	}
}

// SetupStatsRoutes sets up catalog and sales statistics
func SetupStatsRoutes(rg *gin.RouterGroup, h *Handlers, authed gin.HandlerFunc) {
	stats := rg.Group("/stats", authed, middleware.RequireRoles(user.RoleSeller))
	{
		stats.GET("/products", h.Analytics.GetProductStats)
		stats.GET("/top-products", h.Analytics.GetTopProducts)
		stats.GET("/low-stock", h.Analytics.GetLowStock)
		stats.GET("/price-distribution", h.Analytics.GetPriceDistribution)
		stats.GET("/orders", h.Analytics.GetOrderSummary)
		stats.DELETE("/cache", middleware.RequireRoles(user.RoleAdmin), h.Analytics.ClearCache)
	}
}

// SetupAdminRoutes sets up staff order views and user management
func SetupAdminRoutes(rg *gin.RouterGroup, h *Handlers, authed gin.HandlerFunc) {
	admin := rg.Group("/admin", authed)
	{
		staff := admin.Group("/orders", middleware.RequireRoles(user.RoleSeller))
		staff.GET("", h.Order.GetAllOrders)
		staff.GET("/:id", h.Order.GetAnyOrder)

		users := admin.Group("/users", middleware.RequireRoles(user.RoleAdmin))
		users.GET("", h.UserAdmin.GetUsers)
		users.PUT("/:id/role", h.UserAdmin.UpdateRole)
		users.PUT("/:id/status", h.UserAdmin.UpdateStatus)
	}
}

// SetupUploadRoutes sets up image uploads and serving
func SetupUploadRoutes(rg *gin.RouterGroup, h *Handlers, authed, limit gin.HandlerFunc) {
	uploads := rg.Group("/uploads")
	{
		uploads.GET("/images/:filename", h.Upload.ServeImage)

		protected := uploads.Group("", authed, limit)
		protected.POST("/image", h.Upload.UploadImage)
		protected.POST("/images", h.Upload.UploadImages)
		protected.POST("/avatar", h.Upload.UploadAvatar)
	}
}
