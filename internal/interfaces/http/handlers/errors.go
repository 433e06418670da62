// internal/interfaces/http/handlers/errors.go
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-api/internal/domain/cart"
	"github.com/your-org/marketplace-api/internal/domain/order"
	"github.com/your-org/marketplace-api/internal/domain/product"
	"github.com/your-org/marketplace-api/internal/domain/upload"
	"github.com/your-org/marketplace-api/internal/domain/user"
	"github.com/your-org/marketplace-api/internal/pkg/apperrors"
	"github.com/your-org/marketplace-api/internal/pkg/auth"
	"github.com/your-org/marketplace-api/internal/interfaces/http/middleware"
	"gorm.io/gorm"
)

// FieldError is one entry of a validation error response
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func respond(c *gin.Context, status int, message string, data interface{}) {
	body := gin.H{"message": message}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

// bindError answers a request whose body or query could not be bound
func bindError(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		details := make([]FieldError, 0, len(ve))
		for _, fe := range ve {
			details = append(details, FieldError{Field: fieldName(fe), Message: tagMessage(fe)})
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": details})
		return
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
		return
	}

	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
}

// handleError maps domain errors onto HTTP responses. Anything unrecognised
// is logged and answered with a generic 500.
func handleError(c *gin.Context, log *logrus.Logger, err error) {
	var (
		validationErr   *apperrors.ValidationError
		noProduct       *order.ProductNotFoundError
		orderShort      *order.InsufficientStockError
		cartShort       *cart.InsufficientStockError
		badTransition   *order.InvalidTransitionError
		policyErr       *auth.PasswordPolicyError
		tooLarge        *upload.FileTooLargeError
		unsupportedFile *upload.UnsupportedTypeError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   validationErr.Error(),
			"details": []FieldError{{Field: validationErr.Field, Message: validationErr.Message}},
		})

	case errors.As(err, &orderShort):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": orderShort.Error(),
			"details": gin.H{
				"product_id": orderShort.ProductID,
				"requested":  orderShort.Requested,
				"available":  orderShort.Available,
			},
		})

	case errors.As(err, &noProduct),
		errors.As(err, &cartShort),
		errors.As(err, &badTransition),
		errors.As(err, &policyErr),
		errors.As(err, &unsupportedFile),
		errors.Is(err, order.ErrCartEmpty),
		errors.Is(err, order.ErrOrderNotCancellable),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, cart.ErrProductInactive),
		errors.Is(err, user.ErrPasswordConfirmation),
		errors.Is(err, user.ErrIncorrectPassword),
		errors.Is(err, user.ErrInvalidActivationToken),
		errors.Is(err, user.ErrInvalidResetToken),
		errors.Is(err, user.ErrInvalidRole),
		errors.Is(err, user.ErrCannotModifySelf),
		errors.Is(err, upload.ErrNoFile),
		errors.Is(err, upload.ErrTooManyFiles),
		errors.Is(err, upload.ErrInvalidFolder),
		errors.Is(err, upload.ErrInvalidFilename):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.As(err, &tooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": tooLarge.Error()})

	case errors.Is(err, user.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})

	case errors.Is(err, auth.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})

	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})

	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, product.ErrProductNotFound),
		errors.Is(err, product.ErrCategoryNotFound),
		errors.Is(err, product.ErrReviewNotFound),
		errors.Is(err, cart.ErrCartNotFound),
		errors.Is(err, cart.ErrCartItemNotFound),
		errors.Is(err, user.ErrUserNotFound),
		errors.Is(err, upload.ErrFileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, product.ErrAlreadyReviewed),
		errors.Is(err, product.ErrCategoryExists),
		errors.Is(err, product.ErrCategoryInUse),
		errors.Is(err, user.ErrEmailTaken),
		errors.Is(err, order.ErrStatusConflict),
		errors.Is(err, product.ErrStockConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.Is(err, gorm.ErrDuplicatedKey):
		c.JSON(http.StatusConflict, gin.H{"error": "Resource already exists"})

	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Request timeout"})

	default:
		entry := log.WithError(err).WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.FullPath(),
		})
		if id, ok := middleware.GetUserIDFromContext(c); ok {
			entry = entry.WithField("user_id", id)
		}
		entry.Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// paramID parses a positive integer path parameter, answering 400 otherwise
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid %s", strings.ReplaceAll(name, "_", " "))})
		return 0, false
	}
	return uint(id), true
}

// currentUser returns the authenticated user id, answering 401 when absent
func currentUser(c *gin.Context) (uint, bool) {
	id, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return 0, false
	}
	return id, true
}

func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return toSnake(ns)
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func toSnake(s string) string {
	isUpper := func(b byte) bool { return b >= 'A' && b <= 'Z' }
	isLower := func(b byte) bool { return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9') }

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if isUpper(ch) {
			if i > 0 && s[i-1] != '.' {
				// split "ZipCode" and the "ID" in "ProductID", keep acronyms whole
				if isLower(s[i-1]) || (isUpper(s[i-1]) && i+1 < len(s) && isLower(s[i+1])) {
					b.WriteByte('_')
				}
			}
			ch += 'a' - 'A'
		}
		b.WriteByte(ch)
	}
	return b.String()
}
