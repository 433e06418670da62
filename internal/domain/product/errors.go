package product

import "errors"

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryExists   = errors.New("category with this name already exists")
	ErrCategoryInUse    = errors.New("category still has products")
	ErrReviewNotFound   = errors.New("review not found")
	ErrAlreadyReviewed  = errors.New("you have already reviewed this product")
	ErrStockConflict    = errors.New("stock changed concurrently")
)
