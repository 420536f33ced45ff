// Package catalog serves product search and detail and the product reviews
// read from the remote collections.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/remote"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrReviewNotFound  = errors.New("review not found")
	ErrInvalidReview   = errors.New("invalid review")
)

// Remote is the product and review collections of the backend.
type Remote interface {
	ListProducts(ctx context.Context, query string) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListReviews(ctx context.Context, productID int64) ([]domain.Review, error)
	CreateReview(ctx context.Context, review domain.Review) (*domain.Review, error)
	ReplyReview(ctx context.Context, id int64, reply domain.ReviewReply) (*domain.Review, error)
	DeleteReview(ctx context.Context, id int64) error
}

type ProductDetail struct {
	Product       domain.Product  `json:"product"`
	Reviews       []domain.Review `json:"reviews"`
	ReviewCount   int             `json:"reviewCount"`
	AverageRating float64         `json:"averageRating"`
}

type ReviewInput struct {
	OrderID string
	Rating  int
	Title   string
	Content string
	Size    string
	Color   string
	Images  []string
}

type Service struct {
	remote Remote
	log    *zap.Logger
	now    func() time.Time
}

func NewService(r Remote, log *zap.Logger) *Service {
	return &Service{
		remote: r,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Search lists the products and filters them locally, so the match rules
// stay the same whatever the backend does with the query.
func (s *Service) Search(ctx context.Context, query string) ([]domain.Product, error) {
	products, err := s.remote.ListProducts(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return Search(products, query), nil
}

func (s *Service) Suggestions(ctx context.Context) ([]string, error) {
	products, err := s.remote.ListProducts(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return Suggestions(products), nil
}

// Product returns the product with its reviews. A failing review lookup
// leaves the review list empty.
func (s *Service) Product(ctx context.Context, id int64) (*ProductDetail, error) {
	product, err := s.remote.GetProduct(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrProductNotFound, "product", id)
	}

	reviews, err := s.remote.ListReviews(ctx, id)
	if err != nil {
		s.log.Warn("list reviews failed", zap.Int64("product_id", id), zap.Error(err))
		reviews = []domain.Review{}
	}

	return &ProductDetail{
		Product:       *product,
		Reviews:       reviews,
		ReviewCount:   len(reviews),
		AverageRating: AverageRating(reviews),
	}, nil
}

func (s *Service) Reviews(ctx context.Context, productID int64) ([]domain.Review, error) {
	if _, err := s.remote.GetProduct(ctx, productID); err != nil {
		return nil, notFound(err, ErrProductNotFound, "product", productID)
	}
	reviews, err := s.remote.ListReviews(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

func (s *Service) CreateReview(ctx context.Context, userID string, productID int64, in ReviewInput) (*domain.Review, error) {
	if in.Rating < domain.MinRating || in.Rating > domain.MaxRating {
		return nil, fmt.Errorf("%w: rating must be between %d and %d", ErrInvalidReview, domain.MinRating, domain.MaxRating)
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidReview)
	}
	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: user id %q", ErrInvalidReview, userID)
	}
	if _, err := s.remote.GetProduct(ctx, productID); err != nil {
		return nil, notFound(err, ErrProductNotFound, "product", productID)
	}

	created, err := s.remote.CreateReview(ctx, domain.Review{
		ProductID: productID,
		UserID:    uid,
		OrderID:   in.OrderID,
		Rating:    in.Rating,
		Title:     in.Title,
		Content:   in.Content,
		Size:      in.Size,
		Color:     in.Color,
		Images:    in.Images,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}
	s.log.Info("review created", zap.Int64("review_id", created.ID), zap.Int64("product_id", productID))
	return created, nil
}

// Reply stores the shop's answer to a review, replacing any earlier one.
func (s *Service) Reply(ctx context.Context, reviewID int64, reply string) (*domain.Review, error) {
	if strings.TrimSpace(reply) == "" {
		return nil, fmt.Errorf("%w: reply is required", ErrInvalidReview)
	}
	updated, err := s.remote.ReplyReview(ctx, reviewID, domain.ReviewReply{Reply: reply, ReplyDate: s.now()})
	if err != nil {
		return nil, notFound(err, ErrReviewNotFound, "review", reviewID)
	}
	s.log.Info("review answered", zap.Int64("review_id", reviewID))
	return updated, nil
}

func (s *Service) DeleteReview(ctx context.Context, reviewID int64) error {
	if err := s.remote.DeleteReview(ctx, reviewID); err != nil {
		return notFound(err, ErrReviewNotFound, "review", reviewID)
	}
	s.log.Info("review deleted", zap.Int64("review_id", reviewID))
	return nil
}

// AverageRating is the mean rating rounded to one decimal, or 0 without
// reviews.
func AverageRating(reviews []domain.Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, r := range reviews {
		sum = sum.Add(decimal.NewFromInt(int64(r.Rating)))
	}
	return sum.Div(decimal.NewFromInt(int64(len(reviews)))).Round(1).InexactFloat64()
}

func notFound(err, sentinel error, kind string, id int64) error {
	if errors.Is(err, remote.ErrNotFound) {
		return fmt.Errorf("%s %d: %w", kind, id, sentinel)
	}
	return fmt.Errorf("%s %d: %w", kind, id, err)
}
