package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rivalwatch/internal/entity"
	"rivalwatch/internal/gateway/dto"
	"rivalwatch/internal/gateway/repository"
	"rivalwatch/pkg/logger"

	"gorm.io/gorm"
)

const defaultReviewListLimit = 100

// ReviewService lists and resolves manual-review queue items.
type ReviewService interface {
	List(ctx context.Context, status, kind string, limit int) ([]*dto.ReviewItemResponse, error)
	// Resolve closes an open review item. Resolving twice is a no-op that
	// returns the already resolved item.
	Resolve(ctx context.Context, id uint) (*dto.ReviewItemResponse, error)
}

// NewReviewService creates a new review service.
func NewReviewService(reviews repository.ReviewItemRepository, logger *logger.Logger) ReviewService {
	return &reviewService{
		reviews: reviews,
		logger:  logger,
		now:     time.Now,
	}
}

type reviewService struct {
	reviews repository.ReviewItemRepository
	logger  *logger.Logger
	now     func() time.Time
}

func (s *reviewService) List(ctx context.Context, status, kind string, limit int) ([]*dto.ReviewItemResponse, error) {
	switch status {
	case "", entity.ReviewStatusOpen, entity.ReviewStatusResolved:
	default:
		return nil, fmt.Errorf("%w: unknown review status %q", ErrInvalidInput, status)
	}
	switch kind {
	case "", entity.ReviewKindExtractionFailure, entity.ReviewKindVerificationReview:
	default:
		return nil, fmt.Errorf("%w: unknown review kind %q", ErrInvalidInput, kind)
	}
	if limit <= 0 {
		limit = defaultReviewListLimit
	}

	items, err := s.reviews.FindAll(ctx, repository.ReviewItemFilter{
		Status: status,
		Kind:   kind,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}

	var responses []*dto.ReviewItemResponse
	for i := range items {
		responses = append(responses, mapToReviewItemResponse(&items[i]))
	}
	return responses, nil
}

func (s *reviewService) Resolve(ctx context.Context, id uint) (*dto.ReviewItemResponse, error) {
	err := s.reviews.Resolve(ctx, id, s.now())
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Zero rows updated means either the item does not exist or it was
	// already resolved; the follow-up read settles which.
	item, errFind := s.reviews.FindByID(ctx, id)
	if errFind != nil {
		return nil, errFind
	}

	if err == nil {
		s.logger.Info("Review item resolved",
			logger.Field("review_item_id", id),
			logger.Field("kind", item.Kind),
		)
	}
	return mapToReviewItemResponse(item), nil
}

func mapToReviewItemResponse(item *entity.ReviewItem) *dto.ReviewItemResponse {
	return &dto.ReviewItemResponse{
		ID:                 item.ID,
		Kind:               item.Kind,
		SignalID:           item.SignalID,
		WatchItemID:        item.WatchItemID,
		ExtractionResultID: item.ExtractionResultID,
		Stage:              item.Stage,
		Reason:             item.Reason,
		Context:            json.RawMessage(item.Context),
		Status:             item.Status,
		ResolvedAt:         item.ResolvedAt,
		CreatedAt:          item.CreatedAt,
	}
}
