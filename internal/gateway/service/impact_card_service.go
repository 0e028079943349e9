package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rivalwatch/internal/entity"
	"rivalwatch/internal/gateway/dto"
	"rivalwatch/internal/gateway/repository"
	"rivalwatch/pkg/logger"
)

const (
	defaultCardListLimit = 50
	maxCardListLimit     = 200
)

// ImpactCardService defines the read and acknowledge operations on impact
// cards.
type ImpactCardService interface {
	GetByID(ctx context.Context, id uint) (*dto.ImpactCardResponse, error)
	List(ctx context.Context, query *dto.ListImpactCardsQuery) ([]*dto.ImpactCardResponse, error)
	Acknowledge(ctx context.Context, id uint) (*dto.ImpactCardResponse, error)
}

// NewImpactCardService creates a new impact card service.
func NewImpactCardService(cards repository.ImpactCardRepository, logger *logger.Logger) ImpactCardService {
	return &impactCardService{
		cards:  cards,
		logger: logger,
		now:    time.Now,
	}
}

type impactCardService struct {
	cards  repository.ImpactCardRepository
	logger *logger.Logger
	now    func() time.Time
}

func (s *impactCardService) GetByID(ctx context.Context, id uint) (*dto.ImpactCardResponse, error) {
	card, err := s.cards.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return mapToImpactCardResponse(card), nil
}

func (s *impactCardService) List(ctx context.Context, query *dto.ListImpactCardsQuery) ([]*dto.ImpactCardResponse, error) {
	if query.RiskLevel != "" && !entity.ValidRiskLevel(query.RiskLevel) {
		return nil, fmt.Errorf("%w: unknown risk level %q", ErrInvalidInput, query.RiskLevel)
	}

	limit := query.Limit
	if limit <= 0 {
		limit = defaultCardListLimit
	}
	if limit > maxCardListLimit {
		limit = maxCardListLimit
	}

	cards, err := s.cards.FindAll(ctx, repository.ImpactCardFilter{
		WatchItemID: query.WatchItemID,
		RiskLevel:   query.RiskLevel,
		Limit:       limit,
	})
	if err != nil {
		return nil, err
	}

	var responses []*dto.ImpactCardResponse
	for i := range cards {
		responses = append(responses, mapToImpactCardResponse(&cards[i]))
	}
	return responses, nil
}

// Acknowledge stamps the card and returns the refreshed view. Repeated
// acknowledgements simply move the timestamp.
func (s *impactCardService) Acknowledge(ctx context.Context, id uint) (*dto.ImpactCardResponse, error) {
	if err := s.cards.Acknowledge(ctx, id, s.now()); err != nil {
		return nil, err
	}

	card, err := s.cards.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Impact card acknowledged", logger.Field("impact_card_id", id))
	return mapToImpactCardResponse(card), nil
}

func mapToImpactCardResponse(card *entity.ImpactCard) *dto.ImpactCardResponse {
	return &dto.ImpactCardResponse{
		ID:              card.ID,
		WatchItemID:     card.WatchItemID,
		EventCategory:   card.ExtractionResult.EventCategory,
		Summary:         card.Summary,
		RiskScore:       card.RiskScore,
		RiskLevel:       card.RiskLevel,
		RiskBreakdown:   json.RawMessage(card.RiskBreakdown),
		ConfidenceScore: card.ConfidenceScore,
		ConfidenceParts: json.RawMessage(card.ConfidenceParts),
		Actions:         json.RawMessage(card.Actions),
		Sources:         json.RawMessage(card.Sources),
		Delayed:         card.Delayed,
		ExpiresAt:       card.ExpiresAt,
		AcknowledgedAt:  card.AcknowledgedAt,
		CreatedAt:       card.CreatedAt,
	}
}
