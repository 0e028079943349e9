package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"rivalwatch/internal/entity"
	"rivalwatch/internal/gateway/dto"
	"rivalwatch/internal/gateway/repository"
	"rivalwatch/pkg/logger"

	"github.com/robfig/cron/v3"
	"gorm.io/datatypes"
)

// WatchItemService defines the interface for managing watch items.
type WatchItemService interface {
	Create(ctx context.Context, req *dto.CreateWatchItemRequest) (*dto.WatchItemResponse, error)
	GetByID(ctx context.Context, id uint) (*dto.WatchItemResponse, error)
	GetAll(ctx context.Context) ([]*dto.WatchItemResponse, error)
	Update(ctx context.Context, id uint, req *dto.UpdateWatchItemRequest) (*dto.WatchItemResponse, error)
	Delete(ctx context.Context, id uint) error
}

// NewWatchItemService creates a new watch item service.
func NewWatchItemService(items repository.WatchItemRepository, logger *logger.Logger) WatchItemService {
	return &watchItemService{
		items:      items,
		logger:     logger,
		cronParser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

type watchItemService struct {
	items      repository.WatchItemRepository
	logger     *logger.Logger
	cronParser cron.Parser
}

func (s *watchItemService) Create(ctx context.Context, req *dto.CreateWatchItemRequest) (*dto.WatchItemResponse, error) {
	fields, err := s.validate(req.Name, req.Keywords, req.Schedule, req.RiskThresholds)
	if err != nil {
		return nil, err
	}

	item := &entity.WatchItem{
		Name:           fields.name,
		Keywords:       fields.keywords,
		GeographyCodes: trimAll(req.GeographyCodes),
		Products:       trimAll(req.Products),
		RiskThresholds: fields.thresholds,
		Schedule:       fields.schedule,
		Active:         true,
	}
	if req.Active != nil {
		item.Active = *req.Active
	}

	if err := s.items.Create(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Info("Watch item created",
		logger.Field("watch_item_id", item.ID),
		logger.Field("name", item.Name),
	)
	return mapToWatchItemResponse(item), nil
}

func (s *watchItemService) GetByID(ctx context.Context, id uint) (*dto.WatchItemResponse, error) {
	item, err := s.items.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return mapToWatchItemResponse(item), nil
}

func (s *watchItemService) GetAll(ctx context.Context) ([]*dto.WatchItemResponse, error) {
	items, err := s.items.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	var responses []*dto.WatchItemResponse
	for i := range items {
		responses = append(responses, mapToWatchItemResponse(&items[i]))
	}
	return responses, nil
}

// Update replaces the editable fields wholesale. A schedule change clears
// NextRunAt so the scheduler recomputes the cadence from the new expression.
func (s *watchItemService) Update(ctx context.Context, id uint, req *dto.UpdateWatchItemRequest) (*dto.WatchItemResponse, error) {
	item, err := s.items.FindByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to find watch item for update", logger.ErrorField(err), logger.Field("watch_item_id", id))
		return nil, err
	}

	fields, err := s.validate(req.Name, req.Keywords, req.Schedule, req.RiskThresholds)
	if err != nil {
		return nil, err
	}

	if fields.schedule != item.Schedule {
		item.NextRunAt = nil
	}
	item.Name = fields.name
	item.Keywords = fields.keywords
	item.GeographyCodes = trimAll(req.GeographyCodes)
	item.Products = trimAll(req.Products)
	item.RiskThresholds = fields.thresholds
	item.Schedule = fields.schedule
	if req.Active != nil {
		item.Active = *req.Active
	}

	if err := s.items.Update(ctx, item); err != nil {
		s.logger.Error("Failed to update watch item", logger.ErrorField(err), logger.Field("watch_item_id", id))
		return nil, err
	}

	s.logger.Info("Watch item updated", logger.Field("watch_item_id", id))
	return mapToWatchItemResponse(item), nil
}

func (s *watchItemService) Delete(ctx context.Context, id uint) error {
	if err := s.items.Delete(ctx, id); err != nil {
		s.logger.Error("Failed to delete watch item", logger.ErrorField(err), logger.Field("watch_item_id", id))
		return err
	}
	s.logger.Info("Watch item deleted", logger.Field("watch_item_id", id))
	return nil
}

type validatedFields struct {
	name       string
	keywords   []string
	schedule   string
	thresholds datatypes.JSON
}

func (s *watchItemService) validate(name string, keywords []string, schedule string, thresholds map[string]float64) (*validatedFields, error) {
	fields := &validatedFields{
		name:     strings.TrimSpace(name),
		keywords: trimAll(keywords),
		schedule: strings.TrimSpace(schedule),
	}
	if fields.name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if len(fields.keywords) == 0 {
		return nil, fmt.Errorf("%w: at least one non-empty keyword is required", ErrInvalidInput)
	}
	if fields.schedule != "" {
		if _, err := s.cronParser.Parse(fields.schedule); err != nil {
			return nil, fmt.Errorf("%w: invalid schedule %q: %v", ErrInvalidInput, fields.schedule, err)
		}
	}
	for axis, value := range thresholds {
		if !entity.ValidAxis(axis) {
			return nil, fmt.Errorf("%w: unknown risk axis %q", ErrInvalidInput, axis)
		}
		if value < 0 || value > 100 {
			return nil, fmt.Errorf("%w: risk threshold for %q must be within [0,100]", ErrInvalidInput, axis)
		}
	}
	if len(thresholds) > 0 {
		data, err := json.Marshal(thresholds)
		if err != nil {
			return nil, err
		}
		fields.thresholds = datatypes.JSON(data)
	}
	return fields, nil
}

func trimAll(values []string) []string {
	var out []string
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func mapToWatchItemResponse(item *entity.WatchItem) *dto.WatchItemResponse {
	var thresholds map[string]float64
	if len(item.RiskThresholds) > 0 {
		_ = json.Unmarshal(item.RiskThresholds, &thresholds)
	}

	return &dto.WatchItemResponse{
		ID:             item.ID,
		Name:           item.Name,
		Keywords:       item.Keywords,
		GeographyCodes: item.GeographyCodes,
		Products:       item.Products,
		RiskThresholds: thresholds,
		Schedule:       item.Schedule,
		Active:         item.Active,
		LastRunAt:      item.LastRunAt,
		NextRunAt:      item.NextRunAt,
		CreatedAt:      item.CreatedAt,
		UpdatedAt:      item.UpdatedAt,
	}
}
