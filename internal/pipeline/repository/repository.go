package repository

import (
	"context"

	"rivalwatch/internal/pipeline/dto"
)

// AIRepository abstracts the language-model provider used for structured
// impact extraction and deep research synthesis.
type AIRepository interface {
	ExtractImpact(ctx context.Context, req *dto.ExtractionRequest) (*dto.ExtractionPayload, error)
	GenerateResearch(ctx context.Context, req *dto.ResearchRequest) (*dto.DeepResearchResult, error)
}
