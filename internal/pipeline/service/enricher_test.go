package service

import (
	"context"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rivalwatch/internal/entity"
	"rivalwatch/internal/pipeline/config"
	"rivalwatch/internal/pipeline/dto"
	"rivalwatch/pkg/logger"
)

func newTestEnricher(contextSearch *fakeContextSearch, items *fakeWatchItemRepo) *Enricher {
	cfg := &config.Config{}
	cfg.ContextSearch.TopK = 3
	return NewEnricher(cfg, logger.NewNop(), contextSearch, newTestResilienceClient(), items)
}

func TestExtractEntities_ClassifiesOrganizationsProductsAndPeople(t *testing.T) {
	entities := ExtractEntities(
		"Globex shakeup",
		"Globex founder Hank Scorpio resigned after the WidgetPro recall.",
		[]string{"WidgetPro"},
	)

	byName := make(map[string]string, len(entities))
	for _, e := range entities {
		byName[e.Name] = e.Kind
	}

	assert.Equal(t, dto.EntityKindOrganization, byName["Globex"])
	assert.Equal(t, dto.EntityKindPerson, byName["Hank Scorpio"])
	assert.Equal(t, dto.EntityKindProduct, byName["WidgetPro"])
}

func TestExtractEntities_OrganizationSuffix(t *testing.T) {
	entities := ExtractEntities("Initech Corp cuts prices", "", nil)

	require.NotEmpty(t, entities)
	assert.Equal(t, "Initech Corp", entities[0].Name)
	assert.Equal(t, dto.EntityKindOrganization, entities[0].Kind)
}

func TestExtractEntities_DropsStopwordOnlyPhrases(t *testing.T) {
	entities := ExtractEntities("", "The market reacted quietly to the news.", nil)

	for _, e := range entities {
		assert.NotEqual(t, "The", e.Name)
	}
}

func TestExtractEntities_DeduplicatesMentions(t *testing.T) {
	entities := ExtractEntities("Globex expands", "Globex opened an office. Globex also hired.", nil)

	count := 0
	for _, e := range entities {
		if e.Name == "Globex" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestEnricher_MatchesWatchItemsAndAttachesContext(t *testing.T) {
	contextSearch := &fakeContextSearch{snippets: []dto.ContextSnippet{
		{Title: "Background", URL: "https://reuters.com/bg", Snippet: "Earlier coverage."},
	}}
	items := &fakeWatchItemRepo{items: []entity.WatchItem{
		{ID: 1, Name: "Globex", Keywords: pq.StringArray{"globex"}, Active: true},
		{ID: 2, Name: "Initech", Keywords: pq.StringArray{"initech"}, Active: true},
		{ID: 3, Name: "Hooli", Keywords: pq.StringArray{"hank"}, Active: false},
	}}
	enricher := newTestEnricher(contextSearch, items)

	signal := &entity.Signal{
		ID:      11,
		Title:   "Globex shakeup",
		RawText: "Globex founder Hank Scorpio resigned.",
		URL:     "https://reuters.com/globex",
	}

	enriched, err := enricher.Enrich(context.Background(), signal)

	require.NoError(t, err)
	assert.Equal(t, []uint{1}, enriched.WatchItemIDs)
	assert.Equal(t, contextSearch.snippets, enriched.Context)
	assert.False(t, enriched.ContextOmitted)
	require.Len(t, contextSearch.queries, 1)
	assert.Contains(t, contextSearch.queries[0], "Globex")
}

func TestEnricher_ContextFailureDegradesInsteadOfBlocking(t *testing.T) {
	contextSearch := &fakeContextSearch{err: errors.New("search down")}
	items := &fakeWatchItemRepo{items: []entity.WatchItem{
		{ID: 1, Name: "Globex", Keywords: pq.StringArray{"globex"}, Active: true},
	}}
	enricher := newTestEnricher(contextSearch, items)

	enriched, err := enricher.Enrich(context.Background(), &entity.Signal{
		ID:    11,
		Title: "Globex shakeup",
	})

	require.NoError(t, err)
	assert.True(t, enriched.ContextOmitted)
	assert.Empty(t, enriched.Context)
	assert.Equal(t, []uint{1}, enriched.WatchItemIDs)
}

func TestEnricher_WatchItemLookupFailureSurfaces(t *testing.T) {
	items := &fakeWatchItemRepo{activeErr: errors.New("db down")}
	enricher := newTestEnricher(&fakeContextSearch{}, items)

	_, err := enricher.Enrich(context.Background(), &entity.Signal{Title: "Anything"})

	require.Error(t, err)
}

func TestEnricher_QueryFallsBackToTitleWithoutEntities(t *testing.T) {
	contextSearch := &fakeContextSearch{}
	items := &fakeWatchItemRepo{}
	enricher := newTestEnricher(contextSearch, items)

	_, err := enricher.Enrich(context.Background(), &entity.Signal{
		Title:   "quiet market update",
		RawText: "nothing capitalized here.",
	})

	require.NoError(t, err)
	require.Len(t, contextSearch.queries, 1)
	assert.Equal(t, "quiet market update", contextSearch.queries[0])
}
