package service

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"rivalwatch/internal/entity"
	"rivalwatch/internal/pipeline/config"
	"rivalwatch/internal/pipeline/dto"
	"rivalwatch/internal/pipeline/repository"
	"rivalwatch/pkg/common"
	"rivalwatch/pkg/logger"
	"rivalwatch/pkg/resilience"
)

// How much of the raw text the entity scan covers, and how many entities and
// query terms survive.
const (
	entityScanLimit   = 1200
	maxEntities       = 8
	maxQueryEntities  = 3
	defaultContextTop = 5
)

// Words that start sentences too often to be entities on their own.
var entityStopwords = map[string]struct{}{
	"The": {}, "A": {}, "An": {}, "In": {}, "On": {}, "At": {}, "By": {},
	"For": {}, "Of": {}, "To": {}, "And": {}, "But": {}, "Or": {}, "As": {},
	"Is": {}, "Are": {}, "Was": {}, "Were": {}, "It": {}, "Its": {},
	"This": {}, "That": {}, "These": {}, "Those": {}, "After": {},
	"Before": {}, "With": {}, "From": {}, "While": {}, "When": {},
	"Today": {}, "Yesterday": {}, "Monday": {}, "Tuesday": {},
	"Wednesday": {}, "Thursday": {}, "Friday": {}, "Saturday": {},
	"Sunday": {},
}

var organizationSuffixes = []string{
	"Inc", "Inc.", "Corp", "Corp.", "Ltd", "Ltd.", "LLC", "GmbH", "AG",
	"Labs", "Technologies", "Systems", "Software", "Group", "Holdings",
}

var personRoleWords = map[string]struct{}{
	"ceo": {}, "cto": {}, "cfo": {}, "coo": {}, "founder": {},
	"co-founder": {}, "cofounder": {}, "chief": {}, "president": {},
	"director": {}, "vp": {}, "executive": {},
}

// Enricher attaches named entities, background context and watch-item
// matches to a signal. Context failures degrade the result instead of
// blocking the pipeline.
type Enricher struct {
	cfg           *config.Config
	log           *logger.Logger
	contextSearch repository.ContextSearchRepository
	res           *resilience.Client
	watchItems    repository.WatchItemRepository
}

// NewEnricher creates an Enricher.
func NewEnricher(
	cfg *config.Config,
	log *logger.Logger,
	contextSearch repository.ContextSearchRepository,
	res *resilience.Client,
	watchItems repository.WatchItemRepository,
) *Enricher {
	return &Enricher{
		cfg:           cfg,
		log:           log,
		contextSearch: contextSearch,
		res:           res,
		watchItems:    watchItems,
	}
}

// Enrich builds the EnrichedSignal for one ingested signal. The signal is
// enriched exactly once regardless of how many watch items it matches.
func (en *Enricher) Enrich(ctx context.Context, signal *entity.Signal) (*dto.EnrichedSignal, error) {
	items, err := en.watchItems.FindActive(ctx)
	if err != nil {
		return nil, err
	}

	var knownProducts []string
	for _, item := range items {
		knownProducts = append(knownProducts, item.Products...)
	}

	entities := ExtractEntities(signal.Title, signal.RawText, knownProducts)

	enriched := &dto.EnrichedSignal{
		Signal:       *signal,
		Entities:     entities,
		WatchItemIDs: matchWatchItems(items, entities),
	}

	topK := en.cfg.ContextSearch.TopK
	if topK <= 0 {
		topK = defaultContextTop
	}
	query := contextQueryFor(signal, entities)

	snippets, err := resilience.Do(ctx, en.res, resilience.Request[[]dto.ContextSnippet]{
		Service:     common.ServiceContextSearch,
		Fingerprint: resilience.Fingerprint(common.ServiceContextSearch, query, strconv.Itoa(topK)),
		Idempotent:  true,
		Call: func(cctx context.Context) ([]dto.ContextSnippet, error) {
			return en.contextSearch.TopK(cctx, query, topK)
		},
	})
	if err != nil {
		// Degrade: the signal continues with entities only.
		en.log.Warn("Context search failed, enriching without context",
			logger.ErrorField(err),
			logger.StringField("signal_url", signal.URL),
		)
		enriched.ContextOmitted = true
		return enriched, nil
	}

	enriched.Context = snippets
	return enriched, nil
}

// ExtractEntities scans title and text for organization, product and person
// mentions using capitalization heuristics. knownProducts take precedence
// over the generic classification.
func ExtractEntities(title, text string, knownProducts []string) []dto.NamedEntity {
	scan := title + ". " + truncateForScan(text)
	words := strings.Fields(scan)

	var (
		entities []dto.NamedEntity
		seen     = make(map[string]struct{})
		current  []string
	)

	flush := func(end int) {
		if len(current) == 0 {
			return
		}
		phrase := strings.Join(current, " ")
		current = nil

		if len(phrase) < 2 || allStopwords(phrase) {
			return
		}
		key := strings.ToLower(phrase)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		entities = append(entities, dto.NamedEntity{
			Name: phrase,
			Kind: classifyEntity(phrase, words, end, knownProducts),
		})
	}

	for i, word := range words {
		trimmed := strings.Trim(word, ".,;:!?\"'()[]")
		if isCapitalizedWord(trimmed) {
			current = append(current, trimmed)
			// Punctuation after the word ends the phrase.
			if strings.IndexAny(word, ".,;:!?") >= 0 {
				flush(i + 1)
			}
			continue
		}
		flush(i)
		if len(entities) >= maxEntities {
			break
		}
	}
	flush(len(words))

	if len(entities) > maxEntities {
		entities = entities[:maxEntities]
	}
	return entities
}

func classifyEntity(phrase string, words []string, end int, knownProducts []string) string {
	lowered := strings.ToLower(phrase)
	for _, product := range knownProducts {
		if product == "" {
			continue
		}
		if lowered == strings.ToLower(product) || strings.Contains(lowered, strings.ToLower(product)) {
			return dto.EntityKindProduct
		}
	}

	for _, suffix := range organizationSuffixes {
		if strings.HasSuffix(phrase, " "+suffix) || phrase == suffix {
			return dto.EntityKindOrganization
		}
	}

	// A role word just before the phrase marks a person mention. end is the
	// word index one past the phrase.
	start := end - strings.Count(phrase, " ") - 1
	lookback := start - 2
	if lookback < 0 {
		lookback = 0
	}
	for i := lookback; i < start && i < len(words); i++ {
		role := strings.ToLower(strings.Trim(words[i], ".,;:!?\"'()"))
		if _, ok := personRoleWords[role]; ok {
			return dto.EntityKindPerson
		}
	}

	return dto.EntityKindOrganization
}

func isCapitalizedWord(word string) bool {
	if len(word) < 2 {
		return false
	}
	runes := []rune(word)
	return unicode.IsUpper(runes[0]) && unicode.IsLetter(runes[0])
}

func allStopwords(phrase string) bool {
	for _, word := range strings.Fields(phrase) {
		if _, ok := entityStopwords[word]; !ok {
			return false
		}
	}
	return true
}

func truncateForScan(text string) string {
	if len(text) <= entityScanLimit {
		return text
	}
	return text[:entityScanLimit]
}

// matchWatchItems matches entity names against every active watch item's
// keywords, case-insensitively, in either containment direction. A signal
// may match zero, one or many watch items.
func matchWatchItems(items []entity.WatchItem, entities []dto.NamedEntity) []uint {
	var matched []uint
	for _, item := range items {
		if watchItemMatches(&item, entities) {
			matched = append(matched, item.ID)
		}
	}
	return matched
}

func watchItemMatches(item *entity.WatchItem, entities []dto.NamedEntity) bool {
	for _, keyword := range item.Keywords {
		k := strings.ToLower(strings.TrimSpace(keyword))
		if k == "" {
			continue
		}
		for _, e := range entities {
			n := strings.ToLower(e.Name)
			if n == k || strings.Contains(n, k) || strings.Contains(k, n) {
				return true
			}
		}
	}
	return false
}

func contextQueryFor(signal *entity.Signal, entities []dto.NamedEntity) string {
	names := make([]string, 0, maxQueryEntities)
	for _, e := range entities {
		names = append(names, e.Name)
		if len(names) == maxQueryEntities {
			break
		}
	}
	if len(names) == 0 {
		return signal.Title
	}
	return strings.Join(names, " ")
}
