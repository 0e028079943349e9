package dto

import (
	"rivalwatch/internal/entity"
)

// Named-entity kinds recognized by the enricher.
const (
	EntityKindOrganization = "organization"
	EntityKindProduct      = "product"
	EntityKindPerson       = "person"
)

// NamedEntity is one organization/product/person mention found in signal
// text.
type NamedEntity struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// EnrichedSignal carries one signal through the pipeline together with its
// extracted entities, attached context and the watch items it matched. Built
// exactly once per signal and read-only afterward; it is never persisted.
type EnrichedSignal struct {
	Signal         entity.Signal    `json:"signal"`
	Entities       []NamedEntity    `json:"entities"`
	Context        []ContextSnippet `json:"context"`
	WatchItemIDs   []uint           `json:"watch_item_ids"`
	ContextOmitted bool             `json:"context_omitted"`
}
