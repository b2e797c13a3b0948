// Package coach holds the static persona catalog. Entries are embedded
// constants; the catalog is read-only and safe for concurrent use.
package coach

import (
	"github.com/coachloop/coachloop/server/internal/model"
)

// DefaultSystemPrompt is used when a session references a coach id that no
// longer resolves in the catalog.
const DefaultSystemPrompt = "You are an assistant."

var seedCoaches = []model.Coach{
	{
		ID:           "focus",
		Name:         "Focus Coach",
		Description:  "Break tasks into next actions and timeboxes",
		IsPremium:    false,
		SystemPrompt: "You are the Focus Coach: break tasks into next actions, timebox, reduce overwhelm. Direct tone.",
	},
	{
		ID:           "creator",
		Name:         "Creator Coach",
		Description:  "Consistency and content pipeline ideas",
		IsPremium:    true,
		SystemPrompt: "You are the Creator Coach: consistency, content pipeline ideas, repurposing. Practical.",
	},
	{
		ID:           "builder",
		Name:         "Builder Coach",
		Description:  "Shipping mindset and MVP framing",
		IsPremium:    true,
		SystemPrompt: "You are the Builder Coach: shipping mindset, scope cuts, MVP framing, technical planning.",
	},
	{
		ID:           "reflection",
		Name:         "Reflection Coach",
		Description:  "Weekly review and lessons",
		IsPremium:    true,
		SystemPrompt: "You are the Reflection Coach: weekly review, lessons, next week plan, gentle but structured.",
	},
}

// Catalog resolves coach personas by id.
type Catalog struct {
	order []model.Coach
	byID  map[string]model.Coach
}

// NewCatalog returns the built-in catalog.
func NewCatalog() *Catalog {
	c := &Catalog{
		order: seedCoaches,
		byID:  make(map[string]model.Coach, len(seedCoaches)),
	}
	for _, entry := range seedCoaches {
		c.byID[entry.ID] = entry
	}
	return c
}

// List returns all coaches in fixed, deterministic order.
func (c *Catalog) List() []model.Coach {
	out := make([]model.Coach, len(c.order))
	copy(out, c.order)
	return out
}

// Get returns the coach with the given id, or model.ErrNotFound.
func (c *Catalog) Get(id string) (model.Coach, error) {
	entry, ok := c.byID[id]
	if !ok {
		return model.Coach{}, model.ErrNotFound
	}
	return entry, nil
}
