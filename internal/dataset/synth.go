package dataset

import (
	"errors"
	"math/rand"
)

// Synthesizer renders labelled queries from a validated catalog.
type Synthesizer struct {
	catalog *Catalog
}

// NewSynthesizer returns a synthesizer over c; a nil catalog selects the
// built-in one.
func NewSynthesizer(c *Catalog) (*Synthesizer, error) {
	if c == nil {
		c = DefaultCatalog()
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &Synthesizer{catalog: c}, nil
}

// Catalog returns the catalog the synthesizer draws from.
func (s *Synthesizer) Catalog() *Catalog { return s.catalog }

// Generate returns count examples. The output is a pure function of seed:
// for each example an action is chosen uniformly, its parameters are drawn
// in declaration order, then one of its templates is chosen uniformly and
// rendered.
func (s *Synthesizer) Generate(count int, seed int64) ([]TrainingExample, error) {
	if count < 0 {
		return nil, errors.New("dataset: count must not be negative")
	}
	rng := rand.New(rand.NewSource(seed))
	out := make([]TrainingExample, 0, count)
	for i := 0; i < count; i++ {
		action := s.catalog.Actions[rng.Intn(len(s.catalog.Actions))]

		var params Parameters
		if len(action.Parameters) > 0 {
			params = make(Parameters, len(action.Parameters))
		}
		for _, p := range action.Parameters {
			if p.IsChoice() {
				choices := s.catalog.choices(p)
				params[p.Name] = choices[rng.Intn(len(choices))]
				continue
			}
			params[p.Name] = p.Min + rng.Intn(p.Max-p.Min+1)
		}

		tpl := action.Templates[rng.Intn(len(action.Templates))]
		query, err := Render(tpl, params)
		if err != nil {
			return nil, err
		}
		out = append(out, TrainingExample{Query: query, Action: action.Name, Parameters: params})
	}
	return out, nil
}
