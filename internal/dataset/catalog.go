package dataset

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults/catalog.yaml
var defaultCatalogYAML []byte

var placeholderRE = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ParamSpec describes how one parameter value is drawn: an inclusive integer
// range (Min..Max) or a choice from a named pool or an inline value list.
type ParamSpec struct {
	Name   string   `yaml:"name"`
	Min    int      `yaml:"min"`
	Max    int      `yaml:"max"`
	Pool   string   `yaml:"pool"`
	Values []string `yaml:"values"`

	// ranged is set when the YAML spelled out min or max.
	ranged bool
}

// UnmarshalYAML records whether a range was written so that an explicit
// "min: 0, max: 0" can be told apart from a parameter with no source.
func (p *ParamSpec) UnmarshalYAML(node *yaml.Node) error {
	type plain ParamSpec
	var v plain
	if err := node.Decode(&v); err != nil {
		return err
	}
	*p = ParamSpec(v)
	for i := 0; i+1 < len(node.Content); i += 2 {
		if k := node.Content[i].Value; k == "min" || k == "max" {
			p.ranged = true
		}
	}
	return nil
}

// hasSource reports whether the parameter can produce a value.
func (p ParamSpec) hasSource() bool {
	return p.IsChoice() || p.ranged || p.Min != 0 || p.Max != 0
}

// IsChoice reports whether the parameter is drawn from a set of strings.
func (p ParamSpec) IsChoice() bool { return p.Pool != "" || len(p.Values) > 0 }

// ActionSpec is one action with its parameter schema and query templates.
type ActionSpec struct {
	Name       string      `yaml:"name"`
	Parameters []ParamSpec `yaml:"parameters"`
	Templates  []string    `yaml:"templates"`
}

// Catalog is the closed action vocabulary used by the synthesizer.
type Catalog struct {
	Pools   map[string][]string `yaml:"pools"`
	Actions []ActionSpec        `yaml:"actions"`
}

// DefaultCatalog returns the built-in six-action mobile-money catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("dataset: embedded catalog is invalid: %v", err))
	}
	return c
}

// LoadCatalog reads and validates a YAML catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(b)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(b []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("dataset: parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ActionNames returns the action names in catalog order.
func (c *Catalog) ActionNames() []string {
	out := make([]string, 0, len(c.Actions))
	for _, a := range c.Actions {
		out = append(out, a.Name)
	}
	return out
}

// Action looks up an action by name.
func (c *Catalog) Action(name string) (ActionSpec, bool) {
	for _, a := range c.Actions {
		if a.Name == name {
			return a, true
		}
	}
	return ActionSpec{}, false
}

// slotFor names the string parameter that action declares for the CSV
// Recipient column. Unknown actions and actions without one get recipient.
func (c *Catalog) slotFor(action string) string {
	if c != nil {
		if a, ok := c.Action(action); ok {
			for _, p := range a.Parameters {
				if p.IsChoice() && slices.Contains(csvSlots, p.Name) {
					return p.Name
				}
			}
		}
	}
	return "recipient"
}

// Validate checks that the action -> template -> parameter table is complete:
// every placeholder used by a template is declared by its action and every
// declared parameter can produce a value. A catalog that passes can only
// render fully substituted queries.
func (c *Catalog) Validate() error {
	if len(c.Actions) == 0 {
		return errors.New("dataset: catalog has no actions")
	}
	var problems []string
	names := map[string]struct{}{}
	for _, a := range c.Actions {
		if strings.TrimSpace(a.Name) == "" {
			problems = append(problems, "action with empty name")
			continue
		}
		if _, dup := names[a.Name]; dup {
			problems = append(problems, fmt.Sprintf("duplicate action %q", a.Name))
		}
		names[a.Name] = struct{}{}
		if len(a.Templates) == 0 {
			problems = append(problems, fmt.Sprintf("%s: no templates", a.Name))
		}

		declared := map[string]struct{}{}
		for _, p := range a.Parameters {
			if p.Name == "" {
				problems = append(problems, fmt.Sprintf("%s: parameter with empty name", a.Name))
				continue
			}
			if _, dup := declared[p.Name]; dup {
				problems = append(problems, fmt.Sprintf("%s: duplicate parameter %q", a.Name, p.Name))
			}
			declared[p.Name] = struct{}{}
			switch {
			case p.IsChoice():
				if len(c.choices(p)) == 0 {
					problems = append(problems, fmt.Sprintf("%s.%s: empty or unknown pool %q", a.Name, p.Name, p.Pool))
				}
			case !p.hasSource():
				problems = append(problems, fmt.Sprintf("%s.%s: no pool, values or min/max range", a.Name, p.Name))
			case p.Max < p.Min:
				problems = append(problems, fmt.Sprintf("%s.%s: max %d < min %d", a.Name, p.Name, p.Max, p.Min))
			}
		}

		for _, tpl := range a.Templates {
			for _, m := range placeholderRE.FindAllStringSubmatch(tpl, -1) {
				if _, ok := declared[m[1]]; !ok {
					problems = append(problems, fmt.Sprintf("%s: template %q uses undeclared {%s}", a.Name, tpl, m[1]))
				}
			}
			stripped := placeholderRE.ReplaceAllString(tpl, "")
			if strings.ContainsAny(stripped, "{}") {
				problems = append(problems, fmt.Sprintf("%s: template %q has a malformed placeholder", a.Name, tpl))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("dataset: invalid catalog: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Catalog) choices(p ParamSpec) []string {
	if len(p.Values) > 0 {
		return p.Values
	}
	return c.Pools[p.Pool]
}

// Render substitutes params into tpl. It fails if a placeholder has no value.
func Render(tpl string, params Parameters) (string, error) {
	var missing []string
	out := placeholderRE.ReplaceAllStringFunc(tpl, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := params[name]
		if !ok {
			missing = append(missing, name)
			return m
		}
		return fmt.Sprint(v)
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("dataset: template %q missing values for %v", tpl, missing)
	}
	return out, nil
}
