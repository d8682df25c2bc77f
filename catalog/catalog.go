package catalog

import (
	"embed"
	"fmt"
	"strings"

	"github.com/mbolis/quick-questionnaire/model"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed variants
var variantFiles embed.FS

// Config is the compiled definition of one questionnaire variant: ordered
// sections, a flat question index and a table of visibility predicates.
type Config struct {
	Title    string    `yaml:"title" json:"title"`
	Subtitle string    `yaml:"subtitle" json:"subtitle,omitempty"`
	Purpose  *Block    `yaml:"purpose" json:"purpose,omitempty"`
	Goal     *Block    `yaml:"goal" json:"goal,omitempty"`
	Sections []Section `yaml:"sections" json:"sections"`
	ThankYou string    `yaml:"thank_you" json:"thank_you,omitempty"`

	variant   model.Variant
	questions []Question
	sectionOf map[string]int
	index     map[string]int
	rules     map[string]predicate
}

type predicate func(model.Values) bool

// variantRules hide a question for whole variants.
var variantRules = map[string]func(model.Variant) bool{
	"existing_brand_materials": func(v model.Variant) bool {
		return strings.Contains(string(v), "rebrand")
	},
}

type Catalog struct {
	configs map[model.Variant]*Config
}

// Load decodes and compiles the embedded definition of every variant.
func Load() (*Catalog, error) {
	c := &Catalog{configs: make(map[model.Variant]*Config, len(model.Variants))}
	for _, v := range model.Variants {
		data, err := variantFiles.ReadFile("variants/" + string(v) + ".yaml")
		if err != nil {
			return nil, errors.Wrapf(err, "catalog %s", v)
		}
		cfg, err := Parse(v, data)
		if err != nil {
			return nil, err
		}
		c.configs[v] = cfg
	}
	return c, nil
}

// Parse decodes a YAML variant definition and compiles it.
func Parse(v model.Variant, data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "catalog %s", v)
	}
	if err := cfg.compile(v); err != nil {
		return nil, errors.Wrapf(err, "catalog %s", v)
	}
	return cfg, nil
}

func (c *Catalog) Lookup(v model.Variant) (*Config, error) {
	cfg, ok := c.configs[v]
	if !ok {
		return nil, model.UnknownVariantError(string(v))
	}
	return cfg, nil
}

func (cfg *Config) compile(v model.Variant) error {
	cfg.variant = v
	cfg.questions = nil
	cfg.index = map[string]int{}
	cfg.sectionOf = map[string]int{}
	cfg.rules = map[string]predicate{}

	for si, s := range cfg.Sections {
		for _, q := range s.Questions {
			if err := checkQuestion(q); err != nil {
				return err
			}
			if _, dup := cfg.index[q.Key]; dup {
				return fmt.Errorf("duplicate question key %q", q.Key)
			}
			cfg.index[q.Key] = len(cfg.questions)
			cfg.sectionOf[q.Key] = si
			cfg.questions = append(cfg.questions, q)
		}
	}

	for _, q := range cfg.questions {
		if allowed, ok := variantRules[q.Key]; ok && !allowed(v) {
			cfg.rules[q.Key] = func(model.Values) bool { return false }
			continue
		}
		if q.VisibleWhen == nil {
			continue
		}
		cond := *q.VisibleWhen
		if cond.DependsOn == q.Key {
			return fmt.Errorf("question %q depends on itself", q.Key)
		}
		if _, ok := cfg.index[cond.DependsOn]; !ok {
			return fmt.Errorf("question %q depends on unknown question %q", q.Key, cond.DependsOn)
		}
		if len(cond.ShowIf) == 0 {
			return fmt.Errorf("question %q has an empty show_if", q.Key)
		}
		cfg.rules[q.Key] = matches(cond)
	}
	return cfg.checkCycles()
}

func matches(cond Condition) predicate {
	show := make(map[string]bool, len(cond.ShowIf))
	for _, s := range cond.ShowIf {
		show[s] = true
	}
	return func(values model.Values) bool {
		v := values[cond.DependsOn]
		if v.IsList() {
			for _, item := range v.Items() {
				if show[item] {
					return true
				}
			}
			return false
		}
		return show[v.String()]
	}
}

func (cfg *Config) checkCycles() error {
	for _, q := range cfg.questions {
		seen := map[string]bool{q.Key: true}
		for cur := q; cur.VisibleWhen != nil; {
			next := cfg.questions[cfg.index[cur.VisibleWhen.DependsOn]]
			if seen[next.Key] {
				return fmt.Errorf("visibility cycle through %q", q.Key)
			}
			seen[next.Key] = true
			cur = next
		}
	}
	return nil
}

func checkQuestion(q Question) error {
	if q.Key == "" {
		return fmt.Errorf("question without key (label %q)", q.Label)
	}
	if !q.Type.valid() {
		return fmt.Errorf("question %q: unknown type %q", q.Key, q.Type)
	}
	switch q.Type {
	case Subfields:
		if q.Subfields == nil {
			return fmt.Errorf("question %q: subfields missing", q.Key)
		}
	case MultipleInputs:
		if q.MultipleInputs == nil {
			return fmt.Errorf("question %q: multiple_inputs missing", q.Key)
		}
		if err := q.MultipleInputs.check(); err != nil {
			return fmt.Errorf("question %q: %w", q.Key, err)
		}
	case Slider:
		s := q.Slider
		if s == nil {
			return fmt.Errorf("question %q: slider missing", q.Key)
		}
		if s.Min >= s.Max || !s.InRange(s.Default) {
			return fmt.Errorf("question %q: bad slider range %d..%d (default %d)", q.Key, s.Min, s.Max, s.Default)
		}
	case Radio, Checkbox, Multiselect:
		if q.Choice == nil || len(q.Choice.Options) == 0 {
			return fmt.Errorf("question %q: options missing", q.Key)
		}
	}
	return nil
}

func (cfg *Config) Variant() model.Variant {
	return cfg.variant
}

// Questions returns every question in document order.
func (cfg *Config) Questions() []Question {
	return cfg.questions
}

func (cfg *Config) Question(key string) (Question, bool) {
	i, ok := cfg.index[key]
	if !ok {
		return Question{}, false
	}
	return cfg.questions[i], true
}

// SectionTitle returns the title of the section holding key.
func (cfg *Config) SectionTitle(key string) string {
	i, ok := cfg.sectionOf[key]
	if !ok {
		return ""
	}
	return cfg.Sections[i].Title
}

// Visible evaluates the visibility table for key. A question whose
// controlling question is hidden is hidden as well.
func (cfg *Config) Visible(key string, values model.Values) bool {
	for depth := 0; depth <= len(cfg.questions); depth++ {
		rule, ok := cfg.rules[key]
		if ok && !rule(values) {
			return false
		}
		q, known := cfg.Question(key)
		if !known || q.VisibleWhen == nil {
			return known
		}
		key = q.VisibleWhen.DependsOn
	}
	return false
}

// VisibleQuestions returns the questions shown for values, in document order.
func (cfg *Config) VisibleQuestions(values model.Values) []Question {
	out := make([]Question, 0, len(cfg.questions))
	for _, q := range cfg.questions {
		if cfg.Visible(q.Key, values) {
			out = append(out, q)
		}
	}
	return out
}
