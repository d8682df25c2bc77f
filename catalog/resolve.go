package catalog

import (
	"strings"
)

// Resolver substitutes the client and product placeholders.
type Resolver struct {
	r *strings.Replacer
}

func NewResolver(client, product string) Resolver {
	return Resolver{strings.NewReplacer(
		"[client]", client,
		"{{client}}", client,
		"[product]", product,
		"{{product}}", product,
	)}
}

// Resolve substitutes every placeholder of s in a single pass. The names
// are opaque: placeholders appearing inside them are not expanded. With
// names free of placeholder delimiters the result holds no placeholder, so
// resolving it again is a no-op.
func (r Resolver) Resolve(s string) string {
	return r.r.Replace(s)
}

// Resolve is a shortcut for NewResolver(client, product).Resolve(s).
func Resolve(s, client, product string) string {
	return NewResolver(client, product).Resolve(s)
}

// HasDelimiters reports whether a client or product name contains a
// character that could form a placeholder.
func HasDelimiters(name string) bool {
	return strings.ContainsAny(name, "[]{}")
}

// Resolved returns a copy of q with every display text resolved.
func (q Question) Resolved(r Resolver) Question {
	q.Label = r.Resolve(q.Label)
	q.Placeholder = r.Resolve(q.Placeholder)
	q.Helper = r.Resolve(q.Helper)
	q.GroupTitle = r.Resolve(q.GroupTitle)
	if q.Subfields != nil {
		p := *q.Subfields
		p.Primary.Label = r.Resolve(p.Primary.Label)
		p.Secondary.Label = r.Resolve(p.Secondary.Label)
		q.Subfields = &p
	}
	if q.MultipleInputs != nil {
		s := Sentence{Template: r.Resolve(q.MultipleInputs.Template)}
		for _, in := range q.MultipleInputs.Inputs {
			in.Label = r.Resolve(in.Label)
			in.Placeholder = r.Resolve(in.Placeholder)
			s.Inputs = append(s.Inputs, in)
		}
		q.MultipleInputs = &s
	}
	if q.Slider != nil {
		s := *q.Slider
		s.LeftLabel = r.Resolve(s.LeftLabel)
		s.RightLabel = r.Resolve(s.RightLabel)
		q.Slider = &s
	}
	if q.Choice != nil {
		c := Choice{AllowOther: q.Choice.AllowOther}
		for _, o := range q.Choice.Options {
			o.Label = r.Resolve(o.Label)
			c.Options = append(c.Options, o)
		}
		q.Choice = &c
	}
	return q
}

// Resolved returns a copy of the variant with all display texts resolved
// for one client and product. Keys, types and visibility are unchanged.
func (cfg *Config) Resolved(client, product string) *Config {
	r := NewResolver(client, product)
	out := *cfg
	out.Title = r.Resolve(cfg.Title)
	out.Subtitle = r.Resolve(cfg.Subtitle)
	out.ThankYou = r.Resolve(cfg.ThankYou)
	if cfg.Purpose != nil {
		out.Purpose = &Block{Title: r.Resolve(cfg.Purpose.Title), Content: r.Resolve(cfg.Purpose.Content)}
	}
	if cfg.Goal != nil {
		out.Goal = &Block{Title: r.Resolve(cfg.Goal.Title), Content: r.Resolve(cfg.Goal.Content)}
	}
	out.Sections = make([]Section, len(cfg.Sections))
	for i, s := range cfg.Sections {
		rs := Section{
			Title:       r.Resolve(s.Title),
			Intro:       r.Resolve(s.Intro),
			Description: r.Resolve(s.Description),
			Questions:   make([]Question, len(s.Questions)),
		}
		for j, q := range s.Questions {
			rs.Questions[j] = q.Resolved(r)
		}
		out.Sections[i] = rs
	}
	out.questions = make([]Question, len(cfg.questions))
	for i, q := range cfg.questions {
		out.questions[i] = q.Resolved(r)
	}
	return &out
}
