// Package schema compiles a questionnaire variant into a validator for
// submitted values.
package schema

import (
	"strings"

	"github.com/mbolis/quick-questionnaire/catalog"
	"github.com/mbolis/quick-questionnaire/model"
)

const (
	msgRequired      = "This field is required"
	msgAtLeastOne    = "At least one field is required"
	msgFileRequired  = "At least one file is required"
	msgSelectOne     = "Please select an option"
	msgSpecifyOther  = "Please specify"
	msgInvalidOption = "Invalid option"
	msgInvalidSlider = "Invalid scale value"
	msgOutOfRange    = "Value is out of range"
	msgNotList       = "Expected a list of values"
	msgNotText       = "Expected a text value"
	msgTwoValues     = "Expected exactly two values"
)

// rule checks one answer and returns a message, or "" when it passes.
type rule func(v model.Value) string

type Validator struct {
	cfg   *catalog.Config
	keys  []string
	rules map[string]rule
}

// Compile builds one rule per question of cfg. It is done once per variant.
func Compile(cfg *catalog.Config) *Validator {
	v := &Validator{cfg: cfg, rules: map[string]rule{}}
	for _, q := range cfg.Questions() {
		v.keys = append(v.keys, q.Key)
		v.rules[q.Key] = compileQuestion(q)
	}
	return v
}

// Validate checks every visible question. Hidden questions are skipped
// entirely. The returned error, if any, is a *model.ValidationError.
func (v *Validator) Validate(values model.Values) error {
	verr := &model.ValidationError{}
	for _, key := range v.keys {
		if !v.cfg.Visible(key, values) {
			continue
		}
		if msg := v.rules[key](values[key]); msg != "" {
			verr.Add(key, msg)
		}
	}
	if len(verr.Order) > 0 {
		return verr
	}
	return nil
}

func compileQuestion(q catalog.Question) rule {
	switch q.Type {
	case catalog.File:
		return fileRule(q)
	case catalog.Subfields:
		return subfieldsRule(q)
	case catalog.MultipleInputs:
		return sentenceRule(q)
	case catalog.Slider:
		return sliderRule(q)
	case catalog.Radio:
		return radioRule(q)
	case catalog.Checkbox, catalog.Multiselect:
		return checkboxRule(q)
	default:
		return textRule(q)
	}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func textRule(q catalog.Question) rule {
	return func(v model.Value) string {
		if v.IsList() {
			return msgNotText
		}
		if q.Required && blank(v.String()) {
			return msgRequired
		}
		return ""
	}
}

func fileRule(q catalog.Question) rule {
	return func(v model.Value) string {
		if !v.IsList() && v.String() != "" {
			return msgNotList
		}
		if q.Required && len(v.Items()) == 0 {
			return msgFileRequired
		}
		return ""
	}
}

func subfieldsRule(q catalog.Question) rule {
	return func(v model.Value) string {
		items := v.Items()
		if !v.IsList() || len(items) == 0 {
			if v.String() != "" {
				return msgNotList
			}
			if q.Required {
				return msgAtLeastOne
			}
			return ""
		}
		if len(items) != 2 {
			return msgTwoValues
		}
		if q.Required && blank(items[0]) && blank(items[1]) {
			return msgAtLeastOne
		}
		return ""
	}
}

// sentenceRule checks the slot vector of a multiple-inputs question. The
// rendered sentence counts as empty when no slot was filled in.
func sentenceRule(q catalog.Question) rule {
	return func(v model.Value) string {
		if !v.IsList() && v.String() != "" {
			return msgNotList
		}
		slots := v.Items()
		if len(slots) > len(q.MultipleInputs.Inputs) {
			return msgInvalidOption
		}
		if q.Required && (!v.Answered() || blank(q.MultipleInputs.Render(slots))) {
			return msgRequired
		}
		return ""
	}
}

func sliderRule(q catalog.Question) rule {
	return func(v model.Value) string {
		if v.IsList() {
			return msgNotText
		}
		if blank(v.String()) {
			if q.Required {
				return msgRequired
			}
			return ""
		}
		n, ok := q.Slider.Parse(v.String())
		if !ok {
			return msgInvalidSlider
		}
		if !q.Slider.InRange(n) {
			return msgOutOfRange
		}
		return ""
	}
}

func radioRule(q catalog.Question) rule {
	return func(v model.Value) string {
		if v.IsList() {
			return msgNotText
		}
		s := v.String()
		if s == "" {
			if q.Required {
				return msgSelectOne
			}
			return ""
		}
		if !q.Choice.Accepts(s) {
			return msgInvalidOption
		}
		if q.Required && strings.HasPrefix(s, catalog.OtherPrefix) && blank(strings.TrimPrefix(s, catalog.OtherPrefix)) {
			return msgSpecifyOther
		}
		return ""
	}
}

func checkboxRule(q catalog.Question) rule {
	return func(v model.Value) string {
		if !v.IsList() && v.String() != "" {
			return msgNotList
		}
		items := v.Items()
		if q.Required && len(items) == 0 {
			return msgSelectOne
		}
		for _, item := range items {
			if !q.Choice.Accepts(item) {
				return msgInvalidOption
			}
			if q.Required && len(items) == 1 && strings.HasPrefix(item, catalog.OtherPrefix) &&
				blank(strings.TrimPrefix(item, catalog.OtherPrefix)) {
				return msgSpecifyOther
			}
		}
		return ""
	}
}
