// Package form holds the in-memory state of one questionnaire being filled
// in: current values, visibility, progress and the save/submit latches.
package form

import (
	"fmt"
	"math"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/mbolis/quick-questionnaire/catalog"
	"github.com/mbolis/quick-questionnaire/log"
	"github.com/mbolis/quick-questionnaire/model"
	"go.uber.org/atomic"
)

// legacyListSeparator joined list answers before they were stored as JSON.
const legacyListSeparator = "\n\n"

type Form struct {
	cfg    *catalog.Config
	inst   model.Instance
	values model.Values

	saving     *atomic.Bool
	submitting *atomic.Bool
}

// New creates an empty form for inst. cfg is resolved for the instance's
// client and product names.
func New(cfg *catalog.Config, inst model.Instance) *Form {
	f := &Form{
		cfg:        cfg.Resolved(inst.ClientName, inst.ProductName),
		inst:       inst,
		values:     model.Values{},
		saving:     atomic.NewBool(false),
		submitting: atomic.NewBool(false),
	}
	f.fillMissing()
	return f
}

func (f *Form) Config() *catalog.Config {
	return f.cfg
}

func (f *Form) Instance() model.Instance {
	return f.inst
}

// SetInstance replaces the instance snapshot after a repository write.
func (f *Form) SetInstance(inst model.Instance) {
	f.inst = inst
}

// Hydrate loads saved state. A draft wins over responses; otherwise each
// response is converted back to its form value. Every question missing
// afterwards starts empty.
func (f *Form) Hydrate(responses []model.Response, draft *model.Draft) {
	f.values = model.Values{}
	if draft != nil {
		for key, v := range draft.Values {
			f.values[key] = f.normalize(key, v)
		}
	} else {
		for _, r := range responses {
			if v, ok := f.fromResponse(r); ok {
				f.values[r.QuestionKey] = v
			}
		}
	}
	f.fillMissing()
}

func (f *Form) fromResponse(r model.Response) (model.Value, bool) {
	q, ok := f.cfg.Question(r.QuestionKey)
	if !ok {
		return model.Value{}, false
	}
	text := ""
	if r.AnswerText != nil {
		text = *r.AnswerText
	}
	switch q.Type {
	case catalog.File:
		return model.List(r.AnswerFiles...), true
	case catalog.Subfields:
		return DecodePair(text), true
	case catalog.Checkbox, catalog.Multiselect:
		return DecodeList(text), true
	}
	return f.normalize(q.Key, model.Scalar(text)), true
}

// normalize upgrades legacy value shapes to the canonical ones: a rendered
// sentence becomes its slot vector, the bare "other" sentinel becomes
// "other:" and a lone checkbox string becomes a one-element list.
func (f *Form) normalize(key string, v model.Value) model.Value {
	q, ok := f.cfg.Question(key)
	if !ok || v.IsList() {
		return v
	}
	switch q.Type {
	case catalog.MultipleInputs:
		if v.String() == "" {
			return model.List()
		}
		slots, ok := q.MultipleInputs.Parse(v.String())
		if !ok {
			log.WithFields(log.Fields{"instance": f.inst.ID, "question": key}).
				Warn("form.hydrate: sentence does not match template")
			return model.List()
		}
		return model.List(slots...)
	case catalog.Radio:
		if v.String() == "other" && !q.Choice.Accepts("other") {
			return model.Scalar(catalog.OtherPrefix)
		}
	case catalog.Checkbox, catalog.Multiselect, catalog.File:
		if v.String() == "" {
			return model.List()
		}
		return model.List(v.String())
	}
	return v
}

func (f *Form) fillMissing() {
	for _, q := range f.cfg.Questions() {
		if _, ok := f.values[q.Key]; ok {
			continue
		}
		if q.Type.IsList() {
			f.values[q.Key] = model.List()
		} else {
			f.values[q.Key] = model.Scalar("")
		}
	}
}

// Set updates a single answer without validating it.
func (f *Form) Set(key string, v model.Value) error {
	if _, ok := f.cfg.Question(key); !ok {
		return fmt.Errorf("unknown question %q", key)
	}
	f.values[key] = f.normalize(key, v)
	return nil
}

// Merge applies every known key of values, ignoring the others.
func (f *Form) Merge(values model.Values) {
	for key, v := range values {
		if _, ok := f.cfg.Question(key); ok {
			f.values[key] = f.normalize(key, v)
		}
	}
}

func (f *Form) Value(key string) model.Value {
	return f.values[key]
}

func (f *Form) Values() model.Values {
	return f.values.Clone()
}

func (f *Form) Visible(key string) bool {
	return f.cfg.Visible(key, f.values)
}

// VisibleQuestions lists, in document order, the questions shown under
// the current values.
func (f *Form) VisibleQuestions() []catalog.Question {
	return f.cfg.VisibleQuestions(f.values)
}

type Progress struct {
	Answered int `json:"answered"`
	Total    int `json:"total"`
	Percent  int `json:"percent"`
}

// Progress counts answered questions among the visible ones.
func (f *Form) Progress() Progress {
	var p Progress
	for _, q := range f.VisibleQuestions() {
		p.Total++
		if f.values[q.Key].Answered() {
			p.Answered++
		}
	}
	if p.Total > 0 {
		p.Percent = int(math.Round(float64(p.Answered) * 100 / float64(p.Total)))
	}
	return p
}

// BeginSave takes the save latch; it fails while a save or submit runs.
func (f *Form) BeginSave() bool {
	if f.submitting.Load() {
		return false
	}
	return f.saving.CAS(false, true)
}

func (f *Form) EndSave() {
	f.saving.Store(false)
}

// BeginSubmit takes the submit latch; it fails while a save or submit runs.
func (f *Form) BeginSubmit() bool {
	if f.saving.Load() {
		return false
	}
	return f.submitting.CAS(false, true)
}

func (f *Form) EndSubmit() {
	f.submitting.Store(false)
}

func (f *Form) Saving() bool {
	return f.saving.Load()
}

func (f *Form) Submitting() bool {
	return f.submitting.Load()
}

// EncodePair stores a subfields answer as a JSON two-element array.
func EncodePair(v model.Value) string {
	items := v.Items()
	for len(items) < 2 {
		items = append(items, "")
	}
	data, err := json.Marshal(items[:2])
	if err != nil {
		return `["",""]`
	}
	return string(data)
}

// EncodeList stores a list answer as a JSON string array, so items may
// hold any text.
func EncodeList(v model.Value) string {
	items := v.Items()
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// DecodeList parses a stored list answer. Text that is not a JSON string
// array is read in the older blank-line separated form.
func DecodeList(text string) model.Value {
	if text == "" {
		return model.List()
	}
	var items []string
	if strings.HasPrefix(text, "[") && json.Unmarshal([]byte(text), &items) == nil {
		return model.List(items...)
	}
	return model.List(strings.Split(text, legacyListSeparator)...)
}

// DecodePair parses a stored subfields answer; anything but a JSON
// two-element string array yields ["",""].
func DecodePair(text string) model.Value {
	var items []string
	if err := json.Unmarshal([]byte(text), &items); err != nil || len(items) != 2 {
		return model.List("", "")
	}
	return model.List(items...)
}
