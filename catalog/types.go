package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type QuestionType string

const (
	Text           QuestionType = "text"
	Textarea       QuestionType = "textarea"
	URL            QuestionType = "url"
	Email          QuestionType = "email"
	File           QuestionType = "file"
	Subfields      QuestionType = "subfields"
	MultipleInputs QuestionType = "multiple-inputs"
	Slider         QuestionType = "slider"
	Radio          QuestionType = "radio"
	Checkbox       QuestionType = "checkbox"
	Multiselect    QuestionType = "multiselect"
)

// IsList reports whether answers of this type are lists of strings.
func (t QuestionType) IsList() bool {
	switch t {
	case File, Subfields, MultipleInputs, Checkbox, Multiselect:
		return true
	}
	return false
}

func (t QuestionType) valid() bool {
	switch t {
	case Text, Textarea, URL, Email, File, Subfields, MultipleInputs, Slider, Radio, Checkbox, Multiselect:
		return true
	}
	return false
}

type Question struct {
	Key            string       `yaml:"key" json:"key"`
	Label          string       `yaml:"label" json:"label"`
	Type           QuestionType `yaml:"type" json:"type"`
	Required       bool         `yaml:"required" json:"required"`
	Placeholder    string       `yaml:"placeholder" json:"placeholder,omitempty"`
	Helper         string       `yaml:"helper" json:"helper,omitempty"`
	GroupTitle     string       `yaml:"group_title" json:"group_title,omitempty"`
	Subfields      *Pair        `yaml:"subfields" json:"subfields,omitempty"`
	MultipleInputs *Sentence    `yaml:"multiple_inputs" json:"multiple_inputs,omitempty"`
	Slider         *Scale       `yaml:"slider" json:"slider,omitempty"`
	Choice         *Choice      `yaml:"choice" json:"choice,omitempty"`
	VisibleWhen    *Condition   `yaml:"visible_when" json:"visible_when,omitempty"`
}

// Pair names the two inputs of a subfields question.
type Pair struct {
	Primary   Subfield `yaml:"primary" json:"primary"`
	Secondary Subfield `yaml:"secondary" json:"secondary"`
}

type Subfield struct {
	Key   string `yaml:"key" json:"key"`
	Label string `yaml:"label" json:"label"`
}

// Labels returns the primary and secondary labels, falling back to
// "Primary" and "Secondary".
func (p *Pair) Labels() (string, string) {
	primary, secondary := "Primary", "Secondary"
	if p != nil && p.Primary.Label != "" {
		primary = p.Primary.Label
	}
	if p != nil && p.Secondary.Label != "" {
		secondary = p.Secondary.Label
	}
	return primary, secondary
}

// Sentence is a template with {i} slots that the client fills one by one.
type Sentence struct {
	Template string `yaml:"template" json:"template"`
	Inputs   []Slot `yaml:"inputs" json:"inputs"`
}

type Slot struct {
	Key         string `yaml:"key" json:"key"`
	Label       string `yaml:"label" json:"label"`
	Placeholder string `yaml:"placeholder" json:"placeholder,omitempty"`
}

var reSlot = regexp.MustCompile(`\{(\d+)\}`)

// Render substitutes slot values into the template. Missing slots render empty.
func (s *Sentence) Render(slots []string) string {
	return reSlot.ReplaceAllStringFunc(s.Template, func(m string) string {
		i, _ := strconv.Atoi(m[1 : len(m)-1])
		if i < len(slots) {
			return slots[i]
		}
		return ""
	})
}

// Parse recovers slot values from a sentence previously produced by Render.
func (s *Sentence) Parse(sentence string) ([]string, bool) {
	locs := reSlot.FindAllStringSubmatchIndex(s.Template, -1)
	var pattern strings.Builder
	pattern.WriteString(`(?s)^`)
	order := make([]int, 0, len(locs))
	last := 0
	for _, loc := range locs {
		pattern.WriteString(regexp.QuoteMeta(s.Template[last:loc[0]]))
		pattern.WriteString(`(.*?)`)
		i, _ := strconv.Atoi(s.Template[loc[2]:loc[3]])
		order = append(order, i)
		last = loc[1]
	}
	pattern.WriteString(regexp.QuoteMeta(s.Template[last:]))
	pattern.WriteString(`$`)

	re, err := regexp.Compile(pattern.String())
	if err != nil {
		return nil, false
	}
	m := re.FindStringSubmatch(sentence)
	if m == nil {
		return nil, false
	}
	slots := make([]string, len(s.Inputs))
	for n, i := range order {
		if i < len(slots) {
			slots[i] = m[n+1]
		}
	}
	return slots, true
}

func (s *Sentence) check() error {
	if len(s.Inputs) == 0 {
		return fmt.Errorf("sentence has no inputs")
	}
	for _, m := range reSlot.FindAllStringSubmatch(s.Template, -1) {
		i, _ := strconv.Atoi(m[1])
		if i >= len(s.Inputs) {
			return fmt.Errorf("slot {%d} has no input", i)
		}
	}
	return nil
}

// Scale is an integer slider between two labelled poles.
type Scale struct {
	LeftLabel  string `yaml:"left_label" json:"left_label"`
	RightLabel string `yaml:"right_label" json:"right_label"`
	Min        int    `yaml:"min" json:"min"`
	Max        int    `yaml:"max" json:"max"`
	Default    int    `yaml:"default" json:"default"`
}

const sliderArrow = " ←→ "

var reSlider = regexp.MustCompile(`^(.*) ←→ (.*) = (-?\d+)$`)

// Format renders a slider position as "<left> ←→ <right> = <n>".
func (s *Scale) Format(n int) string {
	return s.LeftLabel + sliderArrow + s.RightLabel + " = " + strconv.Itoa(n)
}

// Parse extracts the position from a formatted slider value.
func (s *Scale) Parse(v string) (int, bool) {
	m := reSlider.FindStringSubmatch(v)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[3])
	if err != nil {
		return 0, false
	}
	return n, true
}

func (s *Scale) InRange(n int) bool {
	return n >= s.Min && n <= s.Max
}

// OtherPrefix marks a free-text "Other" answer in choice questions.
const OtherPrefix = "other:"

type Choice struct {
	Options    []Option `yaml:"options" json:"options"`
	AllowOther bool     `yaml:"allow_other" json:"allow_other"`
}

type Option struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

// Accepts reports whether v is one of the option values or, when allowed,
// an other:<free text> answer.
func (c *Choice) Accepts(v string) bool {
	if c.AllowOther && strings.HasPrefix(v, OtherPrefix) {
		return true
	}
	for _, o := range c.Options {
		if o.Value == v {
			return true
		}
	}
	return false
}

// Condition shows a question only while the answer to DependsOn matches
// one of ShowIf.
type Condition struct {
	DependsOn string   `yaml:"depends_on" json:"depends_on"`
	ShowIf    []string `yaml:"show_if" json:"show_if"`
}

type Section struct {
	Title       string     `yaml:"title" json:"title"`
	Intro       string     `yaml:"intro" json:"intro,omitempty"`
	Description string     `yaml:"description" json:"description,omitempty"`
	Questions   []Question `yaml:"questions" json:"questions"`
}

// Block is a titled text block such as the purpose or goal statement.
type Block struct {
	Title   string `yaml:"title" json:"title"`
	Content string `yaml:"content" json:"content"`
}
