package model

import (
	"strings"
	"time"
)

type Variant string

const (
	ProductDesignNew      Variant = "product-design-new"
	ProductDesignRedesign Variant = "product-design-redesign"
	WebDesignNew          Variant = "web-design-new"
	WebDesignRedesign     Variant = "web-design-redesign"
	BrandDesignNew        Variant = "brand-design-new"
	BrandDesignRebrand    Variant = "brand-design-rebrand"
	Motion                Variant = "motion"
)

// Variants lists every questionnaire variant in display order.
var Variants = []Variant{
	ProductDesignNew,
	ProductDesignRedesign,
	WebDesignNew,
	WebDesignRedesign,
	BrandDesignNew,
	BrandDesignRebrand,
	Motion,
}

func ParseVariant(s string) (Variant, error) {
	for _, v := range Variants {
		if string(v) == s {
			return v, nil
		}
	}
	return "", UnknownVariantError(s)
}

// Category is the variant family: product-design, web-design, brand-design or motion.
func (v Variant) Category() string {
	if v == Motion {
		return string(Motion)
	}
	i := strings.LastIndexByte(string(v), '-')
	if i < 0 {
		return string(v)
	}
	return string(v[:i])
}

// Subtype is the part of the variant after its category, empty for motion.
func (v Variant) Subtype() string {
	return strings.TrimPrefix(strings.TrimPrefix(string(v), v.Category()), "-")
}

// Categories lists the variant families in display order.
func Categories() []string {
	var cats []string
	seen := map[string]bool{}
	for _, v := range Variants {
		if c := v.Category(); !seen[c] {
			seen[c] = true
			cats = append(cats, c)
		}
	}
	return cats
}

// VariantOf assembles the variant of a category and sub-type.
func VariantOf(category, subtype string) (Variant, error) {
	name := category
	if subtype != "" {
		name += "-" + subtype
	}
	return ParseVariant(name)
}

func (v Variant) DisplayName() string {
	switch v {
	case ProductDesignNew:
		return "New Product"
	case WebDesignNew:
		return "New Website"
	case BrandDesignNew:
		return "New Brand Identity"
	case ProductDesignRedesign, WebDesignRedesign:
		return "Redesign"
	case BrandDesignRebrand:
		return "Rebrand"
	case Motion:
		return "Motion"
	}
	return string(v)
}

type Status string

const (
	NotStarted Status = "not-started"
	InProgress Status = "in-progress"
	Submitted  Status = "submitted"
)

// CanWrite reports whether drafts and submissions are still accepted.
func (s Status) CanWrite() bool {
	return s != Submitted
}

// AfterSave is the status an instance moves to once a draft holding values
// has been stored. Only the first non-empty save leaves not-started.
func (s Status) AfterSave(values Values) Status {
	if s == NotStarted && values.AnyAnswered() {
		return InProgress
	}
	return s
}

type Instance struct {
	ID          string     `json:"id"`
	Variant     Variant    `json:"variant"`
	ClientName  string     `json:"client_name"`
	ProductName string     `json:"product_name"`
	Slug        string     `json:"slug"`
	AccessToken string     `json:"access_token,omitempty"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	LastSavedAt *time.Time `json:"last_saved_at"`
	SubmittedAt *time.Time `json:"submitted_at"`
}

// Folder is the object-store prefix owned by the instance.
func (inst Instance) Folder() string {
	return string(inst.Variant) + "/" + inst.Slug + "/"
}

type Response struct {
	ID           string    `json:"id"`
	InstanceID   string    `json:"questionnaire_id"`
	QuestionKey  string    `json:"question_key"`
	QuestionText string    `json:"question_text"`
	AnswerText   *string   `json:"answer_text"`
	AnswerFiles  []string  `json:"answer_files"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Draft struct {
	ID         string    `json:"id"`
	InstanceID string    `json:"questionnaire_id"`
	Values     Values    `json:"draft_data"`
	SavedAt    time.Time `json:"saved_at"`
}
