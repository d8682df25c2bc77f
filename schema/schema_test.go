package schema

import (
	"errors"
	"testing"

	"github.com/mbolis/quick-questionnaire/catalog"
	"github.com/mbolis/quick-questionnaire/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVariant = `
title: Test
sections:
- title: One
  questions:
  - {key: name, label: Name, type: text, required: true}
  - {key: site, label: Site, type: url}
  - {key: docs, label: Docs, type: file, required: true}
  - key: audience
    label: Audience
    type: subfields
    required: true
    subfields: {primary: {key: p, label: Primary}, secondary: {key: s, label: Secondary}}
- title: Two
  questions:
  - key: pitch
    label: Pitch
    type: multiple-inputs
    required: true
    multiple_inputs:
      template: We help {0} to {1}.
      inputs: [{key: who, label: Who}, {key: what, label: What}]
  - key: tone
    label: Tone
    type: slider
    slider: {left_label: Calm, right_label: Loud, min: 0, max: 10, default: 5}
  - key: purpose
    label: Purpose
    type: radio
    required: true
    choice:
      options: [{value: awareness, label: Awareness}, {value: sales, label: Sales}]
      allow_other: true
  - key: formats
    label: Formats
    type: checkbox
    choice:
      options: [{value: web, label: Web}, {value: print, label: Print}]
  - key: extra
    label: Extra
    type: text
    required: true
    visible_when: {depends_on: purpose, show_if: [sales]}
`

func compileTest(t *testing.T) *Validator {
	t.Helper()
	cfg, err := catalog.Parse(model.Motion, []byte(testVariant))
	require.NoError(t, err)
	return Compile(cfg)
}

func validValues() model.Values {
	return model.Values{
		"name":     model.Scalar("Acme"),
		"site":     model.Scalar(""),
		"docs":     model.List("https://files/a.pdf"),
		"audience": model.List("founders", ""),
		"pitch":    model.List("startups", "grow"),
		"tone":     model.Scalar("Calm ←→ Loud = 3"),
		"purpose":  model.Scalar("awareness"),
		"formats":  model.List("web", "print"),
	}
}

func fieldErrors(t *testing.T, err error) *model.ValidationError {
	t.Helper()
	var verr *model.ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	return verr
}

func TestValidValuesPass(t *testing.T) {
	assert.NoError(t, compileTest(t).Validate(validValues()))
}

func TestEmptyValuesReportEveryRequiredField(t *testing.T) {
	verr := fieldErrors(t, compileTest(t).Validate(model.Values{}))
	assert.Equal(t, []string{"name", "docs", "audience", "pitch", "purpose"}, verr.Order)
	assert.Equal(t, "name", verr.First())
}

func TestRules(t *testing.T) {
	v := compileTest(t)
	cases := []struct {
		key   string
		value model.Value
		msg   string
	}{
		{"name", model.Scalar("   "), msgRequired},
		{"name", model.List("x"), msgNotText},
		{"docs", model.List(), msgFileRequired},
		{"audience", model.List(" ", ""), msgAtLeastOne},
		{"audience", model.List("a"), msgTwoValues},
		{"audience", model.List("", "secondary only"), ""},
		{"pitch", model.List("", ""), msgRequired},
		{"pitch", model.List("", "grow"), ""},
		{"tone", model.Scalar("Calm ←→ Loud = 11"), msgOutOfRange},
		{"tone", model.Scalar("eleven"), msgInvalidSlider},
		{"tone", model.Scalar(""), ""},
		{"purpose", model.Scalar("teleport"), msgInvalidOption},
		{"purpose", model.Scalar("other"), msgInvalidOption},
		{"purpose", model.Scalar("other:"), msgSpecifyOther},
		{"purpose", model.Scalar("other:events"), ""},
		{"formats", model.List("web", "fax"), msgInvalidOption},
		{"formats", model.List(), ""},
	}
	for _, c := range cases {
		values := validValues()
		values[c.key] = c.value
		err := v.Validate(values)
		if c.msg == "" {
			assert.NoError(t, err, "%s=%v", c.key, c.value)
			continue
		}
		verr := fieldErrors(t, err)
		assert.Equal(t, c.msg, verr.Fields[c.key], "%s=%v", c.key, c.value)
	}
}

func TestHiddenQuestionsAreNotEnforced(t *testing.T) {
	v := compileTest(t)
	values := validValues()
	assert.NoError(t, v.Validate(values))

	values["purpose"] = model.Scalar("sales")
	verr := fieldErrors(t, v.Validate(values))
	assert.Equal(t, []string{"extra"}, verr.Order)

	values["extra"] = model.Scalar("x")
	assert.NoError(t, v.Validate(values))
}

func TestMotionVoiceOverFollowsBaseRules(t *testing.T) {
	c, err := catalog.Load()
	require.NoError(t, err)
	cfg, err := c.Lookup(model.Motion)
	require.NoError(t, err)
	v := Compile(cfg)

	values := model.Values{
		"voice_over_needed": model.Scalar("no"),
		"voice_over_gender": model.Scalar("robot"),
	}
	assert.NoError(t, v.Validate(values))

	values["voice_over_needed"] = model.Scalar("yes")
	verr := fieldErrors(t, v.Validate(values))
	assert.Equal(t, msgInvalidOption, verr.Fields["voice_over_gender"])
}
