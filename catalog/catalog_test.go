package catalog

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/mbolis/quick-questionnaire/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load()
	require.NoError(t, err)
	return c
}

func TestLoadEveryVariant(t *testing.T) {
	c := loadCatalog(t)
	for _, v := range model.Variants {
		cfg, err := c.Lookup(v)
		require.NoError(t, err, v)
		assert.Equal(t, v, cfg.Variant())
		assert.NotEmpty(t, cfg.Questions(), v)
		assert.NotEmpty(t, cfg.Title, v)
	}

	_, err := c.Lookup("poetry")
	assert.ErrorIs(t, err, model.ErrUnknownVariant)
}

func TestMotionConditionalQuestions(t *testing.T) {
	cfg, err := loadCatalog(t).Lookup(model.Motion)
	require.NoError(t, err)

	dependent := []string{"voice_over_language", "voice_over_gender", "voice_over_tone"}

	no := model.Values{"voice_over_needed": model.Scalar("no")}
	yes := model.Values{"voice_over_needed": model.Scalar("yes")}
	for _, key := range dependent {
		assert.False(t, cfg.Visible(key, no), key)
		assert.False(t, cfg.Visible(key, model.Values{}), key)
		assert.True(t, cfg.Visible(key, yes), key)
	}
	assert.True(t, cfg.Visible("voice_over_needed", no))
	assert.Len(t, cfg.VisibleQuestions(yes), len(cfg.Questions())-1) // captions_languages stays hidden
}

func TestExistingBrandMaterialsOnlyForRebrand(t *testing.T) {
	c := loadCatalog(t)
	rebrand, err := c.Lookup(model.BrandDesignRebrand)
	require.NoError(t, err)
	fresh, err := c.Lookup(model.BrandDesignNew)
	require.NoError(t, err)

	_, ok := fresh.Question("existing_brand_materials")
	require.True(t, ok)
	assert.False(t, fresh.Visible("existing_brand_materials", model.Values{}))
	assert.True(t, rebrand.Visible("existing_brand_materials", model.Values{}))
}

func TestListDependencyMatchesByIntersection(t *testing.T) {
	cfg, err := Parse(model.Motion, []byte(`
title: T
sections:
- title: S
  questions:
  - key: formats
    label: Formats
    type: multiselect
    choice:
      options: [{value: a, label: A}, {value: b, label: B}]
  - key: b_details
    label: Details
    type: text
    visible_when: {depends_on: formats, show_if: [b, c]}
  - key: b_more
    label: More
    type: text
    visible_when: {depends_on: b_details, show_if: [more]}
`))
	require.NoError(t, err)

	assert.False(t, cfg.Visible("b_details", model.Values{"formats": model.List("a")}))
	assert.True(t, cfg.Visible("b_details", model.Values{"formats": model.List("a", "b")}))

	// a hidden parent hides its dependents
	values := model.Values{"formats": model.List("a"), "b_details": model.Scalar("more")}
	assert.False(t, cfg.Visible("b_more", values))
	values["formats"] = model.List("b")
	assert.True(t, cfg.Visible("b_more", values))
}

func TestParseRejectsBrokenDefinitions(t *testing.T) {
	cases := map[string]string{
		"duplicate": `
sections:
- title: S
  questions:
  - {key: a, label: A, type: text}
  - {key: a, label: A, type: text}`,
		"dangling": `
sections:
- title: S
  questions:
  - {key: a, label: A, type: text, visible_when: {depends_on: zz, show_if: [x]}}`,
		"slider": `
sections:
- title: S
  questions:
  - {key: a, label: A, type: slider, slider: {left_label: L, right_label: R, min: 5, max: 1, default: 3}}`,
		"template": `
sections:
- title: S
  questions:
  - {key: a, label: A, type: multiple-inputs, multiple_inputs: {template: "x {3}", inputs: [{key: k, label: K}]}}`,
		"type": `
sections:
- title: S
  questions:
  - {key: a, label: A, type: dropdown}`,
		"cycle": `
sections:
- title: S
  questions:
  - {key: a, label: A, type: text, visible_when: {depends_on: b, show_if: [x]}}
  - {key: b, label: B, type: text, visible_when: {depends_on: a, show_if: [x]}}`,
	}
	for name, doc := range cases {
		_, err := Parse(model.Motion, []byte(doc))
		assert.Error(t, err, name)
	}
}

func TestSentenceRenderAndParse(t *testing.T) {
	s := &Sentence{
		Template: "We help {0} to {1} by {2}.",
		Inputs:   []Slot{{Key: "a"}, {Key: "b"}, {Key: "c"}},
	}
	sentence := s.Render([]string{"startups", "grow", "design"})
	assert.Equal(t, "We help startups to grow by design.", sentence)

	slots, ok := s.Parse(sentence)
	require.True(t, ok)
	assert.Equal(t, []string{"startups", "grow", "design"}, slots)

	slots, ok = s.Parse(s.Render([]string{"", "grow", ""}))
	require.True(t, ok)
	assert.Equal(t, []string{"", "grow", ""}, slots)

	_, ok = s.Parse("something else entirely")
	assert.False(t, ok)
}

func TestScaleFormatAndParse(t *testing.T) {
	s := &Scale{LeftLabel: "Casual", RightLabel: "Elegant", Min: 0, Max: 10, Default: 5}
	v := s.Format(6)
	assert.Equal(t, "Casual ←→ Elegant = 6", v)
	n, ok := s.Parse(v)
	require.True(t, ok)
	assert.Equal(t, 6, n)
	assert.True(t, s.InRange(n))
	assert.False(t, s.InRange(11))

	_, ok = s.Parse("six")
	assert.False(t, ok)
}

func TestResolve(t *testing.T) {
	got := Resolve("What is [client]'s vision for {{product}}? [client]/{{client}}/[product]", "Acme", "Widget")
	assert.Equal(t, "What is Acme's vision for Widget? Acme/Acme/Widget", got)
	assert.Equal(t, "[Client]", Resolve("[Client]", "Acme", "Widget"))
}

func TestResolveDoesNotRescanNames(t *testing.T) {
	assert.Equal(t, "Hello [product]", Resolve("Hello [client]", "[product]", "Widget"))
	assert.Equal(t, "[client]", Resolve("[[client]]", "client", "Widget"))
	assert.Equal(t, "{{product}} and Widget", Resolve("{{client}} and [product]", "{{product}}", "Widget"))
}

func TestResolveIsIdempotent(t *testing.T) {
	fragments := []string{"[client]", "{{client}}", "[product]", "{{product}}", "[", "{", "{{", "Client", "product", "a", " "}
	names := []string{"", "Acme", "client", "product", "A B", "cli"}
	rnd := rand.New(rand.NewSource(42))

	for i := 0; i < 5000; i++ {
		var b strings.Builder
		for n := rnd.Intn(8); n >= 0; n-- {
			b.WriteString(fragments[rnd.Intn(len(fragments))])
		}
		s := b.String()
		c, p := names[rnd.Intn(len(names))], names[rnd.Intn(len(names))]
		require.False(t, HasDelimiters(c) || HasDelimiters(p))

		once := Resolve(s, c, p)
		require.Equal(t, once, Resolve(once, c, p), "s=%q c=%q p=%q", s, c, p)
	}
}

func TestResolvedConfig(t *testing.T) {
	cfg, err := loadCatalog(t).Lookup(model.ProductDesignNew)
	require.NoError(t, err)

	r := cfg.Resolved("Acme", "Widget")
	q, ok := r.Question("mission_vision")
	require.True(t, ok)
	assert.Equal(t, "What is the mission and vision of Acme?", q.Label)

	orig, _ := cfg.Question("mission_vision")
	assert.Contains(t, orig.Label, "[client]")
	assert.Equal(t, cfg.SectionTitle("mission_vision"), r.SectionTitle("mission_vision"))
}

func TestHasDelimiters(t *testing.T) {
	assert.True(t, HasDelimiters("Acme [EU]"))
	assert.True(t, HasDelimiters("{x}"))
	assert.False(t, HasDelimiters("Acme & Co."))
}
