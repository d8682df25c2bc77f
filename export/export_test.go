package export

import (
	"encoding/csv"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mbolis/quick-questionnaire/catalog"
	"github.com/mbolis/quick-questionnaire/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscape(t *testing.T) {
	assert.Equal(t, "plain", Escape("plain"))
	assert.Equal(t, " leading space", Escape(" leading space"))
	assert.Equal(t, `"a,b"`, Escape("a,b"))
	assert.Equal(t, `"say ""hi"""`, Escape(`say "hi"`))
	assert.Equal(t, "\"two\nlines\"", Escape("two\nlines"))
	assert.Equal(t, "", Escape(""))
}

func TestEscapeRoundTripsThroughCSVReader(t *testing.T) {
	alphabet := []rune{'a', 'Z', '0', ' ', ',', '"', '\n', ';', 'é', '\t', '\''}
	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		fields := make([]string, 4)
		for j := range fields {
			var b strings.Builder
			for n := rnd.Intn(12); n > 0; n-- {
				b.WriteRune(alphabet[rnd.Intn(len(alphabet))])
			}
			fields[j] = b.String()
		}
		line := Escape(fields[0]) + "," + Escape(fields[1]) + "," + Escape(fields[2]) + "," + Escape(fields[3])

		r := csv.NewReader(strings.NewReader(line))
		r.FieldsPerRecord = -1
		got, err := r.Read()
		require.NoError(t, err, "%q", line)
		if fields[0] == "" && fields[1] == "" && fields[2] == "" && fields[3] == "" {
			continue
		}
		require.Equal(t, fields, got, "%q", line)
	}
}

func TestAnswer(t *testing.T) {
	file := catalog.Question{Type: catalog.File}
	assert.Equal(t, "3 file(s) uploaded", Answer(file, model.List("u1", "u2", "u3")))
	assert.Equal(t, "", Answer(file, model.List()))

	pair := catalog.Question{Type: catalog.Subfields, Subfields: &catalog.Pair{
		Primary:   catalog.Subfield{Label: "Main competitor"},
		Secondary: catalog.Subfield{Label: ""},
	}}
	assert.Equal(t, "Main competitor: Globex\nSecondary: (empty)", Answer(pair, model.List("Globex", "")))

	sentence := catalog.Question{Type: catalog.MultipleInputs, MultipleInputs: &catalog.Sentence{
		Template: "We help {0} to {1}.",
		Inputs:   []catalog.Slot{{Key: "a"}, {Key: "b"}},
	}}
	assert.Equal(t, "We help startups to grow.", Answer(sentence, model.List("startups", "grow")))
	assert.Equal(t, "", Answer(sentence, model.List("", "")))

	checkbox := catalog.Question{Type: catalog.Checkbox}
	assert.Equal(t, "web\n\nother:fax", Answer(checkbox, model.List("web", "other:fax")))
	assert.Equal(t, "hello", Answer(catalog.Question{Type: catalog.Text}, model.Scalar("hello")))
}

func motion(t *testing.T) *catalog.Config {
	t.Helper()
	c, err := catalog.Load()
	require.NoError(t, err)
	cfg, err := c.Lookup(model.Motion)
	require.NoError(t, err)
	return cfg.Resolved("Acme", "Widget")
}

func TestRowsSkipHiddenQuestions(t *testing.T) {
	cfg := motion(t)
	values := model.Values{
		"voice_over_needed":   model.Scalar("no"),
		"voice_over_language": model.Scalar("English"),
	}
	keys := map[string]bool{}
	for _, q := range cfg.VisibleQuestions(values) {
		keys[q.Key] = true
	}
	rows := Rows(cfg, values)
	assert.Len(t, rows, len(keys))
	for _, r := range rows {
		assert.NotNil(t, r.Files)
	}
	assert.False(t, keys["voice_over_language"])
	assert.False(t, keys["voice_over_gender"])
	assert.False(t, keys["voice_over_tone"])
}

func TestRender(t *testing.T) {
	meta := Meta{
		ClientName:  "Acme, Inc.",
		ProductName: "Widget",
		Variant:     model.ProductDesignRedesign,
		SubmittedAt: time.Date(2024, 3, 5, 14, 7, 9, 123456789, time.FixedZone("CET", 3600)),
	}
	rows := []Row{
		{Section: "Brand", Question: "Logo files", Answer: "3 file(s) uploaded", Files: []string{"u1", "u2", "u3"}},
		{Section: "Brand", Question: `What is "good"?`, Answer: "line one\nline two", Files: []string{}},
	}
	want := strings.Join([]string{
		`Client Name,"Acme, Inc."`,
		`Product Name,Widget`,
		`Questionnaire Type,product-design-redesign`,
		`Submitted At,2024-03-05T13:07:09.123Z`,
		``,
		`Section,Question,Answer,Files`,
		`Brand,Logo files,3 file(s) uploaded,u1; u2; u3`,
		"Brand,\"What is \"\"good\"\"?\",\"line one\nline two\",",
	}, "\n")
	got := Render(meta, rows)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Render mismatch (-want +got):\n%s", diff)
	}
}

func TestFilename(t *testing.T) {
	at := time.Date(2024, 12, 31, 23, 30, 0, 0, time.FixedZone("PST", -8*3600))
	assert.Equal(t, "questionnaire-acme-inc--widget-x-2025-01-01.csv", Filename("Acme Inc.", "Widget X", at))
}
