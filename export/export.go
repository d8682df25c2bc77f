// Package export flattens submitted answers into human readable rows and
// renders them as a comma separated spreadsheet.
package export

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mbolis/quick-questionnaire/catalog"
	"github.com/mbolis/quick-questionnaire/model"
)

// TimeFormat is ISO-8601 in UTC with milliseconds.
const TimeFormat = "2006-01-02T15:04:05.000Z"

const (
	listSeparator  = "\n\n"
	filesSeparator = "; "
	emptySubfield  = "(empty)"
)

type Row struct {
	Section  string   `json:"section"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Files    []string `json:"files"`
}

type Meta struct {
	ClientName  string
	ProductName string
	Variant     model.Variant
	SubmittedAt time.Time
}

// Answer is the human readable form of an answer: a file count for
// uploads, one labelled line per subfield, the rendered sentence of a
// sentence builder, and lists joined by a blank line.
func Answer(q catalog.Question, v model.Value) string {
	switch q.Type {
	case catalog.File:
		if n := len(v.Items()); n > 0 {
			return strconv.Itoa(n) + " file(s) uploaded"
		}
		return ""
	case catalog.Subfields:
		primary, secondary := q.Subfields.Labels()
		lines := make([]string, 0, 2)
		for i, item := range v.Items() {
			label := secondary
			if i == 0 {
				label = primary
			}
			if item == "" {
				item = emptySubfield
			}
			lines = append(lines, label+": "+item)
		}
		return strings.Join(lines, "\n")
	case catalog.MultipleInputs:
		if !v.Answered() {
			return ""
		}
		return q.MultipleInputs.Render(v.Items())
	}
	if v.IsList() {
		return strings.Join(v.Items(), listSeparator)
	}
	return v.String()
}

// Rows flattens the visible questions of cfg in document order. cfg must
// already be resolved for the instance.
func Rows(cfg *catalog.Config, values model.Values) []Row {
	questions := cfg.VisibleQuestions(values)
	rows := make([]Row, 0, len(questions))
	for _, q := range questions {
		v := values[q.Key]
		files := []string{}
		if q.Type == catalog.File {
			files = v.Items()
		}
		rows = append(rows, Row{
			Section:  cfg.SectionTitle(q.Key),
			Question: q.Label,
			Answer:   Answer(q, v),
			Files:    files,
		})
	}
	return rows
}

// Escape quotes a field holding a comma, a double quote or a newline,
// doubling inner quotes. Any other field is written as is.
func Escape(field string) string {
	if strings.ContainsAny(field, ",\"\n") {
		return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
	}
	return field
}

// Render writes the metadata block, a blank line, the header and one line
// per row. Lines are joined by \n without a trailing newline.
func Render(meta Meta, rows []Row) string {
	lines := make([]string, 0, len(rows)+6)
	lines = append(lines,
		"Client Name,"+Escape(meta.ClientName),
		"Product Name,"+Escape(meta.ProductName),
		"Questionnaire Type,"+Escape(string(meta.Variant)),
		"Submitted At,"+Escape(meta.SubmittedAt.UTC().Format(TimeFormat)),
		"",
		"Section,Question,Answer,Files",
	)
	for _, r := range rows {
		lines = append(lines, strings.Join([]string{
			Escape(r.Section),
			Escape(r.Question),
			Escape(r.Answer),
			Escape(strings.Join(r.Files, filesSeparator)),
		}, ","))
	}
	return strings.Join(lines, "\n")
}

var reNotAlnum = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	return reNotAlnum.ReplaceAllLiteralString(strings.ToLower(s), "-")
}

// Filename is questionnaire-<client>-<product>-<YYYY-MM-DD>.csv.
func Filename(client, product string, submittedAt time.Time) string {
	return "questionnaire-" + slug(client) + "-" + slug(product) + "-" + submittedAt.UTC().Format("2006-01-02") + ".csv"
}
