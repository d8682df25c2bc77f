// Package links derives the public identifiers of a questionnaire: slug,
// access token and tokenized URLs.
package links

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/mbolis/quick-questionnaire/model"
)

var (
	reNotSlug   = regexp.MustCompile(`[^a-z0-9\s_-]+`)
	reSeparator = regexp.MustCompile(`[\s_-]+`)
)

// Slugify lowercases name, drops anything outside [a-z0-9\s_-] and
// collapses whitespace, underscores and hyphens into single hyphens.
func Slugify(name string) string {
	s := strings.ToLower(name)
	s = reNotSlug.ReplaceAllLiteralString(s, "")
	s = reSeparator.ReplaceAllLiteralString(s, "-")
	return strings.Trim(s, "-")
}

// ExistsFunc reports whether slug is taken for variant.
type ExistsFunc func(ctx context.Context, variant model.Variant, slug string) (bool, error)

// UniqueSlug returns the slug of client, suffixed -2, -3... until exists
// reports it free.
func UniqueSlug(ctx context.Context, exists ExistsFunc, variant model.Variant, client string) (string, error) {
	base := Slugify(client)
	if base == "" {
		base = "client"
	}
	slug := base
	for n := 2; ; n++ {
		taken, err := exists(ctx, variant, slug)
		if err != nil {
			return "", err
		}
		if !taken {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, n)
	}
}

// NewToken returns 128 random bits, hex encoded.
func NewToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Path is the form path of an instance, without origin or token.
func Path(inst model.Instance) string {
	return "/questionnaires/" + string(inst.Variant) + "/" + url.PathEscape(inst.Slug)
}

// QuestionnaireURL is <origin>/questionnaires/<variant>/<slug>?token=<token>.
func QuestionnaireURL(origin string, inst model.Instance) string {
	return strings.TrimRight(origin, "/") + Path(inst) + "?token=" + url.QueryEscape(inst.AccessToken)
}

func SuccessURL(origin string, inst model.Instance) string {
	return strings.TrimRight(origin, "/") + Path(inst) + "/success?token=" + url.QueryEscape(inst.AccessToken)
}
