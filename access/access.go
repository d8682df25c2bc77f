// Package access decides who may see a questionnaire: clients holding its
// token, and the operator holding the shared secret.
package access

import (
	"context"
	"net/url"
	"strings"

	"github.com/mbolis/quick-questionnaire/model"
)

// publicSubpaths are the token-gated actions below a questionnaire path.
var publicSubpaths = map[string]bool{
	"":           true,
	"success":    true,
	"draft":      true,
	"submit":     true,
	"files":      true,
	"export.csv": true,
}

// IsPublicPath reports whether a request for path is served to token
// holders: /questionnaires/<variant>/<slug>[/<action>] with a token query
// parameter. Anything else belongs to the operator.
func IsPublicPath(path string, query url.Values) bool {
	if query.Get("token") == "" {
		return false
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 || len(parts) > 4 || parts[0] != "questionnaires" || parts[2] == "" {
		return false
	}
	if _, err := model.ParseVariant(parts[1]); err != nil {
		return false
	}
	sub := ""
	if len(parts) == 4 {
		sub = parts[3]
	}
	return publicSubpaths[sub]
}

type Loader interface {
	LoadByToken(ctx context.Context, variant model.Variant, slug, token string) (model.Instance, error)
}

// Verifier resolves a (variant, slug, token) triple to its instance.
type Verifier struct {
	repo Loader
}

func NewVerifier(repo Loader) Verifier {
	return Verifier{repo}
}

// Load returns the instance matching the triple exactly, or
// model.ErrInvalidToken.
func (v Verifier) Load(ctx context.Context, variant, slug, token string) (model.Instance, error) {
	if token == "" || slug == "" {
		return model.Instance{}, model.ErrInvalidToken
	}
	vt, err := model.ParseVariant(variant)
	if err != nil {
		return model.Instance{}, model.ErrInvalidToken
	}
	return v.repo.LoadByToken(ctx, vt, slug, token)
}

// LoadSubmitted is Load restricted to submitted instances; others fail
// with model.ErrNotSubmitted.
func (v Verifier) LoadSubmitted(ctx context.Context, variant, slug, token string) (model.Instance, error) {
	inst, err := v.Load(ctx, variant, slug, token)
	if err != nil {
		return inst, err
	}
	if inst.Status != model.Submitted {
		return inst, model.ErrNotSubmitted
	}
	return inst, nil
}
