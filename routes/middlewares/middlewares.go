package middlewares

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mbolis/quick-questionnaire/access"
	"github.com/mbolis/quick-questionnaire/httpx"
	"github.com/mbolis/quick-questionnaire/log"
	"github.com/mbolis/quick-questionnaire/model"
)

type instanceKey struct{}

// Operator lets token-holding client requests through untouched and
// requires an operator session for everything else.
func Operator(gate *access.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		private := gate.Middleware(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if access.IsPublicPath(r.URL.Path, r.URL.Query()) {
				next.ServeHTTP(w, r)
				return
			}
			private.ServeHTTP(w, r)
		})
	}
}

// LoadFunc resolves a variant, slug and token triple to an instance, like
// access.Verifier.Load.
type LoadFunc func(ctx context.Context, variant, slug, token string) (model.Instance, error)

// Token resolves the {variant}/{slug} route and token query parameter to
// an instance with load, and stores it in the request context.
func Token(load LoadFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			variant, slug := chi.URLParam(r, "variant"), chi.URLParam(r, "slug")
			inst, err := load(r.Context(), variant, slug, r.URL.Query().Get("token"))
			if err != nil {
				httpx.LogDomainError(w, r, "token.load", err)
				return
			}
			log.WithFields(log.Fields{"instance": inst.ID, "variant": inst.Variant, "slug": inst.Slug}).Debug("token.load: ok")

			ctx := context.WithValue(r.Context(), instanceKey{}, inst)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Instance returns the instance stored by Token.
func Instance(ctx context.Context) model.Instance {
	inst, _ := ctx.Value(instanceKey{}).(model.Instance)
	return inst
}
