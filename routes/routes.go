package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mbolis/quick-questionnaire/app"
	"github.com/mbolis/quick-questionnaire/httpx"
	"github.com/mbolis/quick-questionnaire/routes/middlewares"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.RequestID, httpx.RequestLogger, middleware.Recoverer, middleware.StripSlashes)

	root.Post("/login", Login(app))
	root.Post("/logout", Logout(app))

	root.Route("/questionnaires", func(r chi.Router) {
		r.Use(middlewares.Operator(app.Gate))

		r.Get("/", ListCategories(app))
		r.Get("/archive", ListArchive(app))
		r.Delete("/archive/{id}", DeleteArchived(app))
		r.Get("/{category}", GetCategory(app))
		r.Post("/{category}", CreateQuestionnaire(app))

		r.Route("/{variant}/{slug}", publicRouter(app))
	})

	root.Mount("/files", serveFiles(app))

	return root
}

func publicRouter(app app.App) func(chi.Router) {
	return func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middlewares.Token(app.Verifier.Load))

			r.Get("/", PublicGetForm(app))
			r.Post("/draft", PublicSaveDraft(app))
			r.Post("/submit", PublicSubmit(app))
			r.Post("/files", PublicUploadFiles(app))
			r.Get("/success", PublicSuccess(app))
		})

		r.With(middlewares.Token(app.Verifier.LoadSubmitted)).
			Get("/export.csv", PublicExportCSV(app))
	}
}

func serveFiles(app app.App) http.Handler {
	return http.StripPrefix("/files", app.Store.Handler())
}
