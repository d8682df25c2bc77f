package routes

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/mbolis/quick-questionnaire/app"
	"github.com/mbolis/quick-questionnaire/database"
	"github.com/mbolis/quick-questionnaire/httpx"
	"github.com/mbolis/quick-questionnaire/links"
	"github.com/mbolis/quick-questionnaire/log"
	"github.com/mbolis/quick-questionnaire/model"
)

type variantView struct {
	Variant model.Variant `json:"variant"`
	Subtype string        `json:"subtype,omitempty"`
	Name    string        `json:"name"`
}

type categoryView struct {
	Category string        `json:"category"`
	Variants []variantView `json:"variants"`
}

func categoryViews() []categoryView {
	views := []categoryView{}
	for _, c := range model.Categories() {
		view := categoryView{Category: c}
		for _, v := range model.Variants {
			if v.Category() == c {
				view.Variants = append(view.Variants, variantView{v, v.Subtype(), v.DisplayName()})
			}
		}
		views = append(views, view)
	}
	return views
}

// ListCategories is the variant picker.
func ListCategories(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]any{
			"categories": categoryViews(),
		})
	}
}

func GetCategory(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category := chi.URLParam(r, "category")
		for _, view := range categoryViews() {
			if view.Category == category {
				render.JSON(w, r, view)
				return
			}
		}
		httpx.LogNotFound(w, "get_category", category)
	}
}

type createRequest struct {
	Subtype     string `json:"subtype" form:"subtype"`
	ClientName  string `json:"client_name" form:"client_name" validate:"required,min=2,max=200,noplaceholder"`
	ProductName string `json:"product_name" form:"product_name" validate:"required,min=2,max=200,noplaceholder"`
}

func (req *createRequest) Normalize() {
	req.Subtype = strings.TrimSpace(req.Subtype)
	req.ClientName = strings.TrimSpace(req.ClientName)
	req.ProductName = strings.TrimSpace(req.ProductName)
}

func CreateQuestionnaire(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := createRequest{}
		err := httpx.Decode(r, &req)
		if errors.Is(err, httpx.ErrBadBody) {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if err != nil {
			httpx.LogJSON(w, r, http.StatusUnprocessableEntity, log.DebugLevel, "create_questionnaire.validation", map[string]any{
				"errors": httpx.FieldErrors(err),
			})
			return
		}

		variant, err := model.VariantOf(chi.URLParam(r, "category"), req.Subtype)
		if err != nil {
			httpx.LogDomainError(w, r, "create_questionnaire", err)
			return
		}

		inst, err := app.Repo.CreateInstance(r.Context(), variant, req.ClientName, req.ProductName)
		if err != nil {
			httpx.LogInternalError(w, "db.create_questionnaire", err)
			return
		}
		log.WithFields(log.Fields{"instance": inst.ID, "variant": inst.Variant, "slug": inst.Slug}).Info("create_questionnaire: created")

		httpx.JSON(w, r, http.StatusCreated, map[string]any{
			"questionnaire": inst,
			"link":          links.QuestionnaireURL(app.PublicURL, inst),
		})
	}
}

type archiveEntry struct {
	model.Instance
	DisplayName string `json:"display_name"`
	Link        string `json:"link"`
}

type archiveGroup struct {
	Category       string         `json:"category"`
	Questionnaires []archiveEntry `json:"questionnaires"`
}

// ListArchive groups every instance by category, newest first.
func ListArchive(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		instances, err := app.Repo.ListAll(r.Context())
		if err != nil {
			httpx.LogInternalError(w, "db.list_archive", err)
			return
		}

		byCategory := map[string][]archiveEntry{}
		for _, inst := range instances {
			c := inst.Variant.Category()
			byCategory[c] = append(byCategory[c], archiveEntry{
				Instance:    inst,
				DisplayName: inst.Variant.DisplayName(),
				Link:        links.QuestionnaireURL(app.PublicURL, inst),
			})
		}

		groups := make([]archiveGroup, 0, len(byCategory))
		for _, c := range model.Categories() {
			if entries, ok := byCategory[c]; ok {
				groups = append(groups, archiveGroup{c, entries})
			}
		}
		render.JSON(w, r, map[string]any{
			"archive": groups,
		})
	}
}

// DeleteArchived removes the uploaded files of an instance, then the
// instance with its responses and draft. File errors do not stop the
// row delete.
func DeleteArchived(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		inst, err := app.Repo.LoadByID(r.Context(), id)
		if errors.Is(err, database.ErrNotFound) {
			httpx.LogNotFound(w, "delete_archived", id)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.delete_archived.load", err)
			return
		}

		app.Attachments.Purge(r.Context(), inst)

		err = app.Repo.DeleteCascade(r.Context(), inst.ID)
		if errors.Is(err, database.ErrNotFound) {
			httpx.LogNotFound(w, "delete_archived", id)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.delete_archived", err)
			return
		}
		log.WithFields(log.Fields{"instance": inst.ID, "variant": inst.Variant, "slug": inst.Slug}).Info("delete_archived: deleted")

		w.WriteHeader(http.StatusNoContent)
	}
}
