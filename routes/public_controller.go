package routes

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/mbolis/quick-questionnaire/app"
	"github.com/mbolis/quick-questionnaire/attachments"
	"github.com/mbolis/quick-questionnaire/catalog"
	"github.com/mbolis/quick-questionnaire/export"
	"github.com/mbolis/quick-questionnaire/form"
	"github.com/mbolis/quick-questionnaire/httpx"
	"github.com/mbolis/quick-questionnaire/links"
	"github.com/mbolis/quick-questionnaire/log"
	"github.com/mbolis/quick-questionnaire/model"
	"github.com/mbolis/quick-questionnaire/routes/middlewares"
)

// maxUploadBody bounds a whole multipart request. It is far above any
// sensible batch; the per-file ceiling is attachments.MaxFileSize.
const maxUploadBody = 1 << 30

// loadForm builds the form of inst from its catalog entry, stored
// responses and draft.
func loadForm(ctx context.Context, app app.App, inst model.Instance) (*form.Form, error) {
	cfg, err := app.Catalog.Lookup(inst.Variant)
	if err != nil {
		return nil, err
	}
	responses, err := app.Repo.LoadResponses(ctx, inst.ID)
	if err != nil {
		return nil, err
	}
	draft, err := app.Repo.LoadDraft(ctx, inst.ID)
	if err != nil {
		return nil, err
	}

	f := form.New(cfg, inst)
	f.Hydrate(responses, draft)
	return f, nil
}

type formView struct {
	Questionnaire model.Instance    `json:"questionnaire"`
	Title         string            `json:"title"`
	Subtitle      string            `json:"subtitle,omitempty"`
	Purpose       *catalog.Block    `json:"purpose,omitempty"`
	Goal          *catalog.Block    `json:"goal,omitempty"`
	Sections      []catalog.Section `json:"sections"`
	Values        model.Values      `json:"values"`
	Visible       map[string]bool   `json:"visible"`
	Progress      form.Progress     `json:"progress"`
	SuccessURL    string            `json:"success_url,omitempty"`
}

func newFormView(app app.App, f *form.Form) formView {
	cfg, inst := f.Config(), f.Instance()
	view := formView{
		Questionnaire: inst,
		Title:         cfg.Title,
		Subtitle:      cfg.Subtitle,
		Purpose:       cfg.Purpose,
		Goal:          cfg.Goal,
		Sections:      cfg.Sections,
		Values:        f.Values(),
		Visible:       map[string]bool{},
		Progress:      f.Progress(),
	}
	for _, q := range cfg.Questions() {
		view.Visible[q.Key] = f.Visible(q.Key)
	}
	if inst.Status == model.Submitted {
		view.SuccessURL = links.SuccessURL(app.PublicURL, inst)
	}
	view.Questionnaire.AccessToken = ""
	return view
}

func PublicGetForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst := middlewares.Instance(r.Context())
		f, err := loadForm(r.Context(), app, inst)
		if err != nil {
			httpx.LogInternalError(w, "get_form.load", err)
			return
		}
		render.JSON(w, r, newFormView(app, f))
	}
}

type valuesRequest struct {
	Values model.Values `json:"values"`
}

func PublicSaveDraft(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := valuesRequest{}
		err := httpx.Decode(r, &req)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		inst := middlewares.Instance(r.Context())
		f, err := loadForm(r.Context(), app, inst)
		if err != nil {
			httpx.LogInternalError(w, "save_draft.load", err)
			return
		}
		f.Merge(req.Values)

		inst, err = app.Submission.SaveDraft(r.Context(), f)
		if err != nil {
			httpx.LogDomainError(w, r, "save_draft", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"status":        inst.Status,
			"last_saved_at": inst.LastSavedAt,
			"progress":      f.Progress(),
		})
	}
}

func PublicSubmit(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := valuesRequest{}
		err := httpx.Decode(r, &req)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		inst := middlewares.Instance(r.Context())
		f, err := loadForm(r.Context(), app, inst)
		if err != nil {
			httpx.LogInternalError(w, "submit.load", err)
			return
		}
		f.Merge(req.Values)

		submittedAt, err := app.Submission.Submit(r.Context(), f)
		if err != nil {
			httpx.LogDomainError(w, r, "submit", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"submitted_at": submittedAt,
			"success_url":  links.SuccessURL(app.PublicURL, f.Instance()),
		})
	}
}

type uploadView struct {
	Name   string `json:"name"`
	URL    string `json:"url,omitempty"`
	Error  string `json:"error,omitempty"`
	Status int    `json:"status"`
}

func PublicUploadFiles(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst := middlewares.Instance(r.Context())
		if !inst.Status.CanWrite() {
			httpx.LogDomainError(w, r, "upload", model.ErrAlreadySubmitted)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
		parts, err := r.MultipartReader()
		if err != nil {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "upload.multipart", "%s", err)
			return
		}

		// Parts are streamed one at a time; each one is stored or rejected
		// before the next is read.
		var results []attachments.Result
		for {
			part, err := parts.NextPart()
			if errors.Is(err, io.EOF) {
				break
			}
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				httpx.LogStatus(w, http.StatusRequestEntityTooLarge, log.InfoLevel, "upload.body_too_large")
				return
			}
			if err != nil {
				httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "upload.next_part", "%s", err)
				return
			}
			if part.FormName() != "files" || part.FileName() == "" {
				part.Close()
				continue
			}
			res := app.Attachments.UploadFile(r.Context(), inst, attachments.File{Name: part.FileName(), Content: part})
			part.Close()
			results = append(results, res)
		}
		if len(results) == 0 {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "upload.no_files")
			return
		}

		status := 0
		views := make([]uploadView, len(results))
		for i, res := range results {
			views[i] = uploadView{Name: res.Name, URL: res.URL, Status: httpx.StatusOf(res.Err)}
			if res.Err != nil {
				views[i].Error = res.Err.Error()
				if status == 0 {
					status = views[i].Status
				}
			} else {
				status = http.StatusOK
			}
		}
		httpx.JSON(w, r, status, map[string]any{"files": views})
	}
}

func PublicExportCSV(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst := middlewares.Instance(r.Context())
		f, err := loadForm(r.Context(), app, inst)
		if err != nil {
			httpx.LogInternalError(w, "export.load", err)
			return
		}

		submittedAt := time.Now()
		if inst.SubmittedAt != nil {
			submittedAt = *inst.SubmittedAt
		}
		meta := export.Meta{
			ClientName:  inst.ClientName,
			ProductName: inst.ProductName,
			Variant:     inst.Variant,
			SubmittedAt: submittedAt,
		}
		body := export.Render(meta, export.Rows(f.Config(), f.Values()))

		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(inst.ClientName, inst.ProductName, submittedAt)+`"`)
		w.Write([]byte(body))
	}
}

// PublicSuccess shows the thank-you message of a submitted questionnaire,
// and sends clients of an open one back to the form.
func PublicSuccess(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst := middlewares.Instance(r.Context())
		if inst.Status != model.Submitted {
			log.WithFields(log.Fields{"instance": inst.ID}).Debug("success: not submitted")
			http.Redirect(w, r, links.QuestionnaireURL("", inst), http.StatusSeeOther)
			return
		}

		cfg, err := app.Catalog.Lookup(inst.Variant)
		if err != nil {
			httpx.LogInternalError(w, "success.catalog", err)
			return
		}
		cfg = cfg.Resolved(inst.ClientName, inst.ProductName)

		render.JSON(w, r, map[string]any{
			"title":        cfg.Title,
			"thank_you":    cfg.ThankYou,
			"submitted_at": inst.SubmittedAt,
			"export_url":   links.Path(inst) + "/export.csv?token=" + inst.AccessToken,
		})
	}
}
