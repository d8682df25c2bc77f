// Package submission saves drafts and runs the submit pipeline of a
// questionnaire form.
package submission

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mbolis/quick-questionnaire/catalog"
	"github.com/mbolis/quick-questionnaire/export"
	"github.com/mbolis/quick-questionnaire/form"
	"github.com/mbolis/quick-questionnaire/links"
	"github.com/mbolis/quick-questionnaire/log"
	"github.com/mbolis/quick-questionnaire/model"
	"github.com/mbolis/quick-questionnaire/notify"
	"github.com/mbolis/quick-questionnaire/schema"
)

// Store is the part of the repository the pipeline writes through.
type Store interface {
	UpsertDraft(ctx context.Context, instanceID string, values model.Values) (model.Draft, error)
	TouchLastSaved(ctx context.Context, instanceID string) (time.Time, error)
	UpdateStatus(ctx context.Context, instanceID string, status model.Status, submittedAt *time.Time) error
	UpsertResponses(ctx context.Context, instanceID string, responses []model.Response) error
}

type Notifier interface {
	Notify(p notify.Payload)
}

type Service struct {
	store      Store
	notifier   Notifier
	origin     string
	validators map[model.Variant]*schema.Validator
	inflight   chan flightCheck
	closeOnce  sync.Once
	now        func() time.Time
}

// flightCheck asks the latch owner to take (acquire) or release the
// submission slot of an instance.
type flightCheck struct {
	acquire bool
	id      string
	result  chan<- bool
}

// NewService compiles one validator per variant of cat. origin prefixes
// the links sent with notifications.
func NewService(cat *catalog.Catalog, store Store, notifier Notifier, origin string) (*Service, error) {
	s := &Service{
		store:      store,
		notifier:   notifier,
		origin:     origin,
		validators: map[model.Variant]*schema.Validator{},
		inflight:   make(chan flightCheck),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, v := range model.Variants {
		cfg, err := cat.Lookup(v)
		if err != nil {
			return nil, err
		}
		s.validators[v] = schema.Compile(cfg)
	}

	go func() {
		submitting := make(map[string]bool)
		for req := range s.inflight {
			if req.acquire {
				req.result <- !submitting[req.id]
				submitting[req.id] = true
			} else {
				delete(submitting, req.id)
			}
		}
	}()
	return s, nil
}

// Close stops the latch owner. No submission may run after Close.
func (s *Service) Close() {
	s.closeOnce.Do(func() { close(s.inflight) })
}

func (s *Service) acquire(id string) bool {
	ok := make(chan bool)
	s.inflight <- flightCheck{true, id, ok}
	return <-ok
}

func (s *Service) release(id string) {
	s.inflight <- flightCheck{false, id, nil}
}

// Validate runs the variant validator on the current values of f.
func (s *Service) Validate(f *form.Form) error {
	v, ok := s.validators[f.Instance().Variant]
	if !ok {
		return model.UnknownVariantError(string(f.Instance().Variant))
	}
	return v.Validate(f.Values())
}

// SaveDraft stores the whole value map of f as its draft, without
// validation, and stamps the instance as saved. The first save holding an
// answer moves the instance to in-progress.
func (s *Service) SaveDraft(ctx context.Context, f *form.Form) (model.Instance, error) {
	inst := f.Instance()
	if !inst.Status.CanWrite() {
		return inst, model.ErrAlreadySubmitted
	}
	if !f.BeginSave() {
		return inst, model.ErrSaveInFlight
	}
	defer f.EndSave()

	values := f.Values()
	_, err := s.store.UpsertDraft(ctx, inst.ID, values)
	if err != nil {
		return inst, err
	}
	savedAt, err := s.store.TouchLastSaved(ctx, inst.ID)
	if err != nil {
		return inst, err
	}
	inst.LastSavedAt = &savedAt

	if next := inst.Status.AfterSave(values); next != inst.Status {
		err = s.store.UpdateStatus(ctx, inst.ID, next, nil)
		if err != nil {
			return inst, err
		}
		log.WithFields(log.Fields{"instance": inst.ID, "from": inst.Status, "to": next}).Info("submission.save_draft: status changed")
		inst.Status = next
	}
	f.SetInstance(inst)
	return inst, nil
}

// Submit validates f, persists one response per visible question, marks
// the instance submitted, stores the final values as draft and notifies
// the downstream endpoint without waiting for it.
func (s *Service) Submit(ctx context.Context, f *form.Form) (time.Time, error) {
	inst := f.Instance()
	fields := log.Fields{"instance": inst.ID, "variant": inst.Variant, "slug": inst.Slug}
	if !inst.Status.CanWrite() {
		return time.Time{}, model.ErrAlreadySubmitted
	}
	if !f.BeginSubmit() {
		return time.Time{}, model.ErrSubmitInFlight
	}
	defer f.EndSubmit()
	if !s.acquire(inst.ID) {
		return time.Time{}, model.ErrSubmitInFlight
	}
	defer s.release(inst.ID)

	if err := s.Validate(f); err != nil {
		return time.Time{}, err
	}

	values := f.Values()
	err := s.store.UpsertResponses(ctx, inst.ID, BuildResponses(f.Config(), values))
	if errors.Is(err, model.ErrAlreadySubmitted) {
		return time.Time{}, err
	}
	if err != nil {
		log.WithFields(fields).WithError(err).Error("submission.upsert_responses")
		return time.Time{}, &model.PersistenceError{Cause: err}
	}

	submittedAt := s.now()
	err = s.store.UpdateStatus(ctx, inst.ID, model.Submitted, &submittedAt)
	if err != nil {
		log.WithFields(fields).WithError(err).Error("submission.update_status")
		return time.Time{}, &model.PersistenceError{Cause: err}
	}
	inst.Status = model.Submitted
	inst.SubmittedAt = &submittedAt
	f.SetInstance(inst)

	_, err = s.store.UpsertDraft(ctx, inst.ID, values)
	if err != nil {
		log.WithFields(fields).WithError(err).Warn("submission.upsert_final_draft")
	}

	rows := export.Rows(f.Config(), values)
	s.notifier.Notify(notify.NewPayload(inst, links.QuestionnaireURL(s.origin, inst), submittedAt, rows))

	log.WithFields(fields).Info("submission: questionnaire submitted")
	return submittedAt, nil
}

// BuildResponses derives the response rows for the questions of cfg that
// are visible under values. cfg must be resolved for the instance.
func BuildResponses(cfg *catalog.Config, values model.Values) []model.Response {
	questions := cfg.VisibleQuestions(values)
	responses := make([]model.Response, 0, len(questions))
	for _, q := range questions {
		v := values[q.Key]
		resp := model.Response{
			QuestionKey:  q.Key,
			QuestionText: q.Label,
			AnswerFiles:  []string{},
		}
		switch q.Type {
		case catalog.File:
			resp.AnswerFiles = v.Items()
			if resp.AnswerFiles == nil {
				resp.AnswerFiles = []string{}
			}
		case catalog.Subfields:
			text := form.EncodePair(v)
			resp.AnswerText = &text
		case catalog.MultipleInputs:
			if v.Answered() {
				resp.AnswerText = textOrNil(q.MultipleInputs.Render(v.Items()))
			}
		default:
			if v.IsList() {
				if len(v.Items()) > 0 {
					text := form.EncodeList(v)
					resp.AnswerText = &text
				}
			} else {
				resp.AnswerText = textOrNil(v.String())
			}
		}
		responses = append(responses, resp)
	}
	return responses
}

func textOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
