package database

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gofrs/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/mbolis/quick-questionnaire/links"
	"github.com/mbolis/quick-questionnaire/log"
	"github.com/mbolis/quick-questionnaire/model"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when an instance id matches no row.
var ErrNotFound = stderrors.New("questionnaire not found")

// createAttempts bounds the retries when a concurrent creation takes the
// same slug between the lookup and the insert.
const createAttempts = 3

// Repository is the persistence of questionnaire instances, their
// responses and their drafts.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func newID() string {
	return uuid.Must(uuid.NewV4()).String()
}

const instanceColumns = `
	id, variant, client_name, product_name, slug, access_token,
	status, created_at, last_saved_at, submitted_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanInstance(row scanner) (inst model.Instance, err error) {
	var lastSaved, submitted sql.NullTime
	err = row.Scan(
		&inst.ID, &inst.Variant, &inst.ClientName, &inst.ProductName, &inst.Slug, &inst.AccessToken,
		&inst.Status, &inst.CreatedAt, &lastSaved, &submitted,
	)
	if lastSaved.Valid {
		t := lastSaved.Time
		inst.LastSavedAt = &t
	}
	if submitted.Valid {
		t := submitted.Time
		inst.SubmittedAt = &t
	}
	return
}

// SlugExists reports whether slug is already used by an instance of variant.
func (r *Repository) SlugExists(ctx context.Context, variant model.Variant, slug string) (bool, error) {
	var found int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM questionnaires
		WHERE variant = ?
			AND slug = ?`,
		variant,
		slug,
	).Scan(&found)
	if stderrors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "db.slug_exists")
	}
	return true, nil
}

// CreateInstance inserts a not-started instance with a fresh slug and token.
func (r *Repository) CreateInstance(ctx context.Context, variant model.Variant, client, product string) (model.Instance, error) {
	for attempt := 1; ; attempt++ {
		inst, err := r.createInstance(ctx, variant, client, product)
		var sqliteErr sqlite3.Error
		if stderrors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique && attempt < createAttempts {
			log.WithFields(log.Fields{"variant": variant, "attempt": attempt}).Debug("db.create_instance: slug taken, retrying")
			continue
		}
		return inst, err
	}
}

func (r *Repository) createInstance(ctx context.Context, variant model.Variant, client, product string) (model.Instance, error) {
	slug, err := links.UniqueSlug(ctx, r.SlugExists, variant, client)
	if err != nil {
		return model.Instance{}, err
	}
	token, err := links.NewToken()
	if err != nil {
		return model.Instance{}, errors.Wrap(err, "db.create_instance.token")
	}

	inst := model.Instance{
		ID:          newID(),
		Variant:     variant,
		ClientName:  client,
		ProductName: product,
		Slug:        slug,
		AccessToken: token,
		Status:      model.NotStarted,
		CreatedAt:   r.now(),
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO questionnaires (id, variant, client_name, product_name, slug, access_token, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inst.ID, inst.Variant, inst.ClientName, inst.ProductName, inst.Slug, inst.AccessToken, inst.Status, inst.CreatedAt,
	)
	if err != nil {
		return model.Instance{}, errors.Wrap(err, "db.create_instance")
	}
	return inst, nil
}

// LoadByToken returns the instance matching all of variant, slug and token,
// or model.ErrInvalidToken.
func (r *Repository) LoadByToken(ctx context.Context, variant model.Variant, slug, token string) (model.Instance, error) {
	inst, err := scanInstance(r.db.QueryRowContext(ctx, `
		SELECT`+instanceColumns+`
		FROM questionnaires
		WHERE variant = ?
			AND slug = ?
			AND access_token = ?`,
		variant,
		slug,
		token,
	))
	if stderrors.Is(err, sql.ErrNoRows) {
		return model.Instance{}, model.ErrInvalidToken
	}
	if err != nil {
		return model.Instance{}, errors.Wrap(err, "db.load_by_token")
	}
	return inst, nil
}

func (r *Repository) LoadByID(ctx context.Context, id string) (model.Instance, error) {
	inst, err := scanInstance(r.db.QueryRowContext(ctx, `
		SELECT`+instanceColumns+`
		FROM questionnaires
		WHERE id = ?`,
		id,
	))
	if stderrors.Is(err, sql.ErrNoRows) {
		return model.Instance{}, ErrNotFound
	}
	if err != nil {
		return model.Instance{}, errors.Wrap(err, "db.load_by_id")
	}
	return inst, nil
}

// ListAll returns every instance, newest first.
func (r *Repository) ListAll(ctx context.Context) ([]model.Instance, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT`+instanceColumns+`
		FROM questionnaires
		ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "db.list_all")
	}
	defer rows.Close()

	instances := []model.Instance{}
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, errors.Wrap(err, "db.list_all.scan")
		}
		instances = append(instances, inst)
	}
	return instances, errors.Wrap(rows.Err(), "db.list_all.rows")
}

// LoadResponses returns the responses of an instance in insertion order.
func (r *Repository) LoadResponses(ctx context.Context, instanceID string) ([]model.Response, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, questionnaire_id, question_key, question_text, answer_text, answer_files, updated_at
		FROM questionnaire_responses
		WHERE questionnaire_id = ?
		ORDER BY rowid`,
		instanceID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "db.load_responses")
	}
	defer rows.Close()

	responses := []model.Response{}
	for rows.Next() {
		var (
			resp  model.Response
			text  sql.NullString
			files string
		)
		err = rows.Scan(&resp.ID, &resp.InstanceID, &resp.QuestionKey, &resp.QuestionText, &text, &files, &resp.UpdatedAt)
		if err != nil {
			return nil, errors.Wrap(err, "db.load_responses.scan")
		}
		if text.Valid {
			s := text.String
			resp.AnswerText = &s
		}
		err = json.Unmarshal([]byte(files), &resp.AnswerFiles)
		if err != nil {
			return nil, errors.Wrap(err, "db.load_responses.parse_files")
		}
		if resp.AnswerFiles == nil {
			resp.AnswerFiles = []string{}
		}
		responses = append(responses, resp)
	}
	return responses, errors.Wrap(rows.Err(), "db.load_responses.rows")
}

// LoadDraft returns the draft of an instance, or nil when none was saved.
func (r *Repository) LoadDraft(ctx context.Context, instanceID string) (*model.Draft, error) {
	var (
		draft model.Draft
		data  string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, questionnaire_id, draft_data, saved_at
		FROM draft_saves
		WHERE questionnaire_id = ?`,
		instanceID,
	).Scan(&draft.ID, &draft.InstanceID, &data, &draft.SavedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "db.load_draft")
	}
	err = json.Unmarshal([]byte(data), &draft.Values)
	if err != nil {
		return nil, errors.Wrap(err, "db.load_draft.parse")
	}
	if draft.Values == nil {
		draft.Values = model.Values{}
	}
	return &draft, nil
}

// UpsertDraft replaces the draft of an instance with values.
func (r *Repository) UpsertDraft(ctx context.Context, instanceID string, values model.Values) (model.Draft, error) {
	data, err := json.Marshal(values)
	if err != nil {
		return model.Draft{}, errors.Wrap(err, "db.upsert_draft.encode")
	}
	draft := model.Draft{InstanceID: instanceID, Values: values, SavedAt: r.now()}
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO draft_saves (id, questionnaire_id, draft_data, saved_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (questionnaire_id) DO UPDATE SET
			draft_data = excluded.draft_data,
			saved_at = excluded.saved_at
		RETURNING id`,
		newID(),
		instanceID,
		string(data),
		draft.SavedAt,
	).Scan(&draft.ID)
	if err != nil {
		return model.Draft{}, errors.Wrap(err, "db.upsert_draft")
	}
	return draft, nil
}

const upsertResponseSQL = `
	INSERT INTO questionnaire_responses
		(id, questionnaire_id, question_key, question_text, answer_text, answer_files, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (questionnaire_id, question_key) DO UPDATE SET
		question_text = excluded.question_text,
		answer_text = excluded.answer_text,
		answer_files = excluded.answer_files,
		updated_at = excluded.updated_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *Repository) upsertResponse(ctx context.Context, db execer, instanceID string, resp model.Response) error {
	files := resp.AnswerFiles
	if files == nil {
		files = []string{}
	}
	filesJSON, err := json.Marshal(files)
	if err != nil {
		return errors.Wrap(err, "db.upsert_response.encode_files")
	}
	_, err = db.ExecContext(ctx, upsertResponseSQL,
		newID(),
		instanceID,
		resp.QuestionKey,
		resp.QuestionText,
		resp.AnswerText,
		string(filesJSON),
		r.now(),
	)
	return errors.Wrapf(err, "db.upsert_response %s", resp.QuestionKey)
}

// UpsertResponse writes one response keyed on (instance, question key).
func (r *Repository) UpsertResponse(ctx context.Context, instanceID string, resp model.Response) error {
	return r.writeResponses(ctx, instanceID, []model.Response{resp}, false)
}

// UpsertResponses writes the full answer set of an instance in one
// transaction and removes rows for keys absent from it. Nothing is written
// if any upsert fails or if the instance is already submitted.
func (r *Repository) UpsertResponses(ctx context.Context, instanceID string, responses []model.Response) error {
	return r.writeResponses(ctx, instanceID, responses, true)
}

func (r *Repository) writeResponses(ctx context.Context, instanceID string, responses []model.Response, prune bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "db.begin_tx")
	}
	defer tx.Rollback()

	var status model.Status
	err = tx.QueryRowContext(ctx, `SELECT status FROM questionnaires WHERE id = ?`, instanceID).Scan(&status)
	if stderrors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return errors.Wrap(err, "db.upsert_responses.status")
	}
	if !status.CanWrite() {
		return model.ErrAlreadySubmitted
	}

	keys := make([]any, 0, len(responses)+1)
	keys = append(keys, instanceID)
	for _, resp := range responses {
		if err := r.upsertResponse(ctx, tx, instanceID, resp); err != nil {
			return err
		}
		keys = append(keys, resp.QuestionKey)
	}

	if !prune {
		return errors.Wrap(tx.Commit(), "db.upsert_responses.commit")
	}
	query := `DELETE FROM questionnaire_responses WHERE questionnaire_id = ?`
	if len(responses) > 0 {
		query += ` AND question_key NOT IN (?` + strings.Repeat(`, ?`, len(responses)-1) + `)`
	}
	if _, err := tx.ExecContext(ctx, query, keys...); err != nil {
		return errors.Wrap(err, "db.upsert_responses.prune")
	}
	return errors.Wrap(tx.Commit(), "db.upsert_responses.commit")
}

// UpdateStatus sets the status of an instance, and its submission time when
// submittedAt is not nil.
func (r *Repository) UpdateStatus(ctx context.Context, instanceID string, status model.Status, submittedAt *time.Time) error {
	var submitted sql.NullTime
	if submittedAt != nil {
		submitted = sql.NullTime{Time: *submittedAt, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE questionnaires
		SET
			status = ?,
			submitted_at = COALESCE(?, submitted_at)
		WHERE id = ?`,
		status,
		submitted,
		instanceID,
	)
	if err != nil {
		return errors.Wrap(err, "db.update_status")
	}
	return affected(res, "db.update_status")
}

// TouchLastSaved stamps the instance as saved now and returns the time.
func (r *Repository) TouchLastSaved(ctx context.Context, instanceID string) (time.Time, error) {
	now := r.now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE questionnaires
		SET last_saved_at = ?
		WHERE id = ?`,
		now,
		instanceID,
	)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "db.touch_last_saved")
	}
	return now, affected(res, "db.touch_last_saved")
}

// DeleteCascade removes an instance; responses and draft go with it.
func (r *Repository) DeleteCascade(ctx context.Context, instanceID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM questionnaires WHERE id = ?`, instanceID)
	if err != nil {
		return errors.Wrap(err, "db.delete_cascade")
	}
	return affected(res, "db.delete_cascade")
}

func affected(res sql.Result, code string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, code+".verify")
	}
	if n < 1 {
		return ErrNotFound
	}
	return nil
}
