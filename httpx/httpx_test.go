package httpx

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/mbolis/quick-questionnaire/log"
	"github.com/mbolis/quick-questionnaire/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOf(t *testing.T) {
	invalid := &model.ValidationError{}
	invalid.Add("project_name", "This field is required")

	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{invalid, http.StatusUnprocessableEntity},
		{model.ErrInvalidToken, http.StatusNotFound},
		{model.UnknownVariantError("poetry"), http.StatusNotFound},
		{model.ErrAlreadySubmitted, http.StatusConflict},
		{fmt.Errorf("wrapped: %w", model.ErrSubmitInFlight), http.StatusConflict},
		{model.ErrNotSubmitted, http.StatusConflict},
		{&model.FileTooLargeError{Name: "a.mov", Size: 11 << 20}, http.StatusRequestEntityTooLarge},
		{&model.PersistenceError{Cause: errors.New("disk full")}, http.StatusServiceUnavailable},
		{&model.UploadFailedError{Name: "a.png", Cause: errors.New("boom")}, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, StatusOf(c.err), "%v", c.err)
	}
}

func TestLogDomainError(t *testing.T) {
	invalid := &model.ValidationError{}
	invalid.Add("project_name", "This field is required")
	invalid.Add("email", "Please enter a valid email address")

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	LogDomainError(rec, req, "submit", invalid)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{
		"errors": {"project_name": "This field is required", "email": "Please enter a valid email address"},
		"first": "project_name"
	}`, rec.Body.String())

	rec = httptest.NewRecorder()
	LogDomainError(rec, req, "token", model.ErrInvalidToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "/questionnaires", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	LogDomainError(rec, req, "submit", &model.PersistenceError{Cause: errors.New("disk full")})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))
	assert.NotContains(t, rec.Body.String(), "disk full")
}

type nameRequest struct {
	Name  string `json:"client_name" form:"client_name" validate:"required,min=2,max=200,noplaceholder"`
	Other string `json:"other" form:"other"`
}

func (r *nameRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
}

func TestDecodeJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"client_name": "  Acme  ", "other": "x"}`))
	req.Header.Set("Content-Type", "application/json")

	var body nameRequest
	require.NoError(t, Decode(req, &body))
	assert.Equal(t, nameRequest{Name: "Acme", Other: "x"}, body)
}

func TestDecodeForm(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("client_name=Globex+Corp&other=y"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var body nameRequest
	require.NoError(t, Decode(req, &body))
	assert.Equal(t, nameRequest{Name: "Globex Corp", Other: "y"}, body)
}

func TestDecodeValidation(t *testing.T) {
	cases := map[string]string{
		`{"client_name": " "}`:          "required",
		`{"client_name": "A"}`:          "min",
		`{"client_name": "[Acme]"}`:     "noplaceholder",
		`{"client_name": "Acme {Inc}"}`: "noplaceholder",
	}
	for input, tag := range cases {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(input))
		var body nameRequest
		err := Decode(req, &body)
		require.Error(t, err, input)
		assert.Equal(t, map[string]string{"client_name": tag}, FieldErrors(err), input)
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"client_name": `))
	var body nameRequest
	assert.ErrorIs(t, Decode(req, &body), ErrBadBody)
	assert.Nil(t, FieldErrors(ErrBadBody))
}

func TestRequestLoggerHidesToken(t *testing.T) {
	var out bytes.Buffer
	log.SetOutput(&out)
	log.SetLevel(log.DebugLevel)
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetLevel(log.InfoLevel)
	})

	h := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/questionnaires/motion/acme?token=s3cr3t", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, out.String(), "path=/questionnaires/motion/acme")
	assert.Contains(t, out.String(), "status=418")
	assert.Contains(t, out.String(), "bytes=15")
	assert.NotContains(t, out.String(), "s3cr3t")
}
