package httpx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
	"github.com/mbolis/quick-questionnaire/log"
	"github.com/mbolis/quick-questionnaire/model"
)

// Will log an error, and send an HTTP response with status 500 and default text
func LogInternalError(w http.ResponseWriter, code string, err error) {
	log.Errorf("%s: %s", code, err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// Will log a debug message, and send an HTTP response with status 404 and default text
func LogNotFound(w http.ResponseWriter, code string, id any) {
	log.Debugf("%s: not found (%v)", code, id)
	http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
}

// Will log an error code at the given level, and send
// an HTTP response with status and default text
func LogStatus(w http.ResponseWriter, status int, level log.Level, code string) {
	log.Log(level, code)
	http.Error(w, http.StatusText(status), status)
}

// Will log an error code and message at the given level,
// and send an HTTP response with the given status and formatted message
func LogStatusMsg(w http.ResponseWriter, status int, level log.Level, code string, msg string, args ...any) {
	errMsg := fmt.Sprintf(msg, args...)
	log.Log(level, code+":", errMsg)
	http.Error(w, errMsg, status)
}

// Will log an error code at the given level, and send a JSON body
// with the given status
func LogJSON(w http.ResponseWriter, r *http.Request, status int, level log.Level, code string, body any) {
	log.Log(level, code)
	JSON(w, r, status, body)
}

// JSON renders body with the given status.
func JSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	render.Status(r, status)
	render.JSON(w, r, body)
}

// LogDomainError maps the typed errors of the questionnaire domain to a
// status, and anything else to a 500.
func LogDomainError(w http.ResponseWriter, r *http.Request, code string, err error) {
	var invalid *model.ValidationError
	if errors.As(err, &invalid) {
		LogJSON(w, r, http.StatusUnprocessableEntity, log.DebugLevel, code+".validation", map[string]any{
			"errors": invalid.Fields,
			"first":  invalid.First(),
		})
		return
	}

	switch status := StatusOf(err); status {
	case http.StatusInternalServerError:
		LogInternalError(w, code, err)
	case http.StatusServiceUnavailable:
		log.WithError(err).Error(code)
		w.Header().Set("Retry-After", "5")
		http.Error(w, "could not save the questionnaire, please try again", status)
	default:
		if errors.Is(err, model.ErrInvalidToken) {
			w.Header().Set("Location", "/questionnaires")
		}
		LogStatusMsg(w, status, log.DebugLevel, code, "%s", err)
	}
}

// StatusOf is the status LogDomainError would answer for err.
func StatusOf(err error) int {
	var (
		invalid  *model.ValidationError
		tooLarge *model.FileTooLargeError
		persist  *model.PersistenceError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrInvalidToken), errors.Is(err, model.ErrUnknownVariant):
		return http.StatusNotFound
	case errors.Is(err, model.ErrAlreadySubmitted), errors.Is(err, model.ErrNotSubmitted),
		errors.Is(err, model.ErrSubmitInFlight), errors.Is(err, model.ErrSaveInFlight):
		return http.StatusConflict
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &persist):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
