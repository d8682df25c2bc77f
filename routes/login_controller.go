package routes

import (
	"errors"
	"net/http"

	"github.com/mbolis/quick-questionnaire/access"
	"github.com/mbolis/quick-questionnaire/app"
	"github.com/mbolis/quick-questionnaire/httpx"
	"github.com/mbolis/quick-questionnaire/log"
)

type loginRequest struct {
	Secret string `json:"secret" form:"secret" validate:"required"`
}

func Login(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := loginRequest{}
		err := httpx.Decode(r, &req)
		if err != nil {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "login.parse_body")
			return
		}

		err = app.Gate.Authenticate(w, req.Secret)
		if errors.Is(err, access.ErrWrongSecret) {
			httpx.LogStatus(w, http.StatusUnauthorized, log.InfoLevel, "login.wrong_secret")
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "login.session", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func Logout(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		app.Gate.Clear(w)
		w.WriteHeader(http.StatusNoContent)
	}
}
