package httpx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
	"github.com/mbolis/newsroom-forms/log"
	"github.com/mbolis/newsroom-forms/model"
)

// Will log an error, and send an HTTP response with status 500 and default text
func LogInternalError(w http.ResponseWriter, code string, err error) {
	log.Errorf("%s: %s", code, err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// Will log a debug message, and send an HTTP response with status 404 and default text
func LogNotFound(w http.ResponseWriter, code string, id any) {
	log.Debugf("%s: not found (%v)", code, id)
	w.WriteHeader(http.StatusNotFound)
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

// Will map a domain error to its HTTP status: validation errors are sent
// as JSON with status 400, anything unknown is an internal error
func WriteError(w http.ResponseWriter, r *http.Request, code string, err error) {
	var invalid *model.ValidationError
	switch {
	case errors.Is(err, model.ErrUnauthenticated):
		LogStatus(w, http.StatusUnauthorized, log.DebugLevel, code)
	case errors.Is(err, model.ErrForbidden):
		LogStatus(w, http.StatusForbidden, log.DebugLevel, code)
	case errors.Is(err, model.ErrNotFound):
		LogNotFound(w, code, r.URL.Path)
	case errors.As(err, &invalid):
		log.Debugf("%s: %s", code, invalid)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalid)
	default:
		LogInternalError(w, code, err)
	}
}
