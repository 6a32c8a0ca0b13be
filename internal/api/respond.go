package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/soaringjerry/Canvass/internal/middleware"
	"github.com/soaringjerry/Canvass/internal/services"
	"github.com/soaringjerry/Canvass/internal/utils"
)

const maxBodyBytes = 1 << 20

const (
	msgBadBody  = "invalid request body"
	msgInternal = "Internal server error"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeSuccess answers a mutation with a localised {"success": msg} plus extra fields.
func writeSuccess(w http.ResponseWriter, r *http.Request, status int, msg string, extra map[string]any) {
	body := map[string]any{"success": utils.T(middleware.LocaleFromContext(r.Context()), msg)}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

func statusFor(code services.ErrorCode) int {
	switch code {
	case services.ErrorInvalid:
		return http.StatusBadRequest
	case services.ErrorUnauthorized:
		return http.StatusUnauthorized
	case services.ErrorForbidden:
		return http.StatusForbidden
	case services.ErrorNotFound:
		return http.StatusNotFound
	case services.ErrorConflict, services.ErrorLimitReached, services.ErrorClosed:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error", "code"}. Anything that is not a ServiceError is logged
// and reported as a generic internal error.
func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	locale := middleware.LocaleFromContext(r.Context())
	se, ok := services.AsServiceError(err)
	if !ok {
		rt.log.Error("unhandled error", zap.String("path", r.URL.Path), zap.Error(err))
		se = &services.ServiceError{Code: services.ErrorInternal, Message: msgInternal}
	} else if se.Code == services.ErrorInternal {
		rt.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("message", se.Message),
			zap.Error(errors.Unwrap(se)))
	}
	writeJSON(w, statusFor(se.Code), map[string]any{
		"error": utils.T(locale, se.Message),
		"code":  se.Code,
	})
}

// decodeBody reads a JSON body of at most maxBodyBytes into out. An empty body leaves out untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return services.NewInvalidError(msgBadBody)
	}
	return nil
}
