package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/soaringjerry/Canvass/internal/middleware"
	"github.com/soaringjerry/Canvass/internal/utils"
)

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())
	status := http.StatusOK
	ok := true
	if rt.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := rt.ping(ctx); err != nil {
			rt.log.Warn("health check failed", zap.Error(err))
			status = http.StatusServiceUnavailable
			ok = false
		}
	}
	writeJSON(w, status, map[string]any{
		"ok":         ok,
		"name":       "Canvass API",
		"locale":     locale,
		"msg":        utils.T(locale, "ok"),
		"commit":     rt.commit,
		"build_time": rt.buildTime,
	})
}

func (rt *Router) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"commit":     rt.commit,
		"build_time": rt.buildTime,
	})
}
