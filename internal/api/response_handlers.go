package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/soaringjerry/Canvass/internal/services"
)

func (rt *Router) handleSubmitResponse(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Data services.Answers `json:"data"`
	}
	if err := decodeBody(w, r, &in); err != nil {
		rt.writeError(w, r, err)
		return
	}
	sub, err := rt.svc.Responses.SubmitResponse(r.Context(), actor(r), r.PathValue("id"), in.Data)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusCreated, "Survey submitted successfully!", map[string]any{
		"response_id": sub.ResponseID,
		"count":       sub.Count,
		"completed":   sub.Completed,
	})
}

func (rt *Router) handleListResponses(w http.ResponseWriter, r *http.Request) {
	rs, err := rt.svc.Responses.GetSurveyResponses(r.Context(), actor(r), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

// GET /api/surveys/{id}/response reports whether the caller already answered.
func (rt *Router) handleCheckResponse(w http.ResponseWriter, r *http.Request) {
	a := actor(r)
	if !a.Authenticated() {
		rt.writeError(w, r, services.NewUnauthorizedError("Unauthorized"))
		return
	}
	resp, err := rt.svc.Responses.CheckResponse(r.Context(), r.PathValue("id"), a.ID)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"responded": resp != nil, "response": resp})
}

func (rt *Router) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := rt.svc.Analytics.Summary(r.Context(), actor(r), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// GET /api/surveys/{id}/export?format=csv|xlsx
func (rt *Router) handleExport(w http.ResponseWriter, r *http.Request) {
	res, err := rt.svc.Export.Export(r.Context(), actor(r), r.PathValue("id"), r.URL.Query().Get("format"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

func (rt *Router) handleFeed(w http.ResponseWriter, r *http.Request) {
	list, err := rt.svc.Feed.EligibleSurveys(r.Context(), actor(r))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (rt *Router) handleHistory(w http.ResponseWriter, r *http.Request) {
	h, err := rt.svc.Responses.ParticipantHistory(r.Context(), actor(r))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": h})
}

func (rt *Router) handleDemographics(w http.ResponseWriter, r *http.Request) {
	rep, err := rt.svc.Admin.ParticipantDemographics(r.Context(), actor(r))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
