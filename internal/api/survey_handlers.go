package api

import (
	"net/http"

	"github.com/soaringjerry/Canvass/internal/services"
)

func (rt *Router) handleCreateSurvey(w http.ResponseWriter, r *http.Request) {
	var in services.NewSurvey
	if err := decodeBody(w, r, &in); err != nil {
		rt.writeError(w, r, err)
		return
	}
	sv, err := rt.svc.Surveys.CreateSurvey(r.Context(), actor(r), in)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusCreated, "Survey created successfully", map[string]any{"survey": sv})
}

func (rt *Router) handleListSurveys(w http.ResponseWriter, r *http.Request) {
	list, err := rt.svc.Surveys.ListMySurveys(r.Context(), actor(r))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (rt *Router) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := rt.svc.Surveys.DashboardStats(r.Context(), actor(r))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) handleGetSurvey(w http.ResponseWriter, r *http.Request) {
	sv, err := rt.svc.Surveys.GetSurvey(r.Context(), actor(r), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sv)
}

// PATCH /api/surveys/{id}: absent fields keep their value.
func (rt *Router) handlePatchSurvey(w http.ResponseWriter, r *http.Request) {
	var patch services.SurveyPatch
	if err := decodeBody(w, r, &patch); err != nil {
		rt.writeError(w, r, err)
		return
	}
	patch.ID = r.PathValue("id")
	sv, err := rt.svc.Surveys.UpdateSurvey(r.Context(), actor(r), patch)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, "Survey updated successfully", map[string]any{"survey": sv})
}

// PUT /api/surveys/{id}: replaces fields and reconciles the question list.
func (rt *Router) handleReplaceSurvey(w http.ResponseWriter, r *http.Request) {
	var in services.SurveyReplace
	if err := decodeBody(w, r, &in); err != nil {
		rt.writeError(w, r, err)
		return
	}
	in.ID = r.PathValue("id")
	sv, err := rt.svc.Surveys.UpdateSurveyFull(r.Context(), actor(r), in)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, "Survey updated successfully", map[string]any{"survey": sv})
}

func (rt *Router) handleSurveyStatus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status services.SurveyStatus `json:"status"`
	}
	if err := decodeBody(w, r, &in); err != nil {
		rt.writeError(w, r, err)
		return
	}
	sv, err := rt.svc.Surveys.UpdateSurveyStatus(r.Context(), actor(r), r.PathValue("id"), in.Status)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, "Survey updated successfully", map[string]any{"survey": sv})
}

func (rt *Router) handleDeleteSurvey(w http.ResponseWriter, r *http.Request) {
	if err := rt.svc.Surveys.DeleteSurvey(r.Context(), actor(r), r.PathValue("id")); err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, "Survey deleted successfully", nil)
}

func (rt *Router) handleAddQuestion(w http.ResponseWriter, r *http.Request) {
	var in services.QuestionInput
	if err := decodeBody(w, r, &in); err != nil {
		rt.writeError(w, r, err)
		return
	}
	q, err := rt.svc.Surveys.AddQuestion(r.Context(), actor(r), services.NewQuestion{
		SurveyID:      r.PathValue("id"),
		QuestionInput: in,
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusCreated, "Question added successfully", map[string]any{"question": q})
}

func (rt *Router) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	err := rt.svc.Surveys.DeleteQuestion(r.Context(), actor(r), r.PathValue("questionId"), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, "Question deleted successfully", nil)
}
