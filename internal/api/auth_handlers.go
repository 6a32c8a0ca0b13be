package api

import (
	"net/http"

	"github.com/soaringjerry/Canvass/internal/services"
)

func (rt *Router) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in services.Registration
	if err := decodeBody(w, r, &in); err != nil {
		rt.writeError(w, r, err)
		return
	}
	res, err := rt.svc.Auth.Register(r.Context(), in)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusCreated, "Registered successfully", authFields(res))
}

func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(w, r, &in); err != nil {
		rt.writeError(w, r, err)
		return
	}
	res, err := rt.svc.Auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, "Logged in successfully", authFields(res))
}

func authFields(res *services.AuthResult) map[string]any {
	return map[string]any{"token": res.Token, "user_id": res.UserID, "role": res.Role}
}

func (rt *Router) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Current string `json:"current_password"`
		New     string `json:"new_password"`
	}
	if err := decodeBody(w, r, &in); err != nil {
		rt.writeError(w, r, err)
		return
	}
	if err := rt.svc.Auth.ChangePassword(r.Context(), actor(r), in.Current, in.New); err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, "Password changed successfully", nil)
}

func (rt *Router) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := rt.svc.Auth.Me(r.Context(), actor(r))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (rt *Router) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := decodeBody(w, r, &in); err != nil {
		rt.writeError(w, r, err)
		return
	}
	u, err := rt.svc.Auth.UpdateProfile(r.Context(), actor(r), in.Name, in.Email)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, "Profile updated successfully", map[string]any{"user": u})
}
