package api

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/soaringjerry/Canvass/internal/middleware"
	"github.com/soaringjerry/Canvass/internal/services"
)

// Services is everything the HTTP surface calls into.
type Services struct {
	Auth      *services.AuthService
	Surveys   *services.SurveyService
	Responses *services.ResponseService
	Analytics *services.AnalyticsService
	Export    *services.ExportService
	Feed      *services.FeedService
	Admin     *services.AdminService
}

type Options struct {
	Logger    *zap.Logger
	Ping      func(ctx context.Context) error
	Commit    string
	BuildTime string
}

type Router struct {
	svc       Services
	log       *zap.Logger
	ping      func(ctx context.Context) error
	commit    string
	buildTime string
}

func NewRouter(svc Services, opts Options) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		svc:       svc,
		log:       logger.Named("api"),
		ping:      opts.Ping,
		commit:    opts.Commit,
		buildTime: opts.BuildTime,
	}
}

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/register", rt.handleRegister)
	mux.HandleFunc("POST /api/auth/login", rt.handleLogin)
	mux.HandleFunc("POST /api/auth/password", rt.handleChangePassword)
	mux.HandleFunc("GET /api/me", rt.handleMe)
	mux.HandleFunc("PUT /api/me", rt.handleUpdateProfile)

	mux.HandleFunc("POST /api/surveys", rt.handleCreateSurvey)
	mux.HandleFunc("GET /api/surveys", rt.handleListSurveys)
	mux.HandleFunc("GET /api/surveys/stats", rt.handleDashboardStats)
	mux.HandleFunc("GET /api/surveys/{id}", rt.handleGetSurvey)
	mux.HandleFunc("PATCH /api/surveys/{id}", rt.handlePatchSurvey)
	mux.HandleFunc("PUT /api/surveys/{id}", rt.handleReplaceSurvey)
	mux.HandleFunc("DELETE /api/surveys/{id}", rt.handleDeleteSurvey)
	mux.HandleFunc("POST /api/surveys/{id}/status", rt.handleSurveyStatus)
	mux.HandleFunc("POST /api/surveys/{id}/questions", rt.handleAddQuestion)
	mux.HandleFunc("DELETE /api/surveys/{id}/questions/{questionId}", rt.handleDeleteQuestion)

	mux.HandleFunc("POST /api/surveys/{id}/responses", rt.handleSubmitResponse)
	mux.HandleFunc("GET /api/surveys/{id}/responses", rt.handleListResponses)
	mux.HandleFunc("GET /api/surveys/{id}/response", rt.handleCheckResponse)
	mux.HandleFunc("GET /api/surveys/{id}/summary", rt.handleSummary)
	mux.HandleFunc("GET /api/surveys/{id}/export", rt.handleExport)

	mux.HandleFunc("GET /api/feed", rt.handleFeed)
	mux.HandleFunc("GET /api/history", rt.handleHistory)
	mux.HandleFunc("GET /api/admin/demographics", rt.handleDemographics)

	mux.HandleFunc("GET /health", rt.handleHealth)
	mux.HandleFunc("GET /version", rt.handleVersion)
}

// Handler returns the routes wrapped in the middleware chain. The request logger runs inside
// WithAuth so it can record the caller.
func (rt *Router) Handler(auth *middleware.Auth, corsOrigins []string) http.Handler {
	mux := http.NewServeMux()
	rt.Register(mux)
	var h http.Handler = mux
	h = middleware.SecureHeaders(h)
	h = middleware.RequestLogger(rt.log)(h)
	h = auth.WithAuth(h)
	h = middleware.LocaleMiddleware(h)
	h = middleware.CORS(corsOrigins)(h)
	return h
}

func actor(r *http.Request) services.Actor {
	return middleware.ActorFromContext(r.Context())
}
