package routes

import (
	"net/http"
	"time"

	"github.com/ratethiscrow/crowapi/internal/app"
	"github.com/ratethiscrow/crowapi/internal/handler"
	"github.com/ratethiscrow/crowapi/internal/middleware"
	"github.com/ratethiscrow/crowapi/internal/service"
)

func SetupRoutes(app *app.App) http.Handler {
	cfg := app.Cfg

	// Handlers
	crows := handler.NewCrowHandler(app.CrowService, cfg.RatingMin, cfg.RatingMax)
	names := handler.NewNameHandler(app.CrowService)
	crowmail := handler.NewCrowmailHandler(app.CrowmailService)
	uploadGate := handler.NewUploadGateHandler(app.UploadGate)

	// Rate limits per client IP
	passwordLimit := middleware.RateLimit(cfg.PasswordRateLimit, 15*time.Minute, cfg.TrustedProxyHops)
	subscribeLimit := middleware.RateLimit(cfg.SubscribeRateLimit, time.Hour, cfg.TrustedProxyHops)

	var upload http.Handler = http.HandlerFunc(crows.Upload)
	if cfg.UploadRequireToken {
		upload = middleware.RequireUploadToken(service.UploadTokenCookie, app.UploadGate)(upload)
	}

	mux := http.NewServeMux()

	// Health
	mux.HandleFunc("GET /health", handler.Health)

	// Upload gate
	mux.Handle("POST /validate-password", passwordLimit(http.HandlerFunc(uploadGate.ValidatePassword)))

	// Crows
	mux.HandleFunc("GET /random", crows.Random)
	mux.HandleFunc("POST /rate", crows.Rate)
	mux.Handle("POST /upload", upload)
	mux.HandleFunc("GET /leaderboard", crows.Leaderboard)
	mux.HandleFunc("GET /all-crows", crows.AllCrows)
	mux.HandleFunc("GET /crow/{id}", crows.Crow)

	// Names
	mux.HandleFunc("POST /new-name", names.NewName)
	mux.HandleFunc("POST /name-vote", names.Vote)
	mux.HandleFunc("POST /names", names.Names)
	mux.HandleFunc("POST /validate-name", names.Validate)

	// Crowmail
	mux.Handle("POST /crowmail/subscribe", subscribeLimit(http.HandlerFunc(crowmail.Subscribe)))
	mux.HandleFunc("GET /crowmail/verify", crowmail.Verify)
	mux.HandleFunc("POST /crowmail/unsubscribe", crowmail.Unsubscribe)

	return middleware.Chain(mux,
		middleware.Recover,
		middleware.RequestLogging,
		middleware.CORS(cfg.CORSAllowedOrigins),
		middleware.Timeout(cfg.HandlerTimeout),
	)
}
