package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ynodev/empowerpwd-api/internal/application/account"
	"github.com/ynodev/empowerpwd-api/internal/application/otp"
	"github.com/ynodev/empowerpwd-api/internal/application/staging"
	"github.com/ynodev/empowerpwd-api/internal/application/wizard"
	"github.com/ynodev/empowerpwd-api/internal/config"
	"github.com/ynodev/empowerpwd-api/internal/rules"
	"github.com/ynodev/empowerpwd-api/internal/transport/http/handler"
	appmiddleware "github.com/ynodev/empowerpwd-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// 5 requests/second, burst of 10 — applied to sensitive public endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	engine := rules.NewEngine(deps.Resolver, nil)
	otpSvc := otp.NewService(otp.ServiceDeps{
		Verifications: deps.VerificationRepo,
		Mailer:        deps.Mailer,
		CodeTTL:       cfg.OtpTTL,
	})
	stagingSvc := staging.NewService(deps.S3Store, nil)

	accountDeps := account.ServiceDeps{
		Accounts: deps.AccountRepo,
		Sessions: deps.SessionRepo,
		Objects:  deps.S3Store,
		Mailer:   deps.Mailer,
	}
	if deps.SMSSender != nil {
		accountDeps.SMS = deps.SMSSender
	}
	if deps.JWTProvider != nil {
		accountDeps.Signer = deps.JWTProvider
	}
	assembler := account.NewService(accountDeps)

	wizardDeps := wizard.ServiceDeps{
		Sessions:   deps.SessionRepo,
		Handoffs:   deps.HandoffRepo,
		Emails:     deps.AccountRepo,
		Otp:        otpSvc,
		Staging:    stagingSvc,
		Assembler:  assembler,
		Engine:     engine,
		Metrics:    deps.Metrics,
		SessionTTL: cfg.SessionTTL,
		HandoffTTL: cfg.HandoffExpiry,
	}
	if deps.JWTProvider != nil {
		wizardDeps.Signer = deps.JWTProvider
	}
	wizardSvc := wizard.NewService(wizardDeps)

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthFlowHandler(otpSvc, deps.AccountRepo, deps.Metrics)
	wizardH := handler.NewWizardHandler(wizardSvc)
	docH := handler.NewDocumentHandler(wizardSvc)
	registerH := handler.NewRegisterHandler(stagingSvc, assembler, otpSvc, engine, deps.Metrics)

	r.Get("/health-check", healthH.Ping)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(sensitiveRL.Limit).Post("/check-email", authH.CheckEmail)
			r.With(sensitiveRL.Limit).Post("/send-otp", authH.SendOtp)
			r.With(sensitiveRL.Limit).Post("/resend-otp", authH.ResendOtp)
			r.Post("/verify-otp", authH.VerifyOtp)
		})

		r.Route("/wizard/sessions", func(r chi.Router) {
			r.Post("/", wizardH.Start)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", wizardH.Get)
				r.Delete("/", wizardH.Abandon)
				r.Patch("/answers", wizardH.PatchAnswers)
				r.Post("/advance", wizardH.Advance)
				r.Post("/retreat", wizardH.Retreat)
				r.Post("/otp/cells", wizardH.OtpCells)
				r.Post("/otp/resend", wizardH.ResendOtp)
				r.Post("/documents", docH.Stage)
				r.Delete("/documents/{type}", docH.Unstage)
			})
		})

		r.Post("/handoff", wizardH.CreateHandoff)
		r.With(sensitiveRL.Limit).Post("/{flow:jobseekers|employers|assistants}/register", registerH.Register)
	})

	return r
}
