package http

import (
	"github.com/ynodev/empowerpwd-api/internal/geo"
	"github.com/ynodev/empowerpwd-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/ynodev/empowerpwd-api/internal/infrastructure/jwt"
	s3infra "github.com/ynodev/empowerpwd-api/internal/infrastructure/s3"
	"github.com/ynodev/empowerpwd-api/internal/infrastructure/smtp"
	"github.com/ynodev/empowerpwd-api/internal/infrastructure/sns"
	"github.com/ynodev/empowerpwd-api/internal/metrics"
)

// Deps holds all infrastructure dependencies for the router. SMSSender and
// JWTProvider may be nil; the affected features degrade gracefully.
type Deps struct {
	SessionRepo      *dynamo.WizardSessionRepo
	AccountRepo      *dynamo.AccountRepo
	VerificationRepo *dynamo.VerificationRepo
	HandoffRepo      *dynamo.HandoffRepo
	S3Store          *s3infra.Store
	Mailer           smtp.Mailer
	SMSSender        sns.SMSSender
	JWTProvider      *jwtinfra.Provider
	Resolver         *geo.Resolver
	Metrics          *metrics.Metrics
}
