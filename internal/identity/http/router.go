package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/authlane/identity/internal/identity/domain"
	"github.com/authlane/identity/internal/identity/service"
	"github.com/authlane/identity/internal/identity/store"
	"github.com/authlane/identity/pkg/httpx"
	"github.com/authlane/identity/pkg/jwtx"
	"github.com/authlane/identity/pkg/slogx"

	_ "github.com/authlane/identity/api/identity" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store          store.Store
	SignInService  *service.SignInService
	TokenService   *service.TokenService
	AccountService *service.AccountService
	RoleService    *service.RoleService
	MFAService     *service.MFAService
}

func NewRouter(
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerUsers()
	r.registerRoles()
	r.registerMFA()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			AuthLane Identity Service API
//	@version		0.1.0
//	@description	Password sign-in with account lockout, optional TOTP second factor
//	@description	and HS256 JWT access token issuance.
//
//	@contact.name				AuthLane Team
//	@contact.url				https://github.com/authlane/identity
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	signin := &SignInHandler{
		SignInService: r.SignInService,
		TokenService:  r.TokenService,
	}

	// Credential endpoints carry the strict per-IP bucket; every attempt
	// also counts against the account-level lockout.
	r.Mux.Handle("POST /api/auth/signin",
		httpx.Chain(http.HandlerFunc(signin.HandlePassword),
			httpx.RateLimitMiddleware(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /api/auth/signin/mfa",
		httpx.Chain(http.HandlerFunc(signin.HandleTwoFactor),
			httpx.RateLimitMiddleware(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerUsers() {
	h := &UsersHandler{AccountService: r.AccountService}

	// POST /api/identity/user - open registration, strict per-IP limit
	r.Mux.Handle("POST /api/identity/user",
		httpx.Chain(http.HandlerFunc(h.HandleCreate),
			httpx.RateLimitMiddleware(httpx.StrictLimit),
		),
	)

	secured := func(next http.HandlerFunc) http.Handler {
		return httpx.Chain(next,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitMiddleware(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("GET /api/identity/user/{username}", secured(h.HandleGet))
	r.Mux.Handle("PUT /api/identity/user/{username}", secured(h.HandleUpdate))
	r.Mux.Handle("POST /api/identity/user/password", secured(h.HandleChangePassword))

	// DELETE requires the admin role on top of authentication.
	r.Mux.Handle("DELETE /api/identity/user/{username}",
		httpx.Chain(http.HandlerFunc(h.HandleDelete),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireAnyRole(domain.RoleAdmin),
			httpx.RateLimitMiddleware(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerRoles() {
	h := &RolesHandler{RoleService: r.RoleService}

	list := httpx.Chain(http.HandlerFunc(h.HandleList),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RequireAnyRole(domain.RoleAdmin),
		httpx.RateLimitMiddleware(httpx.ModerateLimit),
	)
	create := httpx.Chain(http.HandlerFunc(h.HandleCreate),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RequireAnyRole(domain.RoleAdmin),
		httpx.RateLimitMiddleware(httpx.ModerateLimit),
	)
	remove := httpx.Chain(http.HandlerFunc(h.HandleDelete),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RequireAnyRole(domain.RoleAdmin),
		httpx.RateLimitMiddleware(httpx.ModerateLimit),
	)

	r.Mux.Handle("GET /api/identity/role", list)
	r.Mux.Handle("POST /api/identity/role", create)
	r.Mux.Handle("DELETE /api/identity/role/{name}", remove)
}

func (r *Router) registerMFA() {
	h := &MFAHandler{MFAService: r.MFAService}

	enroll := httpx.Chain(http.HandlerFunc(h.HandleEnroll),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RateLimitMiddleware(httpx.ModerateLimit),
	)
	// Activation verifies TOTP codes, so it gets the strict bucket.
	activate := httpx.Chain(http.HandlerFunc(h.HandleActivate),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RateLimitMiddleware(httpx.StrictLimit),
	)
	remove := httpx.Chain(http.HandlerFunc(h.HandleRemove),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RateLimitMiddleware(httpx.ModerateLimit),
	)

	r.Mux.Handle("POST /api/auth/mfa/enroll", enroll)
	r.Mux.Handle("POST /api/auth/mfa/activate", activate)
	r.Mux.Handle("DELETE /api/auth/mfa", remove)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))
}
