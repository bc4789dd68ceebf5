package server

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/fleetguard/fleetguard/pkg/approval"
	"github.com/fleetguard/fleetguard/pkg/audit"
	"github.com/fleetguard/fleetguard/pkg/authz"
	"github.com/fleetguard/fleetguard/pkg/catalog"
	"github.com/fleetguard/fleetguard/pkg/config"
	"github.com/fleetguard/fleetguard/pkg/metrics"
	"github.com/fleetguard/fleetguard/pkg/org"
	"github.com/fleetguard/fleetguard/pkg/rbac"
	"github.com/fleetguard/fleetguard/pkg/server/middleware"
	"github.com/fleetguard/fleetguard/pkg/store"
)

// Services are the components the endpoints are served from
type Services struct {
	Catalog   *catalog.Catalog
	Roles     *rbac.Service
	Evaluator *authz.Evaluator
	Ledger    *audit.Ledger
	Policy    *org.Holder
	Approvals *approval.Service
	Health    store.HealthStore
}

type Server struct {
	Catalog   *catalog.Catalog
	Roles     *rbac.Service
	Evaluator *authz.Evaluator
	Ledger    *audit.Ledger
	Policy    *org.Holder
	Approvals *approval.Service
	Health    store.HealthStore

	Config   *config.FleetguardConfig
	Router   *mux.Router
	Identity *middleware.IdentityAuthenticator
	srv      *http.Server
}

func NewServer(
	svc Services,
	cfg *config.FleetguardConfig,
	host string,
	port string,
) *Server {
	metrics.Init()

	router := mux.NewRouter().UseEncodedPath()
	router.Use(metrics.Instrument)

	var trusted middleware.TrustFunc
	if len(cfg.TrustedProxies) > 0 {
		trusted = cfg.IsTrustedProxy
	}

	handler := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(router)
	srv := &http.Server{
		Handler:      handlers.LoggingHandler(os.Stdout, handler),
		Addr:         net.JoinHostPort(host, port),
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	return &Server{
		Catalog:   svc.Catalog,
		Roles:     svc.Roles,
		Evaluator: svc.Evaluator,
		Ledger:    svc.Ledger,
		Policy:    svc.Policy,
		Approvals: svc.Approvals,
		Health:    svc.Health,
		Config:    cfg,
		Router:    router,
		Identity:  middleware.NewIdentityAuthenticator(trusted),
		srv:       srv,
	}
}

// Addr is the address the server listens on
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Handler returns the fully wrapped handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
