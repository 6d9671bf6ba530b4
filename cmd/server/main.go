// Command server runs the einlass demo gateway: a small site protected
// by the form-login interception layer.
//
// Configuration is read from a YAML file (see pkg/config for the
// discovery order) with EINLASS_* environment overrides. SIGHUP reloads
// the auth layer configuration through the registry's epoch-based
// refresh; SIGINT/SIGTERM shut down gracefully.
package main

import (
	"context"
	"flag"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/einlass-dev/einlass/pkg/authn"
	"github.com/einlass-dev/einlass/pkg/authn/formlogin"
	"github.com/einlass-dev/einlass/pkg/config"
	"github.com/einlass-dev/einlass/pkg/gate"
	"github.com/einlass-dev/einlass/pkg/observability"
	"github.com/einlass-dev/einlass/pkg/provider"
	"github.com/einlass-dev/einlass/pkg/session"
	"github.com/einlass-dev/einlass/pkg/transport"
	"github.com/einlass-dev/einlass/pkg/validator/postgres"
	"github.com/einlass-dev/einlass/pkg/validator/static"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Session store.
	sessions, err := session.NewMemory(session.MemoryConfig{
		CookieName:  cfg.Session.CookieName,
		SigningKey:  []byte(cfg.Session.SigningKey),
		TTL:         cfg.Session.TTL,
		MaxSessions: cfg.Session.MaxSessions,
		Secure:      cfg.Session.Secure,
	})
	if err != nil {
		return fmt.Errorf("creating session store: %w", err)
	}

	// Credential validator.
	validator, cleanup, err := buildValidator(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating validator: %w", err)
	}
	defer cleanup()

	// Module factory table and registry.
	provider.RegisterModule(formlogin.Name, formlogin.New)

	registry := provider.NewRegistry(authn.ModuleDeps{
		Sessions:  sessions,
		Validator: validator,
		Handler: authn.PropagationFunc(func(_ context.Context, id *authn.Identity) error {
			slog.Debug("identity propagated", "username", id.Name, "groups", id.Groups)
			return nil
		}),
	})
	if err := refresh(registry, cfg); err != nil {
		return fmt.Errorf("seeding registry: %w", err)
	}

	// Interception point.
	g := &gate.Gate{
		Registry: registry,
		Policy:   prefixPolicy(cfg.Auth.ProtectedPaths),
		Bypass:   gate.DefaultBypassPaths,
	}

	// Demo site.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", publicPage)
	mux.HandleFunc("GET /private", privatePage)
	mux.HandleFunc("GET /private/", privatePage)
	mux.HandleFunc("GET /login", loginPage)

	handler := g.Middleware(mux)
	handler = observability.MetricsMiddleware(handler)
	handler = transport.Logging(nil)(handler)
	handler = transport.Recovery(handler)
	handler = transport.RequestID(handler)

	root := http.NewServeMux()
	root.Handle("/", handler)
	root.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	if cfg.Observability.Metrics.Enabled {
		root.Handle("GET "+cfg.Observability.Metrics.Path, promhttp.Handler())
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      root,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// SIGHUP reloads the auth layer configuration.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			newCfg, err := config.Load(configPath)
			if err != nil {
				slog.Error("config reload failed", "error", err)
				continue
			}
			if err := refresh(registry, newCfg); err != nil {
				slog.Error("registry refresh failed", "error", err)
				continue
			}
			slog.Info("configuration reloaded", "epoch", registry.Epoch())
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port, "validator", cfg.Validator.Type)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// refresh installs the configured auth layers and updates the gauges.
func refresh(registry *provider.Registry, cfg *config.Config) error {
	if err := registry.Refresh(cfg.Auth.Layers); err != nil {
		return err
	}
	observability.ConfigEpoch.Set(float64(registry.Epoch()))
	observability.ProviderRegistrations.Set(float64(len(registry.RegistrationIDs(""))))
	return nil
}

// buildValidator constructs the configured credential validator and a
// cleanup function for its resources.
func buildValidator(ctx context.Context, cfg *config.Config) (authn.CredentialValidator, func(), error) {
	switch cfg.Validator.Type {
	case "static":
		accounts := make([]static.Account, 0, len(cfg.Validator.Static.Users))
		for _, u := range cfg.Validator.Static.Users {
			accounts = append(accounts, static.Account{
				Username: u.Username,
				Password: u.Password,
				Groups:   u.Groups,
			})
		}
		v, err := static.New(accounts)
		if err != nil {
			return nil, nil, err
		}
		return v, func() {}, nil

	case "postgres":
		v, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Validator.Postgres.DSN,
			MaxConns:       cfg.Validator.Postgres.MaxConns,
			MigrateOnStart: cfg.Validator.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, nil, err
		}
		return v, v.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown validator type %q", cfg.Validator.Type)
	}
}

// prefixPolicy makes authentication mandatory for requests under any of
// the given path prefixes.
func prefixPolicy(prefixes []string) func(*http.Request) authn.Policy {
	return func(r *http.Request) authn.Policy {
		for _, p := range prefixes {
			if strings.HasPrefix(r.URL.Path, p) {
				return authn.Policy{Mandatory: true}
			}
		}
		return authn.Policy{}
	}
}

var loginTmpl = template.Must(template.New("login").Parse(`<!doctype html>
<title>Sign in</title>
<h1>Sign in</h1>
{{if .Retry}}<p>Wrong username or password.</p>{{end}}
<form method="post" action="/login/check">
  <input type="hidden" name="returnURL" value="{{.ReturnURL}}">
  <label>Username <input name="username" value="{{.Username}}"></label>
  <label>Password <input type="password" name="password"></label>
  <button type="submit">Sign in</button>
</form>
`))

// loginPage renders a minimal credential form. The attempted username
// and the original target arrive as query parameters from the module's
// retry redirect.
func loginPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	loginTmpl.Execute(w, map[string]any{
		"Username":  r.URL.Query().Get("username"),
		"ReturnURL": r.URL.Query().Get("returnURL"),
		"Retry":     r.URL.Query().Has("username"),
	})
}

func publicPage(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, "public area")
	if id := authn.IdentityFromContext(r.Context()); id != nil {
		fmt.Fprintf(w, "signed in as %s\n", id.Name)
	}
}

func privatePage(w http.ResponseWriter, r *http.Request) {
	id := authn.IdentityFromContext(r.Context())
	if id == nil {
		// The gate only lets authenticated requests this far when the
		// path is configured as protected.
		http.Error(w, "no identity", http.StatusInternalServerError)
		return
	}
	fmt.Fprintf(w, "hello %s (groups: %s)\n", id.Name, strings.Join(id.Groups, ", "))
}
