// Package app wires configuration, storage and every HTTP surface into a
// runnable server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"aura/internal/artists"
	"aura/internal/artworks"
	"aura/internal/auth"
	"aura/internal/collections"
	"aura/internal/config"
	"aura/internal/contacts"
	"aura/internal/exhibitions"
	"aura/internal/grpcserver"
	"aura/internal/logging"
	"aura/internal/metrics"
	"aura/internal/notes"
	"aura/internal/overview"
	"aura/internal/ratelimit"
	"aura/internal/references"
	synchub "aura/internal/sync"
	"aura/internal/web"
	"aura/internal/wishlist"
	"aura/pkg/database"
)

type App struct {
	Config  *config.Config
	DB      *database.DB
	Hub     *synchub.Hub
	Router  *gin.Engine
	Tokens  auth.TokenService
	Limiter *ratelimit.Limiter
	GRPC    *grpcserver.Server

	resolver *references.Resolver
}

// New builds the router over an open, migrated database.
func New(cfg *config.Config, db *database.DB) (*App, error) {
	a := &App{
		Config: cfg,
		DB:     db,
		Hub:    synchub.NewHub(),
		Tokens: auth.TokenService{
			Secret:   []byte(cfg.Auth.JWTSecret),
			Issuer:   cfg.Auth.Issuer,
			Duration: cfg.Auth.TTL,
		},
	}
	if cfg.RateLimit.RPS > 0 {
		a.Limiter = ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}
	if cfg.GRPC.Addr != "" {
		a.GRPC = grpcserver.New(db)
	}
	if err := a.routes(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) routes() error {
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(), metrics.Middleware())
	if err := r.SetTrustedProxies(a.Config.Server.TrustedProxies); err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}
	a.Router = r

	authRepo := auth.NewRepo(a.DB)
	requireUser := auth.Middleware(a.Tokens, authRepo)
	csrf := auth.NewCSRF(auth.CSRFConfig{
		CookieName: a.Config.CSRF.CookieName,
		HeaderName: a.Config.CSRF.HeaderName,
		Secure:     a.Config.Server.SecureCookies,
	}, []byte(a.Config.Auth.JWTSecret))

	refRepo := references.NewRepo(a.DB)
	resolver := references.NewResolver(refRepo, a.Hub)
	a.resolver = resolver
	artworkSvc := artworks.NewService(artworks.NewRepo(a.DB), resolver, a.Hub)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": a.DB.Dialect})
	})
	r.GET("/ready", a.ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", synchub.WSHandler(a.Hub, a.authenticateWS(authRepo), a.Config.Server.AllowedOrigins))
	web.RegisterStatic(r)

	authHandler := auth.NewHandler(authRepo, a.Tokens)
	authHandler.SecureCookies = a.Config.Server.SecureCookies
	authGroup := r.Group("/auth")
	authHandler.RegisterRoutes(authGroup)
	authGroup.GET("/csrf", csrf.TokenHandler)

	refHandler := references.NewHandler(resolver)
	if a.Limiter != nil {
		refHandler.Limit = a.Limiter.Middleware(func(c *gin.Context) string {
			if id := auth.UserID(c); id != "" {
				return "user:" + id
			}
			return ""
		})
	}
	refHandler.RegisterAjaxRoutes(r.Group("/ajax", requireUser, csrf.Middleware()))

	// bearer clients do not carry cookies, so the REST group skips CSRF
	api := r.Group("/api", requireUser)
	refHandler.RegisterAPIRoutes(api)
	artworks.NewHandler(artworkSvc).RegisterRoutes(api)
	artists.NewHandler(artists.NewRepo(a.DB), resolver, a.Hub).RegisterRoutes(api)
	collections.NewHandler(collections.NewRepo(a.DB), resolver, a.Hub).RegisterRoutes(api)
	exhibitions.NewHandler(exhibitions.NewRepo(a.DB), resolver, a.Hub).RegisterRoutes(api)
	contactRepo, noteRepo := contacts.NewRepo(a.DB), notes.NewRepo(a.DB)
	contacts.NewHandler(contactRepo).RegisterRoutes(api)
	notes.NewHandler(noteRepo).RegisterRoutes(api)
	wishlist.NewHandler(wishlist.NewRepo(a.DB)).RegisterRoutes(api)
	overview.NewHandler(overview.NewRepo(a.DB), artworkSvc.Repo, contactRepo, noteRepo).RegisterRoutes(api)

	pages, err := web.NewHandler(refRepo, artworkSvc, csrf)
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}
	pages.RegisterRoutes(r.Group("", requireUser, csrf.Middleware()))
	return nil
}

// Seed loads the embedded global catalogue; safe to run on every start.
func (a *App) Seed(ctx context.Context) error {
	data, err := references.DefaultSeed()
	if err != nil {
		return err
	}
	n, err := references.Seed(ctx, a.resolver, data)
	if err != nil {
		return fmt.Errorf("seed references: %w", err)
	}
	log.Info().Int("created", n).Msg("reference catalogue seeded")
	return nil
}

func (a *App) ready(c *gin.Context) {
	stats := a.Hub.Stats()
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := a.DB.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"db_error":   err.Error(),
			"ws_clients": stats.WSClients,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"db":         "ok",
		"ws_users":   stats.Users,
		"ws_clients": stats.WSClients,
	})
}

// authenticateWS accepts ?token=, a bearer header or the session cookie.
func (a *App) authenticateWS(repo *auth.Repo) synchub.Authenticator {
	return func(r *http.Request) (string, bool) {
		raw := r.URL.Query().Get("token")
		if raw == "" {
			if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
				raw = strings.TrimSpace(h[7:])
			}
		}
		if raw == "" {
			if ck, err := r.Cookie(auth.SessionCookieName); err == nil {
				raw = ck.Value
			}
		}
		if raw == "" {
			return "", false
		}
		claims, err := a.Tokens.Parse(raw)
		if err != nil {
			return "", false
		}
		v, err := repo.GetTokenVersion(r.Context(), claims.UserID)
		if err != nil || v != claims.TokenVersion {
			return "", false
		}
		return claims.UserID, true
	}
}

// Run serves HTTP (and gRPC when configured) until ctx is cancelled or a
// listener fails, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              a.Config.Server.Addr,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	if a.Limiter != nil {
		a.Limiter.StartCleanup(time.Minute)
		defer a.Limiter.Stop()
	}

	if a.GRPC != nil {
		lis, err := net.Listen("tcp", a.Config.GRPC.Addr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		wg.Add(2)
		go func() {
			defer wg.Done()
			a.GRPC.Watch(ctx, 15*time.Second)
		}()
		go func() {
			defer wg.Done()
			if err := a.GRPC.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc: %w", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Str("addr", httpSrv.Addr).Msg("HTTP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown requested")
	case runErr = <-errCh:
		log.Error().Err(runErr).Msg("server error")
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer stop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown error")
	}
	if a.GRPC != nil {
		a.GRPC.Stop()
	}
	wg.Wait()
	log.Info().Msg("servers stopped")
	return runErr
}
