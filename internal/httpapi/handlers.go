package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"schedulehub.org/internal/auth"
	"schedulehub.org/internal/catalog"
	"schedulehub.org/internal/obs"
)

const serviceName = "schedule-api"

type readinessChecker interface {
	Check(ctx context.Context) error
}

// ReadyProbe: простая проверка готовности (например, ping БД).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Services groups the domain services the HTTP layer dispatches to.
type Services struct {
	Auth      *auth.Service
	Directory *auth.Directory
	Catalog   *catalog.Service
}

// Option tunes API limits.
type Option func(*API)

func WithRateLimit(burst int, perSecond float64) Option {
	return func(a *API) {
		if burst > 0 && perSecond > 0 {
			a.rateBurst = burst
			a.ratePerSec = perSecond
		}
	}
}

func WithMaxBodyBytes(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxBodyBytes = n
		}
	}
}

func WithCORSOrigins(origins []string) Option {
	return func(a *API) { a.corsOrigins = origins }
}

// WithTrustedProxies lists the reverse proxies whose X-Forwarded-For header
// identifies the client. Without it the TCP peer is the client.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(a *API) { a.trustedProxies = prefixes }
}

// API: HTTP слой.
type API struct {
	router     chi.Router
	readiness  readinessChecker
	version    string
	auth       *auth.Service
	directory  *auth.Directory
	catalog    *catalog.Service
	rateBurst  int
	ratePerSec float64

	maxBodyBytes   int64
	corsOrigins    []string
	trustedProxies []netip.Prefix
}

func New(ready readinessChecker, version string, svc Services, opts ...Option) *API {
	if ready == nil {
		ready = ReadyProbe{}
	}
	a := &API{
		readiness:    ready,
		version:      version,
		auth:         svc.Auth,
		directory:    svc.Directory,
		catalog:      svc.Catalog,
		rateBurst:    20,
		ratePerSec:   10,
		maxBodyBytes: 1 << 20,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.router = a.routes()
	return a
}

func (a *API) routes() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	// health/ready/info
	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Get("/v1/info", a.Info)

	// Prometheus metrics
	r.Handle("/metrics", obs.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", a.handleRegister)
			r.Post("/authenticate", a.handleAuthenticate)
			r.Post("/refresh-token", a.handleRefreshToken)
		})
		r.Get("/user/me", a.handleMe)

		r.Route("/admin/users", func(r chi.Router) {
			r.Get("/", a.handleListUsers)
			r.Post("/admin", a.handleCreateAdmin)
			r.Get("/{userID}", a.handleGetUser)
			r.Put("/{userID}", a.handleUpdateUser)
			r.Delete("/{userID}", a.handleDeleteUser)
			r.Put("/{userID}/role", a.handleUpdateUserRole)
		})

		r.Get("/faculties", a.handleListFaculties)
		r.Get("/faculty", a.handleListFaculties)
		r.Route("/batches", func(r chi.Router) {
			r.Get("/", a.handleListGroups)
			r.Post("/", a.handleCreateGroup)
			r.Put("/{id}", a.handleUpdateGroup)
			r.Delete("/{id}", a.handleDeleteGroup)
		})
		r.Route("/subgroup", func(r chi.Router) {
			r.Get("/", a.handleListSubgroups)
			r.Get("/groupNumber/{number}", a.handleListSubgroupsByGroupNumber)
			r.Post("/", a.handleCreateSubgroup)
			r.Put("/{id}", a.handleUpdateSubgroup)
			r.Delete("/{id}", a.handleDeleteSubgroup)
		})
		r.Route("/teacher", func(r chi.Router) {
			r.Get("/", a.handleListTeachers)
			r.Post("/", a.handleCreateTeacher)
			r.Put("/{id}", a.handleUpdateTeacher)
			r.Delete("/{id}", a.handleDeleteTeacher)
		})
		r.Route("/schedule", func(r chi.Router) {
			r.Get("/", a.handleListSchedule)
			r.Post("/", a.handleCreateScheduleEntry)
			r.Put("/{id}", a.handleUpdateScheduleEntry)
			r.Delete("/{id}", a.handleDeleteScheduleEntry)
		})
	})
	return r
}

// Handler возвращает http.Handler для сервера со всей цепочкой middleware.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.router
	h = a.withAuth(h)
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h, a.corsOrigins)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = ClientIP(h, a.trustedProxies)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readiness.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.New("request body too large")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleError maps domain errors to HTTP statuses without echoing internal causes.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput), errors.Is(err, catalog.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrUnauthorized),
		errors.Is(err, auth.ErrInvalidSignature),
		errors.Is(err, auth.ErrExpired),
		errors.Is(err, auth.ErrInvalidTokenKind):
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "forbidden")
	case errors.Is(err, auth.ErrNotFound), errors.Is(err, catalog.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, auth.ErrAlreadyExists), errors.Is(err, catalog.ErrConflict):
		writeError(w, r, http.StatusConflict, "already exists")
	default:
		obs.Log("error", "request_failed", map[string]any{
			"request_id": RequestIDFromContext(r.Context()),
			"path":       r.URL.Path,
			"error":      err.Error(),
		})
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// optionalID parses an optional positive integer query parameter.
func optionalID(r *http.Request, name string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, errors.New(name + " must be a positive integer")
	}
	return &id, nil
}
