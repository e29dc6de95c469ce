package beaconlib

import (
	"context"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"path"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/qri-io/jsonschema"
	"github.com/spf13/afero"
)

const (
	DefaultPageLimit       = 50
	MaxPageLimit           = 500
	DefaultUpdateRateLimit = 30

	StatsTopSize = 5
	StatsRecent  = 7 * 24 * time.Hour

	IndexPage = "index.html"
	AdminPage = "admin.html"

	maxUpdateBodySize = 16 * 1024
)

var staticFileRegexp = regexp.MustCompile(`\.(css|js|map|png|jpe?g|gif|svg|ico|webp|woff2?|txt)$`)

var locationUpdateSchema = func() *jsonschema.Schema {
	data := `{
      "type": "object",
      "additionalProperties": false,
      "anyOf": [
        {
          "required": ["city"],
          "properties": {"city": {"minLength": 1}}
        },
        {
          "required": ["country"],
          "properties": {"country": {"minLength": 1}}
        }
      ],
      "properties": {
        "lat": {"type": ["number", "null"], "minimum": -90, "maximum": 90},
        "lon": {"type": ["number", "null"], "minimum": -180, "maximum": 180},
        "city": {"type": "string", "maxLength": 128},
        "region": {"type": "string", "maxLength": 128},
        "country": {"type": "string", "maxLength": 128},
        "countryCode": {"type": "string", "maxLength": 3},
        "zip": {"type": "string", "maxLength": 32},
        "lookupSource": {"type": "string", "maxLength": 64}
      }
    }`

	rv := &jsonschema.Schema{}
	if err := json.Unmarshal([]byte(data), rv); err != nil {
		panic(err)
	}

	return rv
}()

// HTTPOptions configures an HTTP surface of beacon.
type HTTPOptions struct {
	// PublicFS is a directory with index.html, admin.html and static
	// assets.
	PublicFS afero.Fs

	AdminPassword  string
	AdminCookieTTL time.Duration
	SecureCookie   bool

	// UpdateRateLimit is a number of location updates per minute which
	// is allowed for a single client address.
	UpdateRateLimit int

	// AllowedOrigins is a list of CORS origins. Empty list disables
	// CORS.
	AllowedOrigins []string
}

type updateLocationResponse struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
	Visitor *Visit `json:"visitor,omitempty"`
}

type httpHandler struct {
	resolver *Resolver
	recorder *Recorder
	store    Store
	logger   Logger
	publicFS afero.Fs
}

func (h httpHandler) HandleIndex(w http.ResponseWriter, req *http.Request) {
	h.servePage(w, req, IndexPage)

	meta := VisitMeta{
		IP:        ClientIP(req),
		UserAgent: req.UserAgent(),
		Referer:   req.Referer(),
	}

	if err := h.recorder.Track(meta); err != nil {
		h.logger.TrackError(meta.IP, err)
	}
}

func (h httpHandler) HandleAdmin(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	h.servePage(w, req, AdminPage)
}

func (h httpHandler) HandleUpdateLocation(w http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxUpdateBodySize))
	if err != nil {
		h.sendUpdateFailure(w, http.StatusBadRequest, "Cannot read request body")

		return
	}

	keyErrors, err := locationUpdateSchema.ValidateBytes(req.Context(), body)

	switch {
	case err != nil:
		h.sendUpdateFailure(w, http.StatusBadRequest, "Request body is not a valid JSON")

		return
	case len(keyErrors) > 0:
		h.sendUpdateFailure(w, http.StatusBadRequest, "Invalid location: "+keyErrors[0].Error())

		return
	}

	update := LocationUpdate{}
	if err := json.Unmarshal(body, &update); err != nil {
		h.sendUpdateFailure(w, http.StatusBadRequest, "Invalid location")

		return
	}

	visit, err := h.recorder.UpdateLocation(req.Context(), ClientIP(req), update)

	switch {
	case errors.Is(err, ErrEmptyLocation):
		h.sendUpdateFailure(w, http.StatusBadRequest, "Invalid location: city or country is required")
	case errors.Is(err, ErrNoPendingVisit):
		h.sendUpdateFailure(w, http.StatusNotFound, "No pending visit for this address")
	case err != nil:
		h.logger.HTTPError(req, err)
		h.sendUpdateFailure(w, http.StatusInternalServerError, "Cannot update a visit")
	default:
		sendJSON(w, http.StatusOK, updateLocationResponse{
			Success: true,
			Visitor: visit,
		})
	}
}

func (h httpHandler) HandleDebug(w http.ResponseWriter, req *http.Request) {
	clientIP := ClientIP(req)
	probes := []ProviderProbe{}

	if ip := net.ParseIP(clientIP); ip != nil {
		probes = h.resolver.Probe(req.Context(), ip)
	}

	resp := struct {
		IP             string          `json:"ip"`
		Probes         []ProviderProbe `json:"probes"`
		Providers      []*UsageStats   `json:"providers"`
		StoreConnected bool            `json:"storeConnected"`
		VisitorCount   int64           `json:"visitorCount"`
	}{
		IP:             clientIP,
		Probes:         probes,
		Providers:      h.resolver.UsageStats(),
		StoreConnected: h.store.Ping(req.Context()) == nil,
	}

	if count, err := h.store.Count(req.Context()); err == nil {
		resp.VisitorCount = count
	} else {
		h.logger.HTTPError(req, err)
	}

	sendJSON(w, http.StatusOK, resp)
}

func (h httpHandler) HandleListVisitors(w http.ResponseWriter, req *http.Request) {
	page := parsePositiveInt(req.URL.Query().Get("page"), 1)
	limit := parsePositiveInt(req.URL.Query().Get("limit"), DefaultPageLimit)

	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	visits := []Visit{}

	// pages beyond the addressable offset are always empty.
	if page-1 <= math.MaxInt/limit {
		listed, err := h.store.List(req.Context(), (page-1)*limit, limit)
		if err != nil {
			h.sendError(w, req, err, "Cannot list visitors", 0)

			return
		}

		visits = listed
	}

	total, err := h.store.Count(req.Context())
	if err != nil {
		h.sendError(w, req, err, "Cannot count visitors", 0)

		return
	}

	if visits == nil {
		visits = []Visit{}
	}

	sendJSON(w, http.StatusOK, struct {
		Visitors   []Visit `json:"visitors"`
		Total      int64   `json:"total"`
		Page       int     `json:"page"`
		Limit      int     `json:"limit"`
		TotalPages int     `json:"totalPages"`
	}{
		Visitors:   visits,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	})
}

func (h httpHandler) HandleStats(w http.ResponseWriter, req *http.Request) {
	stats, err := h.store.Stats(req.Context(), time.Now().Add(-StatsRecent).UTC(), StatsTopSize)
	if err != nil {
		h.sendError(w, req, err, "Cannot calculate stats", 0)

		return
	}

	sendJSON(w, http.StatusOK, stats)
}

func (h httpHandler) HandleGetVisitor(w http.ResponseWriter, req *http.Request) {
	id, ok := h.visitID(w, req)
	if !ok {
		return
	}

	visit, err := h.store.Get(req.Context(), id)

	switch {
	case errors.Is(err, ErrVisitNotFound):
		h.sendError(w, req, err, "Visitor is not found", http.StatusNotFound)
	case err != nil:
		h.sendError(w, req, err, "Cannot get visitor", 0)
	default:
		sendJSON(w, http.StatusOK, visit)
	}
}

func (h httpHandler) HandleDeleteVisitor(w http.ResponseWriter, req *http.Request) {
	id, ok := h.visitID(w, req)
	if !ok {
		return
	}

	err := h.store.Delete(req.Context(), id)

	switch {
	case errors.Is(err, ErrVisitNotFound):
		h.sendError(w, req, err, "Visitor is not found", http.StatusNotFound)
	case err != nil:
		h.sendError(w, req, err, "Cannot delete visitor", 0)
	default:
		sendJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

func (h httpHandler) HandleDeleteAll(w http.ResponseWriter, req *http.Request) {
	deleted, err := h.store.DeleteAll(req.Context())
	if err != nil {
		h.sendError(w, req, err, "Cannot delete visitors", 0)

		return
	}

	sendJSON(w, http.StatusOK, struct {
		Success bool  `json:"success"`
		Deleted int64 `json:"deleted"`
	}{
		Success: true,
		Deleted: deleted,
	})
}

func (h httpHandler) HandleHealth(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.HTTPError(req, err)
		sendJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})

		return
	}

	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h httpHandler) visitID(w http.ResponseWriter, req *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.sendError(w, req, err, "Incorrect visitor id", http.StatusBadRequest)

		return 0, false
	}

	return id, true
}

func (h httpHandler) servePage(w http.ResponseWriter, req *http.Request, name string) {
	file, err := h.publicFS.Open(path.Join("/", name))
	if err != nil {
		h.sendError(w, req, err, "Page is not found", http.StatusNotFound)

		return
	}

	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		h.sendError(w, req, err, "Cannot read a page", 0)

		return
	}

	http.ServeContent(w, req, name, stat.ModTime(), file)
}

func (h httpHandler) sendUpdateFailure(w http.ResponseWriter, statusCode int, reason string) {
	sendJSON(w, statusCode, updateLocationResponse{
		Reason: reason,
	})
}

func (h httpHandler) sendError(w http.ResponseWriter,
	req *http.Request,
	err error,
	message string,
	statusCode int) {
	e := newAPIError(statusCode, message, err)

	if e.StatusCode() >= http.StatusInternalServerError {
		h.logger.HTTPError(req, e)
	}

	sendJSON(w, e.StatusCode(), e)
}

func sendJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	encoder := json.NewEncoder(w)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	encoder.SetEscapeHTML(false)
	encoder.Encode(data) // nolint: errcheck
}

func parsePositiveInt(value string, defaultValue int) int {
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return defaultValue
	}

	return parsed
}

func requestLogger(logger Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			started := time.Now()
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)

			next.ServeHTTP(ww, req)

			logger.HTTPRequest(req, ww.Status(), time.Since(started))
		})
	}
}

// NewHTTPHandler builds a router with all endpoints of beacon.
func NewHTTPHandler(resolver *Resolver,
	recorder *Recorder,
	hub *Hub,
	store Store,
	logger Logger,
	opts HTTPOptions) http.Handler {
	if opts.PublicFS == nil {
		opts.PublicFS = afero.NewMemMapFs()
	}

	if opts.UpdateRateLimit <= 0 {
		opts.UpdateRateLimit = DefaultUpdateRateLimit
	}

	handler := httpHandler{
		resolver: resolver,
		recorder: recorder,
		store:    store,
		logger:   logger,
		publicFS: opts.PublicFS,
	}
	gate := newAdminGate(opts.AdminPassword, opts.AdminCookieTTL, opts.SecureCookie, logger)
	staticFS := afero.NewHttpFs(afero.NewRegexpFs(opts.PublicFS, staticFileRegexp))

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)

	if len(opts.AllowedOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
	}

	router.Get("/", handler.HandleIndex)
	router.Get("/healthz", handler.HandleHealth)
	router.Handle("/static/*", http.StripPrefix("/static", http.FileServer(staticFS)))

	router.
		With(httprate.LimitByIP(opts.UpdateRateLimit, time.Minute)).
		Post("/api/update-location", handler.HandleUpdateLocation)

	router.With(gate.Interactive).Get("/admin", handler.HandleAdmin)

	router.Group(func(r chi.Router) {
		r.Use(gate.API)

		r.Get("/debug", handler.HandleDebug)
		r.Handle("/ws", hub)
		r.Handle("/metrics", MetricsHandler())

		r.Route("/api/visitors", func(r chi.Router) {
			r.Get("/", handler.HandleListVisitors)
			r.Delete("/", handler.HandleDeleteAll)
			r.Get("/stats", handler.HandleStats)
			r.Get("/{id}", handler.HandleGetVisitor)
			r.Delete("/{id}", handler.HandleDeleteVisitor)
		})
	})

	return router
}
