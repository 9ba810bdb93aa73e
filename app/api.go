package app

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ptvalert/ptvalert/config"
	"github.com/ptvalert/ptvalert/kvstore"
	"github.com/ptvalert/ptvalert/lib"
	"github.com/ptvalert/ptvalert/lib/models"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:embed favicon.ico
var faviconICO []byte

func NewAPI(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, svc *lib.Service) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	srv := &http.Server{Addr: addr, Handler: router(cfg, log, svc)}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go srv.ListenAndServe()
			return nil
		},
		OnStop: srv.Shutdown,
	})

	return srv
}

func router(cfg *config.Config, log *zap.Logger, svc *lib.Service) http.Handler {
	ctrl := &controller{cfg, log, svc}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Every response carries permissive CORS headers, errors included.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	// The cors middleware only short-circuits genuine preflights; any
	// other OPTIONS request still answers an empty 200.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/favicon.ico", ctrl.favicon)

	r.Route("/api", func(r chi.Router) {
		r.Post("/subscribe", ctrl.subscribe)
		r.Delete("/subscribe", ctrl.unsubscribe)
		r.Get("/test-config", ctrl.testConfig)
		r.Post("/send-notification", ctrl.sendNotification)

		r.Route("/markers", func(r chi.Router) {
			r.Get("/", ctrl.listMarkers)
			r.Post("/", ctrl.createMarker)
			r.Get("/{marker_id}", ctrl.getMarker)
			r.Put("/{marker_id}", ctrl.updateMarker)
			r.Delete("/{marker_id}", ctrl.deleteMarker)
		})

		r.Post("/users/admin", ctrl.setAdmin)
		r.Post("/import", ctrl.importData)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	return r
}

type controller struct {
	cfg *config.Config
	log *zap.Logger
	svc *lib.Service
}

func statusOf(err error) int {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, kvstore.ErrStorageUnavailable):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func (ctrl *controller) reject(w http.ResponseWriter, status int, err error) {
	if err == nil {
		w.WriteHeader(status)
		return
	}
	ctrl.resolve(w, status, errorView{Error: err.Error()})
}

func (ctrl *controller) resolve(w http.ResponseWriter, status int, body any) {
	b, err := json.Marshal(body)
	if err != nil {
		ctrl.log.Sugar().Errorw("Request failed", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func (ctrl *controller) decode(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		ctrl.reject(w, http.StatusBadRequest, &models.ValidationError{Field: "body", Reason: "malformed JSON"})
		return false
	}
	return true
}

func (ctrl *controller) favicon(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/x-icon")
	w.Write(faviconICO)
}

func (ctrl *controller) subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var input models.Subscription
	if !ctrl.decode(w, r, &input) {
		return
	}

	sub, err := ctrl.svc.Subscriptions.Save(ctx, &input)
	if err != nil {
		ctrl.reject(w, statusOf(err), err)
		return
	}
	ctrl.resolve(w, http.StatusOK, subscribeView{Success: true, ID: sub.ID})
}

func (ctrl *controller) unsubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if !ctrl.decode(w, r, &req) {
		return
	}

	if err := ctrl.svc.Subscriptions.RemoveByEndpoint(ctx, req.Endpoint); err != nil {
		ctrl.reject(w, statusOf(err), err)
		return
	}
	ctrl.resolve(w, http.StatusOK, successView{Success: true})
}

func (ctrl *controller) testConfig(w http.ResponseWriter, r *http.Request) {
	view := testConfigView{
		Success:              ctrl.cfg.PushConfigured(),
		PublicKeyConfigured:  ctrl.cfg.VAPID.PublicKey != "",
		PrivateKeyConfigured: ctrl.cfg.VAPID.PrivateKey != "",
	}
	status := http.StatusOK
	if !view.Success {
		status = http.StatusInternalServerError
	}
	ctrl.resolve(w, status, view)
}

func (ctrl *controller) sendNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		MarkerID   string         `json:"markerId"`
		MarkerData *models.Marker `json:"markerData"`
	}
	if !ctrl.decode(w, r, &req) {
		return
	}
	if req.MarkerID == "" {
		ctrl.reject(w, http.StatusBadRequest, &models.ValidationError{Field: "markerId", Reason: "must not be empty"})
		return
	}

	marker := req.MarkerData
	if marker == nil {
		m, err := ctrl.svc.Markers.Get(ctx, req.MarkerID)
		if err != nil {
			ctrl.reject(w, statusOf(err), err)
			return
		}
		marker = m
	}
	marker.ID = req.MarkerID

	summary, err := ctrl.svc.Notify(ctx, marker)
	if err != nil {
		ctrl.reject(w, statusOf(err), err)
		return
	}
	ctrl.resolve(w, http.StatusOK, messageView{
		Success: true,
		Message: fmt.Sprintf("notified %d of %d subscriptions", summary.Delivered, summary.Attempted),
	})
}

func (ctrl *controller) listMarkers(w http.ResponseWriter, r *http.Request) {
	markers, err := ctrl.svc.Markers.ListAll(r.Context())
	if err != nil {
		ctrl.reject(w, statusOf(err), err)
		return
	}
	ctrl.resolve(w, http.StatusOK, markers)
}

func (ctrl *controller) createMarker(w http.ResponseWriter, r *http.Request) {
	var input models.Marker
	if !ctrl.decode(w, r, &input) {
		return
	}

	marker, err := ctrl.svc.Markers.Create(r.Context(), &input)
	if err != nil {
		ctrl.reject(w, statusOf(err), err)
		return
	}
	ctrl.resolve(w, http.StatusCreated, marker)
}

func (ctrl *controller) getMarker(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "marker_id")

	marker, err := ctrl.svc.Markers.Get(r.Context(), id)
	if err != nil {
		ctrl.reject(w, statusOf(err), err)
		return
	}
	ctrl.resolve(w, http.StatusOK, marker)
}

func (ctrl *controller) updateMarker(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "marker_id")

	var patch models.MarkerPatch
	if !ctrl.decode(w, r, &patch) {
		return
	}

	marker, err := ctrl.svc.Markers.Update(r.Context(), id, &patch)
	if err != nil {
		ctrl.reject(w, statusOf(err), err)
		return
	}
	ctrl.resolve(w, http.StatusOK, marker)
}

func (ctrl *controller) deleteMarker(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "marker_id")

	if err := ctrl.svc.Markers.Delete(r.Context(), id); err != nil {
		ctrl.reject(w, statusOf(err), err)
		return
	}
	ctrl.resolve(w, http.StatusOK, successView{Success: true})
}

func (ctrl *controller) setAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		UserID string `json:"userId"`
	}
	if !ctrl.decode(w, r, &req) {
		return
	}

	if err := ctrl.svc.Admins.Set(ctx, req.UserID); err != nil {
		ctrl.reject(w, statusOf(err), err)
		return
	}
	ctrl.resolve(w, http.StatusOK, successView{Success: true})
}

func (ctrl *controller) importData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		UserID string `json:"userId"`
		URL    string `json:"url"`
		lib.Export
	}
	if !ctrl.decode(w, r, &req) {
		return
	}

	isAdmin, err := ctrl.svc.Admins.IsAdmin(ctx, req.UserID)
	if err != nil {
		ctrl.reject(w, statusOf(err), err)
		return
	}
	if !isAdmin {
		ctrl.reject(w, http.StatusForbidden, errors.New("admin privileges required"))
		return
	}

	var summary *lib.ImportSummary
	if req.URL != "" {
		summary, err = ctrl.svc.Importer.FetchAndImport(ctx, req.URL)
	} else {
		summary, err = ctrl.svc.Importer.Import(ctx, &req.Export)
	}
	if err != nil {
		ctrl.reject(w, statusOf(err), err)
		return
	}
	ctrl.resolve(w, http.StatusOK, importView{
		Success:       true,
		Markers:       summary.Markers,
		Subscriptions: summary.Subscriptions,
		Skipped:       summary.Skipped,
	})
}
