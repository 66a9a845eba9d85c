package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mediationd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Initialize(ctx context.Context, network string, req types.InitializeRequest) (types.RequestAccepted, error)
	Load(ctx context.Context, network, adUnitID string, req types.LoadRequest) (types.RequestAccepted, error)
	Show(id string, req types.ShowRequest) error
	Request(id string) (types.RequestStatus, error)
	Release(id string) error
	NetworkStatus(network string) (types.NetworkStatus, error)
	Status() types.StatusResponse
	Ready() bool
}

var errBodyRequired = errors.New("Content-Type must be application/json")

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(middleware.Compress(5))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/networks/{network}/initialize", func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			var req types.InitializeRequest
			if err := decodeBody(w, r, &req); err != nil {
				writeBodyError(w, err)
				return
			}
			acc, err := svc.Initialize(r.Context(), chi.URLParam(r, "network"), req)
			if err != nil {
				writeServiceError(w, r, "initialize", start, err, "")
				return
			}
			logOutcome(r, "initialize", http.StatusAccepted, start, nil)
			writeJSON(w, http.StatusAccepted, acc)
		})

		r.Post("/networks/{network}/ads/{adUnitID}/load", func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			var req types.LoadRequest
			if err := decodeBody(w, r, &req); err != nil {
				writeBodyError(w, err)
				return
			}
			adUnitID := strings.TrimSpace(chi.URLParam(r, "adUnitID"))
			acc, err := svc.Load(r.Context(), chi.URLParam(r, "network"), adUnitID, req)
			if err != nil {
				writeServiceError(w, r, "load", start, err, acc.ID)
				return
			}
			logOutcome(r, "load", http.StatusAccepted, start, nil)
			writeJSON(w, http.StatusAccepted, acc)
		})

		r.Get("/networks/{network}/status", func(w http.ResponseWriter, r *http.Request) {
			st, err := svc.NetworkStatus(chi.URLParam(r, "network"))
			if err != nil {
				writeServiceError(w, r, "network_status", time.Now(), err, "")
				return
			}
			writeJSON(w, http.StatusOK, st)
		})

		r.Get("/requests/{id}", func(w http.ResponseWriter, r *http.Request) {
			st, err := svc.Request(chi.URLParam(r, "id"))
			if err != nil {
				writeServiceError(w, r, "request", time.Now(), err, "")
				return
			}
			writeJSON(w, http.StatusOK, st)
		})

		r.Delete("/requests/{id}", func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := chi.URLParam(r, "id")
			if err := svc.Release(id); err != nil {
				writeServiceError(w, r, "release", start, err, id)
				return
			}
			logOutcome(r, "release", http.StatusNoContent, start, nil)
			w.WriteHeader(http.StatusNoContent)
		})

		r.Post("/requests/{id}/show", func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			var req types.ShowRequest
			if err := decodeBody(w, r, &req); err != nil {
				writeBodyError(w, err)
				return
			}
			id := chi.URLParam(r, "id")
			if err := svc.Show(id, req); err != nil {
				writeServiceError(w, r, "show", start, err, id)
				return
			}
			logOutcome(r, "show", http.StatusAccepted, start, nil)
			writeJSON(w, http.StatusAccepted, map[string]any{"id": id, "status": "showing"})
		})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("initializing"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

// decodeBody reads an optional JSON body into v. An empty body leaves v
// zero; a non-empty one must be declared as JSON.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		return errBodyRequired
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeBodyError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyRequired) {
		writeJSONError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	}
	// Oversized bodies are reported as plain bad requests.
	writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
