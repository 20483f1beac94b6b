// Package server exposes the fulfillment operations over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tournevent/fulfillment/internal/shipping"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Operations is the orchestrator surface served over HTTP.
type Operations interface {
	CreateShipment(ctx context.Context, fields shipper.Fields) (*shipping.Outcome, error)
	RequestPickups(ctx context.Context, fields shipper.Fields) ([]shipper.PickupConfirmation, error)
	UpdateShipments(ctx context.Context, fields shipper.Fields) error
	PacklinkLabels(ctx context.Context, reference string) ([]string, error)
	Routes() []shipper.Route
}

// Server is the HTTP server for the fulfillment service.
type Server struct {
	port    int
	timeout time.Duration
	ops     Operations
	logger  *otelzap.Logger
	metrics http.Handler
}

// Config holds server configuration.
type Config struct {
	Port           int
	RequestTimeout time.Duration
	// MetricsHandler serves /metrics. Defaults to the global Prometheus handler.
	MetricsHandler http.Handler
}

// New creates a new server instance.
func New(cfg Config, ops Operations, logger *otelzap.Logger) *Server {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.MetricsHandler == nil {
		cfg.MetricsHandler = promhttp.Handler()
	}
	return &Server{
		port:    cfg.Port,
		timeout: cfg.RequestTimeout,
		ops:     ops,
		logger:  logger,
		metrics: cfg.MetricsHandler,
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(s.timeout))
		r.Post("/shipments", s.handleCreateShipment)
		r.Post("/pickups/{carrier}", s.handleRequestPickups)
		r.Post("/tracking/{carrier}", s.handleUpdateShipments)
		r.Get("/packlink/labels/{reference}", s.handlePacklinkLabels)
		r.Get("/routes", s.handleRoutes)
	})
	return r
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: s.timeout + 5*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type shipmentResponse struct {
	FulfillmentID  int64    `json:"fulfillment_id,omitempty"`
	OrderID        string   `json:"order_id"`
	Carrier        string   `json:"carrier"`
	ProviderID     string   `json:"provider_id,omitempty"`
	TrackingNumber string   `json:"tracking_number,omitempty"`
	TrackingURL    string   `json:"tracking_url,omitempty"`
	LabelURL       string   `json:"label_url,omitempty"`
	Status         string   `json:"status"`
	RequestPickup  bool     `json:"request_pickup"`
	Notification   string   `json:"notification,omitempty"`
	Invoiced       bool     `json:"invoiced"`
	Warnings       []string `json:"warnings,omitempty"`
}

func (s *Server) handleCreateShipment(w http.ResponseWriter, r *http.Request) {
	fields, ok := s.decodeFields(w, r)
	if !ok {
		return
	}

	outcome, err := s.ops.CreateShipment(r.Context(), fields)
	var post *shipping.PostProcessingError
	if err != nil && !(errors.As(err, &post) && outcome != nil) {
		s.writeError(w, r, err)
		return
	}

	resp := shipmentResponse{
		FulfillmentID:  outcome.FulfillmentID,
		OrderID:        outcome.Result.OrderID,
		Carrier:        outcome.Result.ShippingProvider,
		ProviderID:     outcome.Result.ProviderID,
		TrackingNumber: outcome.Result.TrackingNumber,
		TrackingURL:    outcome.Result.TrackingURL,
		LabelURL:       outcome.Result.LabelURL,
		Status:         string(outcome.Result.Status),
		RequestPickup:  outcome.Result.RequestPickup,
		Notification:   string(outcome.Notification),
		Invoiced:       outcome.Invoiced,
	}
	status := http.StatusCreated
	if err != nil {
		resp.Warnings = []string{err.Error()}
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

type confirmationResponse struct {
	LocationID string         `json:"location_id"`
	PickupDate string         `json:"pickup_date,omitempty"`
	Reference  string         `json:"reference,omitempty"`
	Requests   int            `json:"requests"`
	Countries  map[string]int `json:"countries,omitempty"`
	Error      string         `json:"error,omitempty"`
}

func (s *Server) handleRequestPickups(w http.ResponseWriter, r *http.Request) {
	fields := shipper.Fields{"shipper": chi.URLParam(r, "carrier")}

	confs, err := s.ops.RequestPickups(r.Context(), fields)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]confirmationResponse, 0, len(confs))
	for _, c := range confs {
		resp := confirmationResponse{
			LocationID: c.LocationID,
			Reference:  c.Reference,
			Requests:   c.Requests,
		}
		if !c.PickupDate.IsZero() {
			resp.PickupDate = c.PickupDate.Format(time.DateOnly)
		}
		if len(c.Countries) > 0 {
			resp.Countries = make(map[string]int, len(c.Countries))
			for _, cc := range c.Countries {
				resp.Countries[cc.Country] = cc.Count
			}
		}
		if c.Err != nil {
			resp.Error = c.Err.Error()
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, map[string]any{"confirmations": out})
}

func (s *Server) handleUpdateShipments(w http.ResponseWriter, r *http.Request) {
	fields := shipper.Fields{"shipper": chi.URLParam(r, "carrier")}

	if err := s.ops.UpdateShipments(r.Context(), fields); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePacklinkLabels(w http.ResponseWriter, r *http.Request) {
	urls, err := s.ops.PacklinkLabels(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if urls == nil {
		urls = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"labels": urls})
}

type routeResponse struct {
	Carrier   string   `json:"carrier"`
	Priority  int      `json:"priority"`
	Origins   []string `json:"origins,omitempty"`
	AnyOrigin bool     `json:"any_origin,omitempty"`
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	routes := s.ops.Routes()
	out := make([]routeResponse, len(routes))
	for i, rt := range routes {
		out[i] = routeResponse{Carrier: rt.Carrier, Priority: rt.Priority, Origins: rt.Origins, AnyOrigin: rt.AnyOrigin}
	}
	writeJSON(w, http.StatusOK, map[string]any{"routes": out})
}

func (s *Server) decodeFields(w http.ResponseWriter, r *http.Request) (shipper.Fields, bool) {
	var fields shipper.Fields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON: " + err.Error()})
		return nil, false
	}
	if fields == nil {
		fields = shipper.Fields{}
	}
	return fields, true
}

// retryAfter is the Retry-After value, in seconds, sent with retryable carrier failures.
const retryAfter = "30"

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}
	var verr *shipper.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}
	if shipper.IsRetryable(err) {
		w.Header().Set("Retry-After", retryAfter)
	}
	if status >= http.StatusInternalServerError {
		s.logger.Ctx(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeJSON(w, status, resp)
}

// statusFor maps operation errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shipper.ErrValidation),
		errors.Is(err, shipper.ErrUnsupportedCarrier),
		errors.Is(err, shipper.ErrCarrierNotSupportedForRoute),
		errors.Is(err, shipper.ErrNoCarrierForRoute),
		errors.Is(err, shipper.ErrNotEligible):
		return http.StatusUnprocessableEntity
	case errors.Is(err, shipper.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, shipper.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, shipper.ErrCarrierRequestFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
