package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/iwvelando/mro-estimator/internal/capture"
	"github.com/iwvelando/mro-estimator/internal/estimate"
	"github.com/iwvelando/mro-estimator/internal/export"
	"github.com/iwvelando/mro-estimator/internal/lead"
	"github.com/iwvelando/mro-estimator/internal/profile"
	"github.com/iwvelando/mro-estimator/internal/store"
	"github.com/iwvelando/mro-estimator/internal/wizard"
	"github.com/iwvelando/mro-estimator/pkg/constants"
	"github.com/iwvelando/mro-estimator/pkg/validation"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

//go:embed static/*
var staticFiles embed.FS

// LeadService records leads and looks them up.
type LeadService interface {
	Submit(ctx context.Context, sub capture.Submission) (capture.Receipt, error)
	Lookup(ctx context.Context, leadID string) (capture.Record, error)
}

// Dependencies are the collaborators behind the API.
type Dependencies struct {
	Sessions *wizard.Manager
	Leads    LeadService
	// LeadRatePerMinute caps lead submissions across all clients. Zero
	// disables the limit.
	LeadRatePerMinute int
}

type handler struct {
	logger      *zap.Logger
	maxBodySize int64
	version     string
	sessions    *wizard.Manager
	leads       LeadService
	leadLimiter *rate.Limiter
}

// NewHandler constructs the HTTP handler that serves the web UI and estimator API.
func NewHandler(logger *zap.Logger, deps Dependencies, maxBodySize int64, version string) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	if maxBodySize <= 0 {
		maxBodySize = constants.DefaultMaxBodySizeBytes
	}

	trimmedVersion := strings.TrimSpace(version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	h := &handler{
		logger:      logger,
		maxBodySize: maxBodySize,
		version:     trimmedVersion,
		sessions:    deps.Sessions,
		leads:       deps.Leads,
	}
	if deps.LeadRatePerMinute > 0 {
		h.leadLimiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(deps.LeadRatePerMinute)), deps.LeadRatePerMinute)
	}

	mux := http.NewServeMux()

	// Stateless estimator endpoints
	mux.HandleFunc("/api/validate", h.handleValidate)
	mux.HandleFunc("/api/estimate", h.handleEstimate)
	mux.HandleFunc("/api/export", h.handleExport)
	mux.HandleFunc("/api/options", h.handleOptions)

	// Lead capture
	mux.HandleFunc("POST /api/leads", h.handleLeadSubmit)
	mux.HandleFunc("GET /api/leads/{id}", h.handleLeadGet)

	// Server-held wizard sessions
	mux.HandleFunc("POST /api/sessions", h.handleSessionCreate)
	mux.HandleFunc("GET /api/sessions/{id}", h.handleSessionGet)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.handleSessionDelete)
	mux.HandleFunc("POST /api/sessions/{id}/{action}", h.handleSessionAction)

	// Version endpoint for UI metadata
	mux.HandleFunc("/api/version", h.handleVersion)
	mux.HandleFunc("/healthz", h.handleHealth)

	// Static assets (web UI)
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(fmt.Sprintf("failed to prepare embedded static files: %v", err))
	}
	fileServer := http.FileServer(http.FS(sub))
	mux.Handle("/", fileServer)

	return mux
}

type estimateRequest struct {
	Concerns []string        `json:"concerns"`
	Profile  profile.Profile `json:"profile"`
}

type estimateResponse struct {
	Validation validation.Outcome `json:"validation"`
	Result     *estimate.Result   `json:"result,omitempty"`
	Payload    *estimate.Payload  `json:"payload,omitempty"`
}

type errorResponse struct {
	Error      string              `json:"error"`
	Fields     map[string]string   `json:"fields,omitempty"`
	Validation *validation.Outcome `json:"validation,omitempty"`
}

// decodeEstimateRequest reads concerns and a profile; profile fields the
// client omits keep their defaults.
func (h *handler) decodeEstimateRequest(w http.ResponseWriter, r *http.Request, op string) (profile.Profile, profile.Selection, bool) {
	req := estimateRequest{Profile: profile.Default()}
	if !h.decodeJSON(w, r, &req, op) {
		return profile.Profile{}, nil, false
	}

	sel, err := profile.ParseSelection(req.Concerns)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return profile.Profile{}, nil, false
	}
	return req.Profile, sel, true
}

func (h *handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	p, sel, ok := h.decodeEstimateRequest(w, r, "server.handleValidate")
	if !ok {
		return
	}

	h.writeJSON(w, http.StatusOK, validation.Validate(p, sel))
}

func (h *handler) handleEstimate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	const op = "server.handleEstimate"
	start := time.Now()

	p, sel, ok := h.decodeEstimateRequest(w, r, op)
	if !ok {
		return
	}
	if sel.Empty() {
		h.respondErrorWithOp(w, http.StatusUnprocessableEntity, wizard.ErrNoConcerns.Error(), op)
		return
	}

	outcome := validation.Validate(p, sel)
	if !outcome.Valid() {
		h.writeJSON(w, http.StatusUnprocessableEntity, estimateResponse{Validation: outcome})
		return
	}

	result := estimate.Estimate(p, sel)
	payload := estimate.Flatten(p, result)

	h.logger.Info("estimate computed",
		zap.String("op", op),
		zap.Strings("concerns", result.Concerns),
		zap.Float64("grandTotal", result.GrandTotal),
		zap.Duration("duration", time.Since(start)),
	)

	h.writeJSON(w, http.StatusOK, estimateResponse{Validation: outcome, Result: &result, Payload: &payload})
}

func (h *handler) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	const op = "server.handleExport"
	p, sel, ok := h.decodeEstimateRequest(w, r, op)
	if !ok {
		return
	}
	if sel.Empty() {
		h.respondErrorWithOp(w, http.StatusUnprocessableEntity, wizard.ErrNoConcerns.Error(), op)
		return
	}
	if outcome := validation.Validate(p, sel); !outcome.Valid() {
		h.writeJSON(w, http.StatusUnprocessableEntity, estimateResponse{Validation: outcome})
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="mro-estimate.xlsx"`)
	if err := export.Write(w, p, estimate.Estimate(p, sel)); err != nil {
		h.logger.Error("failed to write export",
			zap.String("op", op),
			zap.Error(err),
		)
	}
}

type optionsResponse struct {
	Concerns     []string        `json:"concerns"`
	Industries   []string        `json:"industries"`
	JobFunctions []string        `json:"jobFunctions"`
	Defaults     profile.Profile `json:"defaults"`
}

func (h *handler) handleOptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	concerns := make([]string, 0, len(profile.AllConcerns))
	for _, c := range profile.AllConcerns {
		concerns = append(concerns, string(c))
	}

	h.writeJSON(w, http.StatusOK, optionsResponse{
		Concerns:     concerns,
		Industries:   profile.Industries,
		JobFunctions: lead.JobFunctions,
		Defaults:     profile.Default(),
	})
}

func (h *handler) allowLead(w http.ResponseWriter, op string) bool {
	if h.leadLimiter == nil || h.leadLimiter.Allow() {
		return true
	}
	w.Header().Set("Retry-After", "60")
	h.respondErrorWithOp(w, http.StatusTooManyRequests, "too many lead submissions, try again shortly", op)
	return false
}

func (h *handler) handleLeadSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleLeadSubmit"
	if h.leads == nil {
		h.respondErrorWithOp(w, http.StatusServiceUnavailable, "lead capture is not configured", op)
		return
	}
	if !h.allowLead(w, op) {
		return
	}

	var sub capture.Submission
	if !h.decodeJSON(w, r, &sub, op) {
		return
	}

	receipt, err := h.leads.Submit(r.Context(), sub)
	if err != nil {
		h.respondSubmitError(w, err, op)
		return
	}

	h.writeJSON(w, http.StatusOK, receipt)
}

func (h *handler) respondSubmitError(w http.ResponseWriter, err error, op string) {
	var contactErr *lead.ValidationError
	var calcErr *capture.CalculationError

	switch {
	case errors.As(err, &contactErr):
		h.logger.Info("lead rejected",
			zap.String("op", op),
			zap.String("error", err.Error()),
		)
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Fields: contactErr.Fields})
	case errors.As(err, &calcErr):
		h.logger.Info("calculation rejected",
			zap.String("op", op),
			zap.String("error", err.Error()),
		)
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Validation: calcErr.Outcome})
	default:
		h.respondErrorWithOp(w, http.StatusInternalServerError, "failed to record lead", op)
	}
}

func (h *handler) handleLeadGet(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleLeadGet"
	if h.leads == nil {
		h.respondErrorWithOp(w, http.StatusServiceUnavailable, "lead capture is not configured", op)
		return
	}

	record, err := h.leads.Lookup(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		h.respondErrorWithOp(w, http.StatusNotFound, err.Error(), op)
		return
	}
	if err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("failed to load lead: %v", err), op)
		return
	}

	h.writeJSON(w, http.StatusOK, record)
}

func (h *handler) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		h.respondErrorWithOp(w, http.StatusServiceUnavailable, "sessions are not configured", "server.handleSessionCreate")
		return
	}
	s := h.sessions.Create()
	h.writeJSON(w, http.StatusCreated, s.Snapshot())
}

func (h *handler) session(w http.ResponseWriter, r *http.Request, op string) (*wizard.Session, bool) {
	if h.sessions == nil {
		h.respondErrorWithOp(w, http.StatusServiceUnavailable, "sessions are not configured", op)
		return nil, false
	}
	s, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		h.respondErrorWithOp(w, http.StatusNotFound, err.Error(), op)
		return nil, false
	}
	return s, true
}

func (h *handler) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r, "server.handleSessionGet")
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *handler) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r, "server.handleSessionDelete")
	if !ok {
		return
	}
	h.sessions.Delete(s.ID())
	w.WriteHeader(http.StatusNoContent)
}

type toggleRequest struct {
	Concern string `json:"concern"`
}

type submitRequest struct {
	Profile profile.Profile `json:"profile"`
}

type leadRequest struct {
	Lead lead.Contact `json:"lead"`
}

func (h *handler) handleSessionAction(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSessionAction"
	s, ok := h.session(w, r, op)
	if !ok {
		return
	}

	var err error
	switch action := r.PathValue("action"); action {
	case "toggle":
		var req toggleRequest
		if !h.decodeJSON(w, r, &req, op) {
			return
		}
		concern, parseErr := profile.ParseConcern(req.Concern)
		if parseErr != nil {
			h.respondErrorWithOp(w, http.StatusBadRequest, parseErr.Error(), op)
			return
		}
		err = s.Toggle(concern)
	case "next":
		err = s.Next()
	case "back":
		err = s.Back()
	case "submit":
		req := submitRequest{Profile: s.Snapshot().Profile}
		if !h.decodeJSON(w, r, &req, op) {
			return
		}
		_, err = s.Submit(req.Profile)
	case "confirm-fallback":
		_, err = s.ConfirmFallback()
	case "lead":
		if !h.allowLead(w, op) {
			return
		}
		var req leadRequest
		if !h.decodeJSON(w, r, &req, op) {
			return
		}
		err = s.SubmitLead(r.Context(), req.Lead)
	case "adjust":
		err = s.AdjustInputs()
	case "reset":
		s.Reset()
	default:
		h.respondErrorWithOp(w, http.StatusNotFound, fmt.Sprintf("unknown session action %q", action), op)
		return
	}

	if err != nil {
		h.respondSessionError(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *handler) respondSessionError(w http.ResponseWriter, err error, op string) {
	var contactErr *lead.ValidationError
	switch {
	case errors.As(err, &contactErr):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Fields: contactErr.Fields})
	case errors.Is(err, wizard.ErrNoConcerns):
		h.respondErrorWithOp(w, http.StatusUnprocessableEntity, err.Error(), op)
	case errors.Is(err, wizard.ErrInvalidTransition):
		h.respondErrorWithOp(w, http.StatusConflict, err.Error(), op)
	default:
		h.respondErrorWithOp(w, http.StatusInternalServerError, err.Error(), op)
	}
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}, op string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds limit of %d bytes", h.maxBodySize), op)
		case errors.Is(err, io.EOF):
			h.respondErrorWithOp(w, http.StatusBadRequest, "request body is empty", op)
		default:
			h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err), op)
		}
		return false
	}
	return true
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("op", op),
			zap.Int("status", status),
			zap.String("error", msg),
		)
	} else {
		h.logger.Debug("request rejected",
			zap.String("op", op),
			zap.Int("status", status),
			zap.String("error", msg),
		)
	}

	h.writeJSON(w, status, errorResponse{Error: msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}
