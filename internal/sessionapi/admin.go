package sessionapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/kalshi-dcm-demo/backend/internal/auth"
	"github.com/kalshi-dcm-demo/backend/internal/models"
	"github.com/kalshi-dcm-demo/backend/internal/risk"
	"github.com/kalshi-dcm-demo/backend/internal/store"
)

// AdminHandler exposes the ops surface: audit queries, trading halts,
// and pipeline pass/deny counters. Halt, Resume, Audit and Pipeline are
// mounted under /ops behind auth.TokenIssuer middleware; Login, which
// issues the token, is mounted without it.
type AdminHandler struct {
	store     store.Store
	pipeline  *risk.Pipeline
	issuer    *auth.TokenIssuer
	operators *auth.OperatorDirectory
}

func NewAdminHandler(s store.Store, pipeline *risk.Pipeline, issuer *auth.TokenIssuer, operators *auth.OperatorDirectory) *AdminHandler {
	return &AdminHandler{store: s, pipeline: pipeline, issuer: issuer, operators: operators}
}

type haltRequest struct {
	Ticker      string `json:"ticker"`
	Reason      string `json:"reason"`
	InitiatedBy string `json:"initiated_by"`
}

// Halt stops trading on a ticker. Every call is itself audit-logged so
// the halt/resume history is reconstructable from the audit trail alone.
func (a *AdminHandler) Halt(w http.ResponseWriter, r *http.Request) {
	var req haltRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Ticker == "" {
		respondError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	operator := auth.GetOperatorFromContext(r.Context())
	initiatedBy := req.InitiatedBy
	if operator != nil {
		initiatedBy = operator.OperatorID
	}

	if err := a.store.HaltTrading(req.Ticker, req.Reason, initiatedBy); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to halt trading")
		return
	}
	_ = a.store.LogAudit(r.Context(), models.AuditEntry{
		Action:   models.AuditActionHalt,
		EntityID: req.Ticker,
		Detail:   initiatedBy + ": " + req.Reason,
	})

	respondJSON(w, http.StatusOK, apiResponse{Success: true})
}

func (a *AdminHandler) Resume(w http.ResponseWriter, r *http.Request) {
	var req haltRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Ticker == "" {
		respondError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	if err := a.store.ResumeTrading(req.Ticker); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to resume trading")
		return
	}
	_ = a.store.LogAudit(r.Context(), models.AuditEntry{
		Action:   models.AuditActionResume,
		EntityID: req.Ticker,
	})

	respondJSON(w, http.StatusOK, apiResponse{Success: true})
}

func (a *AdminHandler) Audit(w http.ResponseWriter, r *http.Request) {
	since := time.Time{}
	if s := r.URL.Query().Get("since"); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		since = parsed
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err == nil && parsed > 0 {
			limit = parsed
		}
	}

	entries, err := a.store.GetAuditLog(r.Context(), since, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load audit log")
		return
	}

	respondJSON(w, http.StatusOK, apiResponse{Success: true, Data: entries})
}

// Pipeline reports pass/deny counters per plugin, in canonical order,
// so operators can see which gate is denying the most flow.
func (a *AdminHandler) Pipeline(w http.ResponseWriter, r *http.Request) {
	counters := a.pipeline.Counters()
	result := make([]map[string]interface{}, 0, len(a.pipeline.Names()))
	for _, name := range a.pipeline.Names() {
		c := counters[name]
		result = append(result, map[string]interface{}{
			"plugin": name,
			"pass":   c.Pass,
			"deny":   c.Deny,
		})
	}

	respondJSON(w, http.StatusOK, apiResponse{Success: true, Data: result})
}

// Login issues an admin JWT after verifying operator_id/password against
// the bcrypt-hashed operator directory.
func (a *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OperatorID string `json:"operator_id"`
		Password   string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OperatorID == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "operator_id and password are required")
		return
	}

	role, err := a.operators.Authenticate(req.OperatorID, req.Password)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := a.issuer.GenerateToken(req.OperatorID, role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	respondJSON(w, http.StatusOK, apiResponse{Success: true, Data: map[string]string{"token": token}})
}
