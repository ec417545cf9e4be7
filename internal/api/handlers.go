package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"coverpool/internal/event"
	"coverpool/internal/ingestion"
	"coverpool/internal/query"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ingest  *ingestion.CommandIngest
	Queries *query.QueryService
}

func NewHandler(ingest *ingestion.CommandIngest, queries *query.QueryService) *Handler {
	return &Handler{
		Ingest:  ingest,
		Queries: queries,
	}
}

// callerID extracts the caller identity from the X-Caller-ID header.
// There is no authentication layer here; the deterministic core enforces
// admin and beneficiary checks against the identity it is given.
func callerID(r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get("X-Caller-ID")
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func writeAccepted(w http.ResponseWriter, res *ingestion.SubmitResult) {
	writeJSON(w, http.StatusAccepted, CommandAccepted{
		CommandID: res.CommandID.String(),
		Sequence:  res.Sequence,
		Status:    "accepted",
	})
}

// =============================================================================
// POOL HANDLERS
// =============================================================================

// Fund contributes to the pool.
// POST /api/pool/fund
func (h *Handler) Fund(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing or invalid X-Caller-ID header", nil)
		return
	}

	var req FundRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "Amount must be positive", nil)
		return
	}

	res, err := h.Ingest.SubmitFund(r.Context(), caller, req.Amount)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to enqueue command", err)
		return
	}
	writeAccepted(w, res)
}

// GetPool returns the pool record.
// GET /api/pool
func (h *Handler) GetPool(w http.ResponseWriter, r *http.Request) {
	pool, err := h.Queries.GetPool(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query pool", err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

// GetPoolHistory returns pool balance movements.
// GET /api/pool/history?limit=N&after=SEQ
func (h *Handler) GetPoolHistory(w http.ResponseWriter, r *http.Request) {
	limit, after := pagination(r)

	entries, err := h.Queries.GetPoolHistory(r.Context(), limit, after)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query pool history", err)
		return
	}
	if entries == nil {
		entries = []query.EntryHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// =============================================================================
// POLICY HANDLERS
// =============================================================================

// Purchase buys coverage from the caller's funding balance.
// POST /api/policies/purchase
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing or invalid X-Caller-ID header", nil)
		return
	}

	var req PurchaseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "Amount must be positive", nil)
		return
	}

	res, err := h.Ingest.SubmitPurchase(r.Context(), caller, req.Amount, req.Premium)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to enqueue command", err)
		return
	}
	writeAccepted(w, res)
}

// Increase raises the insured amount on an active policy.
// POST /api/policies/increase
func (h *Handler) Increase(w http.ResponseWriter, r *http.Request) {
	h.amountCommand(w, r, h.Ingest.SubmitIncrease)
}

// Cancel cancels the caller's policy and refunds the insured amount.
// POST /api/policies/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.actionCommand(w, r, h.Ingest.SubmitCancel)
}

// Pause deactivates the caller's policy without refund.
// POST /api/policies/pause
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	h.actionCommand(w, r, h.Ingest.SubmitPause)
}

// Deactivate deactivates the caller's policy without refund.
// POST /api/policies/deactivate
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.actionCommand(w, r, h.Ingest.SubmitDeactivate)
}

// GetPolicy returns a holder's policy record.
// GET /api/policies/{id}
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	holder, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid holder id", err)
		return
	}

	policy, err := h.Queries.GetPolicy(r.Context(), holder)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query policy", err)
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

// =============================================================================
// CLAIM HANDLERS
// =============================================================================

// Claim settles a payout for a beneficiary.
// POST /api/claims
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing or invalid X-Caller-ID header", nil)
		return
	}

	var req ClaimRequest
	if !decodeBody(w, r, &req) {
		return
	}
	beneficiary, err := uuid.Parse(req.BeneficiaryID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid beneficiary_id", err)
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "Amount must be positive", nil)
		return
	}

	res, err := h.Ingest.SubmitClaim(r.Context(), caller, beneficiary, req.Amount)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to enqueue command", err)
		return
	}
	writeAccepted(w, res)
}

// PartialClaim settles a partial payout against the caller's own policy.
// POST /api/claims/partial
func (h *Handler) PartialClaim(w http.ResponseWriter, r *http.Request) {
	h.amountCommand(w, r, h.Ingest.SubmitPartialClaim)
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// GetAccount returns a participant's balances.
// GET /api/accounts/{id}
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	identity, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid account id", err)
		return
	}

	account, err := h.Queries.GetAccount(r.Context(), identity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query account", err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// GetEntryHistory returns ledger entries touching a participant's accounts.
// GET /api/accounts/{id}/entries?limit=N&after=SEQ
func (h *Handler) GetEntryHistory(w http.ResponseWriter, r *http.Request) {
	identity, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid account id", err)
		return
	}

	limit, after := pagination(r)
	entries, err := h.Queries.GetEntryHistory(r.Context(), identity, limit, after)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query entries", err)
		return
	}
	if entries == nil {
		entries = []query.EntryHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// SetParam updates one pool parameter. The core rejects non-admin callers.
// POST /api/admin/params
func (h *Handler) SetParam(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing or invalid X-Caller-ID header", nil)
		return
	}

	var req ParamRequest
	if !decodeBody(w, r, &req) {
		return
	}
	param, err := event.ParsePoolParam(req.Param)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown pool parameter", err)
		return
	}

	res, err := h.Ingest.SubmitParamUpdate(r.Context(), caller, param, req.Value)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to enqueue command", err)
		return
	}
	writeAccepted(w, res)
}

// WithdrawSurplus moves pool funds to the admin wallet.
// POST /api/admin/surplus
func (h *Handler) WithdrawSurplus(w http.ResponseWriter, r *http.Request) {
	h.amountCommand(w, r, h.Ingest.SubmitSurplusWithdrawal)
}

// Refund returns part of a recipient's contribution.
// POST /api/admin/refund
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing or invalid X-Caller-ID header", nil)
		return
	}

	var req RefundRequest
	if !decodeBody(w, r, &req) {
		return
	}
	recipient, err := uuid.Parse(req.RecipientID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid recipient_id", err)
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "Amount must be positive", nil)
		return
	}

	res, err := h.Ingest.SubmitRefund(r.Context(), caller, recipient, req.Amount)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to enqueue command", err)
		return
	}
	writeAccepted(w, res)
}

// Freeze zeroes the pool balance. Irreversible.
// POST /api/admin/freeze
func (h *Handler) Freeze(w http.ResponseWriter, r *http.Request) {
	h.actionCommand(w, r, h.Ingest.SubmitFreeze)
}

// VerifyIntegrity checks the hash chain and balance invariants.
// GET /api/admin/integrity
func (h *Handler) VerifyIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := h.Queries.VerifyIntegrity(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Integrity check failed", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

func (h *Handler) amountCommand(
	w http.ResponseWriter,
	r *http.Request,
	submit func(ctx context.Context, caller uuid.UUID, amount int64) (*ingestion.SubmitResult, error),
) {
	caller, ok := callerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing or invalid X-Caller-ID header", nil)
		return
	}

	var req AmountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "Amount must be positive", nil)
		return
	}

	res, err := submit(r.Context(), caller, req.Amount)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to enqueue command", err)
		return
	}
	writeAccepted(w, res)
}

func (h *Handler) actionCommand(
	w http.ResponseWriter,
	r *http.Request,
	submit func(ctx context.Context, caller uuid.UUID) (*ingestion.SubmitResult, error),
) {
	caller, ok := callerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing or invalid X-Caller-ID header", nil)
		return
	}

	res, err := submit(r.Context(), caller)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to enqueue command", err)
		return
	}
	writeAccepted(w, res)
}

func pagination(r *http.Request) (int, *int64) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	var after *int64
	if raw := r.URL.Query().Get("after"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			after = &n
		}
	}

	return limit, after
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
