package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/goran-ethernal/SolanaIndexor/internal/logger"
	"github.com/goran-ethernal/SolanaIndexor/pkg/store"
	"github.com/goran-ethernal/SolanaIndexor/pkg/types"
)

// Program identifies a tracked program.
type Program struct {
	Name string
	ID   solana.PublicKey
}

// ProgramRegistry lists the tracked programs.
type ProgramRegistry interface {
	Programs() []Program
}

// StatusStore is the read side of the store the API serves from.
type StatusStore interface {
	LoadCursor(ctx context.Context, program solana.PublicKey) (types.SignatureCursor, error)
	LatestCheckpoint(ctx context.Context, program solana.PublicKey) (types.ReorgCheckpoint, error)
	ListBackfillProgress(ctx context.Context, program solana.PublicKey) ([]types.BackfillProgress, error)
	GetDeliveryStatus(ctx context.Context, sig solana.Signature) (types.DeliveryRecord, error)
}

var _ StatusStore = (store.Store)(nil)

// Handler handles HTTP requests for the API.
type Handler struct {
	registry ProgramRegistry
	store    StatusStore
	log      *logger.Logger
}

// NewHandler creates a new API handler.
func NewHandler(registry ProgramRegistry, s StatusStore, log *logger.Logger) *Handler {
	return &Handler{
		registry: registry,
		store:    s,
		log:      log,
	}
}

// CollectStatus reads the indexing position of program from s.
func CollectStatus(ctx context.Context, s StatusStore, program Program) (ProgramStatus, error) {
	status := ProgramStatus{
		Name:      program.Name,
		ProgramID: program.ID.String(),
	}

	cursor, err := s.LoadCursor(ctx, program.ID)
	if err != nil {
		return status, fmt.Errorf("failed to load cursor: %w", err)
	}

	if !cursor.IsEmpty() {
		status.CursorSignature = cursor.Signature.String()
	}
	status.CursorSlot = cursor.Slot
	status.CursorVersion = cursor.Version
	status.CursorUpdatedAt = cursor.UpdatedAt

	cp, err := s.LatestCheckpoint(ctx, program.ID)
	switch {
	case errors.Is(err, types.ErrNotFound):
	case err != nil:
		return status, fmt.Errorf("failed to load latest checkpoint: %w", err)
	default:
		status.CheckpointSlot = &cp.Slot
	}

	backfills, err := s.ListBackfillProgress(ctx, program.ID)
	if err != nil {
		return status, fmt.Errorf("failed to list backfills: %w", err)
	}

	for _, b := range backfills {
		bs := BackfillStatus{
			ID:        b.ID,
			FromSlot:  b.FromSlot,
			ToSlot:    b.ToSlot,
			LastSlot:  b.LastSlot,
			Processed: b.Processed,
			Status:    string(b.Status),
			UpdatedAt: b.UpdatedAt,
		}
		if b.LastSignature != (solana.Signature{}) {
			bs.LastSignature = b.LastSignature.String()
		}
		status.Backfills = append(status.Backfills, bs)
	}

	status.Healthy = true

	return status, nil
}

func (h *Handler) collect(ctx context.Context, program Program) ProgramStatus {
	status, err := CollectStatus(ctx, h.store, program)
	if err != nil {
		h.log.Errorf("Failed to collect status of %s: %v", program.Name, err)
		status.Error = err.Error()
	}

	return status
}

func (h *Handler) lookup(name string) (Program, bool) {
	for _, p := range h.registry.Programs() {
		if p.Name == name || p.ID.String() == name {
			return p, true
		}
	}

	return Program{}, false
}

// ListPrograms returns the status of every tracked program.
// @Summary List tracked programs
// @Description Get the cursor, latest checkpoint and backfill ranges of every tracked program
// @Tags Programs
// @Produce json
// @Success 200 {array} ProgramStatus "Status of every program"
// @Router /programs [get]
func (h *Handler) ListPrograms(w http.ResponseWriter, r *http.Request) {
	programs := h.registry.Programs()

	statuses := make([]ProgramStatus, 0, len(programs))
	for _, p := range programs {
		statuses = append(statuses, h.collect(r.Context(), p))
	}

	respondJSON(w, http.StatusOK, statuses)
}

// GetProgram returns the status of one program, addressed by name or program id.
// @Summary Get program status
// @Description Retrieve the indexing position of one program, addressed by name or base58 program id
// @Tags Programs
// @Produce json
// @Param name path string true "Program name or id"
// @Success 200 {object} ProgramStatus "Program status"
// @Failure 400 {object} ErrorResponse "Invalid parameters"
// @Failure 404 {object} ErrorResponse "Program not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /programs/{name} [get]
func (h *Handler) GetProgram(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "program name is required")
		return
	}

	program, ok := h.lookup(name)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Sprintf("program '%s' not found", name))
		return
	}

	status, err := CollectStatus(r.Context(), h.store, program)
	if err != nil {
		h.log.Errorf("Failed to collect status of %s: %v", program.Name, err)
		respondError(w, http.StatusInternalServerError, "failed to load program status")
		return
	}

	respondJSON(w, http.StatusOK, status)
}

// GetSignature returns the delivery ledger row of a signature.
// @Summary Get delivery status
// @Description Retrieve the delivery ledger row of a transaction signature
// @Tags Signatures
// @Produce json
// @Param signature path string true "Base58 transaction signature"
// @Success 200 {object} DeliveryResponse "Ledger row"
// @Failure 400 {object} ErrorResponse "Invalid signature"
// @Failure 404 {object} ErrorResponse "Signature not in the ledger"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /signatures/{signature} [get]
func (h *Handler) GetSignature(w http.ResponseWriter, r *http.Request) {
	sig, err := solana.SignatureFromBase58(r.PathValue("signature"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	rec, err := h.store.GetDeliveryStatus(r.Context(), sig)
	if errors.Is(err, types.ErrNotFound) {
		respondError(w, http.StatusNotFound, fmt.Sprintf("signature %s not in the ledger", sig))
		return
	}
	if err != nil {
		h.log.Errorf("Failed to load delivery status: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load delivery status")
		return
	}

	respondJSON(w, http.StatusOK, DeliveryResponse{
		Signature:   rec.Signature.String(),
		ProgramID:   rec.ProgramID.String(),
		Slot:        rec.Slot,
		Status:      string(rec.Status),
		Attempts:    rec.Attempts,
		LastError:   rec.LastError,
		CommittedAt: rec.CommittedAt,
		UpdatedAt:   rec.UpdatedAt,
	})
}

// Health returns the health status of the API and all programs.
// It answers 503 when the status of any program cannot be read.
// @Summary Health check
// @Description Check the health status of the API and all tracked programs
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "API and program health status"
// @Failure 503 {object} HealthResponse "Status of a program could not be read"
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	programs := h.registry.Programs()

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Programs:  make([]ProgramStatus, 0, len(programs)),
	}

	code := http.StatusOK
	for _, p := range programs {
		status := h.collect(r.Context(), p)
		if !status.Healthy {
			response.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
		response.Programs = append(response.Programs, status)
	}

	respondJSON(w, code, response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")

	// Encode JSON first to catch any errors before writing status
	encoded, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)

	// Headers already sent, a failed write can only be dropped
	_, _ = w.Write(encoded)
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	response := ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	}
	respondJSON(w, status, response)
}
