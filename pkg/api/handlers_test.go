package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/goran-ethernal/SolanaIndexor/internal/logger"
	istore "github.com/goran-ethernal/SolanaIndexor/internal/store"
	"github.com/goran-ethernal/SolanaIndexor/pkg/config"
	"github.com/goran-ethernal/SolanaIndexor/pkg/types"
	"github.com/stretchr/testify/require"
)

type programList []Program

func (l programList) Programs() []Program { return l }

func newTestStore(t *testing.T) *istore.SQLiteStore {
	t.Helper()

	cfg := config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "api.db")}
	cfg.ApplyDefaults()

	s, err := istore.OpenSQLite(cfg, nil, logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func newSignature(seed byte) solana.Signature {
	var sig solana.Signature
	for i := range sig {
		sig[i] = seed + byte(i)
	}
	return sig
}

// seedProgram gives program a cursor, a checkpoint, a backfill and one committed signature.
func seedProgram(t *testing.T, s *istore.SQLiteStore, program solana.PublicKey) solana.Signature {
	t.Helper()

	ctx := context.Background()
	sig := newSignature(1)

	_, err := s.InsertPending(ctx, program, sig, 42)
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx, sig, nil))

	_, err = s.SaveCursor(ctx, types.SignatureCursor{ProgramID: program, Signature: sig, Slot: 42})
	require.NoError(t, err)

	require.NoError(t, s.AppendCheckpoint(ctx, types.ReorgCheckpoint{ProgramID: program, Slot: 42}))

	require.NoError(t, s.SaveBackfillProgress(ctx, types.BackfillProgress{
		ID:        types.BackfillRangeID(program, 1, 40),
		ProgramID: program,
		FromSlot:  1,
		ToSlot:    40,
		Processed: 7,
		Status:    types.BackfillDone,
	}))

	return sig
}

func TestRespondJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		status         int
		data           any
		expectedBody   string
		expectedStatus int
	}{
		{
			name:           "success with simple data",
			status:         http.StatusOK,
			data:           map[string]string{"message": "success"},
			expectedBody:   `{"message":"success"}`,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "success with array",
			status:         http.StatusOK,
			data:           []string{"item1", "item2"},
			expectedBody:   `["item1","item2"]`,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "success with nil",
			status:         http.StatusOK,
			data:           nil,
			expectedBody:   "null",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "error status",
			status:         http.StatusBadRequest,
			data:           map[string]string{"error": "bad request"},
			expectedBody:   `{"error":"bad request"}`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			respondJSON(w, tt.status, tt.data)

			require.Equal(t, tt.expectedStatus, w.Code)
			require.Equal(t, "application/json", w.Header().Get("Content-Type"))
			require.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestRespondJSON_EncodingError(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()

	// Channel cannot be JSON encoded
	respondJSON(w, http.StatusOK, make(chan int))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "Failed to encode response")
}

func TestRespondError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		status         int
		message        string
		expectedCode   int
		expectedError  string
		expectedStatus int
	}{
		{
			name:           "bad request error",
			status:         http.StatusBadRequest,
			message:        "invalid input",
			expectedCode:   http.StatusBadRequest,
			expectedError:  "Bad Request",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "not found error",
			status:         http.StatusNotFound,
			message:        "resource not found",
			expectedCode:   http.StatusNotFound,
			expectedError:  "Not Found",
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "internal server error",
			status:         http.StatusInternalServerError,
			message:        "something went wrong",
			expectedCode:   http.StatusInternalServerError,
			expectedError:  "Internal Server Error",
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			respondError(w, tt.status, tt.message)

			require.Equal(t, tt.expectedStatus, w.Code)
			require.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var response ErrorResponse
			err := json.Unmarshal(w.Body.Bytes(), &response)
			require.NoError(t, err)

			require.Equal(t, tt.expectedCode, response.Code)
			require.Equal(t, tt.expectedError, response.Error)
			require.Equal(t, tt.message, response.Message)
		})
	}
}

func TestHandler_ListPrograms(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	seeded := solana.NewWallet().PublicKey()
	fresh := solana.NewWallet().PublicKey()
	sig := seedProgram(t, s, seeded)

	h := NewHandler(programList{{Name: "seeded", ID: seeded}, {Name: "fresh", ID: fresh}}, s, logger.NewNopLogger())

	w := httptest.NewRecorder()
	h.ListPrograms(w, httptest.NewRequest(http.MethodGet, "/api/v1/programs", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var statuses []ProgramStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &statuses))
	require.Len(t, statuses, 2)

	require.Equal(t, "seeded", statuses[0].Name)
	require.Equal(t, sig.String(), statuses[0].CursorSignature)
	require.Equal(t, uint64(42), statuses[0].CursorSlot)
	require.Equal(t, uint64(1), statuses[0].CursorVersion)
	require.NotNil(t, statuses[0].CheckpointSlot)
	require.Equal(t, uint64(42), *statuses[0].CheckpointSlot)
	require.Len(t, statuses[0].Backfills, 1)
	require.Equal(t, "done", statuses[0].Backfills[0].Status)
	require.Equal(t, uint64(7), statuses[0].Backfills[0].Processed)
	require.True(t, statuses[0].Healthy)

	require.Equal(t, "fresh", statuses[1].Name)
	require.Empty(t, statuses[1].CursorSignature)
	require.Nil(t, statuses[1].CheckpointSlot)
	require.True(t, statuses[1].Healthy)
}

func TestHandler_GetProgram(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	program := solana.NewWallet().PublicKey()
	seedProgram(t, s, program)

	srv := NewServer(&config.APIConfig{Enabled: true, ListenAddress: ":0"},
		programList{{Name: "prog1", ID: program}}, s, logger.NewNopLogger())

	tests := []struct {
		name           string
		path           string
		expectedStatus int
	}{
		{name: "by name", path: "/api/v1/programs/prog1", expectedStatus: http.StatusOK},
		{name: "by program id", path: "/api/v1/programs/" + program.String(), expectedStatus: http.StatusOK},
		{name: "unknown", path: "/api/v1/programs/nope", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectedStatus == http.StatusOK {
				var status ProgramStatus
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
				require.Equal(t, "prog1", status.Name)
				require.Equal(t, program.String(), status.ProgramID)
			}
		})
	}
}

func TestHandler_GetSignature(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	program := solana.NewWallet().PublicKey()
	sig := seedProgram(t, s, program)

	srv := NewServer(&config.APIConfig{Enabled: true, ListenAddress: ":0"},
		programList{{Name: "prog1", ID: program}}, s, logger.NewNopLogger())

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/signatures/"+sig.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)

	var rec DeliveryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	require.Equal(t, sig.String(), rec.Signature)
	require.Equal(t, program.String(), rec.ProgramID)
	require.Equal(t, "committed", rec.Status)
	require.Equal(t, uint64(42), rec.Slot)

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/signatures/"+newSignature(9).String(), nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/signatures/not-base58", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Health(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	program := solana.NewWallet().PublicKey()
	seedProgram(t, s, program)

	h := NewHandler(programList{{Name: "prog1", ID: program}}, s, logger.NewNopLogger())

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	require.Equal(t, "ok", health.Status)
	require.Len(t, health.Programs, 1)

	// a closed store makes every program unhealthy
	require.NoError(t, s.Close())

	w = httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	require.Equal(t, "degraded", health.Status)
	require.False(t, health.Programs[0].Healthy)
	require.NotEmpty(t, health.Programs[0].Error)
}
