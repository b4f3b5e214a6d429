package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalsai/internal/backup"
	blobmemory "signalsai/internal/blob/memory"
	"signalsai/internal/core"
	"signalsai/internal/infra/persistence/memory"
	"signalsai/pkg/domain"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	engine := domain.NewRulesEngine()
	core.RegisterDefaultRules(engine)
	svc := core.NewService(memory.NewStore(engine), core.WithUser("u-1", "Pat Doe"))

	actionID := "act-1"
	_, err := svc.Dispatch(context.Background(), core.LoadDataset{
		Accounts: []core.Account{
			{Base: domain.Base{ID: "acc-1"}, Name: "Acme Analytics", Health: domain.HealthAtRisk},
		},
		Actions: []core.RecommendedAction{
			{Base: domain.Base{ID: actionID}, AccountID: "acc-1", Recommended: "Schedule EBR", Priority: domain.PriorityHigh},
		},
		Signals: []core.Signal{
			{Base: domain.Base{ID: "sig-1"}, AccountID: "acc-1", Priority: domain.PriorityHigh, Polarity: domain.PolarityRisk, ActionID: &actionID, CallDate: time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)},
		},
	})
	require.NoError(t, err)

	return New(svc, WithBackups(backup.NewManager(blobmemory.New())))
}

func doJSON(t *testing.T, srv *Server, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := doJSON(t, newTestServer(t), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListSignalsDenormalized(t *testing.T) {
	rec := doJSON(t, newTestServer(t), http.MethodGet, "/api/signals", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	account, ok := rows[0]["account"].(map[string]any)
	require.True(t, ok, "signal row must embed its account")
	assert.Equal(t, "Acme Analytics", account["name"])
	assert.NotNil(t, rows[0]["action"])
}

func TestCommentRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/comments", map[string]string{
		"signal_id": "sig-1",
		"text":      "following up",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var created struct {
		Entity domain.Comment `json:"entity"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.Entity.ID)
	assert.Equal(t, "Pat Doe", created.Entity.Author)

	rec = doJSON(t, srv, http.MethodGet, "/api/comments?target=sig-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var comments []domain.Comment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &comments))
	assert.Len(t, comments, 1)
}

func TestUnknownTargetReturns404(t *testing.T) {
	rec := doJSON(t, newTestServer(t), http.MethodPost, "/api/comments", map[string]string{
		"signal_id": "sig-missing",
		"text":      "x",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDuplicatePlanRejected(t *testing.T) {
	srv := newTestServer(t)
	payload := map[string]any{"account_id": "acc-1", "action_id": "act-1", "title": "EBR"}

	rec := doJSON(t, srv, http.MethodPost, "/api/plans", payload)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/plans", payload)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlayBudgetRejected(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/plans", map[string]any{
		"account_id": "acc-1",
		"title":      "EBR",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var created struct {
		Entity domain.ActionPlan `json:"entity"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, srv, http.MethodPut, "/api/plans/"+created.Entity.ID, map[string]any{
		"plays": []map[string]string{{"id": "1"}, {"id": "2"}, {"id": "3"}, {"id": "4"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNoteEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/accounts/acc-1/notes", map[string]any{
		"text":   "renewal call scheduled",
		"pinned": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var created struct {
		Entity domain.Note `json:"entity"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, srv, http.MethodGet, "/api/notes/pinned", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pinned []domain.Note
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pinned))
	require.Len(t, pinned, 1)

	rec = doJSON(t, srv, http.MethodDelete, "/api/notes/"+created.Entity.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/accounts/acc-1/notes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var live []domain.Note
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &live))
	assert.Empty(t, live)
}

func TestBackupEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/backups", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/backups", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var objects []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &objects))
	assert.Len(t, objects, 1)
}

func TestSignalFeedbackEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/signals/sig-1/feedback", map[string]string{"type": "like"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/signals/sig-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var row map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &row))
	assert.EqualValues(t, 1, row["likes"])
}
