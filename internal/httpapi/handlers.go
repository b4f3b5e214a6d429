package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"signalsai/internal/backup"
	"signalsai/internal/core"
	"signalsai/pkg/domain"
)

func (s *Server) handleListSignals(w http.ResponseWriter, r *http.Request) {
	rows, err := s.service.Signals(r.Context())
	writeList(s, w, rows, err)
}

func (s *Server) handleGetSignal(w http.ResponseWriter, r *http.Request) {
	row, err := s.service.SignalByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleSignalFeedback(w http.ResponseWriter, r *http.Request) {
	payload, err := decode[struct {
		OperationID string `json:"operation_id"`
		Type        string `json:"type"`
	}](r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.dispatch(w, r, core.ApplySignalFeedback{
		OperationID: payload.OperationID,
		SignalID:    chi.URLParam(r, "id"),
		Type:        domain.InteractionType(payload.Type),
	})
}

func (s *Server) handleSignalViewed(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, core.MarkSignalViewed{SignalID: chi.URLParam(r, "id")})
}

func (s *Server) handleRemoveSignal(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, core.RemoveSignal{SignalID: chi.URLParam(r, "id")})
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	rows, err := s.service.Accounts(r.Context())
	writeList(s, w, rows, err)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	row, err := s.service.AccountByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	rows, err := s.service.RecommendedActions(r.Context())
	writeList(s, w, rows, err)
}

func (s *Server) handleActionFeedback(w http.ResponseWriter, r *http.Request) {
	payload, err := decode[struct {
		OperationID string `json:"operation_id"`
		Type        string `json:"type"`
	}](r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.dispatch(w, r, core.ApplyActionFeedback{
		OperationID: payload.OperationID,
		ActionID:    chi.URLParam(r, "id"),
		Type:        domain.InteractionType(payload.Type),
	})
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	rows, err := s.service.Comments(r.Context(), r.URL.Query().Get("target"))
	writeList(s, w, rows, err)
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	payload, err := decode[struct {
		OperationID string `json:"operation_id"`
		SignalID    string `json:"signal_id"`
		AccountID   string `json:"account_id"`
		Text        string `json:"text"`
	}](r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.dispatch(w, r, core.AddComment{
		OperationID: payload.OperationID,
		SignalID:    payload.SignalID,
		AccountID:   payload.AccountID,
		Text:        payload.Text,
	})
}

func (s *Server) handleEditComment(w http.ResponseWriter, r *http.Request) {
	payload, err := decode[struct {
		Text string `json:"text"`
	}](r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.dispatch(w, r, core.EditComment{CommentID: chi.URLParam(r, "id"), Text: payload.Text})
}

func (s *Server) handleRemoveComment(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, core.RemoveComment{CommentID: chi.URLParam(r, "id")})
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	rows, err := s.service.ActionPlans(r.Context(), r.URL.Query().Get("account"))
	writeList(s, w, rows, err)
}

type planPayload struct {
	OperationID string          `json:"operation_id"`
	AccountID   string          `json:"account_id"`
	ActionID    string          `json:"action_id"`
	LookupKey   string          `json:"lookup_key"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Plays       []domain.Play   `json:"plays"`
	Priority    domain.Priority `json:"priority"`
	DueDate     *time.Time      `json:"due_date"`
	Assignee    string          `json:"assignee"`
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	payload, err := decode[planPayload](r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.dispatch(w, r, core.CreateActionPlan{
		OperationID: payload.OperationID,
		AccountID:   payload.AccountID,
		ActionID:    payload.ActionID,
		LookupKey:   payload.LookupKey,
		Title:       payload.Title,
		Description: payload.Description,
		Plays:       payload.Plays,
		Priority:    payload.Priority,
		DueDate:     payload.DueDate,
		Assignee:    payload.Assignee,
	})
}

func (s *Server) handleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	payload, err := decode[struct {
		OperationID string             `json:"operation_id"`
		LookupKey   string             `json:"lookup_key"`
		Title       *string            `json:"title"`
		Description *string            `json:"description"`
		Status      *domain.PlanStatus `json:"status"`
		Priority    *domain.Priority   `json:"priority"`
		DueDate     *time.Time         `json:"due_date"`
		Assignee    *string            `json:"assignee"`
		Plays       []domain.Play      `json:"plays"`
	}](r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.dispatch(w, r, core.UpdateActionPlan{
		OperationID: payload.OperationID,
		PlanID:      chi.URLParam(r, "id"),
		LookupKey:   payload.LookupKey,
		Title:       payload.Title,
		Description: payload.Description,
		Status:      payload.Status,
		Priority:    payload.Priority,
		DueDate:     payload.DueDate,
		Assignee:    payload.Assignee,
		Plays:       payload.Plays,
	})
}

func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, core.DeleteActionPlan{
		PlanID:    chi.URLParam(r, "id"),
		LookupKey: r.URL.Query().Get("lookup_key"),
	})
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	rows, err := s.service.NotesByAccount(r.Context(), chi.URLParam(r, "id"))
	writeList(s, w, rows, err)
}

func (s *Server) handleAddNote(w http.ResponseWriter, r *http.Request) {
	payload, err := decode[struct {
		Text   string `json:"text"`
		Pinned bool   `json:"pinned"`
	}](r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.dispatch(w, r, core.AddNote{
		AccountID: chi.URLParam(r, "id"),
		Text:      payload.Text,
		Pinned:    payload.Pinned,
	})
}

func (s *Server) handlePinnedNotes(w http.ResponseWriter, r *http.Request) {
	rows, err := s.service.PinnedNotes(r.Context())
	writeList(s, w, rows, err)
}

func (s *Server) handleEditNote(w http.ResponseWriter, r *http.Request) {
	payload, err := decode[struct {
		Text string `json:"text"`
	}](r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.dispatch(w, r, core.EditNote{NoteID: chi.URLParam(r, "id"), Text: payload.Text})
}

func (s *Server) handleRemoveNote(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, core.RemoveNote{NoteID: chi.URLParam(r, "id")})
}

func (s *Server) handleToggleNotePin(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, core.ToggleNotePin{NoteID: chi.URLParam(r, "id")})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.Summary(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	objects, err := s.backups.List(r.Context())
	writeList(s, w, objects, err)
}

func (s *Server) handleCreateBackup(w http.ResponseWriter, r *http.Request) {
	exporter, ok := s.service.Store().(backup.StateExporter)
	if !ok {
		s.writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "store does not support snapshot export"})
		return
	}
	object, err := s.backups.Create(r.Context(), exporter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, object)
}
