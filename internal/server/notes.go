package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"bestcity-api/internal/model"
	"bestcity-api/internal/store"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	msgRequired     = "Title and content are required"
	msgInvalidBody  = "Invalid request body"
	msgInvalidNote  = "Note validation failed"
	msgNotFound     = "Note not found"
	msgCreated      = "Note created successfully"
	msgUpdated      = "Note updated successfully"
	msgDeleted      = "Note deleted successfully"
	msgCreateFailed = "Error creating note"
	msgListFailed   = "Error retrieving notes"
	msgGetFailed    = "Error retrieving note"
	msgUpdateFailed = "Error updating note"
	msgDeleteFailed = "Error deleting note"
)

// Error kinds recorded on bestcity_errors_total.
const (
	errValidation = "validation"
	errNotFound   = "not_found"
	errStore      = "store"
)

type createRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, http.StatusBadRequest, errValidation, msgInvalidBody, err)
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Content) == "" {
		s.fail(w, r, http.StatusBadRequest, errValidation, msgRequired, nil)
		return
	}

	note := model.NewNote(req.Title, req.Content)
	if err := note.Validate(); err != nil {
		s.fail(w, r, http.StatusBadRequest, errValidation, msgInvalidNote, err)
		return
	}
	if err := s.store.Create(r.Context(), &note); err != nil {
		s.logger.Error("Failed to create note", zap.Error(err))
		s.fail(w, r, http.StatusInternalServerError, errStore, msgCreateFailed, err)
		return
	}

	s.metrics.NotesCreated.Inc()
	s.logger.Info("Created note", zap.String("id", note.ID.Hex()))
	writeJSON(w, http.StatusCreated, envelope{Success: true, Message: msgCreated, Data: note.Project()})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	notes, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("Failed to list notes", zap.Error(err))
		s.fail(w, r, http.StatusInternalServerError, errStore, msgListFailed, err)
		return
	}

	data := make([]model.Projection, 0, len(notes))
	for _, n := range notes {
		data = append(data, n.Project())
	}
	count := len(data)

	s.metrics.NotesRetrieved.Inc()
	s.logger.Info("Retrieved notes", zap.Int("count", count))
	writeJSON(w, http.StatusOK, envelope{Success: true, Count: &count, Data: data})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	note, ok := s.lookup(w, r, id, msgGetFailed)
	if !ok {
		return
	}

	s.metrics.NotesRetrieved.Inc()
	s.logger.Info("Retrieved note", zap.String("id", id))
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: note.Project()})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var patch model.Patch
	if err := decodeBody(r, &patch); err != nil {
		s.fail(w, r, http.StatusBadRequest, errValidation, msgInvalidBody, err)
		return
	}

	note, ok := s.lookup(w, r, id, msgUpdateFailed)
	if !ok {
		return
	}

	note.Apply(patch)
	note.TouchUpdatedAt(time.Now())
	if err := note.Validate(); err != nil {
		s.fail(w, r, http.StatusBadRequest, errValidation, msgInvalidNote, err)
		return
	}

	if err := s.store.Save(r.Context(), note); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.fail(w, r, http.StatusNotFound, errNotFound, msgNotFound, nil)
			return
		}
		s.logger.Error("Failed to update note", zap.String("id", id), zap.Error(err))
		s.fail(w, r, http.StatusInternalServerError, errStore, msgUpdateFailed, err)
		return
	}

	s.metrics.NotesUpdated.Inc()
	s.logger.Info("Updated note", zap.String("id", id))
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: msgUpdated, Data: note.Project()})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	note, ok := s.lookup(w, r, id, msgDeleteFailed)
	if !ok {
		return
	}
	snapshot := note.Project()

	if err := s.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.fail(w, r, http.StatusNotFound, errNotFound, msgNotFound, nil)
			return
		}
		s.logger.Error("Failed to delete note", zap.String("id", id), zap.Error(err))
		s.fail(w, r, http.StatusInternalServerError, errStore, msgDeleteFailed, err)
		return
	}

	s.metrics.NotesDeleted.Inc()
	s.logger.Info("Deleted note", zap.String("id", id))
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: msgDeleted, Data: snapshot})
}

// lookup fetches a note and writes the 404/500 response itself when it can't.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request, id, failMsg string) (*model.Note, bool) {
	note, err := s.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Info("Note not found", zap.String("id", id))
		s.fail(w, r, http.StatusNotFound, errNotFound, msgNotFound, nil)
		return nil, false
	}
	if err != nil {
		s.logger.Error("Failed to fetch note", zap.String("id", id), zap.Error(err))
		s.fail(w, r, http.StatusInternalServerError, errStore, failMsg, err)
		return nil, false
	}
	return note, true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, kind, message string, err error) {
	s.metrics.RecordError(kind, s.routeName(r))
	writeError(w, status, message, err)
}

// decodeBody reads a JSON body; a missing body decodes as an empty object.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
