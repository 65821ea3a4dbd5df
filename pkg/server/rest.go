package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/echoes-ai/echocall/pkg/history"
	"github.com/echoes-ai/echocall/pkg/tts"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[gateway] write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handleHistory serves the user's call records, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	user, err := s.identity.CurrentUser(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	records, err := s.store.Calls(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load history")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handleEchoes serves the persona catalog: list, create or update, and
// delete.
func (s *Server) handleEchoes(w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(w, r) {
		return
	}

	user, err := s.identity.CurrentUser(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	switch r.Method {
	case http.MethodGet:
		echoes, err := s.store.Echoes(user.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "load echoes")
			return
		}
		writeJSON(w, http.StatusOK, echoes)

	case http.MethodPost:
		var echo history.Echo
		if err := json.NewDecoder(r.Body).Decode(&echo); err != nil {
			writeError(w, http.StatusBadRequest, "invalid echo")
			return
		}
		if strings.TrimSpace(echo.Name) == "" {
			writeError(w, http.StatusBadRequest, "echo name is required")
			return
		}
		if echo.ID == "" {
			echo.ID = "echo_" + uuid.New().String()[:12]
			echo.CreatedAt = time.Now()
		}
		if err := s.store.SaveEcho(user.ID, echo); err != nil {
			writeError(w, http.StatusInternalServerError, "save echo")
			return
		}
		writeJSON(w, http.StatusOK, echo)

	case http.MethodDelete:
		echoID := r.URL.Query().Get("id")
		if echoID == "" {
			writeError(w, http.StatusBadRequest, "missing echo id")
			return
		}
		if err := s.store.DeleteEcho(user.ID, echoID); err != nil {
			writeError(w, http.StatusInternalServerError, "delete echo")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleClone accepts a multipart voice sample and creates a custom
// voice for it.
func (s *Server) handleClone(w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.cloner == nil {
		writeError(w, http.StatusNotImplemented, "voice cloning not configured")
		return
	}

	if err := r.ParseMultipartForm(tts.MaxCloneSampleBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload")
		return
	}

	file, header, err := r.FormFile("sample")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio sample is required")
		return
	}
	defer file.Close()

	voiceID, err := s.cloner.CloneVoice(r.Context(), tts.CloneRequest{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Sample:      file,
		Filename:    header.Filename,
	})
	if err != nil {
		switch {
		case errors.Is(err, tts.ErrCloneInProgress):
			writeError(w, http.StatusConflict, err.Error())
		default:
			var ttsErr *tts.Error
			if errors.As(err, &ttsErr) {
				writeError(w, http.StatusBadGateway, ttsErr.Message)
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"voice_id": voiceID})
}
