package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"supmap-directions/internal/navigation"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/matheodrd/httphelper/handler"
)

func (s *Server) wsHandler() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		sessionID := r.URL.Query().Get("session_id")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return handler.NewErrWithStatus(http.StatusInternalServerError, fmt.Errorf("websocket accept: %w", err))
		}

		s.WebsocketManager.HandleNewConnection(sessionID, conn)
		return nil
	})
}

func (s *Server) getSessionHandler() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		sessionID := r.PathValue("id")
		session, err := s.SessionCache.GetSession(r.Context(), sessionID)
		if errors.Is(err, navigation.ErrSessionNotFound) {
			return handler.NewErrWithStatus(http.StatusNotFound, err)
		}
		if err != nil {
			return handler.NewErrWithStatus(http.StatusInternalServerError, err)
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(session); err != nil {
			return fmt.Errorf("encoding session: %w", err)
		}
		return nil
	})
}

func (s *Server) deleteSessionHandler() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if err := s.SessionCache.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
			return handler.NewErrWithStatus(http.StatusInternalServerError, err)
		}
		w.WriteHeader(http.StatusNoContent)
		return nil
	})
}
