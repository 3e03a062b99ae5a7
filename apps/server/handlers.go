package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mahaj/dupahar-dm/pkg/auth"
	"github.com/mahaj/dupahar-dm/pkg/chat"
	"github.com/mahaj/dupahar-dm/pkg/model"
	"github.com/mahaj/dupahar-dm/pkg/presence"
	"github.com/mahaj/dupahar-dm/pkg/store"
)

type Server struct {
	svc      *chat.Service
	users    store.UserDirectory
	auth     *auth.Manager
	registry *presence.Registry
	mirror   *presence.Mirror
	log      zerolog.Logger
}

// newRouter mounts the REST surface, the websocket endpoint and metrics.
func newRouter(s *Server, hub *Hub) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost, http.MethodOptions)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		serveWs(hub, s.auth, w, req)
	})

	api := r.PathPrefix("/").Subrouter()
	api.Use(s.authMiddleware)
	api.HandleFunc("/messages/users", s.handleListUsers).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/messages/send/{peerID}", s.handleSend).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/messages/delete/{id:[0-9]+}", s.handleRevoke).Methods(http.MethodDelete, http.MethodOptions)
	api.HandleFunc("/messages/{peerID}", s.handleConversation).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/presence/online", s.handleOnline).Methods(http.MethodGet, http.MethodOptions)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type loginRequest struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// handleLogin is the interface boundary of the external auth subsystem: it
// hands out a token for a claimed identity and makes the identity visible in
// the directory.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	token, err := s.auth.GenerateToken(req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	username := req.Username
	if username == "" {
		username = req.UserID
	}
	if err := s.users.Put(r.Context(), model.User{ID: req.UserID, Username: username}); err != nil {
		s.log.Warn().Err(err).Str("user", req.UserID).Msg("directory upsert failed")
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

// handleListUsers serves the sidebar: every user except the caller.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r.Context())

	users, err := s.svc.ListUsers(r.Context(), caller)
	if err != nil {
		s.log.Error().Err(err).Msg("list users failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// handleConversation serves the full ordered conversation with the peer,
// tombstones included.
func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r.Context())
	peer := mux.Vars(r)["peerID"]

	msgs, err := s.svc.ListConversation(r.Context(), caller, peer)
	if err != nil {
		s.log.Error().Err(err).Str("peer", peer).Msg("list conversation failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

type sendRequest struct {
	Text   string   `json:"text"`
	Images []string `json:"images"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r.Context())
	peer := mux.Vars(r)["peerID"]

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := s.svc.Send(r.Context(), caller, peer, req.Text, req.Images)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrSelfSend):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		s.log.Error().Err(err).Str("peer", peer).Msg("send failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		writeJSON(w, http.StatusCreated, msg)
	}
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r.Context())

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}

	_, err = s.svc.Revoke(r.Context(), id, caller)
	switch {
	// Both map to 404: a caller probing someone else's message id learns
	// nothing about whether it exists.
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrForbidden):
		writeError(w, http.StatusNotFound, "message not found")
	case err != nil:
		s.log.Error().Err(err).Int64("message_id", id).Msg("revoke failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"message": "message revoked"})
	}
}

// handleOnline serves the online set, preferring the Redis mirror and
// falling back to the registry itself.
func (s *Server) handleOnline(w http.ResponseWriter, r *http.Request) {
	if s.mirror != nil {
		online, err := s.mirror.Online(r.Context())
		if err == nil {
			writeJSON(w, http.StatusOK, online)
			return
		}
		s.log.Warn().Err(err).Msg("online mirror read failed, using registry")
	}
	writeJSON(w, http.StatusOK, s.registry.Online())
}

// authMiddleware validates the bearer token and puts the claims on the
// request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			writeError(w, http.StatusUnauthorized, "authorization required")
			return
		}

		claims, err := s.auth.ValidateToken(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), auth.UserKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerID(ctx context.Context) string {
	claims, ok := ctx.Value(auth.UserKey).(*auth.Claims)
	if !ok {
		return ""
	}
	return claims.UserID
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if r.Method == http.MethodOptions {
			return
		}

		next.ServeHTTP(w, r)
	})
}
