package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/ConnectID-SG/connectid/internal/models"
	"github.com/ConnectID-SG/connectid/internal/store"
)

// sosHandler raises a distress signal for the named PWID (GET /sos?name=).
// The caller's IP address locates the signal.
func (s *Server) sosHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.sosHandler: processing sos request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing query parameter: name"))
		return
	}

	ip := clientIP(r)
	if ip == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Unable to retrieve IP address"))
		return
	}
	location, err := s.locator.Locate(r.Context(), ip)
	if err != nil {
		slog.Error("Server.sosHandler: location lookup failed", "error", err, "ip", ip)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to resolve location"))
		return
	}

	result, err := s.controller.CreateSignal(r.Context(), name, location)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("PWID not found"))
			return
		}
		slog.Error("Server.sosHandler: failed to create signal", "error", err, "name", name)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create distress signal"))
		return
	}

	if result.Responder == nil {
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage(
			"Unable to find an available responder right now", result.Distress.ID))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage(
		result.Responder.Name+" will be attending to "+name, result.Distress.ID))
}

// processHandler runs the unassigned-signal sweep (GET /process).
func (s *Server) processHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.processHandler: processing sweep request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	processed, err := s.controller.Sweep(r.Context())
	if err != nil {
		slog.Error("Server.processHandler: sweep failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process unassigned signals"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]int{"processed": processed}))
}

// pwidHandler registers a PWID (POST /pwid) or fetches one by name
// (GET /pwid/{name}).
func (s *Server) pwidHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.pwidHandler: processing request", "method", r.Method, "path", r.URL.Path)

	switch r.Method {
	case http.MethodPost:
		var p models.PWID
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			slog.Warn("Server.pwidHandler: failed to decode JSON", "error", err)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
			return
		}
		if err := p.Validate(); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if err := s.st.CreatePWID(p); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				writeJSONResponse(w, http.StatusConflict, models.Error("PWID already registered"))
				return
			}
			slog.Error("Server.pwidHandler: failed to store pwid", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to store PWID"))
			return
		}
		slog.Info("Server.pwidHandler: pwid registered", "name", p.Name)
		writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("PWID registered successfully", nil))

	case http.MethodGet:
		name := strings.TrimPrefix(r.URL.Path, "/pwid")
		name = strings.TrimPrefix(name, "/")
		if name == "" {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing PWID name"))
			return
		}
		p, err := s.st.GetPWIDByName(name)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeJSONResponse(w, http.StatusNotFound, models.Error("PWID not found"))
				return
			}
			slog.Error("Server.pwidHandler: failed to fetch pwid", "error", err, "name", name)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch PWID"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(p))

	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// responderHandler registers a responder (POST /responder) or fetches one
// by chat id (GET /responder/{id}).
func (s *Server) responderHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.responderHandler: processing request", "method", r.Method, "path", r.URL.Path)

	switch r.Method {
	case http.MethodPost:
		var resp models.Responder
		if err := json.NewDecoder(r.Body).Decode(&resp); err != nil {
			slog.Warn("Server.responderHandler: failed to decode JSON", "error", err)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
			return
		}
		if err := resp.Validate(); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		if resp.LastMessageID == 0 {
			resp.LastMessageID = models.NoMessageID
		}
		if err := s.st.CreateResponder(resp); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				writeJSONResponse(w, http.StatusConflict, models.Error("Responder already registered"))
				return
			}
			slog.Error("Server.responderHandler: failed to store responder", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to store responder"))
			return
		}
		slog.Info("Server.responderHandler: responder registered", "id", resp.ID)
		writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Responder registered successfully", nil))

	case http.MethodGet:
		raw := strings.TrimPrefix(r.URL.Path, "/responder")
		raw = strings.TrimPrefix(raw, "/")
		if raw == "" {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing responder id"))
			return
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid responder id"))
			return
		}
		resp, err := s.st.GetResponder(id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeJSONResponse(w, http.StatusNotFound, models.Error("Responder not found"))
				return
			}
			slog.Error("Server.responderHandler: failed to fetch responder", "error", err, "id", id)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch responder"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(resp))

	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// webhookHandler receives Telegram updates (POST /telegram/webhook).
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		slog.Warn("Server.webhookHandler: failed to decode update", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid update payload"))
		return
	}
	if err := s.router.HandleUpdate(r.Context(), update); err != nil {
		slog.Error("Server.webhookHandler: update routing failed", "error", err, "update_id", update.UpdateID)
		// Telegram retries non-2xx responses; the error is already logged.
	}
	w.WriteHeader(http.StatusOK)
}

// healthHandler provides a health check endpoint for monitoring
// (GET /healthcheck).
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// clientIP extracts the caller's IP address, preferring the first
// X-Forwarded-For entry when the service sits behind a proxy.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
