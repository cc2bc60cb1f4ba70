package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/partyquiz/server/internal/models"
	"github.com/partyquiz/server/internal/observability"
	"github.com/partyquiz/server/internal/services"
)

// Host-broadcastable event types. Lifecycle events (TEAM_APPROVED and
// friends) go through their own commands, not the generic broadcast.
var broadcastable = map[string]bool{
	models.EventDisplayMode:   true,
	models.EventDisplayUpdate: true,
	models.EventQuestion:      true,
	models.EventReveal:        true,
	models.EventFastest:       true,
	models.EventTimeUp:        true,
	models.EventPicture:       true,
}

// HostHandler exposes the host control boundary: the request/response
// command surface the host UI drives the game with.
type HostHandler struct {
	registry    *services.ConnectionRegistry
	store       *services.SessionStore
	lifecycle   *services.LifecycleService
	broadcaster *services.BroadcastService
	answers     *services.AnswerBuffer
	logger      *observability.Logger
}

// NewHostHandler creates a new HostHandler
func NewHostHandler(registry *services.ConnectionRegistry, store *services.SessionStore, lifecycle *services.LifecycleService, broadcaster *services.BroadcastService, answers *services.AnswerBuffer) *HostHandler {
	return &HostHandler{
		registry:    registry,
		store:       store,
		lifecycle:   lifecycle,
		broadcaster: broadcaster,
		answers:     answers,
		logger:      observability.WithField("component", "host_handler"),
	}
}

// Approve admits a pending team
// @Summary Approve a team
// @Tags host
// @Accept json
// @Produce json
// @Param request body models.ApproveRequest true "Team to approve"
// @Success 200
// @Failure 409 {object} models.ErrorResponse
// @Router /api/host/approve [post]
func (h *HostHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var req models.ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "deviceId is required")
		return
	}

	err := h.lifecycle.Approve(models.DeviceID(req.DeviceID), req.TeamName, req.DisplayData)
	h.writeLifecycleResult(w, req.DeviceID, err)
}

// Decline rejects a pending team
// @Summary Decline a team
// @Tags host
// @Accept json
// @Produce json
// @Param request body models.DeclineRequest true "Team to decline"
// @Success 200
// @Failure 409 {object} models.ErrorResponse
// @Router /api/host/decline [post]
func (h *HostHandler) Decline(w http.ResponseWriter, r *http.Request) {
	var req models.DeclineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "deviceId is required")
		return
	}

	err := h.lifecycle.Decline(models.DeviceID(req.DeviceID), req.TeamName)
	h.writeLifecycleResult(w, req.DeviceID, err)
}

func (h *HostHandler) writeLifecycleResult(w http.ResponseWriter, deviceID string, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	case errors.Is(err, models.ErrNoLiveConnection), errors.Is(err, models.ErrNoSession):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.WithField("device_id", deviceID).Errorf("lifecycle command failed: %v", err)
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

// Broadcast pushes a game event to every approved team
// @Summary Broadcast an event to approved teams
// @Tags host
// @Accept json
// @Produce json
// @Param request body models.BroadcastRequest true "Event to broadcast"
// @Success 200 {object} models.BroadcastResult
// @Router /api/host/broadcast [post]
func (h *HostHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req models.BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !broadcastable[req.Type] {
		writeError(w, http.StatusBadRequest, "unsupported broadcast type")
		return
	}

	result := h.broadcaster.BroadcastToApproved(req.Type, req.Data)
	if len(result.FailedDeviceIDs) > 0 {
		h.logger.Warnf("broadcast %s reached %d teams, %d unreachable", req.Type, result.SuccessCount, len(result.FailedDeviceIDs))
	}
	writeJSON(w, http.StatusOK, result)
}

// PendingTeams lists teams awaiting approval, in join order
// @Summary List pending teams
// @Tags host
// @Produce json
// @Success 200 {array} models.PlayerSession
// @Router /api/host/teams/pending [get]
func (h *HostHandler) PendingTeams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.ListByStatus(models.StatusPending))
}

// AllPlayers lists every known session
// @Summary List all players
// @Tags host
// @Produce json
// @Success 200 {array} models.PlayerSession
// @Router /api/host/players [get]
func (h *HostHandler) AllPlayers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.All())
}

// PendingAnswers drains and returns the answers buffered since the last
// drain.
// @Summary Drain pending answers
// @Tags host
// @Produce json
// @Success 200 {array} models.PendingAnswer
// @Router /api/host/answers [get]
func (h *HostHandler) PendingAnswers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.answers.DrainAll())
}

// Stats returns connection and session counts for diagnostics
// @Summary Relay diagnostics
// @Tags host
// @Produce json
// @Success 200 {object} models.StatsResponse
// @Router /api/host/stats [get]
func (h *HostHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.StatsResponse{
		OpenConnections: h.registry.Count(),
		TotalSessions:   h.store.Count(),
		PendingTeams:    len(h.store.ListByStatus(models.StatusPending)),
		ApprovedTeams:   len(h.store.ListByStatus(models.StatusApproved)),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}
