package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/frombarmars/flickshare-sub000/internal/blockchain"
	"github.com/frombarmars/flickshare-sub000/internal/models"
	"github.com/frombarmars/flickshare-sub000/internal/repository"
	"github.com/frombarmars/flickshare-sub000/internal/service"
)

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func pathID(path string, index int) (uint, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) <= index {
		return 0, false
	}
	id, err := strconv.ParseUint(parts[index], 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// ListenerHandler is the admin toggle for the event pipeline.
type ListenerHandler struct {
	manager *blockchain.Manager
}

func NewListenerHandler(manager *blockchain.Manager) *ListenerHandler {
	return &ListenerHandler{manager: manager}
}

func (h *ListenerHandler) Start(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := h.manager.Start(); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to start listener: "+err.Error())
		return
	}

	isRunning, lastErr := h.manager.Status()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"isRunning": isRunning,
		"error":     lastErr,
	})
}

func (h *ListenerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	h.manager.Stop()
	writeJSON(w, http.StatusOK, map[string]interface{}{"isRunning": false})
}

func (h *ListenerHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	isRunning, lastErr := h.manager.Status()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"isRunning":   isRunning,
		"error":       lastErr,
		"queueLength": h.manager.QueueLength(),
	})
}

// RewardsHandler exposes the synchronous award paths. Every endpoint
// funnels through the same ledger the event pipeline uses, so the two
// delivery paths share one dedup guard.
type RewardsHandler struct {
	ledger *service.Ledger
}

func NewRewardsHandler(ledger *service.Ledger) *RewardsHandler {
	return &RewardsHandler{ledger: ledger}
}

type userRequest struct {
	UserID uint `json:"userId"`
}

func (h *RewardsHandler) Checkin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	result, err := h.ledger.Checkin(r.Context(), req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "check-in failed: "+err.Error())
		return
	}

	if !result.OK {
		result.Reason = "Already checked in today"
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *RewardsHandler) ReviewAward(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	result, err := h.ledger.ReviewSubmitted(r.Context(), req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "review award failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

var followActions = map[string]models.ActionType{
	"x":        models.ActionFollowX,
	"discord":  models.ActionFollowDiscord,
	"telegram": models.ActionFollowTelegram,
}

func (h *RewardsHandler) FollowClaim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		UserID   uint   `json:"userId"`
		Platform string `json:"platform"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "userId and platform are required")
		return
	}

	action, ok := followActions[strings.ToLower(req.Platform)]
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown platform: "+req.Platform)
		return
	}

	result, err := h.ledger.FollowClaimed(r.Context(), req.UserID, action)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "follow claim failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *RewardsHandler) InviteAccept(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		InviterID uint `json:"inviterId"`
		InviteeID uint `json:"inviteeId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.InviterID == 0 || req.InviteeID == 0 {
		writeError(w, http.StatusBadRequest, "inviterId and inviteeId are required")
		return
	}

	inviterRes, inviteeRes, err := h.ledger.InviteAccepted(r.Context(), req.InviterID, req.InviteeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "invite accept failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"inviter": inviterRes,
		"invitee": inviteeRes,
	})
}

type PointsHandler struct {
	userRepo   *repository.UserRepository
	pointsRepo *repository.PointsRepository
}

func NewPointsHandler(userRepo *repository.UserRepository, pointsRepo *repository.PointsRepository) *PointsHandler {
	return &PointsHandler{userRepo: userRepo, pointsRepo: pointsRepo}
}

// GetPoints serves /api/points/{userId}: the cached total plus recent
// ledger rows.
func (h *PointsHandler) GetPoints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID, ok := pathID(r.URL.Path, 2)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid path, expected /api/points/{userId}")
		return
	}

	ctx := r.Context()
	user, err := h.userRepo.GetByID(ctx, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load user: "+err.Error())
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	history, err := h.pointsRepo.HistoryByUser(ctx, userID, 0, 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load history: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"totalPoints":  user.TotalPoints,
		"transactions": history,
	})
}

type NotificationHandler struct {
	notificationRepo *repository.NotificationRepository
}

func NewNotificationHandler(notificationRepo *repository.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{notificationRepo: notificationRepo}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID, ok := pathID(r.URL.Path, 2)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid path, expected /api/notifications/{userId}")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	notifications, err := h.notificationRepo.ListByRecipient(r.Context(), userID, (page-1)*pageSize, pageSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list notifications: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":    notifications,
		"page":     page,
		"pageSize": pageSize,
	})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		UserID uint   `json:"userId"`
		IDs    []uint `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 || len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "userId and ids are required")
		return
	}

	if err := h.notificationRepo.MarkRead(r.Context(), req.UserID, req.IDs); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mark read: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
