package handler

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/albapepper/ember/internal/api/respond"
	"github.com/albapepper/ember/internal/baseline"
	"github.com/albapepper/ember/internal/checkin"
)

// SyncRequest is the body of POST /sync.
type SyncRequest struct {
	Identity string            `json:"identity"`
	Snapshot baseline.Snapshot `json:"snapshot"`
}

// InboundRequest is the body of POST /webhook/inbound.
type InboundRequest struct {
	Identity string `json:"identity"`
	Text     string `json:"text"`
}

// Sync ingests one daily snapshot.
// @Summary Ingest a daily snapshot
// @Description Evaluates the snapshot against the user's baseline, sends at most one check-in per day when an anomaly is found, and records the snapshot.
// @Tags ingest
// @Accept json
// @Produce json
// @Param body body SyncRequest true "Identity and snapshot"
// @Success 200 {object} checkin.SnapshotResult
// @Failure 400 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /sync [post]
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.svc.HandleSnapshot(r.Context(), req.Identity, req.Snapshot)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, res)
}

// InboundReply records a user's reply to today's check-in.
// @Summary Inbound reply
// @Description Accepts a reply only while today's thread is open; answers once and closes the thread. Other replies return replied=false.
// @Tags ingest
// @Accept json
// @Produce json
// @Param body body InboundRequest true "Identity and reply text"
// @Success 200 {object} checkin.ReplyResult
// @Failure 400 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /webhook/inbound [post]
func (h *Handler) InboundReply(w http.ResponseWriter, r *http.Request) {
	var req InboundRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.svc.HandleInboundReply(r.Context(), req.Identity, req.Text)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, res)
}

// TelegramUpdate receives Bot API webhook updates. The chat ID is the
// identity. Updates without message text and bot commands are acknowledged
// with replied=false so Telegram does not retry them.
// @Summary Telegram webhook
// @Description Receives a Telegram Bot API update and treats the message text as an inbound reply from the chat.
// @Tags ingest
// @Accept json
// @Produce json
// @Success 200 {object} checkin.ReplyResult
// @Failure 400 {object} respond.ErrorResponse
// @Failure 401 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /webhook/telegram [post]
func (h *Handler) TelegramUpdate(w http.ResponseWriter, r *http.Request) {
	if secret := h.cfg.TelegramSecret; secret != "" {
		got := r.Header.Get("X-Telegram-Bot-Api-Secret-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			respond.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid webhook secret")
			return
		}
	}

	var update tgbotapi.Update
	if !decode(w, r, &update) {
		return
	}

	msg := update.Message
	if msg == nil || msg.Chat == nil || strings.TrimSpace(msg.Text) == "" || msg.IsCommand() {
		respond.WriteJSONObject(w, http.StatusOK, checkin.ReplyResult{})
		return
	}

	identity := strconv.FormatInt(msg.Chat.ID, 10)
	res, err := h.svc.HandleInboundReply(r.Context(), identity, msg.Text)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, res)
}
