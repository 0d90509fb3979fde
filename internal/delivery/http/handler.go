package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"chatify/internal/entity"
	"chatify/internal/usecase"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type HttpHandler struct {
	messageUc usecase.MessageUsecase
	userUc    usecase.UserUsecase
	unreadUc  usecase.UnreadUsecase
	maxBody   int64
	log       *zap.Logger
}

func NewHttpHandler(messageUc usecase.MessageUsecase, userUc usecase.UserUsecase, unreadUc usecase.UnreadUsecase, maxBody int64, log *zap.Logger) *HttpHandler {
	return &HttpHandler{
		messageUc: messageUc,
		userUc:    userUc,
		unreadUc:  unreadUc,
		maxBody:   maxBody,
		log:       log,
	}
}

func (h *HttpHandler) viewer(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, Response{Message: "unauthorized"})
		return "", false
	}
	return claims.UserId, true
}

// Method Get /messages/users
func (h *HttpHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	viewerId, ok := h.viewer(w, r)
	if !ok {
		return
	}

	users, err := h.userUc.ListUsers(r.Context(), viewerId)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Message: "success", Data: users})
}

// Method Get /messages/unread
func (h *HttpHandler) UnreadSummary(w http.ResponseWriter, r *http.Request) {
	viewerId, ok := h.viewer(w, r)
	if !ok {
		return
	}

	summary, err := h.unreadUc.Summary(r.Context(), viewerId)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Message: "success", Data: summary})
}

// Method Get /messages/{id}
func (h *HttpHandler) ListConversation(w http.ResponseWriter, r *http.Request) {
	viewerId, ok := h.viewer(w, r)
	if !ok {
		return
	}

	views, err := h.messageUc.ListConversation(r.Context(), viewerId, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Message: "success", Data: views})
}

// Method Post /messages/send/{id}
func (h *HttpHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	senderId, ok := h.viewer(w, r)
	if !ok {
		return
	}

	var req entity.SendMessageRequest
	if !h.decodeLimited(w, r, &req) {
		return
	}

	message, err := h.messageUc.Send(r.Context(), senderId, chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, Response{Message: "message sent", Data: message})
}

// decodeLimited decodes a JSON body that may carry an inline image, writing
// 413 or 400 and reporting false when it cannot.
func (h *HttpHandler) decodeLimited(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, Response{Message: "request body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid request body"})
		return false
	}
	return true
}

// Method Post /messages/open/{id}
func (h *HttpHandler) OpenConversation(w http.ResponseWriter, r *http.Request) {
	viewerId, ok := h.viewer(w, r)
	if !ok {
		return
	}

	if err := h.unreadUc.OnConversationOpened(r.Context(), viewerId, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Message: "conversation opened"})
}

// Method Post /messages/close/{id}
func (h *HttpHandler) CloseConversation(w http.ResponseWriter, r *http.Request) {
	viewerId, ok := h.viewer(w, r)
	if !ok {
		return
	}

	if err := h.unreadUc.OnConversationLeft(r.Context(), viewerId, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Message: "conversation closed"})
}

// parseDeleteForEveryone accepts true or "true" from the query string first
// and the JSON body second. Anything else means delete for self.
func parseDeleteForEveryone(r *http.Request) bool {
	if raw := r.URL.Query().Get("deleteForEveryone"); raw != "" {
		v, err := strconv.ParseBool(raw)
		return err == nil && v
	}
	if r.Body == nil {
		return false
	}

	var req entity.DeleteMessageRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<10)).Decode(&req); err != nil {
		return false
	}
	switch v := req.DeleteForEveryone.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	default:
		return false
	}
}

// Method Delete /messages/{id}
func (h *HttpHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	requesterId, ok := h.viewer(w, r)
	if !ok {
		return
	}

	forEveryone := parseDeleteForEveryone(r)
	message, err := h.messageUc.DeleteMessage(r.Context(), chi.URLParam(r, "id"), requesterId, forEveryone)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	text := "message deleted for you"
	if forEveryone {
		text = "message deleted for everyone"
	}
	writeJSON(w, http.StatusOK, Response{Message: text, Data: message})
}

// Method Post /messages/clear/{id}
func (h *HttpHandler) ClearConversation(w http.ResponseWriter, r *http.Request) {
	userId, ok := h.viewer(w, r)
	if !ok {
		return
	}

	removed, err := h.messageUc.ClearConversation(r.Context(), userId, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Message: "conversation cleared", Data: map[string]int64{"removed": removed}})
}

// Method Get /user/me
func (h *HttpHandler) Me(w http.ResponseWriter, r *http.Request) {
	userId, ok := h.viewer(w, r)
	if !ok {
		return
	}

	user, err := h.userUc.Get(r.Context(), userId)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Message: "success", Data: user})
}

// Method Put /user/language
func (h *HttpHandler) UpdateLanguage(w http.ResponseWriter, r *http.Request) {
	userId, ok := h.viewer(w, r)
	if !ok {
		return
	}

	var req entity.UpdateLanguageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid request body"})
		return
	}

	user, err := h.userUc.UpdateLanguage(r.Context(), userId, req.PreferredLanguage)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Message: "language updated", Data: user})
}

// Method Put /user/profile-pic
func (h *HttpHandler) UpdateProfilePic(w http.ResponseWriter, r *http.Request) {
	userId, ok := h.viewer(w, r)
	if !ok {
		return
	}

	var req entity.UpdateProfilePicRequest
	if !h.decodeLimited(w, r, &req) {
		return
	}

	user, err := h.userUc.UpdateProfilePic(r.Context(), userId, req.ProfilePic)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Message: "profile picture updated", Data: user})
}
