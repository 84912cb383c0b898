package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/kanux/internal/backend"
	"github.com/hitoshi/kanux/internal/middleware"
	"github.com/hitoshi/kanux/internal/model"
	"github.com/hitoshi/kanux/internal/security"
)

// MessagingAPI はメッセージ機能に必要なバックエンドAPIの部分集合。
type MessagingAPI interface {
	ListConversations(ctx context.Context, token string) ([]backend.Conversation, error)
	ListMessages(ctx context.Context, token, conversationID string) ([]backend.Message, error)
	SendMessage(ctx context.Context, token, conversationID, body string) (*backend.Message, error)
}

// MessageHandler は会話とメッセージのHTTPハンドラー。
// バックエンドから受け取った本文はサニタイズしてから返す。
type MessageHandler struct {
	api       MessagingAPI
	sanitizer security.MessageSanitizer
	*responder
}

// NewMessageHandler はMessageHandlerを生成する。
func NewMessageHandler(api MessagingAPI, sanitizer security.MessageSanitizer, terminator SessionTerminator, cookie CookieConfig) *MessageHandler {
	return &MessageHandler{
		api:       api,
		sanitizer: sanitizer,
		responder: newResponder(terminator, cookie),
	}
}

// sendMessageRequest はメッセージ送信リクエストのボディ。
type sendMessageRequest struct {
	Body string `json:"body" validate:"required,max=5000"`
}

type conversationsResponse struct {
	Conversations []backend.Conversation `json:"conversations"`
}

type messagesResponse struct {
	ConversationID string            `json:"conversation_id"`
	Messages       []backend.Message `json:"messages"`
}

// Redirect はユーザー種別ごとのメッセージ画面へ遷移させる。
// GET /messages
func (h *MessageHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	sess, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	http.Redirect(w, r, "/"+string(sess.UserType())+"/messages", http.StatusSeeOther)
}

// ListConversations は会話一覧を返す。
// GET /{role}/messages
func (h *MessageHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	convs, err := h.api.ListConversations(r.Context(), sess.Token)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	for i := range convs {
		convs[i].Participant = h.sanitizer.SanitizePlain(convs[i].Participant)
		convs[i].LastMessage = h.sanitizer.SanitizePlain(convs[i].LastMessage)
	}
	if convs == nil {
		convs = []backend.Conversation{}
	}
	middleware.WriteJSON(w, http.StatusOK, conversationsResponse{Conversations: convs})
}

// ListMessages は会話内のメッセージを返す。
// GET /{role}/messages/{id}
func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	convID := chi.URLParam(r, "id")

	msgs, err := h.api.ListMessages(r.Context(), sess.Token, convID)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewConversationNotFoundError(convID))
			return
		}
		h.handleError(w, r, err)
		return
	}

	for i := range msgs {
		msgs[i].Body = h.sanitizer.SanitizeBody(msgs[i].Body)
	}
	if msgs == nil {
		msgs = []backend.Message{}
	}
	middleware.WriteJSON(w, http.StatusOK, messagesResponse{ConversationID: convID, Messages: msgs})
}

// SendMessage は会話にメッセージを送信する。本文はプレーンテキストとして送る。
// POST /{role}/messages/{id}
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	convID := chi.URLParam(r, "id")

	var req sendMessageRequest
	if !h.decode(w, r, &req) {
		return
	}
	body := h.sanitizer.SanitizePlain(req.Body)
	if body == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("本文が空です"))
		return
	}

	msg, err := h.api.SendMessage(r.Context(), sess.Token, convID, body)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewConversationNotFoundError(convID))
			return
		}
		h.handleError(w, r, err)
		return
	}

	msg.Body = h.sanitizer.SanitizeBody(msg.Body)
	middleware.WriteJSON(w, http.StatusCreated, msg)
}
