package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/toxitrace/toxitrace/internal/models"
)

// CreateChatSession opens a follow-up chat about a report or an image
func (c *Client) CreateChatSession(ctx context.Context, trigger models.ChatTrigger, triggerID, language string) (*models.ChatSession, error) {
	if language == "" {
		language = models.LanguageEnglish
	}
	reqBody := map[string]string{
		"trigger_type": string(trigger),
		"trigger_id":   triggerID,
		"language":     language,
	}

	var session models.ChatSession
	if err := c.do(ctx, http.MethodPost, "/chat/sessions/create", reqBody, true, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// ChatSessionForReport returns the chat the backend opened for a report
func (c *Client) ChatSessionForReport(ctx context.Context, reportID string) (*models.ChatTranscript, error) {
	var transcript models.ChatTranscript
	if err := c.do(ctx, http.MethodGet, "/chat/sessions/report/"+url.PathEscape(reportID), nil, true, &transcript); err != nil {
		return nil, err
	}
	return &transcript, nil
}

// ChatHistory returns a session's messages. The backend answers either with
// a bare message array or with a transcript object.
func (c *Client) ChatHistory(ctx context.Context, sessionID string) (*models.ChatTranscript, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/chat/sessions/"+url.PathEscape(sessionID), nil, true, &raw); err != nil {
		return nil, err
	}

	if strings.HasPrefix(strings.TrimSpace(string(raw)), "[") {
		var messages []models.ChatMessage
		if err := json.Unmarshal(raw, &messages); err != nil {
			return nil, fmt.Errorf("failed to decode chat history: %w", err)
		}
		return &models.ChatTranscript{SessionID: sessionID, Messages: messages}, nil
	}

	var transcript models.ChatTranscript
	if err := json.Unmarshal(raw, &transcript); err != nil {
		return nil, fmt.Errorf("failed to decode chat history: %w", err)
	}
	if transcript.SessionID == "" {
		transcript.SessionID = sessionID
	}
	return &transcript, nil
}

// SendChatMessage posts a user message and returns the assistant's reply
func (c *Client) SendChatMessage(ctx context.Context, sessionID, content, language string) (*models.ChatReply, error) {
	if language == "" {
		language = models.LanguageEnglish
	}
	reqBody := map[string]string{
		"session_id": sessionID,
		"content":    content,
		"language":   language,
	}

	var reply models.ChatReply
	if err := c.do(ctx, http.MethodPost, "/chat/messages/send", reqBody, true, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}
