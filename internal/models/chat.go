package models

import (
	"encoding/json"
	"fmt"
)

// ChatTrigger is what a follow-up chat session was opened for
type ChatTrigger string

const (
	ChatTriggerReport ChatTrigger = "report"
	ChatTriggerImage  ChatTrigger = "image"
)

// Chat languages accepted by the backend
const (
	LanguageEnglish = "en"
	LanguageTwi     = "tw"
)

// ChatSession is a triage conversation attached to a report or an image
type ChatSession struct {
	ID          string      `json:"id" yaml:"id"`
	UserID      string      `json:"user_id" yaml:"user_id"`
	TriggerType ChatTrigger `json:"trigger_type" yaml:"trigger_type"`
	TriggerID   string      `json:"trigger_id" yaml:"trigger_id"`
	ReportID    string      `json:"report_id,omitempty" yaml:"report_id,omitempty"`
	ImageID     string      `json:"image_id,omitempty" yaml:"image_id,omitempty"`
	Status      string      `json:"status" yaml:"status"`
	CreatedAt   Timestamp   `json:"created_at" yaml:"created_at"`
}

// ChatMessage is one turn of a chat session
type ChatMessage struct {
	ID             int64     `json:"id" yaml:"id"`
	SessionID      string    `json:"session_id" yaml:"session_id"`
	Role           string    `json:"role" yaml:"role"`
	Content        string    `json:"content" yaml:"content"`
	ContentTwi     string    `json:"content_twi,omitempty" yaml:"content_twi,omitempty"`
	Language       string    `json:"language" yaml:"language"`
	CreatedAt      Timestamp `json:"created_at" yaml:"created_at"`
	ResponseTimeMS *int      `json:"response_time_ms,omitempty" yaml:"response_time_ms,omitempty"`
	TokensUsed     *int      `json:"tokens_used,omitempty" yaml:"tokens_used,omitempty"`
}

// SuggestedQuestion is a follow-up the assistant proposes. The backend sends
// either a bare string or an {english, twi} pair.
type SuggestedQuestion struct {
	English string `json:"english" yaml:"english"`
	Twi     string `json:"twi,omitempty" yaml:"twi,omitempty"`
}

func (q *SuggestedQuestion) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*q = SuggestedQuestion{English: text}
		return nil
	}

	var pair struct {
		English string `json:"english"`
		Twi     string `json:"twi"`
	}
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("invalid suggested question: %s", data)
	}
	*q = SuggestedQuestion{English: pair.English, Twi: pair.Twi}
	return nil
}

// ChatTranscript is a session's message history
type ChatTranscript struct {
	SessionID          string              `json:"session_id" yaml:"session_id"`
	Messages           []ChatMessage       `json:"messages" yaml:"messages"`
	SuggestedQuestions []SuggestedQuestion `json:"suggested_questions,omitempty" yaml:"suggested_questions,omitempty"`
}

// ChatReply is the result of sending a message: the stored user turn and
// the assistant's answer
type ChatReply struct {
	SessionID          string              `json:"session_id" yaml:"session_id"`
	UserMessage        ChatMessage         `json:"user_message" yaml:"user_message"`
	AssistantMessage   ChatMessage         `json:"assistant_message" yaml:"assistant_message"`
	SuggestedQuestions []SuggestedQuestion `json:"suggested_questions,omitempty" yaml:"suggested_questions,omitempty"`
}

// Image is an uploaded photo and the backend's toxicity prediction for it
type Image struct {
	ID               string     `json:"id" yaml:"id"`
	UserID           string     `json:"user_id" yaml:"user_id"`
	ReportID         string     `json:"report_id,omitempty" yaml:"report_id,omitempty"`
	ImageURL         string     `json:"image_url" yaml:"image_url"`
	ImageType        string     `json:"image_type" yaml:"image_type"`
	Prediction       string     `json:"prediction" yaml:"prediction"`
	Confidence       float64    `json:"confidence" yaml:"confidence"`
	ToxicityDetected bool       `json:"toxicity_detected" yaml:"toxicity_detected"`
	ContaminantType  string     `json:"contaminant_type,omitempty" yaml:"contaminant_type,omitempty"`
	Location         string     `json:"location,omitempty" yaml:"location,omitempty"`
	Region           string     `json:"region,omitempty" yaml:"region,omitempty"`
	Filename         string     `json:"filename,omitempty" yaml:"filename,omitempty"`
	Description      string     `json:"description,omitempty" yaml:"description,omitempty"`
	ChatSessionID    string     `json:"chat_session_id,omitempty" yaml:"chat_session_id,omitempty"`
	CreatedAt        Timestamp  `json:"created_at" yaml:"created_at"`
	ProcessedAt      *Timestamp `json:"processed_at,omitempty" yaml:"processed_at,omitempty"`
}

// HeatmapData is the backend's report density data. Its shape is owned by
// the map renderer, so it is passed through undecoded into Go types.
type HeatmapData = any
