package fakeapi

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/toxitrace/toxitrace/internal/models"
)

// maxUploadMemory bounds multipart parsing of /images/upload
const maxUploadMemory = 10 << 20

// assistantReply is the canned answer to every chat message
const assistantReply = "Thank you for the details. Please visit the nearest clinic if the symptoms continue."

type chat struct {
	session  models.ChatSession
	messages []models.ChatMessage
}

// Upload records what /images/upload received
type Upload struct {
	Filename    string
	ContentType string
	Description string
	Size        int
}

// LastUpload returns the last image received, or nil
func (s *Server) LastUpload() *Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpload
}

// Chats returns how many chat sessions exist
func (s *Server) Chats() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chats)
}

// newID returns a fresh identifier with prefix. Callers hold s.mu.
func (s *Server) newID(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

// findChat returns the user's chat matching fn. Callers hold s.mu.
func (s *Server) findChat(userID string, fn func(*chat) bool) *chat {
	for _, c := range s.chats {
		if c.session.UserID == userID && fn(c) {
			return c
		}
	}
	return nil
}

func (s *Server) createChat(w http.ResponseWriter, r *http.Request, user models.User) {
	body, ok := s.decode(w, r)
	if !ok {
		return
	}

	trigger := models.ChatTrigger(str(body, "trigger_type"))
	triggerID := str(body, "trigger_id")
	if trigger != models.ChatTriggerReport && trigger != models.ChatTriggerImage {
		writeDetail(w, http.StatusBadRequest, "Invalid trigger type")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session := models.ChatSession{
		ID:          s.newID("chat"),
		UserID:      user.ID,
		TriggerType: trigger,
		TriggerID:   triggerID,
		Status:      "active",
		CreatedAt:   models.Timestamp{Time: time.Now().UTC()},
	}
	if trigger == models.ChatTriggerReport {
		found := false
		for _, rep := range s.reports {
			if rep.ID == triggerID && rep.UserID == user.ID {
				found = true
				break
			}
		}
		if !found {
			writeDetail(w, http.StatusNotFound, "Report not found")
			return
		}
		session.ReportID = triggerID
	} else {
		session.ImageID = triggerID
	}

	s.chats = append(s.chats, &chat{session: session})
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) chatForReport(w http.ResponseWriter, r *http.Request, user models.User) {
	reportID := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findChat(user.ID, func(c *chat) bool { return c.session.ReportID == reportID })
	if c == nil {
		writeDetail(w, http.StatusNotFound, "Chat session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": c.session.ID,
		"messages":   append([]models.ChatMessage{}, c.messages...),
		"suggested_questions": []map[string]string{
			{"english": "What should I avoid drinking?", "twi": "Dɛn na ɛsɛ sɛ mekwati nom?"},
		},
	})
}

// chatHistory answers with the bare message array
func (s *Server) chatHistory(w http.ResponseWriter, r *http.Request, user models.User) {
	sessionID := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findChat(user.ID, func(c *chat) bool { return c.session.ID == sessionID })
	if c == nil {
		writeDetail(w, http.StatusNotFound, "Chat session not found")
		return
	}
	writeJSON(w, http.StatusOK, append([]models.ChatMessage{}, c.messages...))
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request, user models.User) {
	body, ok := s.decode(w, r)
	if !ok {
		return
	}
	content := str(body, "content")
	if content == "" {
		writeDetail(w, http.StatusBadRequest, "Message content is required")
		return
	}
	language := str(body, "language")

	s.mu.Lock()
	defer s.mu.Unlock()

	sessionID := str(body, "session_id")
	c := s.findChat(user.ID, func(c *chat) bool { return c.session.ID == sessionID })
	if c == nil {
		writeDetail(w, http.StatusNotFound, "Chat session not found")
		return
	}

	now := models.Timestamp{Time: time.Now().UTC()}
	userMsg := models.ChatMessage{
		ID:        int64(len(c.messages) + 1),
		SessionID: sessionID,
		Role:      "user",
		Content:   content,
		Language:  language,
		CreatedAt: now,
	}
	assistantMsg := models.ChatMessage{
		ID:        int64(len(c.messages) + 2),
		SessionID: sessionID,
		Role:      "assistant",
		Content:   assistantReply,
		Language:  language,
		CreatedAt: now,
	}
	c.messages = append(c.messages, userMsg, assistantMsg)

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":          sessionID,
		"user_message":        userMsg,
		"assistant_message":   assistantMsg,
		"suggested_questions": []string{"How long have you had these symptoms?"},
	})
}

func (s *Server) uploadImage(w http.ResponseWriter, r *http.Request, user models.User) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Failed to read file")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastUpload = &Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Description: r.FormValue("description"),
		Size:        len(data),
	}

	image := models.Image{
		ID:          s.newID("image"),
		UserID:      user.ID,
		ImageURL:    "/uploads/" + header.Filename,
		ImageType:   s.lastUpload.ContentType,
		Prediction:  "no_contamination",
		Confidence:  0.92,
		Filename:    header.Filename,
		Description: s.lastUpload.Description,
		CreatedAt:   models.Timestamp{Time: time.Now().UTC()},
	}
	s.images = append(s.images, image)
	writeJSON(w, http.StatusOK, image)
}

// heatmap aggregates report coordinates, for EPA and super admins only
func (s *Server) heatmap(w http.ResponseWriter, r *http.Request, user models.User) {
	if !user.Role.In([]models.Role{models.RoleEPAAdmin, models.RoleSuperAdmin}) {
		writeDetail(w, http.StatusForbidden, "Not enough permissions")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	points := []map[string]any{}
	for _, rep := range s.reports {
		if rep.Latitude == nil || rep.Longitude == nil {
			continue
		}
		points = append(points, map[string]any{
			"lat":    *rep.Latitude,
			"lng":    *rep.Longitude,
			"weight": 1,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"points": points, "total": len(points)})
}
