package apiclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toxitrace/toxitrace/internal/models"
)

// pngHeader is enough of a PNG for content sniffing
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestClient_ChatRoundTrip(t *testing.T) {
	srv, c := loggedInClient(t, models.RoleUser)
	srv.AddReports(models.Report{ID: "r1", UserID: "u1", CreatedAt: at(1)})
	ctx := context.Background()

	session, err := c.CreateChatSession(ctx, models.ChatTriggerReport, "r1", "")
	require.NoError(t, err)
	assert.Equal(t, "r1", session.ReportID)
	assert.Equal(t, "en", srv.LastBody()["language"], "language defaults to English")

	reply, err := c.SendChatMessage(ctx, session.ID, "I have a headache", models.LanguageTwi)
	require.NoError(t, err)
	assert.Equal(t, "I have a headache", reply.UserMessage.Content)
	assert.Equal(t, "assistant", reply.AssistantMessage.Role)
	require.Len(t, reply.SuggestedQuestions, 1)
	assert.NotEmpty(t, reply.SuggestedQuestions[0].English, "string suggestions decode into English")
	assert.Equal(t, "tw", srv.LastBody()["language"])

	history, err := c.ChatHistory(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, history.SessionID)
	assert.Len(t, history.Messages, 2)

	transcript, err := c.ChatSessionForReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, session.ID, transcript.SessionID)
	assert.Len(t, transcript.Messages, 2)
	require.Len(t, transcript.SuggestedQuestions, 1)
	assert.NotEmpty(t, transcript.SuggestedQuestions[0].Twi, "paired suggestions keep both languages")
}

func TestClient_ChatErrors(t *testing.T) {
	_, c := loggedInClient(t, models.RoleUser)
	ctx := context.Background()

	_, err := c.CreateChatSession(ctx, models.ChatTriggerReport, "missing", "en")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 404, apiErr.StatusCode)
	assert.Equal(t, "Report not found", apiErr.Detail)

	_, err = c.SendChatMessage(ctx, "chat-404", "hello", "en")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Chat session not found", apiErr.Detail)
}

func TestClient_ChatExpiredToken(t *testing.T) {
	srv, c := loggedInClient(t, models.RoleUser)
	srv.ExpireTokens()

	hookCalls := 0
	c.OnUnauthorized(func() { hookCalls++ })

	_, err := c.ChatHistory(context.Background(), "chat-1")
	assert.ErrorIs(t, err, ErrSessionExpired)
	_, err = c.UploadImage(context.Background(), ImageUpload{Filename: "a.png", Content: pngHeader})
	assert.ErrorIs(t, err, ErrSessionExpired)
	_, err = c.HeatmapData(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, 3, hookCalls)
}

func TestClient_UploadImage(t *testing.T) {
	srv, c := loggedInClient(t, models.RoleUser)

	image, err := c.UploadImage(context.Background(), ImageUpload{
		Filename:    "/home/ama/photos/river.png",
		Content:     pngHeader,
		Description: "Health check evidence",
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", image.UserID)
	assert.Equal(t, "river.png", image.Filename)

	upload := srv.LastUpload()
	require.NotNil(t, upload)
	assert.Equal(t, "river.png", upload.Filename)
	assert.Equal(t, "image/png", upload.ContentType)
	assert.Equal(t, "Health check evidence", upload.Description)
	assert.Equal(t, len(pngHeader), upload.Size)
}

func TestClient_UploadImageRejectsNonImages(t *testing.T) {
	srv, c := loggedInClient(t, models.RoleUser)

	_, err := c.UploadImage(context.Background(), ImageUpload{Filename: "notes.txt", Content: []byte("just some text")})
	assert.ErrorIs(t, err, ErrNotAnImage)
	assert.Nil(t, srv.LastUpload(), "nothing is sent")
}

func TestClient_HeatmapData(t *testing.T) {
	srv, c := loggedInClient(t, models.RoleEPAAdmin)
	lat, lng := 5.6, -0.2
	srv.AddReports(
		models.Report{ID: "r1", UserID: "p1", Latitude: &lat, Longitude: &lng, CreatedAt: at(1)},
		models.Report{ID: "r2", UserID: "p2", CreatedAt: at(2)},
	)

	data, err := c.HeatmapData(context.Background())
	require.NoError(t, err)

	obj, ok := data.(map[string]any)
	require.True(t, ok, "got %T", data)
	assert.Equal(t, float64(1), obj["total"])
}
