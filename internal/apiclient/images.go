package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/toxitrace/toxitrace/internal/models"
)

// ErrNotAnImage is returned when upload content is not a recognised image
var ErrNotAnImage = errors.New("file is not an image")

// ImageUpload is a photo to submit for toxicity analysis
type ImageUpload struct {
	Filename    string
	Content     []byte
	Description string
}

// UploadImage sends a photo as multipart form data. The content type is
// sniffed from the bytes; anything that is not an image is rejected before
// the request is made.
func (c *Client) UploadImage(ctx context.Context, upload ImageUpload) (*models.Image, error) {
	mtype := mimetype.Detect(upload.Content)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, fmt.Errorf("%w: detected %s", ErrNotAnImage, mtype.String())
	}

	filename := filepath.Base(upload.Filename)
	if filename == "." || filename == string(filepath.Separator) {
		filename = "upload" + mtype.Extension()
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", mtype.String())
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload part: %w", err)
	}
	if _, err := part.Write(upload.Content); err != nil {
		return nil, fmt.Errorf("failed to write upload part: %w", err)
	}
	if upload.Description != "" {
		if err := writer.WriteField("description", upload.Description); err != nil {
			return nil, fmt.Errorf("failed to write description: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish upload body: %w", err)
	}

	var image models.Image
	if err := c.send(ctx, http.MethodPost, "/images/upload", &body, writer.FormDataContentType(), true, &image); err != nil {
		return nil, err
	}
	return &image, nil
}
