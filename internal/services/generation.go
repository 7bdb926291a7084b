package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"

	"github.com/desertthunder/multiverse/internal/models"
	"github.com/desertthunder/multiverse/internal/shared"
)

// CreateRequest is the payload of POST /api/create.
//
// Image is optional; when nil the backend generates from the description alone.
type CreateRequest struct {
	UserID          string
	UserDescription string
	NumThemes       int
	Album           models.AlbumMode
	Image           []byte
}

// RollRequest is the payload of a re-roll against an already uploaded source image.
type RollRequest struct {
	UserID          string
	SourceImageID   string
	UserDescription string
	NumThemes       int
	Album           models.AlbumMode
	RequestID       string
}

// formField is one multipart part; file parts carry a filename and content type.
type formField struct {
	name        string
	value       []byte
	filename    string
	contentType string
}

func textField(name, value string) formField {
	return formField{name: name, value: []byte(value)}
}

func imageField(data []byte) formField {
	return formField{name: "image", value: data, filename: "image.jpg", contentType: "image/jpeg"}
}

// postMultipart encodes fields as multipart/form-data and decodes the JSON answer into out.
func (c *Client) postMultipart(ctx context.Context, path string, fields []formField, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range fields {
		var (
			part io.Writer
			err  error
		)
		if f.filename != "" {
			h := make(textproto.MIMEHeader)
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.name, f.filename))
			h.Set("Content-Type", f.contentType)
			part, err = w.CreatePart(h)
		} else {
			part, err = w.CreateFormField(f.name)
		}
		if err != nil {
			return fmt.Errorf("failed to encode form field %s: %w", f.name, err)
		}
		if _, err := part.Write(f.value); err != nil {
			return fmt.Errorf("failed to encode form field %s: %w", f.name, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to encode form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	_, data, err := c.send(req)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: POST %s: %v", shared.ErrMalformedResponse, path, err)
	}
	return nil
}

// UploadImage stores a source image and returns its id.
func (c *Client) UploadImage(ctx context.Context, userID string, image []byte) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("%w: image is empty", shared.ErrInvalidInput)
	}

	var resp struct {
		SourceImageID string `json:"source_image_id"`
	}
	fields := []formField{textField("user_id", userID), imageField(image)}
	if err := c.postMultipart(ctx, "/api/upload", fields, &resp); err != nil {
		return "", err
	}
	if resp.SourceImageID == "" {
		return "", fmt.Errorf("%w: upload response missing source_image_id", shared.ErrMalformedResponse)
	}

	c.logger.Info("uploaded source image", "source_image_id", resp.SourceImageID, "bytes", len(image))
	return resp.SourceImageID, nil
}

// SubmitGenerationJob creates a new job from a description and an optional image.
func (c *Client) SubmitGenerationJob(ctx context.Context, r CreateRequest) (*models.GenerationJob, error) {
	album := r.Album
	if album == "" {
		album = models.AlbumModeDefault
	}

	fields := []formField{
		textField("user_id", r.UserID),
		textField("user_description", r.UserDescription),
		textField("num_themes", strconv.Itoa(r.NumThemes)),
		textField("album", string(album)),
	}
	if len(r.Image) > 0 {
		fields = append(fields, imageField(r.Image))
	}

	var job models.GenerationJob
	if err := c.postMultipart(ctx, "/api/create", fields, &job); err != nil {
		return nil, err
	}
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMalformedResponse, err)
	}

	c.logger.Info("generation job created", "request_id", job.RequestID, "images", len(job.Images))
	return &job, nil
}

// RollGenerationJob asks for a fresh set of themes for an existing source image.
func (c *Client) RollGenerationJob(ctx context.Context, r RollRequest) (*models.GenerationJob, error) {
	if r.SourceImageID == "" {
		return nil, fmt.Errorf("%w: source_image_id is required", shared.ErrMissingArgument)
	}
	album := r.Album
	if album == "" {
		album = models.AlbumModeDefault
	}

	fields := []formField{
		textField("user_id", r.UserID),
		textField("source_image_id", r.SourceImageID),
		textField("user_description", r.UserDescription),
		textField("num_themes", strconv.Itoa(r.NumThemes)),
		textField("album", string(album)),
	}
	if r.RequestID != "" {
		fields = append(fields, textField("request_id", r.RequestID))
	}
	if c.appName != "" {
		fields = append(fields, textField("app_name", c.appName))
	}

	var job models.GenerationJob
	if err := c.postMultipart(ctx, c.rollPath, fields, &job); err != nil {
		return nil, err
	}
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMalformedResponse, err)
	}

	c.logger.Info("generation job rolled", "request_id", job.RequestID, "path", c.rollPath, "images", len(job.Images))
	return &job, nil
}
