package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/multiverse/internal/models"
	"github.com/desertthunder/multiverse/internal/shared"
	tu "github.com/desertthunder/multiverse/internal/testing"
)

func jobHandler(t *testing.T, path string, check func(r *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			t.Errorf("expected path %s, got %s", path, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("failed to parse multipart form: %v", err)
			return
		}
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tu.Job("req-9", 9))
	}
}

func TestSubmitGenerationJob(t *testing.T) {
	t.Run("Sends Form Fields And Image", func(t *testing.T) {
		img := tu.JPEG(t, 8, 8)
		server := httptest.NewServer(jobHandler(t, "/api/create", func(r *http.Request) {
			want := map[string]string{
				"user_id":          "u1",
				"user_description": "a cat in space",
				"num_themes":       "9",
				"album":            "my_album",
			}
			for k, v := range want {
				if got := r.FormValue(k); got != v {
					t.Errorf("field %s: expected %q, got %q", k, v, got)
				}
			}

			f, hdr, err := r.FormFile("image")
			if err != nil {
				t.Errorf("expected image part: %v", err)
				return
			}
			defer f.Close()
			if hdr.Filename != "image.jpg" {
				t.Errorf("expected filename image.jpg, got %s", hdr.Filename)
			}
			if hdr.Header.Get("Content-Type") != "image/jpeg" {
				t.Errorf("expected image/jpeg part, got %s", hdr.Header.Get("Content-Type"))
			}
			data, _ := io.ReadAll(f)
			if len(data) != len(img) {
				t.Errorf("expected %d image bytes, got %d", len(img), len(data))
			}
		}))
		defer server.Close()

		c := NewClient(ClientOpts{BaseURL: server.URL})
		job, err := c.SubmitGenerationJob(context.Background(), CreateRequest{
			UserID:          "u1",
			UserDescription: "a cat in space",
			NumThemes:       9,
			Album:           models.AlbumModeMyAlbum,
			Image:           img,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if job.RequestID != "req-9" || len(job.Images) != 9 {
			t.Errorf("unexpected job %+v", job)
		}
	})

	t.Run("Without Image Defaults Album", func(t *testing.T) {
		server := httptest.NewServer(jobHandler(t, "/api/create", func(r *http.Request) {
			if _, _, err := r.FormFile("image"); err == nil {
				t.Error("expected no image part")
			}
			if r.FormValue("album") != "default" {
				t.Errorf("expected default album, got %q", r.FormValue("album"))
			}
		}))
		defer server.Close()

		c := NewClient(ClientOpts{BaseURL: server.URL})
		if _, err := c.SubmitGenerationJob(context.Background(), CreateRequest{UserID: "u1", NumThemes: 9}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("Malformed Job", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"request_id":"x","images":[]}`))
		}))
		defer server.Close()

		c := NewClient(ClientOpts{BaseURL: server.URL})
		_, err := c.SubmitGenerationJob(context.Background(), CreateRequest{UserID: "u1"})
		if !errors.Is(err, shared.ErrMalformedResponse) {
			t.Errorf("expected ErrMalformedResponse, got %v", err)
		}
	})

	t.Run("Invalid JSON", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>`))
		}))
		defer server.Close()

		c := NewClient(ClientOpts{BaseURL: server.URL})
		_, err := c.SubmitGenerationJob(context.Background(), CreateRequest{UserID: "u1"})
		if !errors.Is(err, shared.ErrMalformedResponse) {
			t.Errorf("expected ErrMalformedResponse, got %v", err)
		}
	})

	t.Run("Server Error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		c := NewClient(ClientOpts{BaseURL: server.URL})
		_, err := c.SubmitGenerationJob(context.Background(), CreateRequest{UserID: "u1"})

		var se *ServerError
		if !errors.As(err, &se) {
			t.Fatalf("expected ServerError, got %v", err)
		}
		if se.Status != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", se.Status)
		}
	})
}

func TestRollGenerationJob(t *testing.T) {
	t.Run("Uses Configured Roll Path", func(t *testing.T) {
		for _, path := range []string{DefaultRollPath, TestRollPath} {
			t.Run(path, func(t *testing.T) {
				server := httptest.NewServer(jobHandler(t, path, func(r *http.Request) {
					if r.FormValue("source_image_id") != "src-1" {
						t.Errorf("expected source_image_id src-1, got %q", r.FormValue("source_image_id"))
					}
					if r.FormValue("request_id") != "req-1" {
						t.Errorf("expected request_id req-1, got %q", r.FormValue("request_id"))
					}
					if r.FormValue("app_name") != "multiverse" {
						t.Errorf("expected app_name multiverse, got %q", r.FormValue("app_name"))
					}
					if _, _, err := r.FormFile("image"); err == nil {
						t.Error("roll must not upload an image")
					}
				}))
				defer server.Close()

				c := NewClient(ClientOpts{BaseURL: server.URL, RollPath: path, AppName: "multiverse"})
				job, err := c.RollGenerationJob(context.Background(), RollRequest{
					UserID:          "u1",
					SourceImageID:   "src-1",
					UserDescription: "again",
					NumThemes:       9,
					RequestID:       "req-1",
				})
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if job.RequestID != "req-9" {
					t.Errorf("expected new request id, got %s", job.RequestID)
				}
			})
		}
	})

	t.Run("Requires Source Image", func(t *testing.T) {
		c := NewClient(ClientOpts{BaseURL: "http://example.com"})
		_, err := c.RollGenerationJob(context.Background(), RollRequest{UserID: "u1"})
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestUploadImage(t *testing.T) {
	t.Run("Returns Source Image ID", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/upload" {
				t.Errorf("expected /api/upload, got %s", r.URL.Path)
			}
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("failed to parse form: %v", err)
				return
			}
			if r.FormValue("user_id") != "u1" {
				t.Errorf("expected user_id u1, got %q", r.FormValue("user_id"))
			}
			w.Write([]byte(`{"source_image_id":"src-42"}`))
		}))
		defer server.Close()

		c := NewClient(ClientOpts{BaseURL: server.URL})
		id, err := c.UploadImage(context.Background(), "u1", []byte{0xff, 0xd8})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if id != "src-42" {
			t.Errorf("expected src-42, got %s", id)
		}
	})

	t.Run("Missing ID", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		c := NewClient(ClientOpts{BaseURL: server.URL})
		_, err := c.UploadImage(context.Background(), "u1", []byte{1})
		if !errors.Is(err, shared.ErrMalformedResponse) {
			t.Errorf("expected ErrMalformedResponse, got %v", err)
		}
	})

	t.Run("Empty Image", func(t *testing.T) {
		c := NewClient(ClientOpts{BaseURL: "http://example.com"})
		if _, err := c.UploadImage(context.Background(), "u1", nil); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}
