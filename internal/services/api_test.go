package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/multiverse/internal/shared"
	tu "github.com/desertthunder/multiverse/internal/testing"
)

func TestNewClient(t *testing.T) {
	t.Run("With Custom BaseURL and Client", func(t *testing.T) {
		customClient := &http.Client{}
		c := NewClient(ClientOpts{BaseURL: "http://example.com/", HTTPClient: customClient})

		if c.BaseURL() != "http://example.com" {
			t.Errorf("expected trailing slash trimmed, got %s", c.BaseURL())
		}
		if c.httpClient != customClient {
			t.Error("expected custom client to be used")
		}
	})

	t.Run("Defaults", func(t *testing.T) {
		c := NewClient(ClientOpts{})

		if c.BaseURL() != DefaultBaseURL {
			t.Errorf("expected default baseURL %s, got %s", DefaultBaseURL, c.BaseURL())
		}
		if c.RollPath() != DefaultRollPath {
			t.Errorf("expected default roll path, got %s", c.RollPath())
		}
		if c.httpClient.Timeout != 30*time.Second {
			t.Errorf("expected 30s timeout, got %v", c.httpClient.Timeout)
		}
	})

	t.Run("From Config", func(t *testing.T) {
		conf := shared.DefaultConfig().API
		conf.RollPath = TestRollPath
		c := NewClientFromConfig(conf, nil)

		if c.RollPath() != TestRollPath {
			t.Errorf("expected %s, got %s", TestRollPath, c.RollPath())
		}
		if c.limiter.Limit() != 8 {
			t.Errorf("expected rate limit 8, got %v", c.limiter.Limit())
		}
	})
}

func TestRawRequests(t *testing.T) {
	t.Run("Get", func(t *testing.T) {
		t.Run("Successful Request With JSON Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET method, got %s", r.Method)
				}
				if r.URL.Path != "/api/credits/u1" {
					t.Errorf("expected path '/api/credits/u1', got %s", r.URL.Path)
				}

				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]int{"credits": 10})
			}))
			defer server.Close()

			c := NewClient(ClientOpts{BaseURL: server.URL})
			resp, err := c.Get(context.Background(), "/api/credits/u1")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.StatusCode != http.StatusOK {
				t.Errorf("expected status 200, got %d", resp.StatusCode)
			}
			if !resp.IsJSON {
				t.Error("expected response to be JSON")
			}
		})

		t.Run("Non-2xx Is Returned Not Raised", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte("missing"))
			}))
			defer server.Close()

			c := NewClient(ClientOpts{BaseURL: server.URL})
			resp, err := c.Get(context.Background(), "/nope")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.StatusCode != http.StatusNotFound {
				t.Errorf("expected status 404, got %d", resp.StatusCode)
			}
			if resp.IsJSON {
				t.Error("expected response to not be JSON")
			}
			if string(resp.Body) != "missing" {
				t.Errorf("expected body 'missing', got %s", resp.Body)
			}
		})

		t.Run("Failed Request Creation", func(t *testing.T) {
			c := NewClient(ClientOpts{BaseURL: "http://example.com"})
			_, err := c.Get(context.Background(), "/test\x00invalid")

			if err == nil || !strings.Contains(err.Error(), "failed to create request") {
				t.Errorf("expected 'failed to create request' error, got %v", err)
			}
		})

		t.Run("Failed HTTP Request", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection failed"))}
			c := NewClient(ClientOpts{BaseURL: "http://example.com", HTTPClient: client})
			_, err := c.Get(context.Background(), "/test")

			if err == nil || !strings.Contains(err.Error(), "request failed") {
				t.Errorf("expected 'request failed' error, got %v", err)
			}
		})

		t.Run("Failed Response Body Read", func(t *testing.T) {
			client := &http.Client{
				Transport: tu.NewMockRoundTripper(&http.Response{
					StatusCode: http.StatusOK,
					Body:       &tu.FCloser{},
					Header:     http.Header{},
				}, nil),
			}

			c := NewClient(ClientOpts{BaseURL: "http://example.com", HTTPClient: client})
			_, err := c.Get(context.Background(), "/test")

			if err == nil || !strings.Contains(err.Error(), "failed to read response") {
				t.Errorf("expected 'failed to read response' error, got %v", err)
			}
		})

		t.Run("With Canceled Context", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			c := NewClient(ClientOpts{BaseURL: server.URL})
			if _, err := c.Get(ctx, "/test"); err == nil {
				t.Error("expected error for canceled context")
			}
		})

		t.Run("Response Headers Are Preserved", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set(EngineHeader, "flux")
				w.Write([]byte("test"))
			}))
			defer server.Close()

			c := NewClient(ClientOpts{BaseURL: server.URL})
			resp, err := c.Get(context.Background(), "/test")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.Headers.Get(EngineHeader) != "flux" {
				t.Errorf("expected engine header 'flux', got %s", resp.Headers.Get(EngineHeader))
			}
		})
	})

	t.Run("Post", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("expected POST method, got %s", r.Method)
			}
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("expected Content-Type 'application/json', got %s", r.Header.Get("Content-Type"))
			}

			body, _ := io.ReadAll(r.Body)
			var data map[string]string
			if err := json.Unmarshal(body, &data); err != nil {
				t.Errorf("failed to unmarshal request body: %v", err)
			}
			if data["user_id"] != "u1" {
				t.Errorf("expected user_id u1, got %v", data)
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		}))
		defer server.Close()

		c := NewClient(ClientOpts{BaseURL: server.URL})
		resp, err := c.Post(context.Background(), "/api/init_user", []byte(`{"user_id":"u1"}`))

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.StatusCode != http.StatusCreated {
			t.Errorf("expected status 201, got %d", resp.StatusCode)
		}
		if !resp.IsJSON {
			t.Error("expected response to be JSON")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				t.Errorf("expected DELETE method, got %s", r.Method)
			}
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		c := NewClient(ClientOpts{BaseURL: server.URL})
		resp, err := c.Delete(context.Background(), "/api/album", []byte(`{}`))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.StatusCode != http.StatusNoContent {
			t.Errorf("expected status 204, got %d", resp.StatusCode)
		}
	})
}

func TestErrors(t *testing.T) {
	t.Run("ServerError", func(t *testing.T) {
		err := error(&ServerError{Status: 500, Body: "boom\n"})
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Error("expected ServerError to match ErrAPIRequest")
		}
		if !strings.Contains(err.Error(), "status 500: boom") {
			t.Errorf("unexpected message %q", err.Error())
		}
		if StatusCode(err) != 500 {
			t.Errorf("expected status 500, got %d", StatusCode(err))
		}
		if StatusCode(errors.New("plain")) != 0 {
			t.Error("expected 0 for non-server errors")
		}
	})

	t.Run("NotReadyError", func(t *testing.T) {
		err := error(&NotReadyError{Status: StatusNew})
		if !IsNotReady(err) {
			t.Error("expected NotReadyError to be not-ready")
		}
		if IsNotReady(&ServerError{Status: 404}) {
			t.Error("server errors are not not-ready")
		}
	})
}
