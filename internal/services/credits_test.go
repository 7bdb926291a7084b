package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/multiverse/internal/shared"
)

func TestCredits(t *testing.T) {
	t.Run("FetchCredits", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/credits/u1" {
				t.Errorf("expected /api/credits/u1, got %s", r.URL.Path)
			}
			w.Write([]byte(`{"credits":42}`))
		}))
		defer server.Close()

		c := NewClient(ClientOpts{BaseURL: server.URL})
		got, err := c.FetchCredits(context.Background(), "u1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != 42 {
			t.Errorf("expected 42, got %d", got)
		}
	})

	t.Run("FetchCredits Missing Field", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"balance":42}`))
		}))
		defer server.Close()

		c := NewClient(ClientOpts{BaseURL: server.URL})
		if _, err := c.FetchCredits(context.Background(), "u1"); !errors.Is(err, shared.ErrMalformedResponse) {
			t.Errorf("expected ErrMalformedResponse, got %v", err)
		}
	})

	t.Run("SpendCredits", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			if body["user_id"] != "u1" || body["credits"] != float64(10) {
				t.Errorf("unexpected body %v", body)
			}
			w.Write([]byte(`{"success":true,"remaining_credits":32}`))
		}))
		defer server.Close()

		c := NewClient(ClientOpts{BaseURL: server.URL})
		got, err := c.SpendCredits(context.Background(), "u1", 10)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != 32 {
			t.Errorf("expected 32, got %d", got)
		}
	})

	t.Run("SpendCredits Insufficient", func(t *testing.T) {
		tests := []struct {
			name   string
			status int
			body   string
		}{
			{name: "400 with success false", status: 400, body: `{"success":false,"error":"Insufficient credits or user not found"}`},
			{name: "402", status: 402, body: `{"detail":"Insufficient credits"}`},
			{name: "200 with success false", status: 200, body: `{"success":false,"error":"Insufficient credits"}`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tt.status)
					w.Write([]byte(tt.body))
				}))
				defer server.Close()

				c := NewClient(ClientOpts{BaseURL: server.URL})
				if _, err := c.SpendCredits(context.Background(), "u1", 10); !errors.Is(err, shared.ErrInsufficientCredits) {
					t.Errorf("expected ErrInsufficientCredits, got %v", err)
				}
			})
		}
	})

	t.Run("SpendCredits Other 400 Is Server Error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad", http.StatusBadRequest)
		}))
		defer server.Close()

		c := NewClient(ClientOpts{BaseURL: server.URL})
		_, err := c.SpendCredits(context.Background(), "u1", 10)
		if errors.Is(err, shared.ErrInsufficientCredits) || !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected plain API error, got %v", err)
		}
	})

	t.Run("SpendCredits Rejects Non-Positive", func(t *testing.T) {
		c := NewClient(ClientOpts{BaseURL: "http://example.com"})
		if _, err := c.SpendCredits(context.Background(), "u1", 0); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("RecordPurchase Refetches Balance", func(t *testing.T) {
		var purchased bool
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/one-time-purchase":
				var body map[string]any
				json.NewDecoder(r.Body).Decode(&body)
				if body["transaction_id"] != "tx-1" || body["credits"] != float64(50) {
					t.Errorf("unexpected purchase body %v", body)
				}
				purchased = true
				w.Write([]byte(`{"status":"ok"}`))
			case "/api/credits/u1":
				w.Write([]byte(`{"credits":60}`))
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		}))
		defer server.Close()

		c := NewClient(ClientOpts{BaseURL: server.URL})
		got, err := c.RecordPurchase(context.Background(), "u1", "tx-1", 50)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !purchased {
			t.Error("expected purchase endpoint to be called")
		}
		if got != 60 {
			t.Errorf("expected 60, got %d", got)
		}
	})

	t.Run("RecordPurchase Validation", func(t *testing.T) {
		c := NewClient(ClientOpts{BaseURL: "http://example.com"})
		if _, err := c.RecordPurchase(context.Background(), "u1", "", 50); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if _, err := c.RecordPurchase(context.Background(), "u1", "tx", 0); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestTelemetry(t *testing.T) {
	t.Run("TrackAction Is Asynchronous", func(t *testing.T) {
		got := make(chan map[string]any, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			got <- body
		}))
		defer server.Close()

		c := NewClient(ClientOpts{BaseURL: server.URL})
		c.TrackAction("u1", ActionRediscover, map[string]string{"image_id": "r4"})

		select {
		case body := <-got:
			if body["action"] != ActionRediscover {
				t.Errorf("expected action rediscover, got %v", body["action"])
			}
			meta, _ := body["metadata"].(map[string]any)
			if meta["image_id"] != "r4" {
				t.Errorf("expected image_id metadata, got %v", body["metadata"])
			}
		case <-time.After(2 * time.Second):
			t.Fatal("action was never sent")
		}
	})

	t.Run("SendAction Defaults Metadata", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			if _, ok := body["metadata"].(map[string]any); !ok {
				t.Errorf("expected empty metadata object, got %v", body["metadata"])
			}
		}))
		defer server.Close()

		c := NewClient(ClientOpts{BaseURL: server.URL})
		if err := c.SendAction(context.Background(), "u1", ActionDiscover, nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("LogDevice", func(t *testing.T) {
		got := make(chan string, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			got <- r.URL.Path + ":" + body["message"]
		}))
		defer server.Close()

		c := NewClient(ClientOpts{BaseURL: server.URL})
		c.LogDevice("u1", "slot 5 failed")

		select {
		case v := <-got:
			if v != "/api/device/logs:slot 5 failed" {
				t.Errorf("unexpected request %s", v)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("device log was never sent")
		}
	})

	t.Run("InitUser", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/init_user" {
				t.Errorf("expected /api/init_user, got %s", r.URL.Path)
			}
		}))
		defer server.Close()

		c := NewClient(ClientOpts{BaseURL: server.URL})
		if err := c.InitUser(context.Background(), "u1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})
}
