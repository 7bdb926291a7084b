package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/multiverse/internal/repositories"
	"github.com/desertthunder/multiverse/internal/server"
	"github.com/desertthunder/multiverse/internal/services"
	"github.com/desertthunder/multiverse/internal/shared"
	tu "github.com/desertthunder/multiverse/internal/testing"
	"github.com/urfave/cli/v3"
)

// setupRunner points a runner at a sandbox backend with an in-memory database and store.
func setupRunner(t *testing.T) (*Runner, *bytes.Buffer, *tu.CountingTransport) {
	t.Helper()

	sb := server.NewSandbox(server.SandboxOpts{
		NotReadyPolls: 1,
		StartCredits:  25,
		ImageSize:     16,
		Logger:        log.New(io.Discard),
	})
	srv := httptest.NewServer(server.NewSandboxHandler(sb))
	t.Cleanup(srv.Close)

	config := shared.DefaultConfig()
	config.API.BaseURL = srv.URL
	config.API.RateLimit = 0
	config.Polling.Delay.Duration = time.Millisecond
	config.Polling.MaxDelay.Duration = time.Millisecond
	config.Polling.JobWait.Duration = time.Second
	config.Database.Path = ":memory:"
	config.Store.Backend = "memory"
	config.Generation.RerollCost = 10

	transport := &tu.CountingTransport{}
	client := services.NewClient(services.ClientOpts{
		BaseURL:    srv.URL,
		HTTPClient: &http.Client{Transport: transport, Timeout: 5 * time.Second},
		Logger:     log.New(io.Discard),
	})

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Config: config, Client: client, Logger: log.New(io.Discard), Output: output})
	t.Cleanup(func() { runner.Close() })
	return runner, output, transport
}

func run(r *Runner, args ...string) error {
	app := &cli.Command{
		Name:     "multiverse",
		Flags:    []cli.Flag{&cli.BoolFlag{Name: "ephemeral"}},
		Commands: r.register(),
		Writer:   io.Discard,
	}
	return app.Run(context.Background(), append([]string{"multiverse"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			client := services.NewClient(services.ClientOpts{})
			store := repositories.NewMemoryResponseStore(0)

			runner := NewRunner(RunnerOpts{
				Config: config,
				Logger: logger,
				Output: output,
				Client: client,
				Store:  store,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.client != client {
				t.Error("expected client to be set")
			}
			if runner.store != store {
				t.Error("expected store to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})
			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil client builds one from config", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.API.BaseURL = "http://example.test/"
			runner := NewRunner(RunnerOpts{Config: config})
			if runner.client == nil || runner.client.BaseURL() != "http://example.test" {
				t.Errorf("expected client for config base url, got %v", runner.client)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}
		for _, want := range []string{"setup", "discover", "reroll", "slots", "job", "credits", "album", "api", "image", "sandbox", "tui"} {
			if !names[want] {
				t.Errorf("expected command %q to be registered", want)
			}
		}
	})

	t.Run("responseStore", func(t *testing.T) {
		t.Run("ephemeral uses memory", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Store.Backend = "redis"
			runner := NewRunner(RunnerOpts{Config: config, Logger: log.New(io.Discard)})

			store, err := runner.responseStore(context.Background(), true)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if _, ok := store.(*repositories.MemoryResponseStore); !ok {
				t.Errorf("expected memory store, got %T", store)
			}
		})

		t.Run("unknown backend", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Store.Backend = "etcd"
			runner := NewRunner(RunnerOpts{Config: config, Logger: log.New(io.Discard)})

			if _, err := runner.responseStore(context.Background(), false); !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	})

	t.Run("userID", func(t *testing.T) {
		t.Run("config id wins", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.User.ID = shared.GenerateID()
			runner := NewRunner(RunnerOpts{Config: config})

			id, err := runner.userID(context.Background(), false)
			if err != nil || id != config.User.ID {
				t.Errorf("expected %s, got %s, %v", config.User.ID, id, err)
			}
		})

		t.Run("invalid config id", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.User.ID = "bob"
			runner := NewRunner(RunnerOpts{Config: config})

			if _, err := runner.userID(context.Background(), false); !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	})
}

func TestCommands(t *testing.T) {
	t.Run("setup user is stable", func(t *testing.T) {
		runner, output, _ := setupRunner(t)

		if err := run(runner, "setup", "user"); err != nil {
			t.Fatalf("setup user failed: %v", err)
		}
		first := strings.TrimSpace(output.String())
		output.Reset()

		if err := run(runner, "setup", "user"); err != nil {
			t.Fatalf("setup user failed: %v", err)
		}
		if second := strings.TrimSpace(output.String()); second != first || !shared.IsUUID(first) {
			t.Errorf("expected stable UUID, got %q then %q", first, second)
		}

		if err := run(runner, "setup", "user", "--set", "bob"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("setup config", func(t *testing.T) {
		runner, _, _ := setupRunner(t)
		path := filepath.Join(t.TempDir(), "config.toml")

		if err := run(runner, "setup", "config", "--output", path); err != nil {
			t.Fatalf("setup config failed: %v", err)
		}
		tu.AssertFileExists(t, path)

		if err := run(runner, "setup", "config", "--output", path); err == nil {
			t.Error("expected error when config already exists")
		}
	})

	t.Run("discover requires input", func(t *testing.T) {
		runner, _, _ := setupRunner(t)
		if err := run(runner, "discover"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("discover and wait", func(t *testing.T) {
		runner, output, transport := setupRunner(t)

		if err := run(runner, "discover", "--description", "a fox", "--themes", "3", "--wait"); err != nil {
			t.Fatalf("discover failed: %v", err)
		}

		out := output.String()
		if !strings.Contains(out, "Job ") {
			t.Errorf("expected job header, got:\n%s", out)
		}
		if n := strings.Count(out, "Ready"); n != 3 {
			t.Errorf("expected 3 ready slots, got %d:\n%s", n, out)
		}
		if n := transport.Count("/api/create"); n != 1 {
			t.Errorf("expected 1 create request, got %d", n)
		}
		if n := transport.Count("/api/upload"); n != 0 {
			t.Errorf("expected no upload without an image, got %d", n)
		}
	})

	t.Run("discover with image and save", func(t *testing.T) {
		runner, _, transport := setupRunner(t)
		dir := t.TempDir()
		img := filepath.Join(dir, "in.jpg")
		if err := os.WriteFile(img, tu.JPEG(t, 64, 32), 0644); err != nil {
			t.Fatal(err)
		}
		out := filepath.Join(dir, "out")

		if err := run(runner, "discover", "--image", img, "--upload", "--themes", "2", "--output", out); err != nil {
			t.Fatalf("discover failed: %v", err)
		}

		entries, err := os.ReadDir(out)
		if err != nil {
			t.Fatalf("failed to read output dir: %v", err)
		}
		if len(entries) != 2 {
			t.Errorf("expected 2 saved images, got %d", len(entries))
		}
		if n := transport.Count("/api/upload"); n != 1 {
			t.Errorf("expected 1 upload request, got %d", n)
		}
	})

	t.Run("reroll", func(t *testing.T) {
		runner, output, _ := setupRunner(t)

		if err := run(runner, "reroll"); !errors.Is(err, shared.ErrNoJob) {
			t.Fatalf("expected ErrNoJob before discover, got %v", err)
		}

		if err := run(runner, "discover", "--description", "a fox", "--themes", "3"); err != nil {
			t.Fatalf("discover failed: %v", err)
		}
		output.Reset()

		if err := run(runner, "reroll"); err != nil {
			t.Fatalf("reroll failed: %v", err)
		}
		if !strings.Contains(output.String(), "Credits remaining: 15") {
			t.Errorf("expected 15 credits remaining, got:\n%s", output.String())
		}

		if err := run(runner, "reroll"); err != nil {
			t.Fatalf("second reroll failed: %v", err)
		}
		if err := run(runner, "reroll"); !errors.Is(err, shared.ErrInsufficientCredits) {
			t.Errorf("expected ErrInsufficientCredits with 5 credits left, got %v", err)
		}
	})

	t.Run("slots", func(t *testing.T) {
		runner, output, _ := setupRunner(t)

		if err := run(runner, "slots"); !errors.Is(err, shared.ErrNoJob) {
			t.Fatalf("expected ErrNoJob, got %v", err)
		}
		if err := run(runner, "discover", "--description", "a fox", "--themes", "3"); err != nil {
			t.Fatalf("discover failed: %v", err)
		}
		output.Reset()

		dir := t.TempDir()
		if err := run(runner, "slots", "--number", "5", "--output", dir, "--format", "csv"); err != nil {
			t.Fatalf("slots failed: %v", err)
		}
		if !strings.HasPrefix(output.String(), "Slot,Phase") {
			t.Errorf("expected csv header, got:\n%s", output.String())
		}
		if !strings.Contains(output.String(), "5,Ready") {
			t.Errorf("expected slot 5 ready, got:\n%s", output.String())
		}
		entries, _ := os.ReadDir(dir)
		if len(entries) != 1 {
			t.Errorf("expected 1 saved image, got %d", len(entries))
		}
	})

	t.Run("job show and clear", func(t *testing.T) {
		runner, output, _ := setupRunner(t)

		if err := run(runner, "job", "history"); err != nil {
			t.Fatalf("history failed: %v", err)
		}
		if !strings.Contains(output.String(), "No jobs yet") {
			t.Errorf("expected empty history, got:\n%s", output.String())
		}

		if err := run(runner, "discover", "--description", "a fox", "--themes", "2"); err != nil {
			t.Fatalf("discover failed: %v", err)
		}
		output.Reset()

		if err := run(runner, "job", "show", "--format", "json"); err != nil {
			t.Fatalf("job show failed: %v", err)
		}
		if !strings.Contains(output.String(), `"request_id"`) || !strings.Contains(output.String(), "a fox") {
			t.Errorf("expected job JSON with inputs, got:\n%s", output.String())
		}

		if err := run(runner, "job", "clear"); err != nil {
			t.Fatalf("job clear failed: %v", err)
		}
		if err := run(runner, "job", "show"); !errors.Is(err, shared.ErrNoJob) {
			t.Errorf("expected ErrNoJob after clear, got %v", err)
		}
	})

	t.Run("credits", func(t *testing.T) {
		runner, output, _ := setupRunner(t)

		if err := run(runner, "credits", "show"); err != nil {
			t.Fatalf("credits show failed: %v", err)
		}
		if !strings.Contains(output.String(), "Credits: 25 (re-roll costs 10)") {
			t.Errorf("unexpected output:\n%s", output.String())
		}
		output.Reset()

		if err := run(runner, "credits", "purchase", "--transaction", "txn-1", "--credits", "5"); err != nil {
			t.Fatalf("purchase failed: %v", err)
		}
		if !strings.Contains(output.String(), "credits: 30") {
			t.Errorf("expected 30 credits, got:\n%s", output.String())
		}
	})

	t.Run("album", func(t *testing.T) {
		runner, output, _ := setupRunner(t)

		if err := run(runner, "album", "add", "theme-noir"); err != nil {
			t.Fatalf("album add failed: %v", err)
		}
		output.Reset()

		if err := run(runner, "album", "list"); err != nil {
			t.Fatalf("album list failed: %v", err)
		}
		if !strings.Contains(output.String(), "- Film Noir (theme-noir)") {
			t.Errorf("expected theme in album, got:\n%s", output.String())
		}

		if err := run(runner, "album", "remove", "theme-noir"); err != nil {
			t.Fatalf("album remove failed: %v", err)
		}
		if err := run(runner, "album", "remove", "theme-noir"); !errors.Is(err, shared.ErrThemeNotFound) {
			t.Errorf("expected ErrThemeNotFound, got %v", err)
		}

		output.Reset()
		if err := run(runner, "album", "mode", "my_album"); err != nil {
			t.Fatalf("album mode failed: %v", err)
		}
		if !strings.Contains(output.String(), "Album mode: my_album") {
			t.Errorf("expected my_album, got:\n%s", output.String())
		}
	})

	t.Run("api get", func(t *testing.T) {
		runner, output, _ := setupRunner(t)

		if err := run(runner, "api", "get", "/api/album?user_id=x"); err != nil {
			t.Fatalf("api get failed: %v", err)
		}
		if !strings.Contains(output.String(), `"themes"`) {
			t.Errorf("expected album JSON, got:\n%s", output.String())
		}

		if err := run(runner, "api", "post", "--data", "{", "/api/action"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for bad JSON, got %v", err)
		}
	})

	t.Run("image preprocess", func(t *testing.T) {
		runner, _, _ := setupRunner(t)
		dir := t.TempDir()
		in := filepath.Join(dir, "in.jpg")
		out := filepath.Join(dir, "out.jpg")
		if err := os.WriteFile(in, tu.JPEG(t, 32, 32), 0644); err != nil {
			t.Fatal(err)
		}

		if err := run(runner, "image", "preprocess", "--in", in, "--out", out); err != nil {
			t.Fatalf("preprocess failed: %v", err)
		}
		tu.AssertFileExists(t, out)
	})
}
