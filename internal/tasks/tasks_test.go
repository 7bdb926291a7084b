package tasks

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/multiverse/internal/cache"
	"github.com/desertthunder/multiverse/internal/models"
	"github.com/desertthunder/multiverse/internal/repositories"
	"github.com/desertthunder/multiverse/internal/services"
	"github.com/desertthunder/multiverse/internal/shared"
)

// scriptedFetcher answers each result id from a per-id script of errors; once the
// script runs out the asset is ready.
type scriptedFetcher struct {
	mu      sync.Mutex
	scripts map[string][]error
	calls   map[string]int
	block   bool // when set, every call waits for ctx to be done
	started chan string
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{
		scripts: make(map[string][]error),
		calls:   make(map[string]int),
		started: make(chan string, 64),
	}
}

func (f *scriptedFetcher) script(id string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[id] = errs
}

func (f *scriptedFetcher) FetchResultAsset(ctx context.Context, id, userID string) (*services.Asset, error) {
	f.mu.Lock()
	n := f.calls[id]
	f.calls[id] = n + 1
	script := f.scripts[id]
	block := f.block
	f.mu.Unlock()

	select {
	case f.started <- id:
	default:
	}

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if n < len(script) {
		return nil, script[n]
	}
	return &services.Asset{Data: []byte("img:" + id), ContentType: "image/jpeg", Engine: "fake"}, nil
}

func (f *scriptedFetcher) count(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func (f *scriptedFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func notReady() error { return &services.NotReadyError{Status: services.StatusProcessing} }

func fastPoll(attempts int) PollConfig {
	return PollConfig{MaxAttempts: attempts, Delay: time.Millisecond, Multiplier: 1}
}

func testDeps(t *testing.T, fetcher AssetFetcher) Deps {
	t.Helper()
	logger := shared.NewLogger(io.Discard)
	return Deps{
		Store:   repositories.NewMemoryResponseStore(0),
		Cache:   cache.New(),
		Poller:  NewPoller(fetcher, fastPoll(5), logger),
		Jobs:    NewJobSignal(),
		UserID:  "user-1",
		JobWait: 2 * time.Second,
		Logger:  logger,
	}
}

func saveJob(t *testing.T, deps Deps, job *models.GenerationJob) {
	t.Helper()
	if err := deps.Store.Save(context.Background(), job, &models.GenerationInputs{UserDescription: "desc"}); err != nil {
		t.Fatalf("failed to save job: %v", err)
	}
	deps.Jobs.Publish()
}
