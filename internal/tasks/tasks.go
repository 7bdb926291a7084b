package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/multiverse/internal/cache"
	"github.com/desertthunder/multiverse/internal/models"
	"github.com/desertthunder/multiverse/internal/services"
)

// ResponseStore holds the current generation job, the inputs that produced it, and the
// source image. Implemented by the repositories package.
type ResponseStore interface {
	Save(ctx context.Context, job *models.GenerationJob, inputs *models.GenerationInputs) error
	Current(ctx context.Context) (*models.GenerationJob, error)
	CurrentInputs(ctx context.Context) (*models.GenerationInputs, error)
	SaveSourceImage(ctx context.Context, data []byte) error
	SourceImage(ctx context.Context) ([]byte, error)
	Clear(ctx context.Context) error
	History(ctx context.Context, limit int) ([]models.HistoryEntry, error)
}

// AssetFetcher retrieves a single result image.
type AssetFetcher interface {
	FetchResultAsset(ctx context.Context, resultImageID, userID string) (*services.Asset, error)
}

// Generator is the slice of the backend API the engine drives.
type Generator interface {
	UploadImage(ctx context.Context, userID string, image []byte) (string, error)
	SubmitGenerationJob(ctx context.Context, r services.CreateRequest) (*models.GenerationJob, error)
	RollGenerationJob(ctx context.Context, r services.RollRequest) (*models.GenerationJob, error)
	FetchCredits(ctx context.Context, userID string) (int, error)
	SpendCredits(ctx context.Context, userID string, amount int) (int, error)
	TrackAction(userID, action string, metadata map[string]string)
}

// Deps carries the shared collaborators of slots, grids and the engine.
type Deps struct {
	Store   ResponseStore
	Cache   *cache.ImageCache
	Poller  *Poller
	Jobs    *JobSignal
	UserID  string
	JobWait time.Duration // how long a slot waits for a job before failing
	Logger  *log.Logger
}

func (d Deps) logger() *log.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return log.Default()
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
