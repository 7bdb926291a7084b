package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/multiverse/internal/models"
)

// Store keys, shared by every backend.
const (
	KeyResponse    = "last_api_response"
	KeyInputs      = "last_generation_inputs"
	KeySourceImage = "last_source_image"
	KeyHistory     = "api_response_history"
	DefaultHistory = 20
)

const (
	settingUserID    = "user_id"
	settingAlbumMode = "album_mode"
)

// encodeJob validates job and returns its JSON form.
func encodeJob(job *models.GenerationJob) ([]byte, error) {
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to store invalid job: %w", err)
	}
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job: %w", err)
	}
	return data, nil
}

// encodeInputs returns nil for nil inputs so callers can delete the key instead.
func encodeInputs(inputs *models.GenerationInputs) ([]byte, error) {
	if inputs == nil {
		return nil, nil
	}
	if err := inputs.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to store invalid inputs: %w", err)
	}
	data, err := json.Marshal(inputs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode inputs: %w", err)
	}
	return data, nil
}

func decodeJob(data []byte) (*models.GenerationJob, error) {
	var job models.GenerationJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode stored job: %w", err)
	}
	return &job, nil
}

func decodeInputs(data []byte) (*models.GenerationInputs, error) {
	var inputs models.GenerationInputs
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("failed to decode stored inputs: %w", err)
	}
	return &inputs, nil
}

// historyRecord is the encoded form of a history entry in key-value backends.
type historyRecord struct {
	Job     json.RawMessage `json:"job"`
	Inputs  json.RawMessage `json:"inputs,omitempty"`
	SavedAt time.Time       `json:"saved_at"`
}

func encodeHistory(job, inputs []byte, at time.Time) ([]byte, error) {
	return json.Marshal(historyRecord{Job: job, Inputs: inputs, SavedAt: at.UTC()})
}

func decodeHistory(data []byte) (models.HistoryEntry, error) {
	var rec historyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return models.HistoryEntry{}, fmt.Errorf("failed to decode history entry: %w", err)
	}
	return historyEntry(rec.Job, rec.Inputs, rec.SavedAt)
}

func historyEntry(jobData, inputsData []byte, at time.Time) (models.HistoryEntry, error) {
	job, err := decodeJob(jobData)
	if err != nil {
		return models.HistoryEntry{}, err
	}
	entry := models.HistoryEntry{Job: *job, SavedAt: at}
	if len(inputsData) > 0 {
		if entry.Inputs, err = decodeInputs(inputsData); err != nil {
			return models.HistoryEntry{}, err
		}
	}
	return entry, nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
