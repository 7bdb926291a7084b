// package models defines the data model for the multiverse client
package models

import (
	"fmt"
	"time"
)

// Model is implemented by entities that can check their own invariants before being stored.
type Model interface {
	Validate() error
}

// AlbumMode selects which theme pool the backend draws from.
type AlbumMode string

const (
	AlbumModeDefault AlbumMode = "default"
	AlbumModeMyAlbum AlbumMode = "my_album"
)

// ParseAlbumMode accepts "default" or "my_album"; the empty string maps to default.
func ParseAlbumMode(s string) (AlbumMode, error) {
	switch AlbumMode(s) {
	case "", AlbumModeDefault:
		return AlbumModeDefault, nil
	case AlbumModeMyAlbum:
		return AlbumModeMyAlbum, nil
	default:
		return "", fmt.Errorf("unknown album mode %q", s)
	}
}

// ThemeResult is one themed variation of the source image.
type ThemeResult struct {
	ResultImageID string `json:"result_image_id" yaml:"result_image_id"`
	ThemeID       string `json:"theme_id" yaml:"theme_id"`
	ThemeName     string `json:"theme_name" yaml:"theme_name"`
}

// GenerationJob is the backend's answer to a create or roll request.
//
// A job is immutable once accepted; a re-roll produces a new job that supersedes it.
type GenerationJob struct {
	RequestID     string        `json:"request_id" yaml:"request_id"`
	SourceImageID string        `json:"source_image_id" yaml:"source_image_id"`
	Images        []ThemeResult `json:"images" yaml:"images"`
}

// Validate reports whether the job carries the fields every consumer relies on.
func (j *GenerationJob) Validate() error {
	if j == nil {
		return fmt.Errorf("job is nil")
	}
	if j.RequestID == "" {
		return fmt.Errorf("job is missing request_id")
	}
	if j.SourceImageID == "" {
		return fmt.Errorf("job is missing source_image_id")
	}
	if len(j.Images) == 0 {
		return fmt.Errorf("job has no images")
	}
	for i, img := range j.Images {
		if img.ResultImageID == "" {
			return fmt.Errorf("image %d is missing result_image_id", i)
		}
	}
	return nil
}

// Slot returns the theme result consumed by the 1-based slot number n.
func (j *GenerationJob) Slot(n int) (ThemeResult, bool) {
	if j == nil {
		return ThemeResult{}, false
	}
	idx, ok := ResolveIndex(n, len(j.Images))
	if !ok {
		return ThemeResult{}, false
	}
	return j.Images[idx], true
}

// ResultImageIDs lists the result ids in job order.
func (j *GenerationJob) ResultImageIDs() []string {
	ids := make([]string, len(j.Images))
	for i, img := range j.Images {
		ids[i] = img.ResultImageID
	}
	return ids
}

// ResolveIndex maps slot n (1-based) onto a job with k images: (n-1) mod k.
//
// It reports false when n < 1 or k < 1.
func ResolveIndex(n, k int) (int, bool) {
	if n < 1 || k < 1 {
		return 0, false
	}
	return (n - 1) % k, true
}

// GenerationInputs records what the user asked for so a re-roll can repeat it.
type GenerationInputs struct {
	UserDescription string    `json:"user_description" yaml:"user_description"`
	HasSourceImage  bool      `json:"has_source_image" yaml:"has_source_image"`
	AlbumMode       AlbumMode `json:"album_mode,omitempty" yaml:"album_mode,omitempty"`
	NumThemes       int       `json:"num_themes,omitempty" yaml:"num_themes,omitempty"`
	CreatedAt       time.Time `json:"created_at" yaml:"created_at"`
}

// Validate checks the album mode and theme count.
func (in *GenerationInputs) Validate() error {
	if in == nil {
		return fmt.Errorf("inputs are nil")
	}
	if _, err := ParseAlbumMode(string(in.AlbumMode)); err != nil {
		return err
	}
	if in.NumThemes < 0 {
		return fmt.Errorf("num_themes must not be negative")
	}
	return nil
}

// AlbumTheme is a theme saved to the user's album.
type AlbumTheme struct {
	ThemeID string `json:"theme_id" yaml:"theme_id"`
	Name    string `json:"name" yaml:"name"`
}

// HistoryEntry is a previously current job with the inputs that produced it.
type HistoryEntry struct {
	Job     GenerationJob     `json:"job" yaml:"job"`
	Inputs  *GenerationInputs `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	SavedAt time.Time         `json:"saved_at" yaml:"saved_at"`
}
