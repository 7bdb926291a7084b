package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/multiverse/internal/shared"
)

// Well-known user actions recorded through [Client.TrackAction].
const (
	ActionDiscover   = "discover"
	ActionRediscover = "rediscover"
	ActionDownload   = "download"
	ActionShare      = "share"
)

// Not-ready statuses reported by the image endpoint.
const (
	StatusProcessing = "processing"
	StatusNew        = "new"
	StatusNotFound   = "not_found"
)

// EngineHeader carries the name of the model that rendered a result image.
const EngineHeader = "X-Engine"

// Asset is a ready result image.
type Asset struct {
	Data        []byte
	ContentType string
	Engine      string
}

// ServerError is returned for any non-2xx response.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%v: status %d", shared.ErrAPIRequest, e.Status)
	}
	return fmt.Sprintf("%v: status %d: %s", shared.ErrAPIRequest, e.Status, body)
}

// Unwrap exposes [shared.ErrAPIRequest] to [errors.Is].
func (e *ServerError) Unwrap() error { return shared.ErrAPIRequest }

// NotReadyError reports that a result image has not been rendered yet.
type NotReadyError struct {
	Status string
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("%v: %s", shared.ErrImageNotReady, e.Status)
}

// Unwrap exposes [shared.ErrImageNotReady] to [errors.Is].
func (e *NotReadyError) Unwrap() error { return shared.ErrImageNotReady }

// IsNotReady reports whether err means "poll again later".
func IsNotReady(err error) bool {
	return errors.Is(err, shared.ErrImageNotReady)
}

// StatusCode extracts the HTTP status from a [ServerError] in err's chain, or 0.
func StatusCode(err error) int {
	var se *ServerError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}
