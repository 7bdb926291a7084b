package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/multiverse/internal/shared"
)

// FetchResultAsset performs a single fetch of a result image.
//
// The outcome is decided by Content-Type: image/* is a ready [Asset];
// application/json with ready=false is a [*NotReadyError]; anything else wraps
// [shared.ErrMalformedResponse]. Non-2xx responses are [*ServerError].
func (c *Client) FetchResultAsset(ctx context.Context, resultImageID, userID string) (*Asset, error) {
	if resultImageID == "" {
		return nil, fmt.Errorf("%w: result image id is empty", shared.ErrMissingArgument)
	}

	path := "/api/image/" + url.PathEscape(resultImageID) + "?user_id=" + url.QueryEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, body, err := c.send(req)
	if err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	switch {
	case strings.Contains(contentType, "image/"):
		return &Asset{Data: body, ContentType: contentType, Engine: resp.Header.Get(EngineHeader)}, nil
	case strings.Contains(contentType, "application/json"):
		var status struct {
			Ready  *bool  `json:"ready"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal(body, &status); err == nil && status.Ready != nil && !*status.Ready {
			if status.Status == "" {
				status.Status = StatusProcessing
			}
			return nil, &NotReadyError{Status: status.Status}
		}
	}

	return nil, fmt.Errorf("%w: response did not contain an image (content-type %q): %s",
		shared.ErrMalformedResponse, contentType, truncate(string(body), 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
