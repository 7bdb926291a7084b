package services

import (
	"context"
	"net/http"
	"time"
)

const backgroundTimeout = 10 * time.Second

// InitUser registers a freshly created identity with the backend.
func (c *Client) InitUser(ctx context.Context, userID string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/init_user", map[string]string{"user_id": userID}, nil)
}

// SendAction records a user action and waits for the backend to accept it.
func (c *Client) SendAction(ctx context.Context, userID, action string, metadata map[string]string) error {
	if metadata == nil {
		metadata = map[string]string{}
	}
	payload := map[string]any{"user_id": userID, "action": action, "metadata": metadata}
	return c.doJSON(ctx, http.MethodPost, "/api/action", payload, nil)
}

// TrackAction records a user action without waiting; failures are only logged.
func (c *Client) TrackAction(userID, action string, metadata map[string]string) {
	c.logger.Debug("tracking action", "action", action)
	c.fireAndForget("action", backgroundTimeout, func(ctx context.Context) error {
		return c.SendAction(ctx, userID, action, metadata)
	})
}

// LogDevice ships a diagnostic message to the backend without waiting.
func (c *Client) LogDevice(userID, message string) {
	c.fireAndForget("device_log", backgroundTimeout, func(ctx context.Context) error {
		payload := map[string]string{"user_id": userID, "message": message}
		return c.doJSON(ctx, http.MethodPost, "/api/device/logs", payload, nil)
	})
}
