package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/desertthunder/multiverse/internal/models"
	"github.com/desertthunder/multiverse/internal/shared"
)

// GetAlbum lists the themes saved to the user's album.
func (c *Client) GetAlbum(ctx context.Context, userID string) ([]models.AlbumTheme, error) {
	var resp struct {
		Themes []models.AlbumTheme `json:"themes"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/album?user_id="+url.QueryEscape(userID), nil, &resp); err != nil {
		return nil, err
	}

	themes := make([]models.AlbumTheme, 0, len(resp.Themes))
	for _, t := range resp.Themes {
		if t.ThemeID != "" && t.Name != "" {
			themes = append(themes, t)
		}
	}
	return themes, nil
}

// AddToAlbum saves a theme to the user's album.
func (c *Client) AddToAlbum(ctx context.Context, userID, themeID string) error {
	if themeID == "" {
		return fmt.Errorf("%w: theme id is required", shared.ErrMissingArgument)
	}
	payload := map[string]string{"user_id": userID, "theme_id": themeID}
	return c.doJSON(ctx, http.MethodPost, "/api/add_to_album", payload, nil)
}

// RemoveFromAlbum deletes a theme from the user's album.
func (c *Client) RemoveFromAlbum(ctx context.Context, userID, themeID string) error {
	if themeID == "" {
		return fmt.Errorf("%w: theme id is required", shared.ErrMissingArgument)
	}
	payload := map[string]string{"user_id": userID, "theme_id": themeID}
	err := c.doJSON(ctx, http.MethodDelete, "/api/album", payload, nil)
	if StatusCode(err) == http.StatusNotFound {
		return fmt.Errorf("%w: %s", shared.ErrThemeNotFound, themeID)
	}
	return err
}

// CreateTheme defines a custom theme and returns its id.
func (c *Client) CreateTheme(ctx context.Context, userID, name, description string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: theme name is required", shared.ErrMissingArgument)
	}

	payload := map[string]string{"user_id": userID, "name": name, "description": description}
	var resp struct {
		ThemeID string `json:"theme_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/create_theme", payload, &resp); err != nil {
		return "", err
	}
	if resp.ThemeID == "" {
		return "", fmt.Errorf("%w: create_theme response missing theme_id", shared.ErrMalformedResponse)
	}
	return resp.ThemeID, nil
}
