package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/desertthunder/multiverse/internal/shared"
)

// FetchCredits returns the user's current balance. Safe to retry.
func (c *Client) FetchCredits(ctx context.Context, userID string) (int, error) {
	var resp struct {
		Credits *int `json:"credits"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/credits/"+url.PathEscape(userID), nil, &resp); err != nil {
		return 0, err
	}
	if resp.Credits == nil {
		return 0, fmt.Errorf("%w: credits response missing credits field", shared.ErrMalformedResponse)
	}
	return *resp.Credits, nil
}

// SpendCredits deducts amount from the user's balance and returns what is left.
//
// A 402, or a 400 carrying success=false, maps to [shared.ErrInsufficientCredits].
func (c *Client) SpendCredits(ctx context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: credit amount must be positive", shared.ErrInvalidArgument)
	}

	payload := map[string]any{"user_id": userID, "credits": amount}
	var resp struct {
		Success          *bool  `json:"success"`
		RemainingCredits *int   `json:"remaining_credits"`
		Error            string `json:"error"`
	}

	err := c.doJSON(ctx, http.MethodPost, "/api/use_credits", payload, &resp)
	if err != nil {
		var se *ServerError
		if errors.As(err, &se) && insufficient(se) {
			return 0, fmt.Errorf("%w: %s", shared.ErrInsufficientCredits, se.Body)
		}
		return 0, err
	}

	if resp.Success != nil && !*resp.Success {
		return 0, fmt.Errorf("%w: %s", shared.ErrInsufficientCredits, resp.Error)
	}
	if resp.RemainingCredits == nil {
		return 0, fmt.Errorf("%w: use_credits response missing remaining_credits", shared.ErrMalformedResponse)
	}

	c.logger.Info("credits spent", "amount", amount, "remaining", *resp.RemainingCredits)
	return *resp.RemainingCredits, nil
}

func insufficient(se *ServerError) bool {
	switch se.Status {
	case http.StatusPaymentRequired:
		return true
	case http.StatusBadRequest:
		var body struct {
			Success *bool `json:"success"`
		}
		return json.Unmarshal([]byte(se.Body), &body) == nil && body.Success != nil && !*body.Success
	}
	return false
}

// RecordPurchase reports a verified one-time credit purchase and returns the refreshed balance.
func (c *Client) RecordPurchase(ctx context.Context, userID, transactionID string, credits int) (int, error) {
	if transactionID == "" {
		return 0, fmt.Errorf("%w: transaction id is required", shared.ErrMissingArgument)
	}
	if credits <= 0 {
		return 0, fmt.Errorf("%w: credits must be positive", shared.ErrInvalidArgument)
	}

	payload := map[string]any{"user_id": userID, "transaction_id": transactionID, "credits": credits}
	if err := c.doJSON(ctx, http.MethodPost, "/one-time-purchase", payload, nil); err != nil {
		return 0, err
	}

	c.logger.Info("purchase recorded", "transaction_id", transactionID, "credits", credits)
	return c.FetchCredits(ctx, userID)
}
