package internal

import (
	"context"
	"fmt"
	"net/http"
)

// token is a service account token. Grafana only returns Key in the response
// to the create call; it cannot be read back later.
type token struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Key  string `json:"key"`
}

type createTokenRequest struct {
	Name string `json:"name"`
}

// mintToken creates a new token for the service account with the given ID.
func (c *grafanaClient) mintToken(ctx context.Context, accountID int64, name string) (token, error) {
	var tok token
	path := fmt.Sprintf("/api/serviceaccounts/%d/tokens", accountID)
	if err := c.do(ctx, http.MethodPost, path, createTokenRequest{Name: name}, &tok); err != nil {
		return token{}, fmt.Errorf("creating token for service account %d: %w", accountID, err)
	}
	if tok.Key == "" {
		return token{}, fmt.Errorf("creating token for service account %d: response has no key", accountID)
	}
	c.logger.Info("minted service account token", "account_id", accountID, "token_name", name)
	return tok, nil
}
