package internal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// serviceAccount is a Grafana service account. Name is unique per Grafana
// instance; ID is assigned by Grafana and is needed to mint tokens.
type serviceAccount struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Login string `json:"login,omitempty"`
	Role  string `json:"role,omitempty"`
}

// resolution says how resolveOrCreate obtained the account.
type resolution int

const (
	// accountExisting means the account was found on Grafana.
	accountExisting resolution = iota
	// accountCreated means the account was created by this call.
	accountCreated
)

func (r resolution) String() string {
	switch r {
	case accountExisting:
		return "existing"
	case accountCreated:
		return "created"
	}
	return "unknown"
}

type searchServiceAccountsResponse struct {
	TotalCount      int              `json:"totalCount"`
	ServiceAccounts []serviceAccount `json:"serviceAccounts"`
	Page            int              `json:"page"`
	PerPage         int              `json:"perPage"`
}

type createServiceAccountRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// resolveOrCreate returns the service account with the given name, creating
// it with role if Grafana has no account by that name.
func (c *grafanaClient) resolveOrCreate(ctx context.Context, name, role string, pageSize int) (serviceAccount, resolution, error) {
	sa, found, err := c.findServiceAccount(ctx, name, pageSize)
	if err != nil {
		return serviceAccount{}, 0, err
	}
	if found {
		c.logger.Info("service account already exists", "name", name, "id", sa.ID)
		return sa, accountExisting, nil
	}

	var created serviceAccount
	err = c.do(ctx, http.MethodPost, "/api/serviceaccounts", createServiceAccountRequest{Name: name, Role: role}, &created)
	if err != nil {
		return serviceAccount{}, 0, fmt.Errorf("creating service account %q: %w", name, err)
	}
	c.logger.Info("created service account", "name", name, "id", created.ID, "role", role)
	return created, accountCreated, nil
}

// findServiceAccount pages through Grafana's search results looking for an
// exact name match. The search query itself is a substring match.
func (c *grafanaClient) findServiceAccount(ctx context.Context, name string, pageSize int) (serviceAccount, bool, error) {
	seen := 0
	for page := 1; ; page++ {
		q := url.Values{
			"perpage": {strconv.Itoa(pageSize)},
			"page":    {strconv.Itoa(page)},
			"query":   {name},
		}
		var resp searchServiceAccountsResponse
		if err := c.do(ctx, http.MethodGet, "/api/serviceaccounts/search?"+q.Encode(), nil, &resp); err != nil {
			return serviceAccount{}, false, fmt.Errorf("searching service accounts: %w", err)
		}
		for _, sa := range resp.ServiceAccounts {
			if sa.Name == name {
				return sa, true, nil
			}
		}
		seen += len(resp.ServiceAccounts)
		if len(resp.ServiceAccounts) < pageSize || seen >= resp.TotalCount {
			return serviceAccount{}, false, nil
		}
	}
}
