package github

import (
	"context"
	"fmt"
)

// AuthenticatedUser returns the login the client's token belongs to. It is
// used at startup to fail fast on a revoked or mistyped token.
func (c *Client) AuthenticatedUser(ctx context.Context) (string, error) {
	user, resp, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("token validation failed: %w", wrapAPIError(err, resp))
	}
	return user.GetLogin(), nil
}
