package services

import (
	"context"
	"encoding/json"

	"github.com/dmitrijs2005/memosync/internal/client/models"
)

// CurrentUserKey is the metadata key holding the last known user as JSON.
const CurrentUserKey = "current_user"

func (c *core) cachedUser(ctx context.Context) *models.User {
	raw, err := c.store.Metadata().Get(ctx, c.key, CurrentUserKey)
	if err != nil {
		c.logger.Warn(ctx, "failed to read cached user", "error", err)
		return nil
	}
	if raw == nil {
		return nil
	}
	var u models.User
	if err := json.Unmarshal(raw, &u); err != nil {
		c.logger.Warn(ctx, "cached user is corrupt", "error", err)
		return nil
	}
	return &u
}

func (c *core) cacheUser(ctx context.Context, u *models.User) {
	raw, err := json.Marshal(u)
	if err != nil {
		return
	}
	if err := c.store.Metadata().Set(ctx, c.key, CurrentUserKey, raw); err != nil {
		c.logger.Warn(ctx, "failed to cache user", "error", err)
	}
}

// tokenUser builds a user from the access token claims when nothing better
// is known.
func (c *core) tokenUser() *models.User {
	claims, ok := c.account.Claims()
	if !ok || claims.Subject == "" {
		return nil
	}
	return &models.User{RemoteID: claims.Subject, Username: claims.Name}
}
