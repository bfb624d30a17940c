package main

import (
	"context"
	"fmt"

	"github.com/erazemk/gametracker/internal/model"
	"github.com/erazemk/gametracker/internal/store"
)

// owner resolves the --user flag. Without a database, or without the flag,
// it is the default owner.
func (b *backend) owner(ctx context.Context, login string) (int64, string, error) {
	if login == "" || b.db == nil {
		if login != "" {
			return 0, "", fmt.Errorf("--user needs the database backend")
		}
		return model.DefaultOwnerID, b.cfg.Auth.SingleUserName, nil
	}
	user, err := store.GetUserByLogin(ctx, b.db, login)
	if err != nil {
		return 0, "", err
	}
	if user == nil {
		return 0, "", fmt.Errorf("user %q not found", login)
	}
	return user.ID, user.Username, nil
}
