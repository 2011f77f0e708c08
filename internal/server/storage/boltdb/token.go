package boltdb

import (
	"context"

	"go.etcd.io/bbolt"

	"github.com/iudanet/accounts/internal/server/storage"
)

// AddSessionToken appends a session token inside a single write transaction
func (s *Storage) AddSessionToken(ctx context.Context, userID, token string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		user, err := getUser(tx, []byte(userID))
		if err != nil {
			return err
		}
		user.AppendToken(token)
		return putUser(tx, user)
	})
}

// RemoveSessionToken removes a session token inside a single write transaction
func (s *Storage) RemoveSessionToken(ctx context.Context, userID, token string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		user, err := getUser(tx, []byte(userID))
		if err != nil {
			return err
		}
		if !user.RemoveToken(token) {
			return storage.ErrTokenNotFound
		}
		return putUser(tx, user)
	})
}
