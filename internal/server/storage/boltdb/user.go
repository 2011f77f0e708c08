package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/accounts/internal/models"
	"github.com/iudanet/accounts/internal/server/storage"
)

func getUser(tx *bbolt.Tx, userID []byte) (*models.User, error) {
	data := tx.Bucket(bucketUsers).Get(userID)
	if data == nil {
		return nil, storage.ErrUserNotFound
	}

	user := &models.User{}
	if err := json.Unmarshal(data, user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	if user.Tokens == nil {
		user.Tokens = []string{}
	}
	return user, nil
}

func putUser(tx *bbolt.Tx, user *models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	if err := tx.Bucket(bucketUsers).Put([]byte(user.ID), data); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// CreateUser creates a new user in the storage
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		emails := tx.Bucket(bucketEmails)
		if emails.Get([]byte(user.Email)) != nil {
			return storage.ErrUserAlreadyExists
		}
		if tx.Bucket(bucketUsers).Get([]byte(user.ID)) != nil {
			return fmt.Errorf("user id %s already taken", user.ID)
		}

		if err := putUser(tx, user); err != nil {
			return err
		}
		if err := emails.Put([]byte(user.Email), []byte(user.ID)); err != nil {
			return fmt.Errorf("failed to index email: %w", err)
		}
		if user.EmailToken != "" {
			if err := tx.Bucket(bucketEmailTokens).Put([]byte(user.EmailToken), []byte(user.ID)); err != nil {
				return fmt.Errorf("failed to index email token: %w", err)
			}
		}
		return nil
	})
}

// GetUserByEmail retrieves user by email
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByIndex(bucketEmails, email)
}

// GetUserByID retrieves user by ID
func (s *Storage) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	var user *models.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		user, err = getUser(tx, []byte(userID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByEmailToken retrieves user by pending email verification token
func (s *Storage) GetUserByEmailToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, storage.ErrUserNotFound
	}
	return s.getByIndex(bucketEmailTokens, token)
}

func (s *Storage) getByIndex(bucket []byte, key string) (*models.User, error) {
	var user *models.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		userID := tx.Bucket(bucket).Get([]byte(key))
		if userID == nil {
			return storage.ErrUserNotFound
		}
		var err error
		user, err = getUser(tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateUser updates user fields; the stored session tokens are kept as is
func (s *Storage) UpdateUser(ctx context.Context, user *models.User) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		current, err := getUser(tx, []byte(user.ID))
		if err != nil {
			return err
		}

		emails := tx.Bucket(bucketEmails)
		if current.Email != user.Email {
			if emails.Get([]byte(user.Email)) != nil {
				return storage.ErrUserAlreadyExists
			}
			if err := emails.Delete([]byte(current.Email)); err != nil {
				return fmt.Errorf("failed to drop email index: %w", err)
			}
			if err := emails.Put([]byte(user.Email), []byte(user.ID)); err != nil {
				return fmt.Errorf("failed to index email: %w", err)
			}
		}

		emailTokens := tx.Bucket(bucketEmailTokens)
		if current.EmailToken != user.EmailToken {
			if current.EmailToken != "" {
				if err := emailTokens.Delete([]byte(current.EmailToken)); err != nil {
					return fmt.Errorf("failed to drop email token index: %w", err)
				}
			}
			if user.EmailToken != "" {
				if err := emailTokens.Put([]byte(user.EmailToken), []byte(user.ID)); err != nil {
					return fmt.Errorf("failed to index email token: %w", err)
				}
			}
		}

		updated := *user
		updated.Tokens = current.Tokens
		return putUser(tx, &updated)
	})
}

// MarkVerified consumes the pending email token and sets the verified flag
func (s *Storage) MarkVerified(ctx context.Context, userID, emailToken string) error {
	if emailToken == "" {
		return storage.ErrUserNotFound
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		user, err := getUser(tx, []byte(userID))
		if err != nil {
			return err
		}
		if user.EmailToken != emailToken {
			return storage.ErrUserNotFound
		}
		if err := tx.Bucket(bucketEmailTokens).Delete([]byte(emailToken)); err != nil {
			return fmt.Errorf("failed to drop email token index: %w", err)
		}
		user.MarkVerified()
		user.UpdatedAt = time.Now().UTC()
		return putUser(tx, user)
	})
}

// SetEmailToken stores a new pending email token for an unverified user
func (s *Storage) SetEmailToken(ctx context.Context, userID, emailToken string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		user, err := getUser(tx, []byte(userID))
		if err != nil {
			return err
		}
		if user.IsVerified {
			return storage.ErrUserNotFound
		}

		emailTokens := tx.Bucket(bucketEmailTokens)
		if user.EmailToken != "" {
			if err := emailTokens.Delete([]byte(user.EmailToken)); err != nil {
				return fmt.Errorf("failed to drop email token index: %w", err)
			}
		}
		if emailToken != "" {
			if err := emailTokens.Put([]byte(emailToken), []byte(user.ID)); err != nil {
				return fmt.Errorf("failed to index email token: %w", err)
			}
		}

		user.EmailToken = emailToken
		user.UpdatedAt = time.Now().UTC()
		return putUser(tx, user)
	})
}

// SetAdmin grants admin rights and marks the user verified
func (s *Storage) SetAdmin(ctx context.Context, userID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		user, err := getUser(tx, []byte(userID))
		if err != nil {
			return err
		}
		if user.EmailToken != "" {
			if err := tx.Bucket(bucketEmailTokens).Delete([]byte(user.EmailToken)); err != nil {
				return fmt.Errorf("failed to drop email token index: %w", err)
			}
		}
		user.Admin = true
		user.MarkVerified()
		user.UpdatedAt = time.Now().UTC()
		return putUser(tx, user)
	})
}

// ListUsers returns all users ordered by creation time
func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	users := []*models.User{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(k, _ []byte) error {
			user, err := getUser(tx, k)
			if err != nil {
				return err
			}
			users = append(users, user)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	slices.SortStableFunc(users, func(a, b *models.User) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return users, nil
}

// DeleteUser deletes user, its indexes and sessions
func (s *Storage) DeleteUser(ctx context.Context, userID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		user, err := getUser(tx, []byte(userID))
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketEmails).Delete([]byte(user.Email)); err != nil {
			return fmt.Errorf("failed to drop email index: %w", err)
		}
		if user.EmailToken != "" {
			if err := tx.Bucket(bucketEmailTokens).Delete([]byte(user.EmailToken)); err != nil {
				return fmt.Errorf("failed to drop email token index: %w", err)
			}
		}
		if err := tx.Bucket(bucketUsers).Delete([]byte(userID)); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		return nil
	})
}
