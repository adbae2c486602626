//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"chat-relay/errors"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const userPrefix = "user:"

type IUserRepository interface {
	CreateUser(username, hashedPassword string) error
	GetUser(username string) (User, error)
	ListUsernames() ([]string, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

// User is the repository representation of a registered account.
type User struct {
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

type userRecord struct {
	Username     string `cbor:"username"`
	PasswordHash string `cbor:"passwordHash"`
	CreatedAt    int64  `cbor:"createdAt"`
}

// CreateUser persists the user in BadgerDB.
// The existence check and the write share one transaction, so two concurrent
// registrations of the same username cannot both succeed.
func (u UserRepository) CreateUser(username, hashedPassword string) error {
	data, err := marshal(userRecord{
		Username:     username,
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now().UTC().Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}

	return u.db.Update(func(txn *badger.Txn) error {
		key := []byte(userPrefix + username)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrUserAlreadyExists
		} else if !stdErrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
}

// GetUser retrieves a user from Badger and converts it to the repository.User struct.
func (u UserRepository) GetUser(username string) (User, error) {
	var record userRecord

	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(userPrefix + username))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return unmarshal(val, &record)
		})
	})
	if stdErrors.Is(err, badger.ErrKeyNotFound) {
		return User{}, errors.ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}

	return User{
		Username:     record.Username,
		PasswordHash: record.PasswordHash,
		CreatedAt:    time.Unix(record.CreatedAt, 0).UTC(),
	}, nil
}

// ListUsernames walks the user keys only, values are never loaded.
func (u UserRepository) ListUsernames() ([]string, error) {
	var usernames []string
	err := u.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		options.Prefix = []byte(userPrefix)
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			usernames = append(usernames, strings.TrimPrefix(string(it.Item().Key()), userPrefix))
		}
		return nil
	})
	return usernames, err
}
