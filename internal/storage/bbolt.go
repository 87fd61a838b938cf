package storage

import (
	"errors"
	"fmt"
	"time"

	"tasktango/internal/auth"
	"tasktango/internal/models"

	"go.etcd.io/bbolt"
)

var (
	bucketUsers    = []byte("users")
	bucketChannels = []byte("channels")
	bucketMessages = []byte("messages")
	bucketSession  = []byte("session")
)

type BboltStorage struct {
	db *bbolt.DB
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketUsers, bucketChannels, bucketMessages, bucketSession} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

func put(b *bbolt.Bucket, item Storeable) error {
	data, err := item.MarshalBinary()
	if err != nil {
		return err
	}
	return b.Put(item.Key(), data)
}

func toDBUser(u models.User) DBUser {
	return DBUser{
		ID:        u.ID,
		StringID:  u.StringID,
		Username:  u.Username,
		Email:     u.Email,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		Bio:       u.Bio,
		Contact:   u.Contact,
		IsOnline:  u.IsOnline,
		IsPremium: u.IsPremium,
	}
}

func (u DBUser) toModel() models.User {
	return models.User{
		ID:        u.ID,
		StringID:  u.StringID,
		Username:  u.Username,
		Email:     u.Email,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		Bio:       u.Bio,
		Contact:   u.Contact,
		IsOnline:  u.IsOnline,
		IsPremium: u.IsPremium,
	}
}

// UpsertUser stores the latest snapshot of a user. Users without stringId are not stored.
func (s *BboltStorage) UpsertUser(user models.User) error {
	if !user.HasStableID() {
		return errors.New("user missing stringId")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		dbUser := toDBUser(user)
		return put(tx.Bucket(bucketUsers), &dbUser)
	})
}

func (s *BboltStorage) GetUser(stringID string) (models.User, error) {
	var user models.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketUsers).Get([]byte(stringID))
		if data == nil {
			return models.ErrNotFound
		}
		var dbUser DBUser
		if err := dbUser.UnmarshalBinary(data); err != nil {
			return err
		}
		user = dbUser.toModel()
		return nil
	})
	return user, err
}

// ListUsers returns all users stored in the database.
func (s *BboltStorage) ListUsers() ([]models.User, error) {
	var users []models.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(k, v []byte) error {
			var dbUser DBUser
			if err := dbUser.UnmarshalBinary(v); err != nil {
				return err
			}
			users = append(users, dbUser.toModel())
			return nil
		})
	})
	return users, err
}

// UpsertChannels saves the channel list returned by the server.
func (s *BboltStorage) UpsertChannels(channels []models.ChatChannel) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketChannels)
		for _, channel := range channels {
			dbChannel := DBChannel{
				ID:        channel.ID,
				Name:      channel.Name,
				IsPrivate: channel.IsPrivate,
				Members:   channel.Members,
			}
			if err := put(b, &dbChannel); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListChannels returns all channels ordered by id.
func (s *BboltStorage) ListChannels() ([]models.ChatChannel, error) {
	var channels []models.ChatChannel
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChannels).ForEach(func(k, v []byte) error {
			var dbChannel DBChannel
			if err := dbChannel.UnmarshalBinary(v); err != nil {
				return err
			}
			channels = append(channels, models.ChatChannel{
				ID:        dbChannel.ID,
				Name:      dbChannel.Name,
				IsPrivate: dbChannel.IsPrivate,
				Members:   dbChannel.Members,
			})
			return nil
		})
	})
	return channels, err
}

// UpsertMessages saves messages of one chat. Messages are keyed by id, so saving twice is harmless.
func (s *BboltStorage) UpsertMessages(chatID string, messages []models.ChatMessage) error {
	if chatID == "" {
		return errors.New("messages missing chatID")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		chatBucket, err := tx.Bucket(bucketMessages).CreateBucketIfNotExists([]byte(chatID))
		if err != nil {
			return fmt.Errorf("failed to create chat bucket: %w", err)
		}

		for _, message := range messages {
			dbMessage := DBMessage{
				ID:        message.ID,
				Timestamp: message.Timestamp.UnixNano(),
				ChannelID: message.ChannelID,
				Content:   message.Content,
				Sender:    toDBUser(message.Sender),
			}
			if err := put(chatBucket, &dbMessage); err != nil {
				return fmt.Errorf("failed to put message %d: %w", message.ID, err)
			}
		}
		return nil
	})
}

func (m DBMessage) toModel() models.ChatMessage {
	return models.ChatMessage{
		ID:        m.ID,
		Sender:    m.Sender.toModel(),
		Content:   m.Content,
		Timestamp: time.Unix(0, m.Timestamp).UTC(),
		ChannelID: m.ChannelID,
	}
}

// LastMessages returns up to count messages with the highest ids, ordered by id.
func (s *BboltStorage) LastMessages(chatID string, count int) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := s.db.View(func(tx *bbolt.Tx) error {
		chatBucket := tx.Bucket(bucketMessages).Bucket([]byte(chatID))
		if chatBucket == nil {
			return nil
		}

		c := chatBucket.Cursor()
		for k, v := c.Last(); k != nil && len(messages) < count; k, v = c.Prev() {
			var dbMsg DBMessage
			if err := dbMsg.UnmarshalBinary(v); err != nil {
				return err
			}
			messages = append(messages, dbMsg.toModel())
		}
		return nil
	})
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, err
}

// ListChatIDs returns the ids of all chats that have stored messages.
func (s *BboltStorage) ListChatIDs() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMessages).ForEachBucket(func(k []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}

func (s *BboltStorage) SaveSession(session auth.SavedSession) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		dbSession := DBSession{
			Username:  session.Username,
			Token:     session.Token,
			UserID:    session.UserID,
			ExpiresAt: session.ExpiresAt.Unix(),
		}
		return put(tx.Bucket(bucketSession), &dbSession)
	})
}

func (s *BboltStorage) LoadSession() (auth.SavedSession, error) {
	var session auth.SavedSession
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSession).Get(sessionKey)
		if data == nil {
			return models.ErrNotFound
		}
		var dbSession DBSession
		if err := dbSession.UnmarshalBinary(data); err != nil {
			return err
		}
		session = auth.SavedSession{
			Username:  dbSession.Username,
			Token:     dbSession.Token,
			UserID:    dbSession.UserID,
			ExpiresAt: time.Unix(dbSession.ExpiresAt, 0),
		}
		return nil
	})
	return session, err
}

func (s *BboltStorage) DeleteSession() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSession).Delete(sessionKey)
	})
}
