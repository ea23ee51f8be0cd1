package storage

import (
	"errors"
	"fmt"
	"time"

	"varsity/internal/models"

	"go.etcd.io/bbolt"
)

var (
	bucketUsers         = []byte("users")
	bucketMessages      = []byte("messages")
	bucketNotifications = []byte("notifications")
	bucketPosts         = []byte("posts")
	bucketReactions     = []byte("reactions")
	bucketPushSubs      = []byte("push_subscriptions")
)

var ErrUserExists = errors.New("user already exists")

// BboltStorage is the persistent data collaborator behind the realtime
// core: users, private messages, notifications, posts and reactions.
type BboltStorage struct {
	db  *bbolt.DB
	now func() time.Time
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{
			bucketUsers,
			bucketMessages,
			bucketNotifications,
			bucketPosts,
			bucketReactions,
			bucketPushSubs,
		} {
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

	return &BboltStorage{db: db, now: time.Now}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

// CreateUser registers a new account. Usernames are unique.
func (s *BboltStorage) CreateUser(username, passwordHash string) (models.User, error) {
	var user models.User
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)

		err := b.ForEach(func(k, v []byte) error {
			var u DBUser
			if err := u.UnmarshalBinary(v); err != nil {
				return err
			}
			if u.Username == username {
				return ErrUserExists
			}
			return nil
		})
		if err != nil {
			return err
		}

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}

		dbUser := &DBUser{
			ID:           int64(seq),
			Username:     username,
			PasswordHash: passwordHash,
		}
		data, err := dbUser.MarshalBinary()
		if err != nil {
			return err
		}
		if err := b.Put(dbUser.Key(), data); err != nil {
			return err
		}

		user = models.User{ID: dbUser.ID, Username: dbUser.Username}
		return nil
	})
	return user, err
}

func (s *BboltStorage) GetUser(id int64) (models.User, error) {
	var user models.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketUsers).Get(i64Key(id))
		if data == nil {
			return models.ErrNotFound
		}
		var u DBUser
		if err := u.UnmarshalBinary(data); err != nil {
			return err
		}
		user = models.User{ID: u.ID, Username: u.Username}
		return nil
	})
	return user, err
}

// GetUserByName returns the user and their password hash for login.
func (s *BboltStorage) GetUserByName(username string) (models.User, string, error) {
	var (
		user models.User
		hash string
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		found := false
		err := tx.Bucket(bucketUsers).ForEach(func(k, v []byte) error {
			var u DBUser
			if err := u.UnmarshalBinary(v); err != nil {
				return err
			}
			if u.Username == username {
				user = models.User{ID: u.ID, Username: u.Username}
				hash = u.PasswordHash
				found = true
			}
			return nil
		})
		if err != nil {
			return err
		}
		if !found {
			return models.ErrNotFound
		}
		return nil
	})
	return user, hash, err
}

// ListUserIDs enumerates every registered identity. Used by the
// presence reconciler; O(total users) at campus scale.
func (s *BboltStorage) ListUserIDs() ([]int64, error) {
	var ids []int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(k, v []byte) error {
			var u DBUser
			if err := u.UnmarshalBinary(v); err != nil {
				return err
			}
			ids = append(ids, u.ID)
			return nil
		})
	})
	return ids, err
}

// CreateMessage persists a chat message. The recipient must exist;
// a missing recipient returns models.ErrNotFound.
func (s *BboltStorage) CreateMessage(senderID int64, sender string, recipientID int64, content string) (models.Message, error) {
	var msg models.Message
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketUsers).Get(i64Key(recipientID)) == nil {
			return fmt.Errorf("recipient %d: %w", recipientID, models.ErrNotFound)
		}

		b := tx.Bucket(bucketMessages)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}

		dbMsg := &DBMessage{
			ID:          int64(seq),
			SenderID:    senderID,
			Sender:      sender,
			RecipientID: recipientID,
			Content:     content,
			Timestamp:   s.now().Unix(),
		}
		data, err := dbMsg.MarshalBinary()
		if err != nil {
			return err
		}
		if err := b.Put(dbMsg.Key(), data); err != nil {
			return err
		}

		msg = models.Message{
			ID:          dbMsg.ID,
			Sender:      dbMsg.Sender,
			SenderID:    dbMsg.SenderID,
			RecipientID: dbMsg.RecipientID,
			Content:     dbMsg.Content,
			Timestamp:   dbMsg.Timestamp,
		}
		return nil
	})
	return msg, err
}

// MarkMessagesRead flags the given messages as read, but only those
// addressed to recipientID. Ids for other recipients are skipped.
func (s *BboltStorage) MarkMessagesRead(recipientID int64, messageIDs []int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMessages)
		for _, id := range messageIDs {
			data := b.Get(i64Key(id))
			if data == nil {
				continue
			}
			var m DBMessage
			if err := m.UnmarshalBinary(data); err != nil {
				return err
			}
			if m.RecipientID != recipientID || m.IsRead {
				continue
			}
			m.IsRead = true
			updated, err := m.MarshalBinary()
			if err != nil {
				return err
			}
			if err := b.Put(m.Key(), updated); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BboltStorage) CreateNotification(n models.Notification) (models.Notification, error) {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketUsers).Get(i64Key(n.RecipientID)) == nil {
			return fmt.Errorf("recipient %d: %w", n.RecipientID, models.ErrNotFound)
		}

		b := tx.Bucket(bucketNotifications)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}

		dbN := &DBNotification{
			ID:          int64(seq),
			RecipientID: n.RecipientID,
			Actor:       n.Actor,
			Verb:        n.Verb,
			PostID:      n.PostID,
			Timestamp:   s.now().Unix(),
		}
		data, err := dbN.MarshalBinary()
		if err != nil {
			return err
		}
		if err := b.Put(dbN.Key(), data); err != nil {
			return err
		}

		n.ID = dbN.ID
		n.IsRead = false
		n.Timestamp = dbN.Timestamp
		return nil
	})
	return n, err
}

func (s *BboltStorage) CountUnreadNotifications(userID int64) (int, error) {
	count := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketNotifications).ForEach(func(k, v []byte) error {
			var n DBNotification
			if err := n.UnmarshalBinary(v); err != nil {
				return err
			}
			if n.RecipientID == userID && !n.IsRead {
				count++
			}
			return nil
		})
	})
	return count, err
}

// MarkNotificationsRead flags every unread notification for userID.
// Notifications for other recipients are untouched.
func (s *BboltStorage) MarkNotificationsRead(userID int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketNotifications)
		return b.ForEach(func(k, v []byte) error {
			var n DBNotification
			if err := n.UnmarshalBinary(v); err != nil {
				return err
			}
			if n.RecipientID != userID || n.IsRead {
				return nil
			}
			n.IsRead = true
			data, err := n.MarshalBinary()
			if err != nil {
				return err
			}
			return b.Put(n.Key(), data)
		})
	})
}

func (s *BboltStorage) CreatePost(authorID int64, title, content string) (models.Post, error) {
	var post models.Post
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPosts)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}

		dbPost := &DBPost{
			ID:        int64(seq),
			AuthorID:  authorID,
			Title:     title,
			Content:   content,
			Timestamp: s.now().Unix(),
		}
		data, err := dbPost.MarshalBinary()
		if err != nil {
			return err
		}
		if err := b.Put(dbPost.Key(), data); err != nil {
			return err
		}

		post = models.Post{
			ID:        dbPost.ID,
			AuthorID:  dbPost.AuthorID,
			Title:     dbPost.Title,
			Content:   dbPost.Content,
			Timestamp: dbPost.Timestamp,
		}
		return nil
	})
	return post, err
}

func (s *BboltStorage) GetPost(id int64) (models.Post, error) {
	var post models.Post
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketPosts).Get(i64Key(id))
		if data == nil {
			return models.ErrNotFound
		}
		var p DBPost
		if err := p.UnmarshalBinary(data); err != nil {
			return err
		}
		post = models.Post{
			ID:        p.ID,
			AuthorID:  p.AuthorID,
			Title:     p.Title,
			Content:   p.Content,
			Timestamp: p.Timestamp,
		}
		return nil
	})
	return post, err
}

func (s *BboltStorage) CreateReaction(postID, userID int64, reactionType string) (models.Reaction, error) {
	var reaction models.Reaction
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketPosts).Get(i64Key(postID)) == nil {
			return fmt.Errorf("post %d: %w", postID, models.ErrNotFound)
		}

		b := tx.Bucket(bucketReactions)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}

		dbReaction := &DBReaction{
			ID:        int64(seq),
			PostID:    postID,
			UserID:    userID,
			Type:      reactionType,
			Timestamp: s.now().Unix(),
		}
		data, err := dbReaction.MarshalBinary()
		if err != nil {
			return err
		}
		if err := b.Put(dbReaction.Key(), data); err != nil {
			return err
		}

		reaction = models.Reaction{
			ID:        dbReaction.ID,
			PostID:    dbReaction.PostID,
			UserID:    dbReaction.UserID,
			Type:      dbReaction.Type,
			Timestamp: dbReaction.Timestamp,
		}
		return nil
	})
	return reaction, err
}

// SavePushSubscription stores a web-push subscription, one sub-bucket
// per user keyed by endpoint.
func (s *BboltStorage) SavePushSubscription(sub models.PushSubscription) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		userBucket, err := tx.Bucket(bucketPushSubs).CreateBucketIfNotExists(i64Key(sub.UserID))
		if err != nil {
			return err
		}

		dbSub := &DBPushSubscription{
			UserID:   sub.UserID,
			Endpoint: sub.Endpoint,
			P256dh:   sub.Keys.P256dh,
			Auth:     sub.Keys.Auth,
		}
		data, err := dbSub.MarshalBinary()
		if err != nil {
			return err
		}
		return userBucket.Put(dbSub.Key(), data)
	})
}

func (s *BboltStorage) ListPushSubscriptions(userID int64) ([]models.PushSubscription, error) {
	var subs []models.PushSubscription
	err := s.db.View(func(tx *bbolt.Tx) error {
		userBucket := tx.Bucket(bucketPushSubs).Bucket(i64Key(userID))
		if userBucket == nil {
			return nil
		}
		return userBucket.ForEach(func(k, v []byte) error {
			var dbSub DBPushSubscription
			if err := dbSub.UnmarshalBinary(v); err != nil {
				return err
			}
			sub := models.PushSubscription{
				UserID:   dbSub.UserID,
				Endpoint: dbSub.Endpoint,
			}
			sub.Keys.P256dh = dbSub.P256dh
			sub.Keys.Auth = dbSub.Auth
			subs = append(subs, sub)
			return nil
		})
	})
	return subs, err
}
