package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"varsity/internal/models"

	"go.etcd.io/bbolt"
)

func newTestStorage(t *testing.T) *BboltStorage {
	t.Helper()
	s, err := NewBboltStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUsers(t *testing.T) {
	s := newTestStorage(t)

	alice, err := s.CreateUser("alice", "hash-a")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if alice.ID == 0 || alice.Username != "alice" {
		t.Errorf("unexpected user: %+v", alice)
	}

	t.Run("duplicate username rejected", func(t *testing.T) {
		if _, err := s.CreateUser("alice", "hash-b"); !errors.Is(err, ErrUserExists) {
			t.Errorf("expected ErrUserExists, got %v", err)
		}
	})

	t.Run("get by id", func(t *testing.T) {
		got, err := s.GetUser(alice.ID)
		if err != nil {
			t.Fatalf("GetUser: %v", err)
		}
		if got != alice {
			t.Errorf("got %+v, want %+v", got, alice)
		}

		if _, err := s.GetUser(999); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("get by name", func(t *testing.T) {
		got, hash, err := s.GetUserByName("alice")
		if err != nil {
			t.Fatalf("GetUserByName: %v", err)
		}
		if got != alice || hash != "hash-a" {
			t.Errorf("got %+v hash %q", got, hash)
		}

		if _, _, err := s.GetUserByName("nobody"); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("list ids", func(t *testing.T) {
		bob, err := s.CreateUser("bob", "hash-b")
		if err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		ids, err := s.ListUserIDs()
		if err != nil {
			t.Fatalf("ListUserIDs: %v", err)
		}
		if len(ids) != 2 || ids[0] != alice.ID || ids[1] != bob.ID {
			t.Errorf("unexpected ids: %v", ids)
		}
	})
}

func TestMessages(t *testing.T) {
	s := newTestStorage(t)

	alice, _ := s.CreateUser("alice", "h")
	bob, _ := s.CreateUser("bob", "h")

	msg, err := s.CreateMessage(alice.ID, alice.Username, bob.ID, "hello")
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if msg.ID == 0 || msg.Sender != "alice" || msg.RecipientID != bob.ID || msg.Timestamp == 0 {
		t.Errorf("unexpected message: %+v", msg)
	}

	t.Run("missing recipient", func(t *testing.T) {
		if _, err := s.CreateMessage(alice.ID, alice.Username, 999, "hi"); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("mark read scoped to recipient", func(t *testing.T) {
		// Alice is not the recipient, so her mark is skipped.
		if err := s.MarkMessagesRead(alice.ID, []int64{msg.ID}); err != nil {
			t.Fatalf("MarkMessagesRead: %v", err)
		}
		if readFlag(t, s, msg.ID) {
			t.Error("message marked read by non-recipient")
		}

		if err := s.MarkMessagesRead(bob.ID, []int64{msg.ID, 999}); err != nil {
			t.Fatalf("MarkMessagesRead: %v", err)
		}
		if !readFlag(t, s, msg.ID) {
			t.Error("message not marked read by recipient")
		}
	})
}

func readFlag(t *testing.T, s *BboltStorage, id int64) bool {
	t.Helper()
	var m DBMessage
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMessages).Get(i64Key(id))
		if data == nil {
			return models.ErrNotFound
		}
		return m.UnmarshalBinary(data)
	})
	if err != nil {
		t.Fatalf("failed to load message %d: %v", id, err)
	}
	return m.IsRead
}

func TestNotifications(t *testing.T) {
	s := newTestStorage(t)

	alice, _ := s.CreateUser("alice", "h")
	bob, _ := s.CreateUser("bob", "h")

	for i := 0; i < 3; i++ {
		if _, err := s.CreateNotification(models.Notification{RecipientID: alice.ID, Actor: "bob", Verb: "commented", PostID: 1}); err != nil {
			t.Fatalf("CreateNotification: %v", err)
		}
	}
	if _, err := s.CreateNotification(models.Notification{RecipientID: bob.ID, Actor: "alice", Verb: "reacted"}); err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}

	t.Run("missing recipient", func(t *testing.T) {
		if _, err := s.CreateNotification(models.Notification{RecipientID: 999}); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("count and mark scoped to user", func(t *testing.T) {
		if got := mustCount(t, s, alice.ID); got != 3 {
			t.Errorf("expected 3 unread, got %d", got)
		}

		if err := s.MarkNotificationsRead(alice.ID); err != nil {
			t.Fatalf("MarkNotificationsRead: %v", err)
		}
		if got := mustCount(t, s, alice.ID); got != 0 {
			t.Errorf("expected 0 unread after mark, got %d", got)
		}
		if got := mustCount(t, s, bob.ID); got != 1 {
			t.Errorf("other user's unread touched, got %d", got)
		}
	})
}

func mustCount(t *testing.T, s *BboltStorage, userID int64) int {
	t.Helper()
	n, err := s.CountUnreadNotifications(userID)
	if err != nil {
		t.Fatalf("CountUnreadNotifications: %v", err)
	}
	return n
}

func TestPostsAndReactions(t *testing.T) {
	s := newTestStorage(t)

	alice, _ := s.CreateUser("alice", "h")

	post, err := s.CreatePost(alice.ID, "title", "body")
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}

	got, err := s.GetPost(post.ID)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if got != post {
		t.Errorf("got %+v, want %+v", got, post)
	}
	if _, err := s.GetPost(999); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	reaction, err := s.CreateReaction(post.ID, alice.ID, "heart")
	if err != nil {
		t.Fatalf("CreateReaction: %v", err)
	}
	if reaction.PostID != post.ID || reaction.Type != "heart" {
		t.Errorf("unexpected reaction: %+v", reaction)
	}

	if _, err := s.CreateReaction(999, alice.ID, "heart"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing post, got %v", err)
	}
}

func TestPushSubscriptions(t *testing.T) {
	s := newTestStorage(t)

	sub := models.PushSubscription{UserID: 1, Endpoint: "https://push.example/abc"}
	sub.Keys.P256dh = "p256"
	sub.Keys.Auth = "auth"

	if err := s.SavePushSubscription(sub); err != nil {
		t.Fatalf("SavePushSubscription: %v", err)
	}
	// Same endpoint again overwrites instead of duplicating.
	if err := s.SavePushSubscription(sub); err != nil {
		t.Fatalf("SavePushSubscription: %v", err)
	}

	subs, err := s.ListPushSubscriptions(1)
	if err != nil {
		t.Fatalf("ListPushSubscriptions: %v", err)
	}
	if len(subs) != 1 || subs[0].Endpoint != sub.Endpoint || subs[0].Keys.P256dh != "p256" {
		t.Errorf("unexpected subscriptions: %+v", subs)
	}

	none, err := s.ListPushSubscriptions(2)
	if err != nil {
		t.Fatalf("ListPushSubscriptions: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no subscriptions for other user, got %+v", none)
	}
}
