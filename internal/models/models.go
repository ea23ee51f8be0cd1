package models

import "errors"

var (
	ErrNotFound = errors.New("not found")
)

// User represents a registered account. Identity is owned by the auth
// layer; the realtime core only carries the ID around.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Message is a private chat message between two users.
// The JSON shape is what goes over the wire inside message/sent events.
type Message struct {
	ID          int64  `json:"id"`
	Sender      string `json:"sender"`
	SenderID    int64  `json:"sender_id"`
	RecipientID int64  `json:"-"`
	Content     string `json:"content"`
	Timestamp   int64  `json:"timestamp"` // Unix timestamp (seconds)
	IsRead      bool   `json:"is_read,omitempty"`
}

// Notification is a per-user feed notification (comment, reaction, follow).
type Notification struct {
	ID          int64  `json:"id"`
	RecipientID int64  `json:"recipient_id"`
	Actor       string `json:"actor"`
	Verb        string `json:"verb"`
	PostID      int64  `json:"post_id,omitempty"`
	IsRead      bool   `json:"is_read"`
	Timestamp   int64  `json:"timestamp"`
}

// Post is a feed post. Only the fields the realtime layer needs.
type Post struct {
	ID        int64  `json:"id"`
	AuthorID  int64  `json:"author_id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// Reaction is a persisted reaction on a post. Reactions persist via the
// HTTP path only; the websocket like event is display-only.
type Reaction struct {
	ID        int64  `json:"id"`
	PostID    int64  `json:"post_id"`
	UserID    int64  `json:"user_id"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// PushSubscription is a browser web-push subscription registered by a
// client so it can be reached when no notification socket is open.
type PushSubscription struct {
	UserID   int64  `json:"-"`
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// InboundType tags events parsed from client websocket frames.
type InboundType string

const (
	InboundPing     InboundType = "ping"
	InboundMessage  InboundType = "message"
	InboundTyping   InboundType = "typing"
	InboundRead     InboundType = "read"
	InboundMarkRead InboundType = "mark_read"
	InboundLike     InboundType = "like"
)

// InboundEvent is a client event. Only the fields for the tagged type
// are set; field names are fixed by the frontend.
type InboundEvent struct {
	Type        InboundType `json:"type"`
	RecipientID int64       `json:"recipient_id,omitempty"`
	Content     string      `json:"content,omitempty"`
	IsTyping    *bool       `json:"is_typing,omitempty"` // absent means true
	MessageIDs  []int64     `json:"message_ids,omitempty"`
	User        string      `json:"user,omitempty"`
	Reaction    string      `json:"reaction,omitempty"`
	PostID      int64       `json:"post_id,omitempty"`
}

// OutboundType tags events sent to clients.
type OutboundType string

const (
	OutboundMessage       OutboundType = "message"
	OutboundSent          OutboundType = "sent"
	OutboundTyping        OutboundType = "typing"
	OutboundRead          OutboundType = "read"
	OutboundUnreadCount   OutboundType = "unread_count"
	OutboundNotification  OutboundType = "notification"
	OutboundOnlineCount   OutboundType = "online_count"
	OutboundLikeAnimation OutboundType = "like_animation"
	OutboundNewPost       OutboundType = "new_post"
	OutboundPong          OutboundType = "pong"
)

// OutboundEvent is a server event. Count and IsTyping are pointers so
// that zero values (count 0, is_typing false) still serialize.
type OutboundEvent struct {
	Type         OutboundType  `json:"type"`
	Message      *Message      `json:"message,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
	Count        *int          `json:"count,omitempty"`
	UserID       int64         `json:"user_id,omitempty"`
	Username     string        `json:"username,omitempty"`
	IsTyping     *bool         `json:"is_typing,omitempty"`
	MessageIDs   []int64       `json:"message_ids,omitempty"`
	ReadBy       int64         `json:"read_by,omitempty"`
	User         string        `json:"user,omitempty"`
	Reaction     string        `json:"reaction,omitempty"`
	PostID       int64         `json:"post_id,omitempty"`
}

// CountEvent builds an event carrying a count (unread_count, online_count).
func CountEvent(t OutboundType, n int) OutboundEvent {
	return OutboundEvent{Type: t, Count: &n}
}
