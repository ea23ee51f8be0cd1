package storage

import (
	"encoding"
	"encoding/binary"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// i64Key encodes an int64 id as a big-endian key so bucket cursors
// iterate in id order.
func i64Key(id int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}

type DBUser struct {
	ID           int64  `msgpack:"id"`
	Username     string `msgpack:"username"`
	PasswordHash string `msgpack:"passwordHash"`
}

func (u *DBUser) Key() []byte {
	return i64Key(u.ID)
}

func (u *DBUser) MarshalBinary() (data []byte, err error) {
	type alias DBUser
	return msgpack.Marshal((*alias)(u))
}

func (u *DBUser) UnmarshalBinary(data []byte) error {
	type alias DBUser
	return msgpack.Unmarshal(data, (*alias)(u))
}

type DBMessage struct {
	ID          int64  `msgpack:"id"`
	SenderID    int64  `msgpack:"senderId"`
	Sender      string `msgpack:"sender"`
	RecipientID int64  `msgpack:"recipientId"`
	Content     string `msgpack:"content"`
	Timestamp   int64  `msgpack:"timestamp"`
	IsRead      bool   `msgpack:"isRead"`
}

func (m *DBMessage) Key() []byte {
	return i64Key(m.ID)
}

func (m *DBMessage) MarshalBinary() (data []byte, err error) {
	type alias DBMessage
	return msgpack.Marshal((*alias)(m))
}

func (m *DBMessage) UnmarshalBinary(data []byte) error {
	type alias DBMessage
	return msgpack.Unmarshal(data, (*alias)(m))
}

type DBNotification struct {
	ID          int64  `msgpack:"id"`
	RecipientID int64  `msgpack:"recipientId"`
	Actor       string `msgpack:"actor"`
	Verb        string `msgpack:"verb"`
	PostID      int64  `msgpack:"postId"`
	IsRead      bool   `msgpack:"isRead"`
	Timestamp   int64  `msgpack:"timestamp"`
}

func (n *DBNotification) Key() []byte {
	return i64Key(n.ID)
}

func (n *DBNotification) MarshalBinary() (data []byte, err error) {
	type alias DBNotification
	return msgpack.Marshal((*alias)(n))
}

func (n *DBNotification) UnmarshalBinary(data []byte) error {
	type alias DBNotification
	return msgpack.Unmarshal(data, (*alias)(n))
}

type DBPost struct {
	ID        int64  `msgpack:"id"`
	AuthorID  int64  `msgpack:"authorId"`
	Title     string `msgpack:"title"`
	Content   string `msgpack:"content"`
	Timestamp int64  `msgpack:"timestamp"`
}

func (p *DBPost) Key() []byte {
	return i64Key(p.ID)
}

func (p *DBPost) MarshalBinary() (data []byte, err error) {
	type alias DBPost
	return msgpack.Marshal((*alias)(p))
}

func (p *DBPost) UnmarshalBinary(data []byte) error {
	type alias DBPost
	return msgpack.Unmarshal(data, (*alias)(p))
}

type DBReaction struct {
	ID        int64  `msgpack:"id"`
	PostID    int64  `msgpack:"postId"`
	UserID    int64  `msgpack:"userId"`
	Type      string `msgpack:"type"`
	Timestamp int64  `msgpack:"timestamp"`
}

func (r *DBReaction) Key() []byte {
	return i64Key(r.ID)
}

func (r *DBReaction) MarshalBinary() (data []byte, err error) {
	type alias DBReaction
	return msgpack.Marshal((*alias)(r))
}

func (r *DBReaction) UnmarshalBinary(data []byte) error {
	type alias DBReaction
	return msgpack.Unmarshal(data, (*alias)(r))
}

// DBPushSubscription lives in a per-user sub-bucket keyed by endpoint,
// so re-subscribing from the same browser overwrites in place.
type DBPushSubscription struct {
	UserID   int64  `msgpack:"userId"`
	Endpoint string `msgpack:"endpoint"`
	P256dh   string `msgpack:"p256dh"`
	Auth     string `msgpack:"auth"`
}

func (s *DBPushSubscription) Key() []byte {
	return []byte(s.Endpoint)
}

func (s *DBPushSubscription) MarshalBinary() (data []byte, err error) {
	type alias DBPushSubscription
	return msgpack.Marshal((*alias)(s))
}

func (s *DBPushSubscription) UnmarshalBinary(data []byte) error {
	type alias DBPushSubscription
	return msgpack.Unmarshal(data, (*alias)(s))
}
