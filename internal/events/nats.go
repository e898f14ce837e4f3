package events

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/shongeorg/posts-api/internal/post"
)

// PostEvent is the payload published on post.created, post.updated and post.deleted.
type PostEvent struct {
	Event     string    `json:"event"`
	Post      post.Post `json:"post"`
	Timestamp string    `json:"timestamp"`
}

type Publisher struct {
	conn *nats.Conn
	now  func() time.Time
}

func NewNATS(url string) (*Publisher, error) {
	conn, err := nats.Connect(url, nats.Name("posts-api"))
	if err != nil {
		return nil, err
	}
	return NewPublisher(conn), nil
}

func NewPublisher(conn *nats.Conn) *Publisher {
	return &Publisher{conn: conn, now: time.Now}
}

func (p *Publisher) Publish(event string, pst *post.Post) error {
	eventJSON, err := json.Marshal(PostEvent{
		Event:     event,
		Post:      *pst,
		Timestamp: p.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	return p.conn.Publish(event, eventJSON)
}

func (p *Publisher) Close() {
	p.conn.Close()
}
