// Package channels connects chat platforms to an inbound message handler.
//
// A Channel emits inbound messages and delivers outbound replies. Serve pumps
// one channel through an InboundHandler until the context ends:
//
//	wh := channels.NewWebhook("onboarding", channels.WebhookConfig{Secret: secret})
//	mux.Handle("/webhook/onboarding", wh)
//	go channels.Serve(ctx, wh, bot.HandleMessage, logger)
package channels

import (
	"context"
	"time"
)

// Direction indicates whether a message is inbound (received from a user)
// or outbound (sent by the system).
type Direction int

const (
	Inbound  Direction = iota // Message received from a platform user.
	Outbound                  // Message sent to a platform user.
)

// String returns "inbound" or "outbound".
func (d Direction) String() string {
	if d == Inbound {
		return "inbound"
	}
	return "outbound"
}

// Message is a platform-normalized chat message. Platform-specific details
// travel in Metadata (e.g. "username", "callback_url").
type Message struct {
	ID          string            `json:"id"`
	ChannelName string            `json:"channel"`
	Platform    string            `json:"platform"`
	Direction   Direction         `json:"direction"`
	SenderID    string            `json:"sender_id"`
	RecipientID string            `json:"recipient_id"`
	Text        string            `json:"text"`
	ReplyTo     string            `json:"reply_to,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// Reply builds an outbound message answering m. The callback_url metadata
// is carried over so webhook replies find their way back.
func (m Message) Reply(text string) Message {
	out := Message{
		ChannelName: m.ChannelName,
		Platform:    m.Platform,
		Direction:   Outbound,
		RecipientID: m.SenderID,
		Text:        text,
		ReplyTo:     m.ID,
		Timestamp:   time.Now().UTC(),
	}
	if cb := m.Metadata["callback_url"]; cb != "" {
		out.Metadata = map[string]string{"callback_url": cb}
	}
	return out
}

// ChannelStatus describes the current state of a channel.
type ChannelStatus struct {
	Connected   bool      `json:"connected"`
	Platform    string    `json:"platform"`
	LastMessage time.Time `json:"last_message"`
	Error       string    `json:"error,omitempty"`
}

// Channel is a bidirectional connection to a messaging platform.
type Channel interface {
	// Listen returns a read-only channel of inbound messages. It is closed
	// when ctx is cancelled or Close is called.
	Listen(ctx context.Context) <-chan Message

	// Send pushes an outbound message to the platform.
	Send(ctx context.Context, msg Message) error

	Status() ChannelStatus

	// Close releases resources. After Close, Listen's channel is closed.
	Close() error
}

// InboundHandler processes an inbound message and returns zero or more
// replies. A nil slice means nothing is sent back.
type InboundHandler func(ctx context.Context, msg Message) ([]Message, error)
