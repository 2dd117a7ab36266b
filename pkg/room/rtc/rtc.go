// Package rtc is the data-plane boundary to the room transport substrate.
// The agent joins a room and exchanges data packets on named topics; the
// substrate guarantees ordered delivery per topic for reliable packets and
// at-least-once for unreliable ones.
package rtc

import "context"

// DataPacket is one inbound data-channel payload.
type DataPacket struct {
	Topic          string
	SenderIdentity string
	Payload        []byte
}

// DataHandler receives inbound packets. It runs on the transport's delivery
// goroutine and must not block; schedule real work elsewhere.
type DataHandler func(pkt DataPacket)

// Room is a joined room.
type Room interface {
	// Name returns the room name.
	Name() string

	// Metadata returns the room metadata observed at join time. It is read
	// once to seed the session and never re-read while the job runs.
	Metadata() string

	// LocalIdentity returns the identity this participant joined with.
	LocalIdentity() string

	// OnData registers the handler for inbound data packets. Only one
	// handler is supported; a later call replaces the earlier one.
	OnData(h DataHandler)

	// PublishData publishes one payload on a topic.
	PublishData(ctx context.Context, payload []byte, topic string, reliable bool) error

	// Close leaves the room.
	Close() error
}
