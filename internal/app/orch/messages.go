package orch

import (
	"encoding/json"
	"time"

	"github.com/dkeye/Multiview/internal/app"
	"github.com/dkeye/Multiview/internal/domain"
)

// Outbound is one message addressed to one connection.
type Outbound struct {
	To  domain.ConnID
	Msg any
}

type PeerJoined struct {
	Type     string          `json:"type"`
	ConnID   domain.ConnID   `json:"connId"`
	Identity domain.Identity `json:"identity"`
}

type PeerLeft struct {
	Type               string          `json:"type"`
	ConnID             domain.ConnID   `json:"connId"`
	Identity           domain.Identity `json:"identity"`
	StreamWasAvailable bool            `json:"streamWasAvailable"`
}

type PeerLost struct {
	Type   string        `json:"type"`
	ConnID domain.ConnID `json:"connId"`
	Reason string        `json:"reason"`
}

type StreamAvailable struct {
	Type     string          `json:"type"`
	ConnID   domain.ConnID   `json:"connId"`
	Identity domain.Identity `json:"identity"`
}

type StreamStopped struct {
	Type     string          `json:"type"`
	ConnID   domain.ConnID   `json:"connId"`
	Identity domain.Identity `json:"identity"`
}

type ConnectRequest struct {
	Type       string        `json:"type"`
	FromConnID domain.ConnID `json:"fromConnId"`
}

// SignalReceived carries the sender's signal bytes untouched.
type SignalReceived struct {
	Type       string          `json:"type"`
	Signal     json.RawMessage `json:"signal"`
	FromConnID domain.ConnID   `json:"fromConnId"`
}

type StreamRoster struct {
	Type    string            `json:"type"`
	Streams []app.StreamEntry `json:"streams"`
}

type Pong struct {
	Type string `json:"type"`
}

type WhoAmI struct {
	Type     string          `json:"type"`
	ConnID   domain.ConnID   `json:"connId"`
	Role     domain.Role     `json:"role"`
	Identity domain.Identity `json:"identity"`
}

type ConnectionDiagnostics struct {
	Type        string               `json:"type"`
	Connections app.GraphDiagnostics `json:"connections"`
	Streams     app.StreamStats      `json:"streams"`
	Timestamp   time.Time            `json:"timestamp"`
}

type CleanupCompleted struct {
	Type           string    `json:"type"`
	CleanedStreams int       `json:"cleanedStreams"`
	Timestamp      time.Time `json:"timestamp"`
}

func newRoster(entries []app.StreamEntry) StreamRoster {
	if entries == nil {
		entries = []app.StreamEntry{}
	}
	return StreamRoster{Type: "stream-roster", Streams: entries}
}
