package orch

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dkeye/Multiview/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/pion/webrtc/v4"
)

type EventName string

const (
	EvConnect          EventName = "connect"
	EvDisconnect       EventName = "disconnect"
	EvBroadcasterReady EventName = "broadcaster-ready"
	EvStreamAvailable  EventName = "stream-available"
	EvStreamStopped    EventName = "stream-stopped"
	EvWantConnect      EventName = "want-connect"
	EvRelayOffer       EventName = "relay-offer"
	EvRelayAnswer      EventName = "relay-answer"
	EvRelayCandidate   EventName = "relay-candidate"
	EvListRequest      EventName = "list-request"
	EvPing             EventName = "ping"
	EvWhoAmI           EventName = "whoami"
	EvGetDiagnostics   EventName = "get-diagnostics"
	EvCleanupStale     EventName = "cleanup-stale"
)

// Lifecycle events are raised by the transport and never accepted from a client frame.
func (n EventName) Lifecycle() bool {
	return n == EvConnect || n == EvDisconnect
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// payload is implemented by every decoded event body.
type payload interface {
	check() error
}

// decode unmarshals raw into T and runs its struct tags and check.
func decode[T payload](raw []byte) (T, error) {
	var ev T
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &ev); err != nil {
			return ev, domain.MalformedPayload("undecodable payload").WithCause(err)
		}
	}
	if err := validate.Struct(ev); err != nil {
		return ev, domain.MalformedPayload("invalid payload").WithCause(err)
	}
	if err := ev.check(); err != nil {
		return ev, err
	}
	return ev, nil
}

// envelope reads just the event name of a client frame.
func envelope(frame []byte) (EventName, error) {
	var env struct {
		Type EventName `json:"type"`
	}
	if err := json.Unmarshal(frame, &env); err != nil {
		return "", domain.MalformedPayload("frame is not a JSON object").WithCause(err)
	}
	if env.Type == "" {
		return "", domain.MalformedPayload("frame has no type")
	}
	return env.Type, nil
}

// UserID accepts either a JSON string or number.
type UserID string

func (u *UserID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*u = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("userId must be a string or number: %w", err)
	}
	*u = UserID(n.String())
	return nil
}

type empty struct{}

func (empty) check() error { return nil }

type BroadcasterReady struct {
	UserID  UserID `json:"userId" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	GroupID *int64 `json:"groupId"`
}

func (BroadcasterReady) check() error { return nil }

// StreamAvailablePayload may be empty; when any field is set it must form a valid BroadcasterReady.
type StreamAvailablePayload struct {
	UserID  UserID `json:"userId"`
	Email   string `json:"email"`
	GroupID *int64 `json:"groupId"`
}

func (p StreamAvailablePayload) present() bool {
	return p.UserID != "" || p.Email != "" || p.GroupID != nil
}

func (p StreamAvailablePayload) check() error {
	if !p.present() {
		return nil
	}
	br := BroadcasterReady(p)
	if err := validate.Struct(br); err != nil {
		return domain.MalformedPayload("invalid stream-available payload").WithCause(err)
	}
	return nil
}

type WantConnect struct {
	TargetConnID domain.ConnID `json:"targetConnId" validate:"required"`
}

func (WantConnect) check() error { return nil }

// Relay is the shared body of relay-offer, relay-answer and relay-candidate.
type Relay struct {
	TargetConnID domain.ConnID   `json:"targetConnId" validate:"required"`
	Signal       json.RawMessage `json:"signal"`
}

func (r Relay) check() error {
	if len(bytes.TrimSpace(r.Signal)) == 0 || bytes.Equal(bytes.TrimSpace(r.Signal), []byte("null")) {
		return domain.MalformedPayload("relay without signal")
	}
	return nil
}

// relayKinds maps each relay event to the signal type it must carry.
var relayKinds = map[EventName]string{
	EvRelayOffer:     "offer",
	EvRelayAnswer:    "answer",
	EvRelayCandidate: "candidate",
}

// checkSignal verifies signal is a well-formed negotiation message of the given kind.
func checkSignal(kind string, signal json.RawMessage) error {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(signal, &head); err != nil {
		return domain.MalformedPayload("signal is not an object").WithCause(err)
	}
	if head.Type != kind {
		return domain.MalformedPayload("signal type %q does not match %s", head.Type, kind).
			WithDetail("want", kind).
			WithDetail("got", head.Type)
	}

	switch kind {
	case "offer", "answer":
		var desc webrtc.SessionDescription
		if err := json.Unmarshal(signal, &desc); err != nil {
			return domain.MalformedPayload("bad session description").WithCause(err)
		}
		if desc.SDP == "" {
			return domain.MalformedPayload("%s without sdp", kind)
		}
	case "candidate":
		var body struct {
			Candidate json.RawMessage `json:"candidate"`
		}
		if err := json.Unmarshal(signal, &body); err != nil || len(body.Candidate) == 0 {
			return domain.MalformedPayload("candidate signal without candidate")
		}
		// Either {candidate:"...", sdpMid, ...} or {candidate:{candidate:"...", ...}}.
		target := signal
		if bytes.HasPrefix(bytes.TrimSpace(body.Candidate), []byte("{")) {
			target = body.Candidate
		}
		var init webrtc.ICECandidateInit
		if err := json.Unmarshal(target, &init); err != nil {
			return domain.MalformedPayload("bad ICE candidate").WithCause(err)
		}
	}
	return nil
}
