package orch

import (
	"github.com/dkeye/Multiview/internal/core"
	"github.com/dkeye/Multiview/internal/domain"
	"github.com/rs/zerolog/log"
)

func onStreamAvailable(o *Orchestrator, src *core.Session, ev StreamAvailablePayload) ([]Outbound, error) {
	warnForeignUser(src, string(ev.UserID))
	if err := o.Streams.MarkAvailable(src.ID, src.Identity); err != nil {
		return nil, err
	}
	return o.toRole(domain.RoleObserver, StreamAvailable{Type: "stream-available", ConnID: src.ID, Identity: src.Identity}), nil
}

// onStreamStopped leaves graph edges alone; they go only on disconnect.
func onStreamStopped(o *Orchestrator, src *core.Session, _ empty) ([]Outbound, error) {
	if !o.Streams.MarkUnavailable(src.ID) {
		return nil, nil
	}
	return o.toRole(domain.RoleObserver, StreamStopped{Type: "stream-stopped", ConnID: src.ID, Identity: src.Identity}), nil
}

func onWantConnect(o *Orchestrator, src *core.Session, ev WantConnect) ([]Outbound, error) {
	if role, ok := o.Registry.RoleOf(ev.TargetConnID); !ok || role != domain.RoleBroadcaster {
		return nil, domain.TargetNotFound("no broadcaster %s", ev.TargetConnID).
			WithDetail("target", string(ev.TargetConnID))
	}
	created, err := o.Graph.Link(src.ID, ev.TargetConnID)
	if err != nil {
		return nil, err
	}
	// the target may have left between the lookup and the link
	if !o.present(ev.TargetConnID) {
		if created {
			o.Graph.Unlink(src.ID, ev.TargetConnID)
		}
		return nil, domain.TargetNotFound("broadcaster %s left", ev.TargetConnID).
			WithDetail("target", string(ev.TargetConnID))
	}
	return []Outbound{{To: ev.TargetConnID, Msg: ConnectRequest{Type: "connect-request", FromConnID: src.ID}}}, nil
}

// relayTo forwards a negotiation message to its target unchanged.
func relayTo(name EventName) handler {
	kind := relayKinds[name]
	return typed(func(o *Orchestrator, src *core.Session, ev Relay) ([]Outbound, error) {
		if err := checkSignal(kind, ev.Signal); err != nil {
			return nil, err
		}
		if ev.TargetConnID == src.ID {
			return nil, domain.InvariantViolation("connection %s relaying to itself", src.ID)
		}
		if _, ok := o.Registry.RoleOf(ev.TargetConnID); !ok {
			return nil, domain.TargetNotFound("relay target %s not connected", ev.TargetConnID).
				WithDetail("target", string(ev.TargetConnID))
		}
		o.Graph.RecordSignal(src.ID, ev.TargetConnID, kind)
		if !o.present(ev.TargetConnID) {
			o.Graph.ForgetSignals(src.ID, ev.TargetConnID)
			return nil, domain.TargetNotFound("relay target %s left", ev.TargetConnID).
				WithDetail("target", string(ev.TargetConnID))
		}
		log.Debug().
			Str("module", "orch").
			Str("from", string(src.ID)).
			Str("to", string(ev.TargetConnID)).
			Str("kind", kind).
			Msg("relayed signal")
		return []Outbound{{To: ev.TargetConnID, Msg: SignalReceived{Type: "signal-received", Signal: ev.Signal, FromConnID: src.ID}}}, nil
	})
}

func (o *Orchestrator) present(sid domain.ConnID) bool {
	_, ok := o.Registry.RoleOf(sid)
	return ok
}
