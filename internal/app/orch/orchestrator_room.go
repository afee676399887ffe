package orch

import (
	"github.com/dkeye/Multiview/internal/core"
	"github.com/dkeye/Multiview/internal/domain"
	"github.com/rs/zerolog/log"
)

func onConnect(o *Orchestrator, src *core.Session, _ empty) ([]Outbound, error) {
	if err := o.Registry.Join(src.ID, src.Role); err != nil {
		return nil, err
	}
	if src.Role != domain.RoleObserver {
		return nil, nil
	}
	return []Outbound{{To: src.ID, Msg: newRoster(o.Streams.Snapshot())}}, nil
}

// onDisconnect cleans up in a fixed order: membership, edges, stream. Peers are
// captured first so each gets exactly one peer-lost.
func onDisconnect(o *Orchestrator, src *core.Session, _ empty) ([]Outbound, error) {
	role, joined := o.Registry.RoleOf(src.ID)
	peers := o.Graph.PeersOf(src.ID)
	// Leave comes before Teardown: a peer that links after Teardown already
	// sees sid gone on its recheck and undoes the link itself.
	o.Registry.Leave(src.ID)
	removed := o.Graph.Teardown(src.ID)

	wasAvailable := false
	if joined && role == domain.RoleBroadcaster {
		wasAvailable = o.Streams.MarkUnavailable(src.ID)
	}

	log.Info().
		Str("module", "orch").
		Str("sid", string(src.ID)).
		Str("role", string(src.Role)).
		Int("edges_removed", removed).
		Bool("stream_was_available", wasAvailable).
		Msg("disconnected")

	out := make([]Outbound, 0, len(peers))
	for _, p := range peers {
		out = append(out, Outbound{To: p, Msg: PeerLost{Type: "peer-lost", ConnID: src.ID, Reason: "disconnect"}})
	}
	if joined && role == domain.RoleBroadcaster {
		out = append(out, o.toRole(domain.RoleObserver, PeerLeft{
			Type:               "peer-left",
			ConnID:             src.ID,
			Identity:           src.Identity,
			StreamWasAvailable: wasAvailable,
		})...)
	}
	return out, nil
}

// onBroadcasterReady announces the broadcaster to every observer. The announced
// identity is the one resolved at admission, never the payload.
func onBroadcasterReady(o *Orchestrator, src *core.Session, ev BroadcasterReady) ([]Outbound, error) {
	warnForeignUser(src, string(ev.UserID))
	return o.toRole(domain.RoleObserver, PeerJoined{Type: "peer-joined", ConnID: src.ID, Identity: src.Identity}), nil
}

func onListRequest(o *Orchestrator, src *core.Session, _ empty) ([]Outbound, error) {
	return []Outbound{{To: src.ID, Msg: newRoster(o.Streams.Snapshot())}}, nil
}

func onPing(_ *Orchestrator, src *core.Session, _ empty) ([]Outbound, error) {
	return []Outbound{{To: src.ID, Msg: Pong{Type: "pong"}}}, nil
}

func onWhoAmI(_ *Orchestrator, src *core.Session, _ empty) ([]Outbound, error) {
	return []Outbound{{To: src.ID, Msg: WhoAmI{Type: "whoami", ConnID: src.ID, Role: src.Role, Identity: src.Identity}}}, nil
}

func onGetDiagnostics(o *Orchestrator, src *core.Session, _ empty) ([]Outbound, error) {
	return []Outbound{{To: src.ID, Msg: ConnectionDiagnostics{
		Type:        "connection-diagnostics",
		Connections: o.Graph.Diagnostics(),
		Streams:     o.Streams.Stats(),
		Timestamp:   o.now(),
	}}}, nil
}

func onCleanupStale(o *Orchestrator, src *core.Session, _ empty) ([]Outbound, error) {
	n := o.Streams.EvictStale(o.MaxStreamAge)
	return []Outbound{{To: src.ID, Msg: CleanupCompleted{Type: "cleanup-completed", CleanedStreams: n, Timestamp: o.now()}}}, nil
}

// warnForeignUser logs a payload userId that is not the session's. The session
// identity is announced either way.
func warnForeignUser(src *core.Session, userID string) {
	if userID == "" || userID == src.Identity.ID {
		return
	}
	log.Warn().
		Str("module", "orch").
		Str("sid", string(src.ID)).
		Str("user", src.Identity.ID).
		Str("payload_user", userID).
		Msg("payload userId differs from session user")
}
