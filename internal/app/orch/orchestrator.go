package orch

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/dkeye/Multiview/internal/app"
	"github.com/dkeye/Multiview/internal/core"
	"github.com/dkeye/Multiview/internal/domain"
	"github.com/dkeye/Multiview/internal/metrics"
	"github.com/rs/zerolog/log"
)

// handler reacts to one event from src and returns the messages to deliver.
type handler func(o *Orchestrator, src *core.Session, raw []byte) ([]Outbound, error)

type route struct {
	// role is the role the sender must hold; empty means any.
	role   domain.Role
	handle handler
}

// typed adapts a handler over a decoded payload.
func typed[T payload](fn func(o *Orchestrator, src *core.Session, ev T) ([]Outbound, error)) handler {
	return func(o *Orchestrator, src *core.Session, raw []byte) ([]Outbound, error) {
		ev, err := decode[T](raw)
		if err != nil {
			return nil, err
		}
		return fn(o, src, ev)
	}
}

var table map[EventName]route

func init() {
	table = map[EventName]route{
		EvConnect:          {handle: typed(onConnect)},
		EvDisconnect:       {handle: typed(onDisconnect)},
		EvBroadcasterReady: {role: domain.RoleBroadcaster, handle: typed(onBroadcasterReady)},
		EvStreamAvailable:  {role: domain.RoleBroadcaster, handle: typed(onStreamAvailable)},
		EvStreamStopped:    {role: domain.RoleBroadcaster, handle: typed(onStreamStopped)},
		EvWantConnect:      {role: domain.RoleObserver, handle: typed(onWantConnect)},
		EvRelayOffer:       {handle: relayTo(EvRelayOffer)},
		EvRelayAnswer:      {handle: relayTo(EvRelayAnswer)},
		EvRelayCandidate:   {handle: relayTo(EvRelayCandidate)},
		EvListRequest:      {role: domain.RoleObserver, handle: typed(onListRequest)},
		EvPing:             {handle: typed(onPing)},
		EvWhoAmI:           {handle: typed(onWhoAmI)},
		EvGetDiagnostics:   {role: domain.RoleObserver, handle: typed(onGetDiagnostics)},
		EvCleanupStale:     {role: domain.RoleObserver, handle: typed(onCleanupStale)},
	}
}

// Orchestrator routes events between connections. It owns no state of its own;
// everything lives in the registries it was built with.
type Orchestrator struct {
	Registry *app.Registry
	Streams  *app.Streams
	Graph    *app.Graph
	Metrics  *metrics.Metrics
	Policy   app.Policy
	// MaxStreamAge is what cleanup-stale evicts beyond.
	MaxStreamAge time.Duration

	now func() time.Time
}

func New(reg *app.Registry, streams *app.Streams, graph *app.Graph, m *metrics.Metrics, maxStreamAge time.Duration) *Orchestrator {
	return &Orchestrator{
		Registry:     reg,
		Streams:      streams,
		Graph:        graph,
		Metrics:      m,
		Policy:       app.SimplePolicy{},
		MaxStreamAge: maxStreamAge,
		now:          time.Now,
	}
}

// Dispatch runs one event for src and returns what should be delivered.
// Errors are for logging only; none of them is meant for the sender.
func (o *Orchestrator) Dispatch(src *core.Session, name EventName, raw []byte) ([]Outbound, error) {
	r, ok := table[name]
	if !ok {
		return nil, domain.MalformedPayload("unknown event %q", name)
	}
	if r.role != "" && src.Role != r.role {
		return nil, domain.RoleMismatch("%s requires role %s", name, r.role).
			WithDetail("role", string(src.Role))
	}
	out, err := r.handle(o, src, raw)
	o.observe()
	return out, err
}

// Handle processes one client frame from sid and delivers the result.
func (o *Orchestrator) Handle(sid domain.ConnID, frame []byte) error {
	name, err := envelope(frame)
	if err == nil && name.Lifecycle() {
		err = domain.MalformedPayload("%s cannot be sent by a client", name)
	}
	if err != nil {
		o.report(sid, name, err)
		return err
	}
	return o.run(sid, name, frame)
}

// Connect joins the admitted session to its room.
func (o *Orchestrator) Connect(sid domain.ConnID) error {
	return o.run(sid, EvConnect, nil)
}

// Disconnect is the final event of a connection.
func (o *Orchestrator) Disconnect(sid domain.ConnID) error {
	return o.run(sid, EvDisconnect, nil)
}

func (o *Orchestrator) run(sid domain.ConnID, name EventName, raw []byte) error {
	src, ok := o.Registry.GetSession(sid)
	if !ok {
		err := domain.InvariantViolation("event %s from unbound connection %s", name, sid)
		o.report(sid, name, err)
		return err
	}
	out, err := o.Dispatch(src, name, raw)
	o.report(sid, name, err)
	o.Deliver(out)
	return err
}

func (o *Orchestrator) report(sid domain.ConnID, name EventName, err error) {
	if err == nil {
		o.Metrics.Event(string(name), "ok")
		return
	}
	kind := domain.KindOf(err)
	o.Metrics.Event(string(name), string(kind))
	log.Warn().
		Str("module", "orch").
		Str("sid", string(sid)).
		Str("event", string(name)).
		Str("kind", string(kind)).
		Err(err).
		Msg("event dropped")
}

// Deliver encodes each message and hands it to the target's signal connection.
// Targets that are gone are skipped; backed-up ones are left to the Policy.
func (o *Orchestrator) Deliver(out []Outbound) {
	for _, m := range out {
		sess, ok := o.Registry.GetSession(m.To)
		if !ok || sess.Signal == nil {
			log.Debug().Str("module", "orch").Str("to", string(m.To)).Msg("deliver: target gone")
			continue
		}
		b, err := json.Marshal(m.Msg)
		if err != nil {
			log.Error().Err(err).Str("module", "orch").Msg("deliver: marshal")
			continue
		}
		if err := sess.Signal.TrySend(b); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("to", string(m.To)).Msg("deliver: send failed")
			if errors.Is(err, core.ErrBackpressure) {
				o.onBackPressure(sess)
			}
		}
	}
}

func (o *Orchestrator) onBackPressure(sess *core.Session) {
	if o.Policy == nil {
		return
	}
	switch o.Policy.OnBackPressure(sess) {
	case app.KickMember:
		// the transport's read loop then runs the disconnect flow
		o.Registry.Cancel(sess.ID)
	case app.NoAction:
	}
}

// toRole addresses msg to every current member of role.
func (o *Orchestrator) toRole(role domain.Role, msg any) []Outbound {
	members := o.Registry.Members(role)
	out := make([]Outbound, 0, len(members))
	for _, sid := range members {
		out = append(out, Outbound{To: sid, Msg: msg})
	}
	return out
}

func (o *Orchestrator) observe() {
	if o.Metrics == nil {
		return
	}
	o.Metrics.SetConnections(string(domain.RoleObserver), o.Registry.Count(domain.RoleObserver))
	o.Metrics.SetConnections(string(domain.RoleBroadcaster), o.Registry.Count(domain.RoleBroadcaster))
	o.Metrics.SetEdges(o.Graph.Stats().Edges)
	o.Metrics.SetStreams(o.Streams.Len())
}
