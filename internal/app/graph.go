package app

import (
	"sort"
	"sync"
	"time"

	"github.com/dkeye/Multiview/internal/domain"
	"github.com/rs/zerolog/log"
)

const signalHistoryPerPair = 10

type connSet map[domain.ConnID]struct{}

type pairKey struct {
	From domain.ConnID
	To   domain.ConnID
}

// SignalRecord is one diagnostic trace of a relayed negotiation message.
type SignalRecord struct {
	From domain.ConnID `json:"from"`
	To   domain.ConnID `json:"to"`
	Kind string        `json:"type"`
	At   time.Time     `json:"timestamp"`
}

type GraphStats struct {
	Observers            int `json:"totalObservers"`
	Broadcasters         int `json:"totalBroadcasters"`
	Edges                int `json:"totalConnections"`
	SignalHistoryEntries int `json:"signalHistoryEntries"`
}

type GraphDiagnostics struct {
	Stats                  GraphStats                        `json:"stats"`
	ObserverConnections    map[domain.ConnID][]domain.ConnID `json:"observerConnections"`
	BroadcasterConnections map[domain.ConnID][]domain.ConnID `json:"broadcasterConnections"`
	RecentSignals          []SignalRecord                    `json:"recentSignals"`
}

// Graph holds negotiated observer/broadcaster links as two mirrored adjacency maps.
// Every mutation updates both directions under one lock, so readers never see
// a half-removed edge.
type Graph struct {
	mu           sync.RWMutex
	observers    map[domain.ConnID]connSet // observer -> broadcasters
	broadcasters map[domain.ConnID]connSet // broadcaster -> observers
	history      map[pairKey][]SignalRecord
	now          func() time.Time
}

func NewGraph() *Graph {
	return &Graph{
		observers:    make(map[domain.ConnID]connSet),
		broadcasters: make(map[domain.ConnID]connSet),
		history:      make(map[pairKey][]SignalRecord),
		now:          time.Now,
	}
}

// Link adds the edge. Linking an already-linked pair is a no-op; it reports whether
// a new edge was created.
func (g *Graph) Link(observer, broadcaster domain.ConnID) (bool, error) {
	if observer == "" || broadcaster == "" {
		return false, domain.InvariantViolation("link needs two connection ids")
	}
	if observer == broadcaster {
		return false, domain.InvariantViolation("connection %s cannot link to itself", observer)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.observers[observer][broadcaster]; ok {
		return false, nil
	}
	addTo(g.observers, observer, broadcaster)
	addTo(g.broadcasters, broadcaster, observer)
	log.Info().
		Str("module", "app.graph").
		Str("observer", string(observer)).
		Str("broadcaster", string(broadcaster)).
		Int("observer_links", len(g.observers[observer])).
		Int("broadcaster_links", len(g.broadcasters[broadcaster])).
		Msg("link registered")
	return true, nil
}

// Unlink removes the edge if present and reports whether it existed.
func (g *Graph) Unlink(observer, broadcaster domain.ConnID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unlinkLocked(observer, broadcaster)
}

func (g *Graph) unlinkLocked(observer, broadcaster domain.ConnID) bool {
	if _, ok := g.observers[observer][broadcaster]; !ok {
		return false
	}
	removeFrom(g.observers, observer, broadcaster)
	removeFrom(g.broadcasters, broadcaster, observer)
	return true
}

// Teardown removes every edge touching sid, in either role, and purges its signal history.
func (g *Graph) Teardown(sid domain.ConnID) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for b := range g.observers[sid] {
		if g.unlinkLocked(sid, b) {
			removed++
		}
	}
	for o := range g.broadcasters[sid] {
		if g.unlinkLocked(o, sid) {
			removed++
		}
	}
	for k := range g.history {
		if k.From == sid || k.To == sid {
			delete(g.history, k)
		}
	}
	if removed > 0 {
		log.Info().Str("module", "app.graph").Str("sid", string(sid)).Int("removed", removed).Msg("teardown")
	}
	return removed
}

// PeersOf returns the opposite-role connections currently linked to sid, sorted.
func (g *Graph) PeersOf(sid domain.ConnID) []domain.ConnID {
	g.mu.RLock()
	out := make([]domain.ConnID, 0, len(g.observers[sid])+len(g.broadcasters[sid]))
	for b := range g.observers[sid] {
		out = append(out, b)
	}
	for o := range g.broadcasters[sid] {
		out = append(out, o)
	}
	g.mu.RUnlock()
	sortIDs(out)
	return out
}

func (g *Graph) HasLink(observer, broadcaster domain.ConnID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.observers[observer][broadcaster]
	return ok
}

// RecordSignal keeps the last few relayed messages per ordered pair.
func (g *Graph) RecordSignal(from, to domain.ConnID, kind string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	k := pairKey{From: from, To: to}
	h := append(g.history[k], SignalRecord{From: from, To: to, Kind: kind, At: g.now()})
	if len(h) > signalHistoryPerPair {
		h = append([]SignalRecord(nil), h[len(h)-signalHistoryPerPair:]...)
	}
	g.history[k] = h
}

// ForgetSignals drops the history of one ordered pair.
func (g *Graph) ForgetSignals(from, to domain.ConnID) {
	g.mu.Lock()
	delete(g.history, pairKey{From: from, To: to})
	g.mu.Unlock()
}

// RecentSignals returns up to limit records, newest first, drawing at most limit per pair.
func (g *Graph) RecentSignals(limit int) []SignalRecord {
	if limit <= 0 {
		return nil
	}
	g.mu.RLock()
	all := make([]SignalRecord, 0)
	for _, h := range g.history {
		start := 0
		if len(h) > limit {
			start = len(h) - limit
		}
		all = append(all, h[start:]...)
	}
	g.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool { return all[i].At.After(all[j].At) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

func (g *Graph) Stats() GraphStats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.statsLocked()
}

func (g *Graph) statsLocked() GraphStats {
	edges := 0
	for _, set := range g.observers {
		edges += len(set)
	}
	return GraphStats{
		Observers:            len(g.observers),
		Broadcasters:         len(g.broadcasters),
		Edges:                edges,
		SignalHistoryEntries: len(g.history),
	}
}

func (g *Graph) Diagnostics() GraphDiagnostics {
	g.mu.RLock()
	d := GraphDiagnostics{
		Stats:                  g.statsLocked(),
		ObserverConnections:    flatten(g.observers),
		BroadcasterConnections: flatten(g.broadcasters),
	}
	g.mu.RUnlock()
	d.RecentSignals = g.RecentSignals(5)
	return d
}

// Symmetric reports whether both adjacency directions agree. Used by tests and diagnostics.
func (g *Graph) Symmetric() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for o, set := range g.observers {
		if len(set) == 0 {
			return false
		}
		for b := range set {
			if _, ok := g.broadcasters[b][o]; !ok {
				return false
			}
		}
	}
	for b, set := range g.broadcasters {
		if len(set) == 0 {
			return false
		}
		for o := range set {
			if _, ok := g.observers[o][b]; !ok {
				return false
			}
		}
	}
	return true
}

func addTo(m map[domain.ConnID]connSet, key, val domain.ConnID) {
	set, ok := m[key]
	if !ok {
		set = make(connSet)
		m[key] = set
	}
	set[val] = struct{}{}
}

func removeFrom(m map[domain.ConnID]connSet, key, val domain.ConnID) {
	set, ok := m[key]
	if !ok {
		return
	}
	delete(set, val)
	if len(set) == 0 {
		delete(m, key)
	}
}

func flatten(m map[domain.ConnID]connSet) map[domain.ConnID][]domain.ConnID {
	out := make(map[domain.ConnID][]domain.ConnID, len(m))
	for k, set := range m {
		ids := make([]domain.ConnID, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sortIDs(ids)
		out[k] = ids
	}
	return out
}

func sortIDs(ids []domain.ConnID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
