package core

import (
	"sync"
	"time"

	"github.com/dkeye/Multiview/internal/domain"
)

// Session binds an admitted connection's identity and role to its transport endpoint.
// Identity and Role never change after admission.
type Session struct {
	ID         domain.ConnID
	Identity   domain.Identity
	Role       domain.Role
	Signal     SignalConnection
	AdmittedAt time.Time
}

// Recorder is an in-memory SignalConnection. Tests and tools use it in place of a socket.
type Recorder struct {
	mu     sync.Mutex
	frames []Frame
}

func (r *Recorder) TrySend(f Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
	return nil
}

func (r *Recorder) Close() {}

func (r *Recorder) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Frame, len(r.frames))
	copy(out, r.frames)
	return out
}
