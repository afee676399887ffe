package app

import "github.com/dkeye/Multiview/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
)

// Policy decides what happens to a connection whose outbound queue is full.
type Policy interface {
	OnBackPressure(sess *core.Session) BackpressureAction
}

// SimplePolicy drops any consumer that cannot keep up; the client reconnects.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(*core.Session) BackpressureAction {
	return KickMember
}
