package domain

import "fmt"

// Role partitions connections into the two rooms. It is fixed for a connection's lifetime.
type Role string

const (
	RoleObserver    Role = "observer"
	RoleBroadcaster Role = "broadcaster"
)

type RoomName string

const (
	RoomObservers    RoomName = "observers"
	RoomBroadcasters RoomName = "broadcasters"
)

// Room is the role-partitioned group the role is placed in.
func (r Role) Room() RoomName {
	if r == RoleObserver {
		return RoomObservers
	}
	return RoomBroadcasters
}

func (r Role) Valid() bool {
	return r == RoleObserver || r == RoleBroadcaster
}

// RoleFor derives the role from the directory privilege. Client input is never consulted.
func RoleFor(p Privilege) (Role, error) {
	switch p {
	case PrivilegeAdmin:
		return RoleObserver, nil
	case PrivilegeParticipant:
		return RoleBroadcaster, nil
	default:
		return "", fmt.Errorf("no role for privilege %q", p)
	}
}
