// Package room is the control-plane boundary to the room/dispatch substrate:
// listing rooms and participants, writing room metadata, managing agent
// dispatches, and minting access grants. The substrate itself is external;
// this package only speaks its API surface.
package room

import "context"

// Room is one transient session container.
type Room struct {
	Name            string `json:"name"`
	Metadata        string `json:"metadata,omitempty"`
	NumParticipants int    `json:"num_participants,omitempty"`
	CreationTime    int64  `json:"creation_time,omitempty"`
}

// ParticipantInfo identifies one participant joined to a room.
type ParticipantInfo struct {
	Identity string `json:"identity"`
	Name     string `json:"name,omitempty"`
	Metadata string `json:"metadata,omitempty"`
}

// DispatchJob is one running agent job under a dispatch. RoomMetadata is
// the room metadata the job observed when it started; the job never
// re-reads it, which is what makes a dispatch go stale.
type DispatchJob struct {
	ID           string `json:"id"`
	RoomMetadata string `json:"room_metadata,omitempty"`
}

// AgentDispatch is a declaration causing an agent process to be launched
// into a room, together with the jobs running under it.
type AgentDispatch struct {
	ID        string        `json:"id"`
	AgentName string        `json:"agent_name"`
	Room      string        `json:"room"`
	Metadata  string        `json:"metadata,omitempty"`
	Jobs      []DispatchJob `json:"jobs,omitempty"`
}

// Client is the substrate API the reconciler drives. Implementations must
// be safe for concurrent use.
type Client interface {
	// ListRooms returns the rooms matching the given names. An empty result
	// means none of the named rooms exist.
	ListRooms(ctx context.Context, names []string) ([]Room, error)

	// UpdateRoomMetadata replaces the metadata of an existing room.
	UpdateRoomMetadata(ctx context.Context, room, metadata string) error

	// ListParticipants returns the participants currently joined to a room.
	ListParticipants(ctx context.Context, room string) ([]ParticipantInfo, error)

	// ListDispatches returns the agent dispatches declared for a room.
	ListDispatches(ctx context.Context, room string) ([]AgentDispatch, error)

	// CreateDispatch declares a fresh agent dispatch for a room.
	CreateDispatch(ctx context.Context, agentName, room, metadata string) (AgentDispatch, error)

	// DeleteDispatch removes a dispatch, terminating its jobs.
	DeleteDispatch(ctx context.Context, dispatchID, room string) error
}
