// Package reconcile drives room metadata and agent dispatch toward the
// settings a caller asked for. Dispatch restarts are conditional: a dispatch
// whose observed metadata already matches the desired metadata is left
// alone, and a room with live human participants is never restarted out
// from under them unless the caller forces it.
package reconcile

import (
	"context"
	"log/slog"
	"strings"

	"github.com/owui-labs/voicegate/pkg/core"
	"github.com/owui-labs/voicegate/pkg/room"
)

type Config struct {
	Client              room.Client
	AgentName           string
	AgentIdentityPrefix string
	Logger              *slog.Logger
}

type Reconciler struct {
	client              room.Client
	agentName           string
	agentIdentityPrefix string
	logger              *slog.Logger
}

func New(cfg Config) *Reconciler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		client:              cfg.Client,
		agentName:           cfg.AgentName,
		agentIdentityPrefix: cfg.AgentIdentityPrefix,
		logger:              logger,
	}
}

// Result reports what a reconciliation pass did.
type Result struct {
	Room      string
	Metadata  string
	Restarted bool
}

// Apply reconciles an existing room to the desired metadata on behalf of
// callerIdentity. The room must exist. When a restart is needed and another
// human is connected, Apply refuses with a conflict unless force is set.
func (r *Reconciler) Apply(ctx context.Context, roomName, metadata, callerIdentity string, force bool) (Result, error) {
	existing, err := r.findRoom(ctx, roomName)
	if err != nil {
		return Result{}, err
	}
	if existing == nil {
		return Result{}, core.NewNotFoundError("room not found: " + roomName)
	}
	return r.reconcile(ctx, *existing, metadata, callerIdentity, force)
}

// Seed reconciles a room as a side effect of minting a grant. The room may
// not exist yet, and any failure here must not block the grant, so Seed
// only logs problems. Occupied rooms are skipped rather than conflicted.
func (r *Reconciler) Seed(ctx context.Context, roomName, metadata string) {
	existing, err := r.findRoom(ctx, roomName)
	if err != nil {
		r.logger.Warn("seed reconcile: list rooms failed", "room", roomName, "error", err)
		return
	}
	if existing == nil {
		// Room is created on join; its configuration carries the dispatch.
		return
	}
	if _, err := r.reconcile(ctx, *existing, metadata, "", false); err != nil {
		r.logger.Warn("seed reconcile failed", "room", roomName, "error", err)
	}
}

func (r *Reconciler) findRoom(ctx context.Context, roomName string) (*room.Room, error) {
	rooms, err := r.client.ListRooms(ctx, []string{roomName})
	if err != nil {
		return nil, err
	}
	for i := range rooms {
		if rooms[i].Name == roomName {
			return &rooms[i], nil
		}
	}
	return nil, nil
}

func (r *Reconciler) reconcile(ctx context.Context, existing room.Room, metadata, callerIdentity string, force bool) (Result, error) {
	roomName := existing.Name

	// Metadata is safe to update live; write it unconditionally so the
	// stale check below always compares against the desired state.
	if err := r.client.UpdateRoomMetadata(ctx, roomName, metadata); err != nil {
		return Result{}, err
	}
	r.logger.Info("room metadata updated", "room", roomName, "bytes", len(metadata))

	dispatches, err := r.client.ListDispatches(ctx, roomName)
	if err != nil {
		return Result{}, err
	}
	stale := r.staleDispatches(dispatches, metadata)
	if len(stale) == 0 && r.hasAgentDispatch(dispatches) {
		return Result{Room: roomName, Metadata: metadata}, nil
	}

	occupied, err := r.occupiedBy(ctx, roomName, callerIdentity)
	if err != nil {
		return Result{}, err
	}
	if occupied != "" && !force {
		if callerIdentity == "" {
			r.logger.Info("skipping agent restart, room occupied",
				"room", roomName, "participant", occupied)
			return Result{Room: roomName, Metadata: metadata}, nil
		}
		return Result{}, core.NewConflictError("room is occupied by another participant; retry with force to restart the agent")
	}

	for _, d := range stale {
		if err := r.client.DeleteDispatch(ctx, d.ID, roomName); err != nil {
			return Result{}, err
		}
	}
	if _, err := r.client.CreateDispatch(ctx, r.agentName, roomName, ""); err != nil {
		return Result{}, err
	}
	r.logger.Info("agent dispatch restarted", "room", roomName, "removed", len(stale))
	return Result{Room: roomName, Metadata: metadata, Restarted: true}, nil
}

// staleDispatches returns this agent's dispatches whose jobs observed a
// different room metadata than the one just written. A dispatch with no
// jobs yet is treated as current.
func (r *Reconciler) staleDispatches(dispatches []room.AgentDispatch, metadata string) []room.AgentDispatch {
	var stale []room.AgentDispatch
	for _, d := range dispatches {
		if d.AgentName != r.agentName {
			continue
		}
		for _, job := range d.Jobs {
			if job.RoomMetadata != metadata {
				stale = append(stale, d)
				break
			}
		}
	}
	return stale
}

func (r *Reconciler) hasAgentDispatch(dispatches []room.AgentDispatch) bool {
	for _, d := range dispatches {
		if d.AgentName == r.agentName {
			return true
		}
	}
	return false
}

// occupiedBy returns the identity of a connected human other than the
// caller, or "" when the room only holds agents (and the caller).
func (r *Reconciler) occupiedBy(ctx context.Context, roomName, callerIdentity string) (string, error) {
	participants, err := r.client.ListParticipants(ctx, roomName)
	if err != nil {
		return "", err
	}
	for _, p := range participants {
		if strings.HasPrefix(p.Identity, r.agentIdentityPrefix) {
			continue
		}
		if callerIdentity != "" && p.Identity == callerIdentity {
			continue
		}
		return p.Identity, nil
	}
	return "", nil
}
