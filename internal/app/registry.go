package app

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/vivadesk/examrelay/internal/core"
	"github.com/vivadesk/examrelay/internal/domain"
)

var (
	ErrSessionNotBound = errors.New("session not bound")
	ErrAlreadyInRoom   = errors.New("session already joined another room")
)

type sessionEntry struct {
	Signal core.SignalConnection
	Cancel context.CancelFunc
	RoomID domain.RoomID
	User   *domain.User
}

// Registry tracks which connection belongs to which room.
// All membership changes are serialized by mu; presence events are emitted
// under the same lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
	rooms    core.RoomManager
	presence Presence
}

func NewRegistry(rooms core.RoomManager) *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
		rooms:    rooms,
	}
}

// Bind attaches a freshly opened connection. It is not in any room yet.
func (r *Registry) Bind(sid core.SessionID, signal core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{Signal: signal, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound session")
}

// Join admits sid into roomID. Joining the room it is already in is a no-op;
// joining a different room is rejected with ErrAlreadyInRoom.
func (r *Registry) Join(sid core.SessionID, roomID domain.RoomID, user *domain.User) (core.PublishResult, error) {
	if user == nil || user.ID == "" {
		return core.PublishResult{}, domain.ErrUserIDEmpty
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[sid]
	if !ok {
		return core.PublishResult{}, ErrSessionNotBound
	}
	if entry.RoomID != "" {
		if entry.RoomID == roomID {
			log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(roomID)).Msg("duplicate join ignored")
			return core.PublishResult{}, nil
		}
		return core.PublishResult{}, ErrAlreadyInRoom
	}

	room := r.rooms.GetOrCreate(roomID)
	room.AddMember(sid, core.NewMemberSession(domain.NewMember(user), entry.Signal))
	entry.RoomID = roomID
	entry.User = user
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(roomID)).Str("user", string(user.ID)).Msg("joined room")

	return r.presence.Joined(room, sid, user), nil
}

// Leave removes sid from its room. Unknown sessions and sessions outside any
// room are a no-op, since disconnects race with explicit leaves.
func (r *Registry) Leave(sid core.SessionID) (domain.RoomID, core.PublishResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(sid)
}

func (r *Registry) leaveLocked(sid core.SessionID) (domain.RoomID, core.PublishResult, bool) {
	entry, ok := r.sessions[sid]
	if !ok || entry.RoomID == "" {
		return "", core.PublishResult{}, false
	}
	roomID, user := entry.RoomID, entry.User
	entry.RoomID, entry.User = "", nil

	room, ok := r.rooms.Get(roomID)
	if !ok {
		return roomID, core.PublishResult{}, true
	}
	room.RemoveMember(sid)
	res := r.presence.Left(room, sid, user)
	if r.rooms.RemoveIfEmpty(roomID) {
		log.Info().Str("module", "app.registry").Str("room", string(roomID)).Msg("room removed")
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(roomID)).Msg("left room")
	return roomID, res, true
}

// Unbind leaves the room (if any) and forgets the connection. Idempotent.
func (r *Registry) Unbind(sid core.SessionID) (domain.RoomID, core.PublishResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	roomID, res, left := r.leaveLocked(sid)
	if _, ok := r.sessions[sid]; ok {
		delete(r.sessions, sid)
		log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
	}
	return roomID, res, left
}

func (r *Registry) RoomOf(sid core.SessionID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[sid]
	if !ok || entry.RoomID == "" {
		return "", false
	}
	return entry.RoomID, true
}

// withSharedRoom runs fn with sid's room only if sid is currently in roomID.
// Membership cannot change while fn runs.
func (r *Registry) withSharedRoom(sid core.SessionID, roomID domain.RoomID, fn func(core.RoomService)) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[sid]
	if !ok || entry.RoomID == "" || entry.RoomID != roomID {
		return false
	}
	room, ok := r.rooms.Get(roomID)
	if !ok || !room.Has(sid) {
		return false
	}
	fn(room)
	return true
}

func (r *Registry) Members(roomID domain.RoomID) []core.MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms.Get(roomID)
	if !ok {
		return nil
	}
	return room.MembersSnapshot()
}

func (r *Registry) Rooms() []core.RoomInfo {
	return r.rooms.List()
}

// Cancel stops the connection's pumps; its disconnect path then unbinds it.
func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}

func (r *Registry) Room(roomID domain.RoomID) (core.RoomService, bool) {
	return r.rooms.Get(roomID)
}
