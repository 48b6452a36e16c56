package registry

import (
	"log/slog"
	"sync"
)

// Participant is a single occupant of a room.
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	ClientType  string `json:"clientType,omitempty"`
}

// Mirror receives a copy of every membership change. The in-memory registry
// stays authoritative; a mirror only publishes presence elsewhere. Calls are
// made outside the registry lock, in the order the changes happened.
type Mirror interface {
	Added(roomID string, p Participant)
	Removed(roomID string, participantID string)
}

// change is a membership change waiting to be mirrored.
type change struct {
	roomID      string
	participant Participant
	added       bool
}

// Registry tracks which participants are currently joined to each room.
type Registry struct {
	mu sync.RWMutex

	// rooms maps a room ID to its occupants in join order.
	rooms map[string][]Participant

	// memberOf maps a participant ID to the room it is in.
	memberOf map[string]string

	mirror Mirror
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		rooms:    make(map[string][]Participant),
		memberOf: make(map[string]string),
	}
}

// SetMirror attaches a presence mirror. Must be called before the registry
// is shared.
func (r *Registry) SetMirror(m Mirror) {
	r.mirror = m
}

// Join registers p in roomID and returns the other occupants as they were at
// the moment of the join. Registration and the snapshot happen under one lock
// so two concurrent joiners always discover each other.
//
// A participant already in another room is moved; the caller learns about
// the old room through Leave beforehand if it needs to notify anyone.
func (r *Registry) Join(roomID string, p Participant) []Participant {
	r.mu.Lock()

	var changes []change
	if current, ok := r.memberOf[p.ID]; ok {
		changes = append(changes, r.removeLocked(current, p.ID))
	}

	others := make([]Participant, len(r.rooms[roomID]))
	copy(others, r.rooms[roomID])

	r.rooms[roomID] = append(r.rooms[roomID], p)
	r.memberOf[p.ID] = roomID
	changes = append(changes, change{roomID: roomID, participant: p, added: true})

	r.mu.Unlock()

	r.publish(changes...)
	slog.Debug("participant joined room", "room", roomID, "participant", p.ID, "occupants", len(others)+1)
	return others
}

// Leave removes the participant from whatever room it is in. It returns the
// room and its remaining occupants, or ok=false if the participant was not
// in any room.
func (r *Registry) Leave(participantID string) (roomID string, remaining []Participant, ok bool) {
	r.mu.Lock()

	roomID, ok = r.memberOf[participantID]
	if !ok {
		r.mu.Unlock()
		return "", nil, false
	}

	removed := r.removeLocked(roomID, participantID)

	remaining = make([]Participant, len(r.rooms[roomID]))
	copy(remaining, r.rooms[roomID])
	r.mu.Unlock()

	r.publish(removed)
	return roomID, remaining, true
}

// removeLocked drops a participant from a room and deletes the room once it
// is empty. r.mu must be held.
func (r *Registry) removeLocked(roomID, participantID string) change {
	occupants := r.rooms[roomID]
	for i, p := range occupants {
		if p.ID == participantID {
			occupants = append(occupants[:i:i], occupants[i+1:]...)
			break
		}
	}

	if len(occupants) == 0 {
		delete(r.rooms, roomID)
		slog.Debug("room emptied", "room", roomID)
	} else {
		r.rooms[roomID] = occupants
	}
	delete(r.memberOf, participantID)

	return change{roomID: roomID, participant: Participant{ID: participantID}}
}

func (r *Registry) publish(changes ...change) {
	if r.mirror == nil {
		return
	}
	for _, c := range changes {
		if c.added {
			r.mirror.Added(c.roomID, c.participant)
		} else {
			r.mirror.Removed(c.roomID, c.participant.ID)
		}
	}
}

// Occupants returns the participants of a room in join order.
func (r *Registry) Occupants(roomID string) []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	occupants := make([]Participant, len(r.rooms[roomID]))
	copy(occupants, r.rooms[roomID])
	return occupants
}

// RoomOf returns the room a participant is currently in.
func (r *Registry) RoomOf(participantID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roomID, ok := r.memberOf[participantID]
	return roomID, ok
}

// Rooms returns the number of non-empty rooms.
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
