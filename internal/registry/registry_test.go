package registry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(ps []Participant) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestJoinReturnsPreviousOccupantsInOrder(t *testing.T) {
	r := New()

	assert.Empty(t, r.Join("standup", Participant{ID: "a"}))
	assert.Equal(t, []string{"a"}, ids(r.Join("standup", Participant{ID: "b"})))
	assert.Equal(t, []string{"a", "b"}, ids(r.Join("standup", Participant{ID: "c"})))

	// other rooms are independent
	assert.Empty(t, r.Join("retro", Participant{ID: "d"}))
	assert.Equal(t, 2, r.Rooms())
}

func TestLeaveExcludesDepartedParticipants(t *testing.T) {
	r := New()
	r.Join("standup", Participant{ID: "a"})
	r.Join("standup", Participant{ID: "b"})
	r.Join("standup", Participant{ID: "c"})

	room, remaining, ok := r.Leave("b")
	require.True(t, ok)
	assert.Equal(t, "standup", room)
	assert.Equal(t, []string{"a", "c"}, ids(remaining))

	assert.Equal(t, []string{"a", "c"}, ids(r.Join("standup", Participant{ID: "d"})))
}

func TestLeaveUnknownIsNoop(t *testing.T) {
	r := New()
	_, _, ok := r.Leave("ghost")
	assert.False(t, ok)
}

func TestEmptyRoomIsRemoved(t *testing.T) {
	r := New()
	r.Join("standup", Participant{ID: "a"})
	r.Leave("a")

	assert.Equal(t, 0, r.Rooms())
	assert.Empty(t, r.Occupants("standup"))
	_, ok := r.RoomOf("a")
	assert.False(t, ok)
}

func TestJoinMovesParticipantBetweenRooms(t *testing.T) {
	r := New()
	r.Join("standup", Participant{ID: "a"})
	r.Join("standup", Participant{ID: "b"})
	r.Join("retro", Participant{ID: "a"})

	assert.Equal(t, []string{"b"}, ids(r.Occupants("standup")))
	room, ok := r.RoomOf("a")
	require.True(t, ok)
	assert.Equal(t, "retro", room)
}

func TestSnapshotIsNotAliased(t *testing.T) {
	r := New()
	r.Join("standup", Participant{ID: "a"})
	snapshot := r.Join("standup", Participant{ID: "b"})
	r.Leave("a")
	r.Join("standup", Participant{ID: "c"})

	assert.Equal(t, []string{"a"}, ids(snapshot))
}

// Every pair of concurrent joiners must discover each other: for each pair,
// exactly one of the two sees the other in its snapshot.
func TestConcurrentJoinersDiscoverEachOther(t *testing.T) {
	const n = 64
	r := New()

	snapshots := make([][]Participant, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			snapshots[i] = r.Join("standup", Participant{ID: fmt.Sprintf("p%d", i)})
		}(i)
	}
	wg.Wait()

	seen := make([]map[string]bool, n)
	for i, s := range snapshots {
		seen[i] = make(map[string]bool)
		for _, p := range s {
			seen[i][p.ID] = true
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			a, b := fmt.Sprintf("p%d", i), fmt.Sprintf("p%d", j)
			assert.True(t, seen[i][b] != seen[j][a], "%s and %s did not discover each other exactly once", a, b)
		}
	}
	assert.Len(t, r.Occupants("standup"), n)
}

type recordingMirror struct {
	mu     sync.Mutex
	events []string
}

func (m *recordingMirror) Added(roomID string, p Participant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, "+"+roomID+"/"+p.ID)
}

func (m *recordingMirror) Removed(roomID string, participantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, "-"+roomID+"/"+participantID)
}

func TestMirrorSeesEveryChange(t *testing.T) {
	m := &recordingMirror{}
	r := New()
	r.SetMirror(m)

	r.Join("standup", Participant{ID: "a"})
	r.Join("retro", Participant{ID: "a"})
	r.Leave("a")

	assert.Equal(t, []string{"+standup/a", "-standup/a", "+retro/a", "-retro/a"}, m.events)
}

type stallingMirror struct {
	entered chan struct{}
	release chan struct{}
}

func (m *stallingMirror) Added(string, Participant) {
	m.entered <- struct{}{}
	<-m.release
}

func (m *stallingMirror) Removed(string, string) {}

func TestSlowMirrorDoesNotHoldTheLock(t *testing.T) {
	m := &stallingMirror{entered: make(chan struct{}), release: make(chan struct{})}
	r := New()
	r.SetMirror(m)

	joined := make(chan struct{})
	go func() {
		defer close(joined)
		r.Join("standup", Participant{ID: "a"})
	}()
	<-m.entered

	read := make(chan []Participant)
	go func() {
		r.Occupants("other-room")
		read <- r.Occupants("standup")
	}()

	select {
	case occupants := <-read:
		assert.Equal(t, []string{"a"}, ids(occupants))
	case <-time.After(time.Second):
		t.Fatal("registry readers blocked behind the mirror")
	}

	close(m.release)
	<-joined
}
