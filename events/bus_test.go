package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inbox struct {
	id  string
	got []Event
}

func (i *inbox) ObserverID() string { return i.id }
func (i *inbox) Notify(ev Event)    { i.got = append(i.got, ev) }

func TestBus_DeliversToRecipient(t *testing.T) {
	alice := &inbox{id: "alice"}
	dir := DirectoryFunc(func(id string) (Observer, bool) {
		if id == "alice" {
			return alice, true
		}
		return nil, false
	})
	bus := NewBus(dir, nil)

	bus.Emit(Event{Type: CommentCreated, RecipientID: "alice", SubjectID: "p1", Message: "hi"})
	bus.Emit(Event{Type: CommentCreated, RecipientID: "nobody", SubjectID: "p1"})

	require.Len(t, alice.got, 1)
	assert.Equal(t, "hi", alice.got[0].Message)
}

func TestBus_SubjectSubscribersAndDedup(t *testing.T) {
	alice := &inbox{id: "alice"}
	bob := &inbox{id: "bob"}
	dir := DirectoryFunc(func(id string) (Observer, bool) { return alice, id == "alice" })
	bus := NewBus(dir, nil)

	bus.Subscribe("p1", alice)
	bus.Subscribe("p1", bob)
	bus.Subscribe("p1", bob)
	assert.Equal(t, 3, bus.Subscribers("p1"))

	var hooked []int
	bus.Use(func(_ Event, n int) { hooked = append(hooked, n) })

	bus.Emit(Event{Type: ReplyCreated, RecipientID: "alice", SubjectID: "p1"})
	bus.Emit(Event{Type: ReplyCreated, SubjectID: "p2"})

	assert.Len(t, alice.got, 1)
	assert.Len(t, bob.got, 1)
	assert.Equal(t, []int{2, 0}, hooked)
}

func TestBus_IgnoresEmptySubscriptions(t *testing.T) {
	bus := NewBus(nil, nil)
	bus.Subscribe("", &inbox{id: "x"})
	bus.Subscribe("p", nil)
	assert.Equal(t, 0, bus.Subscribers(""))
	assert.Equal(t, 0, bus.Subscribers("p"))
}
