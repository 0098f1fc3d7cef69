package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvent_RaiseInSubscriptionOrder(t *testing.T) {
	var e Event[int]
	var got []string
	e.AddListener(func(v int) { got = append(got, "first") })
	e.AddListener(func(v int) { got = append(got, "second") })

	e.Raise(1)

	assert.Equal(t, []string{"first", "second"}, got)
}

func TestEvent_RemoveListener(t *testing.T) {
	var e Event[string]
	calls := 0
	remove := e.AddListener(func(string) { calls++ })
	e.AddListener(func(string) {})

	e.Raise("a")
	remove()
	remove()
	e.Raise("b")

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, e.NumberOfListeners())
}

func TestEvent_ListenerAddedDuringRaise(t *testing.T) {
	var e Event[int]
	late := 0
	e.AddListener(func(int) {
		e.AddListener(func(int) { late++ })
	})

	e.Raise(1)
	assert.Equal(t, 0, late, "new listener waits for the next raise")

	e.Raise(2)
	assert.Equal(t, 1, late)
}
