package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscribeBeforeFirstPublish(t *testing.T) {
	s := New[int]()

	var got []int
	s.Subscribe(func(v int) { got = append(got, v) })
	assert.Empty(t, got, "no value published yet, nothing delivered")

	s.Publish(1)
	s.Publish(2)
	assert.Equal(t, []int{1, 2}, got)
}

func TestSubscribeReceivesCurrentValueSynchronously(t *testing.T) {
	s := New[string]()
	s.Publish("snapshot")

	var got []string
	s.Subscribe(func(v string) { got = append(got, v) })
	assert.Equal(t, []string{"snapshot"}, got,
		"subscriber must see the latest value before Subscribe returns")
}

func TestNotificationOrderFollowsRegistration(t *testing.T) {
	s := New[int]()

	var order []string
	s.Subscribe(func(int) { order = append(order, "first") })
	s.Subscribe(func(int) { order = append(order, "second") })
	s.Subscribe(func(int) { order = append(order, "third") })

	s.Publish(42)
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestUnsubscribeIsImmediateAndIdempotent(t *testing.T) {
	s := New[int]()

	var a, b int
	cancelA := s.Subscribe(func(v int) { a = v })
	s.Subscribe(func(v int) { b = v })

	s.Publish(1)
	cancelA()
	s.Publish(2)

	assert.Equal(t, 1, a, "unsubscribed callback no longer fires")
	assert.Equal(t, 2, b)

	// Double-unsubscribe must be harmless and not disturb others.
	cancelA()
	s.Publish(3)
	assert.Equal(t, 3, b)
	assert.Equal(t, 1, s.SubscriberCount())
}

func TestLatest(t *testing.T) {
	s := New[float64]()

	_, ok := s.Latest()
	assert.False(t, ok)

	s.Publish(0.5)
	s.Publish(0.7)
	v, ok := s.Latest()
	assert.True(t, ok)
	assert.Equal(t, 0.7, v)
}

func TestPublishWithNoSubscribers(t *testing.T) {
	s := New[int]()
	s.Publish(7) // must not panic
	v, ok := s.Latest()
	assert.True(t, ok)
	assert.Equal(t, 7, v)
}
