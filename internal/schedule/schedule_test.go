package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunDueOrdersByTime(t *testing.T) {
	s := New()
	var got []int
	s.At(30*time.Millisecond, func(time.Duration) { got = append(got, 3) })
	s.At(10*time.Millisecond, func(time.Duration) { got = append(got, 1) })
	s.At(20*time.Millisecond, func(time.Duration) { got = append(got, 2) })

	assert.Equal(t, 0, s.RunDue(5*time.Millisecond))
	assert.Equal(t, 2, s.RunDue(20*time.Millisecond))
	assert.Equal(t, []int{1, 2}, got)
	assert.Equal(t, 1, s.Len())

	next, ok := s.Next()
	assert.True(t, ok)
	assert.Equal(t, 30*time.Millisecond, next)

	s.RunDue(time.Second)
	assert.Equal(t, []int{1, 2, 3}, got)
	_, ok = s.Next()
	assert.False(t, ok)
}

func TestEqualTimesFireInInsertionOrder(t *testing.T) {
	s := New()
	var got []int
	for i := 0; i < 50; i++ {
		i := i
		s.At(time.Second, func(time.Duration) { got = append(got, i) })
	}
	s.RunDue(time.Second)
	for i, v := range got {
		if v != i {
			t.Fatalf("position %d fired %d", i, v)
		}
	}
	assert.Len(t, got, 50)
}

func TestActionsScheduledWhileRunning(t *testing.T) {
	s := New()
	var got []string
	s.At(10*time.Millisecond, func(now time.Duration) {
		got = append(got, "first")
		s.At(now, func(time.Duration) { got = append(got, "chained") })
		s.At(now+time.Hour, func(time.Duration) { got = append(got, "later") })
	})
	assert.Equal(t, 2, s.RunDue(15*time.Millisecond))
	assert.Equal(t, []string{"first", "chained"}, got)
	assert.Equal(t, 1, s.Len())
}

func TestActionReceivesDispatchTime(t *testing.T) {
	s := New()
	var seen time.Duration
	s.At(10*time.Millisecond, func(now time.Duration) { seen = now })
	s.RunDue(25 * time.Millisecond)
	assert.Equal(t, 25*time.Millisecond, seen)
}

func TestRunAheadHoldsDueOnlyActions(t *testing.T) {
	s := New()
	var got []string
	s.At(15*time.Millisecond, func(time.Duration) { got = append(got, "ahead") })
	s.AtDue(10*time.Millisecond, func(time.Duration) { got = append(got, "due") })
	s.At(40*time.Millisecond, func(time.Duration) { got = append(got, "later") })

	assert.Equal(t, 1, s.RunAhead(0, 20*time.Millisecond))
	assert.Equal(t, []string{"ahead"}, got)
	assert.Equal(t, 2, s.Len())

	next, ok := s.Next()
	assert.True(t, ok)
	assert.Equal(t, 10*time.Millisecond, next, "held action keeps its place")

	assert.Equal(t, 1, s.RunAhead(10*time.Millisecond, 0))
	assert.Equal(t, []string{"ahead", "due"}, got)
	s.RunAhead(time.Second, 0)
	assert.Equal(t, []string{"ahead", "due", "later"}, got)
}

func TestRunAheadKeepsInsertionOrderOfHeldActions(t *testing.T) {
	s := New()
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		s.AtDue(time.Second, func(time.Duration) { got = append(got, i) })
	}
	s.RunAhead(990*time.Millisecond, 20*time.Millisecond)
	assert.Empty(t, got)
	s.RunAhead(time.Second, 20*time.Millisecond)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}
