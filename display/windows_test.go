package display

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testWindow struct {
	id uint32
}

func (w *testWindow) ID() uint32 { return w.id }

type countingQuitter struct {
	quits int
}

func (q *countingQuitter) Quit() { q.quits++ }

func newTestConnection(q Quitter) *Connection {
	return &Connection{opts: Options{Quitter: q}}
}

func TestAddWindowIgnoresNil(t *testing.T) {
	c := newTestConnection(nil)

	c.AddWindow(nil)
	assert.Empty(t, c.Windows())
	assert.False(t, c.NeedsFlush())

	w := &testWindow{id: 1}
	c.AddWindow(w)
	assert.True(t, c.NeedsFlush())
	assert.True(t, c.IsWindow(w))
}

func TestAddWindowKeepsDuplicates(t *testing.T) {
	q := &countingQuitter{}
	c := newTestConnection(q)
	w := &testWindow{id: 1}

	c.AddWindow(w)
	c.AddWindow(w)
	require.Len(t, c.Windows(), 2)

	c.RemoveWindow(w)
	assert.True(t, c.IsWindow(w), "one entry should remain")
	assert.Equal(t, 0, q.quits)

	c.RemoveWindow(w)
	assert.False(t, c.IsWindow(w))
	assert.Equal(t, 1, q.quits)
}

func TestIsWindowTracksMembership(t *testing.T) {
	c := newTestConnection(&countingQuitter{})
	windows := []*testWindow{{id: 1}, {id: 2}, {id: 3}, {id: 4}}
	added := make(map[*testWindow]int)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		w := windows[rng.Intn(len(windows))]
		if rng.Intn(2) == 0 {
			c.AddWindow(w)
			added[w]++
		} else {
			c.RemoveWindow(w)
			if added[w] > 0 {
				added[w]--
			}
		}

		for _, win := range windows {
			require.Equal(t, added[win] > 0, c.IsWindow(win), "step %d, window %d", i, win.id)
		}
	}
}

func TestRemoveWindowDropsItsTasks(t *testing.T) {
	c := newTestConnection(nil)
	w1 := &testWindow{id: 1}
	w2 := &testWindow{id: 2}
	c.AddWindow(w1)
	c.AddWindow(w2)

	var ran []string
	c.AddTask(NewTask(w1, func() { ran = append(ran, "w1-a") }))
	c.AddTask(NewTask(w2, func() { ran = append(ran, "w2") }))
	c.AddTask(NewTask(w1, func() { ran = append(ran, "w1-b") }))

	c.RemoveWindow(w1)
	assert.Equal(t, 1, c.PendingTasks())

	assert.True(t, c.ProcessTasks())
	assert.Equal(t, []string{"w2"}, ran)
}

func TestAddTaskIgnoresNil(t *testing.T) {
	c := newTestConnection(nil)

	c.AddTask(nil)
	assert.Equal(t, 0, c.PendingTasks())
	assert.False(t, c.NeedsFlush(), "tasks do not set the flush flag")
}

func TestProcessTasksRunsInOrder(t *testing.T) {
	c := newTestConnection(nil)
	w := &testWindow{id: 1}

	var ran []int
	for i := 0; i < 5; i++ {
		c.AddTask(NewTask(w, func() { ran = append(ran, i) }))
	}

	assert.True(t, c.ProcessTasks())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, ran)
	assert.Equal(t, 0, c.PendingTasks())
	assert.False(t, c.ProcessTasks(), "second drain should report no work")
}

func TestProcessTasksRunsTasksQueuedWhileDraining(t *testing.T) {
	c := newTestConnection(nil)
	w := &testWindow{id: 1}

	var ran []string
	c.AddTask(NewTask(w, func() {
		ran = append(ran, "first")
		c.AddTask(NewTask(w, func() { ran = append(ran, "queued") }))
	}))
	c.AddTask(NewTask(w, func() { ran = append(ran, "second") }))

	c.ProcessTasks()
	assert.Equal(t, []string{"first", "second", "queued"}, ran)
}

func TestTaskRemovingItsOwnWindowRunsOnce(t *testing.T) {
	q := &countingQuitter{}
	c := newTestConnection(q)
	w := &testWindow{id: 1}
	c.AddWindow(w)

	runs := 0
	c.AddTask(NewTask(w, func() {
		runs++
		c.RemoveWindow(w)
	}))

	c.ProcessTasks()
	assert.Equal(t, 1, runs)
	assert.Equal(t, 1, q.quits)
}

func TestLastWindowSignalsQuitOnce(t *testing.T) {
	q := &countingQuitter{}
	c := newTestConnection(q)
	w1 := &testWindow{id: 1}
	w2 := &testWindow{id: 2}

	c.AddWindow(w1)
	c.AddWindow(w2)

	c.RemoveWindow(w1)
	assert.Equal(t, 0, q.quits, "a window is still open")

	c.RemoveWindow(w2)
	assert.Equal(t, 1, q.quits)

	// Removing unknown windows from an empty list is not a second signal
	c.RemoveWindow(w2)
	c.RemoveWindow(&testWindow{id: 3})
	assert.Equal(t, 1, q.quits)
}

func TestRemoveWindowWithoutQuitter(t *testing.T) {
	c := newTestConnection(nil)
	w := &testWindow{id: 1}
	c.AddWindow(w)

	assert.NotPanics(t, func() { c.RemoveWindow(w) })
	assert.True(t, c.NeedsFlush())
}

func TestFlushTasksWithoutWork(t *testing.T) {
	c := newTestConnection(nil)

	var states []flushState
	c.traceFlush = func(s flushState) { states = append(states, s) }

	c.FlushTasks()
	assert.Empty(t, states)
}

func TestFlushOnFailedConnectionStillRunsTasks(t *testing.T) {
	c := newTestConnection(nil)
	c.state = StateFailed
	w := &testWindow{id: 1}
	c.AddWindow(w)

	ran := false
	c.AddTask(NewTask(w, func() { ran = true }))

	c.FlushTasks()
	assert.True(t, ran)
	assert.False(t, c.NeedsFlush())
}
