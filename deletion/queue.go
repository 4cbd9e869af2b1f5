// Package deletion implements an ordered list of teardown actions which are
// executed in reverse order of their registration.
//
// Native GPU objects must be destroyed in the reverse order of their creation: a
// view before its image, an image before its memory, memory before the allocator
// and the allocator before the device. Registering the teardown right after each
// successful creation and replaying the list backwards makes that order hold by
// construction.
package deletion

// Queue is a LIFO list of teardown closures. The zero value is an empty queue
// ready for use. A Queue is not safe for concurrent use.
type Queue struct {
	actions []func()
}

// Add appends a teardown action. Actions must not fail; teardown is unconditional.
func (q *Queue) Add(action func()) {
	if action == nil {
		return
	}
	q.actions = append(q.actions, action)
}

// Flush runs all queued actions in strict reverse insertion order and leaves the
// queue empty.
//
// Actions added while flushing are run in the same flush once the ones queued
// before them are done.
func (q *Queue) Flush() {
	for len(q.actions) > 0 {
		last := len(q.actions) - 1
		action := q.actions[last]
		q.actions[last] = nil
		q.actions = q.actions[:last]

		action()
	}
}

// Len returns the number of pending actions.
func (q *Queue) Len() int {
	return len(q.actions)
}

// Take moves all pending actions into a new queue and leaves q empty. It is used
// to hand the teardown of a partially built object over to its owner once the
// building succeeded.
func (q *Queue) Take() *Queue {
	taken := &Queue{actions: q.actions}
	q.actions = nil
	return taken
}
