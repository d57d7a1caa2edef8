package renewal

// pending is the continuation of a caller waiting on the renewal in flight.
type pending struct {
	resolve func(token string)
	reject  func(err error)
}

// PendingQueue holds the callers that arrived while a renewal was in flight.
// It is not safe for concurrent use; the Coordinator guards it with its own mutex.
type PendingQueue struct {
	entries []pending
}

// Enqueue appends a caller. Callers are settled in the order they were enqueued.
func (q *PendingQueue) Enqueue(resolve func(token string), reject func(err error)) {
	q.entries = append(q.entries, pending{resolve: resolve, reject: reject})
}

func (q *PendingQueue) Len() int {
	return len(q.entries)
}

// Drain settles every entry with the same outcome, in arrival order, then empties the queue.
// A nil err resolves with token; otherwise every entry is rejected with err.
func (q *PendingQueue) Drain(token string, err error) {
	entries := q.entries
	q.entries = nil

	for _, p := range entries {
		if err != nil {
			p.reject(err)
			continue
		}
		p.resolve(token)
	}
}
