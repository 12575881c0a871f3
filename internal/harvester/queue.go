package harvester

import "sync"

// workQueue is the shared pool of pending queries.
type workQueue struct {
	mu    sync.Mutex
	items []string
}

func newWorkQueue(queries []string) *workQueue {
	return &workQueue{items: append([]string(nil), queries...)}
}

// claim removes and returns the next query.
func (q *workQueue) claim() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	next := q.items[0]
	q.items = q.items[1:]
	return next, true
}

// drain removes and returns every unclaimed query.
func (q *workQueue) drain() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	rest := q.items
	q.items = nil
	return rest
}
