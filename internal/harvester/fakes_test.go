package harvester

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/FranksOps/qparser/internal/serp"
	"github.com/FranksOps/qparser/pkg/retry"
)

var (
	errQuota  = &serp.StatusError{Provider: "fake", StatusCode: 429}
	errBroken = errors.New("malformed response")
)

// fakeProvider answers queries from a script. Each query maps to a function
// receiving the 1-based call number for that query.
type fakeProvider struct {
	mu     sync.Mutex
	calls  map[string]int
	script map[string]func(call int) ([]serp.RawItem, error)
	delay  time.Duration
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		calls:  map[string]int{},
		script: map[string]func(int) ([]serp.RawItem, error){},
	}
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Search(ctx context.Context, query string) ([]serp.RawItem, error) {
	f.mu.Lock()
	f.calls[query]++
	call := f.calls[query]
	fn := f.script[query]
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if fn != nil {
		return fn(call)
	}
	return []serp.RawItem{
		{URL: fmt.Sprintf("https://%s.example/a", slug(query)), Title: query},
		{URL: fmt.Sprintf("https://%s.example/a#dup", slug(query)), Title: "dup"},
		{URL: "https://shared.example/" + slug(query), Title: "shared"},
	}, nil
}

func (f *fakeProvider) callsFor(query string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[query]
}

func (f *fakeProvider) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func slug(q string) string {
	out := make([]rune, 0, len(q))
	for _, r := range q {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			out = append(out, r)
		}
	}
	return string(out)
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func fastPolicy() retry.Policy {
	p := retry.DefaultPolicy(serp.IsRecoverable)
	p.Sleep = noSleep
	return p
}
