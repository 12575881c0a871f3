package session

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	id := NewID(now)

	assert.True(t, strings.HasPrefix(id, "QP-1700000000123-"), id)
	assert.Len(t, strings.TrimPrefix(id, "QP-1700000000123-"), 8)
	assert.NotEqual(t, id, NewID(now))
}

func TestStore_PublishAndList(t *testing.T) {
	st := NewStore()
	first := New("one", []Result{{URI: "https://a.com"}}, []DomainStat{{Domain: "a.com", Count: 1}}, time.Now())
	second := New("two", nil, nil, time.Now())

	st.Publish(first)
	st.Publish(second)
	st.Publish(first) // duplicate id ignored

	list := st.List()
	require.Len(t, list, 2)
	assert.Equal(t, "two", list[0].Query, "newest first")
	assert.Equal(t, "one", list[1].Query)

	// Copies must not alias store state.
	list[1].Results[0].URI = "mutated"
	got, ok := st.Get(first.ID)
	require.True(t, ok)
	assert.Equal(t, "https://a.com", got.Results[0].URI)
}

func TestStore_AttachAnalysisOnce(t *testing.T) {
	st := NewStore()
	s := New("q", nil, nil, time.Now())
	st.Publish(s)

	assert.False(t, st.AttachAnalysis("missing", "text"))
	assert.False(t, st.AttachAnalysis(s.ID, ""))
	assert.True(t, st.AttachAnalysis(s.ID, "first"))
	assert.False(t, st.AttachAnalysis(s.ID, "second"))

	got, _ := st.Get(s.ID)
	assert.Equal(t, "first", got.Analysis)
}

func TestStore_Delete(t *testing.T) {
	st := NewStore()
	a := New("a", nil, nil, time.Now())
	b := New("b", nil, nil, time.Now())
	st.Publish(a)
	st.Publish(b)

	assert.True(t, st.Delete(a.ID))
	assert.False(t, st.Delete(a.ID))
	assert.Equal(t, 1, st.Len())
	_, ok := st.Get(a.ID)
	assert.False(t, ok)
}

func TestStore_ConcurrentPublish(t *testing.T) {
	st := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st.Publish(New(fmt.Sprintf("q%d", i), nil, nil, time.Now()))
			_ = st.List()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, st.Len())
}

func TestSession_URIs(t *testing.T) {
	s := &Session{Results: []Result{{URI: "a"}, {URI: "b"}, {URI: "c"}}}
	assert.Equal(t, []string{"a", "b"}, s.URIs(2))
	assert.Equal(t, []string{"a", "b", "c"}, s.URIs(0))
	assert.Equal(t, []string{"a", "b", "c"}, s.URIs(10))
}
