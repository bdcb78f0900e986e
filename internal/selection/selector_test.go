package selection

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectDeselect(t *testing.T) {
	s := New("p1")
	s.Select("b")
	s.Select("a")
	s.Select("a")
	assert.Equal(t, []string{"a", "b"}, s.Current())

	s.Deselect("a")
	s.Deselect("missing")
	assert.Equal(t, []string{"b"}, s.Current())
	assert.True(t, s.Contains("b"))
	assert.False(t, s.Contains("a"))
}

func TestSelectAllAndClear(t *testing.T) {
	s := New("p1")
	s.Select("x")
	s.SelectAll([]string{"a", "b", "c"})
	assert.Equal(t, 4, s.Len())

	s.Clear()
	assert.Empty(t, s.Current())
	assert.Equal(t, "p1", s.ProjectID())
}

func TestConcurrentSelect(t *testing.T) {
	s := New("p1")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Select(string(rune('a' + i%26)))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 26, s.Len())
}
