package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	s := New()
	s.SetString("foo", []byte("bar"), 0)
	v, ok, err := s.GetString("foo")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("bar"), v)
}

func TestExpiryLazyCheck(t *testing.T) {
	s := New()
	restore := now
	t0 := time.Now()
	now = func() time.Time { return t0 }
	defer func() { now = restore }()

	deadline := s.SetString("foo", []byte("bar"), 100*time.Millisecond)
	require.False(t, deadline.IsZero())

	now = func() time.Time { return t0.Add(200 * time.Millisecond) }
	_, ok, err := s.GetString("foo")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWrongType(t *testing.T) {
	s := New()
	s.SetString("foo", []byte("bar"), 0)
	_, err := s.Push("foo", true, []byte("x"))
	require.ErrorIs(t, err, ErrWrongType)
}

func TestIncrCreatesAndErrors(t *testing.T) {
	s := New()
	n, err := s.Incr("counter")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	n, err = s.Incr("counter")
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	s.SetString("notnum", []byte("abc"), 0)
	_, err = s.Incr("notnum")
	require.ErrorIs(t, err, ErrNotInteger)
}

func TestDelIdempotence(t *testing.T) {
	s := New()
	s.SetString("foo", []byte("x"), 0)
	require.Equal(t, 1, s.Del("foo"))
	require.Equal(t, 0, s.Del("foo"))
}

func TestListPushPopDoesNotDeleteOnEmpty(t *testing.T) {
	s := New()
	n, err := s.Push("q", true, []byte("a"), []byte("b"))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	v, ok, err := s.Pop("q")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("a"), v)

	s.Pop("q")
	_, ok, err = s.Pop("q")
	require.NoError(t, err)
	require.False(t, ok)

	// Key survives with TypeList even though empty.
	require.Equal(t, TypeList, s.Type("q"))
}

func TestLRangeNegativeIndices(t *testing.T) {
	s := New()
	s.Push("q", true, []byte("a"), []byte("b"), []byte("c"))
	got, err := s.Range("q", -2, -1)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("b"), []byte("c")}, got)
}

func TestZAddOrdering(t *testing.T) {
	s := New()
	s.ZAdd("z", "b", 1)
	s.ZAdd("z", "a", 1)
	s.ZAdd("z", "c", 0)
	members, err := s.ZRange("z", 0, -1)
	require.NoError(t, err)
	require.Equal(t, []string{"c", "a", "b"}, []string{members[0].Member, members[1].Member, members[2].Member})
}

func TestStreamIDOrdering(t *testing.T) {
	s := New()
	_, err := s.XAdd("s", StreamID{}, nil)
	require.Error(t, err)

	_, err = s.XAdd("s", StreamID{Ms: 1, Seq: 1}, []FieldValue{{Field: "f", Value: "v"}})
	require.NoError(t, err)

	_, err = s.XAdd("s", StreamID{Ms: 1, Seq: 1}, nil)
	require.Error(t, err)

	_, err = s.XAdd("s", StreamID{Ms: 1, Seq: 2}, nil)
	require.NoError(t, err)
}
