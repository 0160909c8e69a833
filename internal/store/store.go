// Package store implements the typed, single-lock keyspace shared by every
// connection, the replica-client loop, and background expiry tasks.
package store

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrWrongType is returned whenever a command addresses a key whose stored
// ValueKind does not match what the command expects. A key is
// never mutated to a different variant in place.
var ErrWrongType = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")

// TypeTag names the four ValueKind variants, plus TypeNone for an absent
// key, for TYPE and for error messages.
type TypeTag int

const (
	TypeNone TypeTag = iota
	TypeString
	TypeList
	TypeStream
	TypeZSet
)

func (t TypeTag) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeList:
		return "list"
	case TypeStream:
		return "stream"
	case TypeZSet:
		return "set"
	default:
		return "none"
	}
}

// StreamID is the two-field "ms-seq" identifier used by stream entries.
type StreamID struct {
	Ms  uint64
	Seq uint64
}

func (id StreamID) Less(other StreamID) bool {
	if id.Ms != other.Ms {
		return id.Ms < other.Ms
	}
	return id.Seq < other.Seq
}

func (id StreamID) IsZero() bool { return id.Ms == 0 && id.Seq == 0 }

// StreamEntry is one appended record within a Stream value.
type StreamEntry struct {
	ID     StreamID
	Fields []FieldValue
}

// FieldValue is one (field, value) pair inside a stream entry.
type FieldValue struct {
	Field string
	Value string
}

// ZMember is one (member, score) pair inside a sorted set. Geo keys reuse
// this same type with the score holding the encoded geohash bits.
type ZMember struct {
	Member string
	Score  float64
}

// entry is the tagged union backing one key. Only one of the payload
// fields is meaningful, selected by Type.
type entry struct {
	typ     TypeTag
	str     []byte
	list    [][]byte
	stream  []StreamEntry
	zset    []ZMember // kept sorted by (score, member) at all times
	expires time.Time // zero means no TTL
}

func (e *entry) hasExpiry() bool { return !e.expires.IsZero() }

func (e *entry) expired(now time.Time) bool {
	return e.hasExpiry() && !e.expires.After(now)
}

// Store is the process-wide keyspace. All mutation paths take mu, perform
// the change, and release it before any network I/O.
type Store struct {
	mu   sync.Mutex
	data map[string]*entry
}

func New() *Store {
	return &Store{data: make(map[string]*entry)}
}

// now is overridable in tests; production code always uses time.Now.
var now = time.Now

// lookup returns the live entry for key, deleting it in place and
// reporting absence if its deadline has passed (lazy expiry).
// Caller must hold mu.
func (s *Store) lookup(key string) (*entry, bool) {
	e, ok := s.data[key]
	if !ok {
		return nil, false
	}
	if e.expired(now()) {
		delete(s.data, key)
		return nil, false
	}
	return e, true
}

// Type reports the TypeTag of key, or TypeNone if absent/expired.
func (s *Store) Type(key string) TypeTag {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		return TypeNone
	}
	return e.typ
}

// Del removes keys, returning the count actually present.
func (s *Store) Del(keys ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, k := range keys {
		if _, ok := s.lookup(k); ok {
			delete(s.data, k)
			n++
		}
	}
	return n
}

// Keys returns all live keys matching pattern. "*" matches everything;
// anything else is substring containment, not glob matching.
func (s *Store) Keys(pattern string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := now()
	out := make([]string, 0, len(s.data))
	for k, e := range s.data {
		if e.expired(t) {
			continue
		}
		if pattern == "*" || containsSubstring(k, pattern) {
			out = append(out, k)
		}
	}
	return out
}

func containsSubstring(s, sub string) bool {
	if sub == "" {
		return true
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

// ---- string operations ----

// SetString stores v under key, wiping any previous value kind, and returns
// the deadline that should drive a PX deleter task, if any (zero if none).
func (s *Store) SetString(key string, v []byte, px time.Duration) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &entry{typ: TypeString, str: append([]byte(nil), v...)}
	if px > 0 {
		e.expires = now().Add(px)
	}
	s.data[key] = e
	return e.expires
}

// ExpiresAt reports the current expiry deadline for key (zero if none or
// absent).
func (s *Store) ExpiresAt(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		return time.Time{}, false
	}
	return e.expires, true
}

// ExpireIfStillDue deletes key iff it is present and its deadline is <= the
// deadline this caller originally observed (the PX sleeper's idempotent
// delete).
func (s *Store) ExpireIfStillDue(key string, deadline time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[key]
	if !ok {
		return
	}
	if e.hasExpiry() && !e.expires.After(deadline) {
		delete(s.data, key)
	}
}

// LoadString installs a string value with an absolute expiry deadline
// (zero for none), bypassing the relative-duration SetString used by the
// live SET command. Used only by the snapshot loader at startup, before
// any connection is accepted.
func (s *Store) LoadString(key string, v []byte, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = &entry{typ: TypeString, str: append([]byte(nil), v...), expires: expiresAt}
}

func (s *Store) GetString(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		return nil, false, nil
	}
	if e.typ != TypeString {
		return nil, false, ErrWrongType
	}
	return append([]byte(nil), e.str...), true, nil
}

// Incr adds 1 to the integer value stored at key (creating it at 0 first),
// returning the new value.
func (s *Store) Incr(key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		e = &entry{typ: TypeString, str: []byte("0")}
		s.data[key] = e
	}
	if e.typ != TypeString {
		return 0, ErrWrongType
	}
	n, err := parseInt(e.str)
	if err != nil {
		return 0, ErrNotInteger
	}
	n++
	e.str = []byte(formatInt(n))
	return n, nil
}

// ErrNotInteger is returned by Incr when the stored string isn't an integer.
var ErrNotInteger = errors.New("ERR value is not an integer or out of range")

// ---- list operations ----

// Push appends (right=true) or prepends (right=false) values, creating the
// list if absent, and returns the new length.
func (s *Store) Push(key string, right bool, values ...[]byte) (int, error) {
	s.mu.Lock()
	e, ok := s.lookup(key)
	if !ok {
		e = &entry{typ: TypeList}
		s.data[key] = e
	}
	if e.typ != TypeList {
		s.mu.Unlock()
		return 0, ErrWrongType
	}
	for _, v := range values {
		cp := append([]byte(nil), v...)
		if right {
			e.list = append(e.list, cp)
		} else {
			e.list = append([][]byte{cp}, e.list...)
		}
	}
	n := len(e.list)
	s.mu.Unlock()
	return n, nil
}

// Pop removes and returns the leftmost element of key's list, if any.
// Lists are never deleted when they empty out: later reads
// must still observe an empty, present-but-collection-typed key.
func (s *Store) Pop(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		return nil, false, nil
	}
	if e.typ != TypeList {
		return nil, false, ErrWrongType
	}
	if len(e.list) == 0 {
		return nil, false, nil
	}
	v := e.list[0]
	e.list = e.list[1:]
	return v, true, nil
}

func (s *Store) Len(key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		return 0, nil
	}
	if e.typ != TypeList {
		return 0, ErrWrongType
	}
	return len(e.list), nil
}

// Range returns a copy of list[start:stop] with Redis-style negative index
// resolution (resolved against the current length).
func (s *Store) Range(key string, start, stop int) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		return nil, nil
	}
	if e.typ != TypeList {
		return nil, ErrWrongType
	}
	n := len(e.list)
	start = resolveIndex(start, n)
	stop = resolveIndex(stop, n)
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || n == 0 {
		return [][]byte{}, nil
	}
	out := make([][]byte, 0, stop-start+1)
	for i := start; i <= stop; i++ {
		out = append(out, append([]byte(nil), e.list[i]...))
	}
	return out, nil
}

func resolveIndex(i, n int) int {
	if i < 0 {
		return n + i
	}
	return i
}

// ---- sorted set / geo operations (shared representation) ----

// ZAdd inserts or updates member's score, keeping the set sorted ascending
// by (score, member). Returns true if member is new.
func (s *Store) ZAdd(key string, member string, score float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		e = &entry{typ: TypeZSet}
		s.data[key] = e
	}
	if e.typ != TypeZSet {
		return false, ErrWrongType
	}
	for i, m := range e.zset {
		if m.Member == member {
			e.zset = append(e.zset[:i], e.zset[i+1:]...)
			insertZMember(e, ZMember{Member: member, Score: score})
			return false, nil
		}
	}
	insertZMember(e, ZMember{Member: member, Score: score})
	return true, nil
}

func insertZMember(e *entry, m ZMember) {
	e.zset = append(e.zset, m)
	sort.Slice(e.zset, func(i, j int) bool {
		if e.zset[i].Score != e.zset[j].Score {
			return e.zset[i].Score < e.zset[j].Score
		}
		return e.zset[i].Member < e.zset[j].Member
	})
}

func (s *Store) ZRem(key string, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		return false, nil
	}
	if e.typ != TypeZSet {
		return false, ErrWrongType
	}
	for i, m := range e.zset {
		if m.Member == member {
			e.zset = append(e.zset[:i], e.zset[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ZScore(key, member string) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		return 0, false, nil
	}
	if e.typ != TypeZSet {
		return 0, false, ErrWrongType
	}
	for _, m := range e.zset {
		if m.Member == member {
			return m.Score, true, nil
		}
	}
	return 0, false, nil
}

func (s *Store) ZRank(key, member string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		return 0, false, nil
	}
	if e.typ != TypeZSet {
		return 0, false, ErrWrongType
	}
	for i, m := range e.zset {
		if m.Member == member {
			return i, true, nil
		}
	}
	return 0, false, nil
}

func (s *Store) ZCard(key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		return 0, nil
	}
	if e.typ != TypeZSet {
		return 0, ErrWrongType
	}
	return len(e.zset), nil
}

// ZRange returns members[start:stop] in ascending (score, member) order,
// with the same negative-index resolution as list Range.
func (s *Store) ZRange(key string, start, stop int) ([]ZMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		return nil, nil
	}
	if e.typ != TypeZSet {
		return nil, ErrWrongType
	}
	n := len(e.zset)
	start = resolveIndex(start, n)
	stop = resolveIndex(stop, n)
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || n == 0 {
		return []ZMember{}, nil
	}
	out := make([]ZMember, stop-start+1)
	copy(out, e.zset[start:stop+1])
	return out, nil
}

// ZAll returns every member, used by GEOSEARCH's brute-force scan.
func (s *Store) ZAll(key string) ([]ZMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		return nil, nil
	}
	if e.typ != TypeZSet {
		return nil, ErrWrongType
	}
	out := make([]ZMember, len(e.zset))
	copy(out, e.zset)
	return out, nil
}

// ---- stream operations ----

// XAdd appends an entry, rejecting ids that are not strictly greater than
// the current top id and rejecting 0-0 outright.
func (s *Store) XAdd(key string, id StreamID, fields []FieldValue) (StreamID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		e = &entry{typ: TypeStream}
		s.data[key] = e
	}
	if e.typ != TypeStream {
		return StreamID{}, ErrWrongType
	}
	if id.IsZero() {
		return StreamID{}, errors.New("ERR The ID specified in XADD must be greater than 0-0")
	}
	if len(e.stream) > 0 {
		top := e.stream[len(e.stream)-1].ID
		if !top.Less(id) {
			return StreamID{}, errors.New("ERR The ID specified in XADD is equal or smaller than the target stream top item")
		}
	}
	e.stream = append(e.stream, StreamEntry{ID: id, Fields: append([]FieldValue(nil), fields...)})
	return id, nil
}

// TopID returns the stream's current largest id, used to resolve XADD's
// "*"/"ms-*" forms and XREAD's "$".
func (s *Store) TopID(key string) (StreamID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		return StreamID{}, false, nil
	}
	if e.typ != TypeStream {
		return StreamID{}, false, ErrWrongType
	}
	if len(e.stream) == 0 {
		return StreamID{}, false, nil
	}
	return e.stream[len(e.stream)-1].ID, true, nil
}

// XRange returns entries with from <= id <= to (inclusive bounds).
func (s *Store) XRange(key string, from, to StreamID, fromMin, toMax bool) ([]StreamEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		return nil, nil
	}
	if e.typ != TypeStream {
		return nil, ErrWrongType
	}
	out := make([]StreamEntry, 0, len(e.stream))
	for _, ent := range e.stream {
		if !fromMin && ent.ID.Less(from) {
			continue
		}
		if !toMax && to.Less(ent.ID) {
			continue
		}
		out = append(out, cloneEntry(ent))
	}
	return out, nil
}

// XReadAfter returns entries with id strictly greater than after.
func (s *Store) XReadAfter(key string, after StreamID) ([]StreamEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		return nil, nil
	}
	if e.typ != TypeStream {
		return nil, ErrWrongType
	}
	out := make([]StreamEntry, 0)
	for _, ent := range e.stream {
		if after.Less(ent.ID) {
			out = append(out, cloneEntry(ent))
		}
	}
	return out, nil
}

func cloneEntry(ent StreamEntry) StreamEntry {
	fields := append([]FieldValue(nil), ent.Fields...)
	return StreamEntry{ID: ent.ID, Fields: fields}
}

func parseInt(b []byte) (int64, error) {
	var neg bool
	i := 0
	if len(b) == 0 {
		return 0, errors.New("empty")
	}
	if b[0] == '-' {
		neg = true
		i = 1
	}
	if i >= len(b) {
		return 0, errors.New("empty")
	}
	var n int64
	for ; i < len(b); i++ {
		if b[i] < '0' || b[i] > '9' {
			return 0, errors.New("not a number")
		}
		n = n*10 + int64(b[i]-'0')
	}
	if neg {
		n = -n
	}
	return n, nil
}

func formatInt(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
