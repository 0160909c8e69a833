package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adred-codev/kvnode/internal/store"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, contents []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), contents, 0o644))
}

func TestLoadMissingFileIsEmptyKeyspace(t *testing.T) {
	s := store.New()
	err := Load(s, t.TempDir(), "dump.rdb")
	require.NoError(t, err)
	require.Empty(t, s.Keys("*"))
}

func TestLoadPlainStringPair(t *testing.T) {
	dir := t.TempDir()
	var contents []byte
	contents = append(contents, []byte("REDIS0011")...)
	contents = append(contents, 0x00)             // string kv, no expiry
	contents = append(contents, 0x03, 'f', 'o', 'o') // 6-bit length key
	contents = append(contents, 0x03, 'b', 'a', 'r') // 6-bit length value
	contents = append(contents, 0xFF)
	writeFile(t, dir, "dump.rdb", contents)

	s := store.New()
	require.NoError(t, Load(s, dir, "dump.rdb"))

	v, ok, err := s.GetString("foo")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("bar"), v)
}

func TestLoadDropsExpiredEntry(t *testing.T) {
	dir := t.TempDir()
	var contents []byte
	contents = append(contents, []byte("REDIS0011")...)
	contents = append(contents, 0xFC) // ms expiry
	past := uint64(time.Now().Add(-time.Hour).UnixMilli())
	for i := 0; i < 8; i++ {
		contents = append(contents, byte(past>>(8*i)))
	}
	contents = append(contents, 0x00) // value type: string
	contents = append(contents, 0x03, 'o', 'l', 'd')
	contents = append(contents, 0x01, 'x')
	contents = append(contents, 0xFF)
	writeFile(t, dir, "dump.rdb", contents)

	s := store.New()
	require.NoError(t, Load(s, dir, "dump.rdb"))
	_, ok, err := s.GetString("old")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLoadKeepsLiveExpiry(t *testing.T) {
	dir := t.TempDir()
	var contents []byte
	contents = append(contents, []byte("REDIS0011")...)
	contents = append(contents, 0xFD) // seconds expiry
	future := uint32(time.Now().Add(time.Hour).Unix())
	for i := 0; i < 4; i++ {
		contents = append(contents, byte(future>>(8*i)))
	}
	contents = append(contents, 0x00)
	contents = append(contents, 0x03, 'n', 'e', 'w')
	contents = append(contents, 0x01, 'y')
	contents = append(contents, 0xFF)
	writeFile(t, dir, "dump.rdb", contents)

	s := store.New()
	require.NoError(t, Load(s, dir, "dump.rdb"))
	v, ok, err := s.GetString("new")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("y"), v)
}

func TestLoadUnknownOpcodeAborts(t *testing.T) {
	dir := t.TempDir()
	contents := append([]byte("REDIS0011"), 0xEE)
	writeFile(t, dir, "dump.rdb", contents)

	s := store.New()
	err := Load(s, dir, "dump.rdb")
	require.Error(t, err)
}

func TestLoadMetadataAndSelectorSkipped(t *testing.T) {
	dir := t.TempDir()
	var contents []byte
	contents = append(contents, []byte("REDIS0011")...)
	contents = append(contents, 0xFA, 0x03, 'r', 'e', 'd', 0x03, 'v', 'e', 'r') // metadata key/value
	contents = append(contents, 0xFE, 0x00)                                    // select db 0
	contents = append(contents, 0xFB, 0x01, 0x00)                              // resize hint
	contents = append(contents, 0x00, 0x01, 'k', 0x01, 'v')
	contents = append(contents, 0xFF)
	writeFile(t, dir, "dump.rdb", contents)

	s := store.New()
	require.NoError(t, Load(s, dir, "dump.rdb"))
	v, ok, err := s.GetString("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), v)
}
