package resp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadSimpleString(t *testing.T) {
	v, n, err := Read([]byte("+OK\r\nextra"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, KindSimpleString, v.Kind)
	require.Equal(t, "OK", v.Str)
}

func TestReadIncomplete(t *testing.T) {
	_, _, err := Read([]byte("*2\r\n$3\r\nfoo"))
	require.ErrorIs(t, err, ErrIncomplete)
}

func TestReadBulkStringBinarySafe(t *testing.T) {
	payload := []byte{0, 1, 2, 'a', 'b', 0}
	frame := Encode(Bulk(payload))
	v, n, err := Read(frame)
	require.NoError(t, err)
	require.Equal(t, len(frame), n)
	require.Equal(t, payload, v.Bulk)
}

func TestReadNullBulk(t *testing.T) {
	v, n, err := Read([]byte("$-1\r\n"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, KindNullBulk, v.Kind)
}

func TestReadArrayCommand(t *testing.T) {
	frame := "*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n"
	v, n, err := Read([]byte(frame))
	require.NoError(t, err)
	require.Equal(t, len(frame), n)
	strs, err := v.Strings()
	require.NoError(t, err)
	require.Equal(t, []string{"GET", "foo"}, strs)
}

func TestEncodeRoundTrip(t *testing.T) {
	cases := []Value{
		SimpleString("PONG"),
		Error("ERR boom"),
		Integer(42),
		BulkString("hello"),
		NullBulk(),
		NullArray(),
		ArrayFromStrings("a", "b", "c"),
	}
	for _, want := range cases {
		frame := Encode(want)
		got, n, err := Read(frame)
		require.NoError(t, err)
		require.Equal(t, len(frame), n)
		require.Equal(t, want.Kind, got.Kind)
	}
}

func TestReadBulkHeaderForReplicaRDBTransfer(t *testing.T) {
	// FULLRESYNC's RDB blob has no trailing CRLF: the header is parsed
	// separately from the raw payload bytes that follow it.
	header := []byte("$5\r\n")
	payload := []byte("REDIS")
	buf := append(append([]byte{}, header...), payload...)

	length, headerLen, err := ReadBulkHeader(buf)
	require.NoError(t, err)
	require.Equal(t, int64(5), length)
	require.Equal(t, len(header), headerLen)

	got, n, err := ReadRDBPayload(buf[headerLen:], length)
	require.NoError(t, err)
	require.Equal(t, payload, got)
	require.Equal(t, len(payload), n)
}
