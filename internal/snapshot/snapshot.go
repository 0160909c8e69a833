// Package snapshot loads the on-disk RDB-style dump a node was started
// with, installing whatever string keys it finds into a fresh keyspace
// before the server starts accepting connections. There is no writer: this
// server never persists its own snapshot, it only ever reads one left by
// something else (or by a prior run of itself, format permitting).
package snapshot

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adred-codev/kvnode/internal/store"
)

const (
	opMetadata   = 0xFA
	opSelectDB   = 0xFE
	opResizeDB   = 0xFB
	opExpirySec  = 0xFD
	opExpiryMs   = 0xFC
	opEOF        = 0xFF
	valueString  = 0x00
)

// Load reads dir/dbfilename and installs every live string key it contains
// into s. A missing file is not an error: the node simply starts with an
// empty keyspace, matching the behavior of a brand-new Redis instance with
// no dump.rdb on disk.
func Load(s *store.Store, dir, dbfilename string) error {
	path := filepath.Join(dir, dbfilename)
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("snapshot: read %s: %w", path, err)
	}
	return parse(s, contents)
}

func parse(s *store.Store, contents []byte) error {
	if len(contents) < 9 || !bytes.Equal(contents[:5], []byte("REDIS")) {
		return fmt.Errorf("snapshot: missing REDIS magic header")
	}
	pos := 9 // 5-byte magic + 4-byte version, version itself unused

	for pos < len(contents) {
		opCode := contents[pos]
		pos++

		switch opCode {
		case opMetadata:
			_, next, err := readString(contents, pos)
			if err != nil {
				return err
			}
			pos = next
			_, next, err = readString(contents, pos)
			if err != nil {
				return err
			}
			pos = next

		case opSelectDB:
			_, next, err := readLength(contents, pos)
			if err != nil {
				return err
			}
			pos = next

		case opResizeDB:
			_, next, err := readLength(contents, pos)
			if err != nil {
				return err
			}
			pos = next
			_, next, err = readLength(contents, pos)
			if err != nil {
				return err
			}
			pos = next

		case opExpirySec:
			if pos+4 > len(contents) {
				return fmt.Errorf("snapshot: truncated seconds-expiry at %d", pos)
			}
			secs := leUint32(contents[pos : pos+4])
			pos += 4
			key, value, next, err := readKeyValue(contents, pos)
			if err != nil {
				return err
			}
			pos = next
			installIfLive(s, key, value, time.Unix(int64(secs), 0))

		case opExpiryMs:
			if pos+8 > len(contents) {
				return fmt.Errorf("snapshot: truncated ms-expiry at %d", pos)
			}
			ms := leUint64(contents[pos : pos+8])
			pos += 8
			key, value, next, err := readKeyValue(contents, pos)
			if err != nil {
				return err
			}
			pos = next
			installIfLive(s, key, value, time.UnixMilli(int64(ms)))

		case valueString:
			key, next, err := readString(contents, pos)
			if err != nil {
				return err
			}
			pos = next
			value, next, err := readString(contents, pos)
			if err != nil {
				return err
			}
			pos = next
			s.LoadString(key, []byte(value), time.Time{})

		case opEOF:
			return nil

		default:
			return fmt.Errorf("snapshot: unknown opcode 0x%02X at %d", opCode, pos-1)
		}
	}
	return nil
}

// installIfLive drops an entry whose deadline has already passed rather
// than loading it and letting lazy expiry evict it on first read.
func installIfLive(s *store.Store, key, value string, deadline time.Time) {
	if !deadline.After(time.Now()) {
		return
	}
	s.LoadString(key, []byte(value), deadline)
}

func readKeyValue(contents []byte, pos int) (key, value string, next int, err error) {
	if pos >= len(contents) {
		return "", "", 0, fmt.Errorf("snapshot: truncated key-value header at %d", pos)
	}
	valueType := contents[pos]
	if valueType != valueString {
		return "", "", 0, fmt.Errorf("snapshot: unsupported value type 0x%02X at %d", valueType, pos)
	}
	pos++
	key, pos, err = readString(contents, pos)
	if err != nil {
		return "", "", 0, err
	}
	value, pos, err = readString(contents, pos)
	if err != nil {
		return "", "", 0, err
	}
	return key, value, pos, nil
}

// readLength decodes Redis's variable-width length encoding from the
// leading byte's top two bits: 00 -> 6-bit, 01 -> 14-bit, 10 -> 32-bit
// big-endian, 11 -> special (caller-interpreted) encoding.
func readLength(contents []byte, pos int) (int, int, error) {
	if pos >= len(contents) {
		return 0, 0, fmt.Errorf("snapshot: truncated length at %d", pos)
	}
	first := contents[pos]
	switch first >> 6 {
	case 0b00:
		return int(first & 0x3F), pos + 1, nil
	case 0b01:
		if pos+1 >= len(contents) {
			return 0, 0, fmt.Errorf("snapshot: truncated 14-bit length at %d", pos)
		}
		return (int(first&0x3F) << 8) | int(contents[pos+1]), pos + 2, nil
	case 0b10:
		if pos+5 > len(contents) {
			return 0, 0, fmt.Errorf("snapshot: truncated 32-bit length at %d", pos)
		}
		return int(beUint32(contents[pos+1 : pos+5])), pos + 5, nil
	default: // 0b11: special encoding, value carried in the byte itself
		return int(first), pos + 1, nil
	}
}

// readString decodes either a length-prefixed byte string or, when the
// leading byte signals the 0b11 special encoding, a little-endian signed
// integer rendered back to its decimal text form.
func readString(contents []byte, pos int) (string, int, error) {
	if pos >= len(contents) {
		return "", 0, fmt.Errorf("snapshot: truncated string at %d", pos)
	}
	first := contents[pos]
	if first>>6 == 0b11 {
		switch first & 0x3F {
		case 0:
			if pos+2 > len(contents) {
				return "", 0, fmt.Errorf("snapshot: truncated int8 at %d", pos)
			}
			return fmt.Sprintf("%d", int8(contents[pos+1])), pos + 2, nil
		case 1:
			if pos+3 > len(contents) {
				return "", 0, fmt.Errorf("snapshot: truncated int16 at %d", pos)
			}
			v := int16(uint16(contents[pos+1]) | uint16(contents[pos+2])<<8)
			return fmt.Sprintf("%d", v), pos + 3, nil
		case 2:
			if pos+5 > len(contents) {
				return "", 0, fmt.Errorf("snapshot: truncated int32 at %d", pos)
			}
			v := int32(leUint32(contents[pos+1 : pos+5]))
			return fmt.Sprintf("%d", v), pos + 5, nil
		default:
			return "", 0, fmt.Errorf("snapshot: unsupported string special-encoding %d at %d", first&0x3F, pos)
		}
	}

	length, next, err := readLength(contents, pos)
	if err != nil {
		return "", 0, err
	}
	if next+length > len(contents) {
		return "", 0, fmt.Errorf("snapshot: string length %d exceeds remaining bytes at %d", length, next)
	}
	return string(contents[next : next+length]), next + length, nil
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func beUint32(b []byte) uint32 {
	return uint32(b[3]) | uint32(b[2])<<8 | uint32(b[1])<<16 | uint32(b[0])<<24
}
