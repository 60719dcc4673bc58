package cache

import (
	"encoding/binary"
	"time"

	"github.com/fetchguard/fetchguard/internal/types"
)

// Stored entries carry their own expiry so each key can have a distinct
// TTL regardless of the tier's global eviction window. The layout is a
// fixed header followed by the raw payload:
//
//	magic(2) | version(1) | storedAt(8, unixnano) | expiresAt(8, unixnano) | payloadLen(4) | payload
//
// expiresAt == 0 means the entry never expires. Records that fail any
// header check decode as ErrEntryCorrupt; the durable tier drops them
// and reports a miss.
const (
	entryMagic   uint16 = 0xFE7C
	entryVersion byte   = 1

	entryHeaderSize = 2 + 1 + 8 + 8 + 4
)

type entry struct {
	StoredAt  time.Time
	ExpiresAt time.Time
	Payload   []byte
}

func newEntry(payload []byte, ttl time.Duration) entry {
	now := time.Now()
	e := entry{StoredAt: now, Payload: payload}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}
	return e
}

func (e entry) isExpired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

func encodeEntry(e entry) []byte {
	buf := make([]byte, entryHeaderSize+len(e.Payload))
	binary.BigEndian.PutUint16(buf[0:2], entryMagic)
	buf[2] = entryVersion
	binary.BigEndian.PutUint64(buf[3:11], uint64(e.StoredAt.UnixNano()))
	var exp uint64
	if !e.ExpiresAt.IsZero() {
		exp = uint64(e.ExpiresAt.UnixNano())
	}
	binary.BigEndian.PutUint64(buf[11:19], exp)
	binary.BigEndian.PutUint32(buf[19:23], uint32(len(e.Payload)))
	copy(buf[entryHeaderSize:], e.Payload)
	return buf
}

func decodeEntry(data []byte) (entry, error) {
	if len(data) < entryHeaderSize {
		return entry{}, types.ErrEntryCorrupt
	}
	if binary.BigEndian.Uint16(data[0:2]) != entryMagic {
		return entry{}, types.ErrEntryCorrupt
	}
	if data[2] != entryVersion {
		return entry{}, types.ErrEntryCorrupt
	}

	payloadLen := binary.BigEndian.Uint32(data[19:23])
	if int(payloadLen) != len(data)-entryHeaderSize {
		return entry{}, types.ErrEntryCorrupt
	}

	e := entry{
		StoredAt: time.Unix(0, int64(binary.BigEndian.Uint64(data[3:11]))),
		Payload:  data[entryHeaderSize:],
	}
	if exp := binary.BigEndian.Uint64(data[11:19]); exp != 0 {
		e.ExpiresAt = time.Unix(0, int64(exp))
	}
	return e, nil
}
