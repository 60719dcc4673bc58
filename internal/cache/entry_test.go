package cache

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/fetchguard/fetchguard/internal/types"
)

func TestEntryRoundTrip(t *testing.T) {
	payload := []byte(`{"symbol":"AAPL","price":182.5}`)
	e := newEntry(payload, 5*time.Minute)

	decoded, err := decodeEntry(encodeEntry(e))
	if err != nil {
		t.Fatalf("decodeEntry() error = %v", err)
	}
	if !bytes.Equal(decoded.Payload, payload) {
		t.Errorf("payload = %q, want %q", decoded.Payload, payload)
	}
	if decoded.ExpiresAt.IsZero() {
		t.Error("ExpiresAt is zero, want set from TTL")
	}
	if got := decoded.ExpiresAt.Sub(decoded.StoredAt); got != 5*time.Minute {
		t.Errorf("expiry window = %v, want 5m", got)
	}
}

func TestEntryZeroTTLNeverExpires(t *testing.T) {
	e := newEntry([]byte("v"), 0)
	if !e.ExpiresAt.IsZero() {
		t.Fatal("zero TTL must produce zero ExpiresAt")
	}

	decoded, err := decodeEntry(encodeEntry(e))
	if err != nil {
		t.Fatalf("decodeEntry() error = %v", err)
	}
	if decoded.isExpired(time.Now().Add(100 * 365 * 24 * time.Hour)) {
		t.Error("entry without expiry reported expired")
	}
}

func TestEntryExpiry(t *testing.T) {
	e := newEntry([]byte("v"), 50*time.Millisecond)

	if e.isExpired(time.Now()) {
		t.Error("fresh entry reported expired")
	}
	if !e.isExpired(time.Now().Add(100 * time.Millisecond)) {
		t.Error("entry past its TTL not reported expired")
	}
}

func TestDecodeEntryCorrupt(t *testing.T) {
	valid := encodeEntry(newEntry([]byte("payload"), time.Minute))

	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated header", valid[:entryHeaderSize-1]},
		{"truncated payload", valid[:len(valid)-2]},
		{"bad magic", append([]byte{0x00, 0x00}, valid[2:]...)},
		{"unknown version", func() []byte {
			d := append([]byte(nil), valid...)
			d[2] = 99
			return d
		}()},
		{"length mismatch", append(append([]byte(nil), valid...), 'x')},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := decodeEntry(tc.data); !errors.Is(err, types.ErrEntryCorrupt) {
				t.Errorf("decodeEntry() error = %v, want ErrEntryCorrupt", err)
			}
		})
	}
}

func TestEntryEmptyPayload(t *testing.T) {
	decoded, err := decodeEntry(encodeEntry(newEntry(nil, time.Minute)))
	if err != nil {
		t.Fatalf("decodeEntry() error = %v", err)
	}
	if len(decoded.Payload) != 0 {
		t.Errorf("payload length = %d, want 0", len(decoded.Payload))
	}
}
