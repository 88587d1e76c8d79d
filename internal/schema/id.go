package schema

import (
	"crypto/rand"
	"encoding/binary"
	"strconv"
	"time"
)

// NewID generates a document-unique id: the current time in base36 followed
// by a random base36 suffix. The format matches ids already present in
// existing documents, so entries created here interleave cleanly with ones
// created by other clients.
func NewID() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms; fall back to
		// the clock so id generation stays total.
		binary.BigEndian.PutUint64(buf[:], uint64(time.Now().UnixNano()))
	}
	suffix := binary.BigEndian.Uint64(buf[:]) >> 16
	return strconv.FormatInt(time.Now().UnixMilli(), 36) + strconv.FormatUint(suffix, 36)
}
