package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"strconv"
)

// SubSeed derives the word-pick seed for the next game.
// It is HMAC-SHA256(key = session seed, msg = game index), both in decimal,
// truncated to the first 8 bytes. ok is false for unseeded sessions.
func (s *Session) SubSeed() (seed uint64, ok bool) {
	if s.Seed == nil {
		return 0, false
	}
	return DeriveSeed(*s.Seed, s.GamesCreated), true
}

// DeriveSeed is SubSeed for an explicit seed and game index.
func DeriveSeed(seed int64, index int) uint64 {
	h := hmac.New(sha256.New, []byte(strconv.FormatInt(seed, 10)))
	h.Write([]byte(strconv.Itoa(index)))
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}
