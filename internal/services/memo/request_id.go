package memo

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/ternarybob/studygen/internal/models"
)

// RequestID derives the deterministic id of a generation request from
// (user, kind, topic, params). Each field is length-prefixed so no two distinct
// keys share an encoding.
func RequestID(userID string, kind models.TaskKind, topic string, params ...string) string {
	h := sha256.New()
	fields := append([]string{userID, string(kind), topic}, params...)

	var prefix [8]byte
	for _, field := range fields {
		binary.BigEndian.PutUint64(prefix[:], uint64(len(field)))
		h.Write(prefix[:])
		h.Write([]byte(field))
	}
	return hex.EncodeToString(h.Sum(nil))
}
