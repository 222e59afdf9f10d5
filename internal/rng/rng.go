// Package rng implements the navigator orchestrator's deterministic draw: a
// pure, hash-based uniform random number in [0,1) keyed by
// (seed, employee_id, year, stream, salt). Two calls with the same key
// produce the same value on any platform, in either event-generation mode,
// regardless of sharding — there is no global mutable RNG state.
package rng

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
)

// modulus matches the legacy system's draw: the first 32 bits of the hash,
// reduced modulo the largest prime below 2^31, then normalized to [0,1).
const modulus = 2147483647

// Stream names the event type a draw feeds. Each stream's draws are
// independent of every other stream for the same employee-year.
type Stream string

const (
	StreamHire        Stream = "hire"
	StreamTermination Stream = "termination"
	StreamPromotion   Stream = "promotion"
	StreamMerit       Stream = "merit"
	StreamEnrollment  Stream = "enrollment"
	StreamDeferral    Stream = "deferral"
)

// Draw returns a uniform value in [0,1) for the given key. salt distinguishes
// a second independent draw within the same stream for the same
// employee-year (e.g. a hire's level bucket vs its starting-salary bucket);
// pass an empty salt for the common single-draw-per-stream case.
func Draw(seed int64, employeeID string, year int, stream Stream, salt string) float64 {
	key := buildKey(seed, employeeID, year, stream, salt)
	sum := md5.Sum([]byte(key))
	h := binary.BigEndian.Uint32(sum[:4])
	return float64(h%modulus) / float64(modulus)
}

func buildKey(seed int64, employeeID string, year int, stream Stream, salt string) string {
	if salt == "" {
		return fmt.Sprintf("%d|%s|%d|%s", seed, employeeID, year, stream)
	}
	return fmt.Sprintf("%d|%s|%d|%s|%s", seed, employeeID, year, stream, salt)
}

// BulkDraw precomputes one draw per employee for a given (year, stream) pair,
// so vector-mode event generators can join by column instead of recomputing
// per row. The result is keyed by employee_id.
func BulkDraw(seed int64, employeeIDs []string, year int, stream Stream, salt string) map[string]float64 {
	draws := make(map[string]float64, len(employeeIDs))
	for _, id := range employeeIDs {
		draws[id] = Draw(seed, id, year, stream, salt)
	}
	return draws
}
