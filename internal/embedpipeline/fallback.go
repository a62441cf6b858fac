package embedpipeline

import "hash/fnv"

// fallbackVector derives a deterministic pseudo-random vector of length dim
// from text, for use when a provider persistently fails. Determinism is the
// point: the same degraded input always gets the same fallback vector, so
// tests can assert the behaviour and replays stay idempotent.
func fallbackVector(text string, dim int) []float32 {
	vec := make([]float32, dim)
	if dim == 0 {
		return vec
	}

	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	// A simple xorshift64 PRNG seeded from the FNV hash. Not cryptographic,
	// just deterministic and cheap.
	state := seed
	if state == 0 {
		state = 1
	}
	for i := range vec {
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		// Map to [-1, 1).
		vec[i] = float32(state%2000)/1000.0 - 1.0
	}
	return vec
}
