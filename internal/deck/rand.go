package deck

import (
	cryptorand "crypto/rand"
	rand "math/rand/v2"
)

const goldenRatio64 = 0x9e3779b97f4a7c15

// CryptoRNG returns a *rand.Rand whose seed comes from crypto/rand.
// Shuffling with a predictable source would let an adversary who observes a
// few boards reconstruct the deck, so this is the only production source.
func CryptoRNG() *rand.Rand {
	var seed [32]byte
	if _, err := cryptorand.Read(seed[:]); err != nil {
		panic("failed to read crypto seed: " + err.Error())
	}
	return rand.New(rand.NewChaCha8(seed))
}

// SeededRNG returns a *rand.Rand seeded deterministically from the provided
// int64. The helper centralises how the two 64-bit seeds required by rand/v2
// are derived so that all call sites get reproducible sequences. Test-only
// by convention.
func SeededRNG(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
