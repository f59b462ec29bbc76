// Package random provides the randomness sources used by the simulator:
// a seeded die, seed generation, and scripted dice for tests and replays.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Dice rolls seeded dice. Given the same seed, the sequence of rolls for the
// same sequence of die sizes is always the same.
type Dice struct {
	mu    sync.Mutex
	seed  int64
	rng   *rand.Rand
	rolls int
}

// pcgStream fixes the PCG increment so a seed alone picks the sequence.
const pcgStream = 0x6c696e65616765

// NewDice creates a die source from seed.
func NewDice(seed int64) *Dice {
	return &Dice{
		seed: seed,
		rng:  rand.New(rand.NewPCG(uint64(seed), pcgStream)),
	}
}

// Roll returns a value in [1, sides]. Non-positive sides yield 1.
func (d *Dice) Roll(sides int) int {
	if sides <= 0 {
		return 1
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.rolls++
	return d.rng.IntN(sides) + 1
}

// Seed returns the seed the source was created with.
func (d *Dice) Seed() int64 {
	return d.seed
}

// Rolls returns how many dice have been rolled.
func (d *Dice) Rolls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rolls
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// SeedFromPhrase derives a seed from a phrase with BLAKE2b-256.
// Leading and trailing whitespace is ignored.
func SeedFromPhrase(phrase string) int64 {
	sum := blake2b.Sum256([]byte(strings.TrimSpace(phrase)))
	return int64(binary.LittleEndian.Uint64(sum[:8]))
}

// ══════════════════════════════════════════════════════════════════════════════
// SCRIPTED DICE
// ══════════════════════════════════════════════════════════════════════════════

// Scripted replays a fixed list of faces, then falls back to Then (or the
// last face when Then is nil). Faces are clamped to [1, sides].
type Scripted struct {
	mu    sync.Mutex
	faces []int
	next  int
	Then  interface{ Roll(sides int) int }
}

// NewScripted creates a scripted source.
func NewScripted(faces ...int) *Scripted {
	return &Scripted{faces: append([]int(nil), faces...)}
}

// Roll implements the die interface.
func (s *Scripted) Roll(sides int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next < len(s.faces) {
		face := s.faces[s.next]
		s.next++
		return clamp(face, sides)
	}
	if s.Then != nil {
		return s.Then.Roll(sides)
	}
	if len(s.faces) == 0 {
		return 1
	}
	return clamp(s.faces[len(s.faces)-1], sides)
}

// Remaining returns how many scripted faces are left.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.faces) - s.next
}

func clamp(face, sides int) int {
	if face < 1 {
		return 1
	}
	if sides > 0 && face > sides {
		return sides
	}
	return face
}
