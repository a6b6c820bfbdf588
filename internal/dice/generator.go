package dice

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"sync"
)

// Faces is the number of sides on every die.
const Faces = 6

var ErrInvalidDiceCount = errors.New("dice count must be between 1 and 3")

// Roll returns count independent values uniformly distributed over 1..6.
// The result is fully determined by seed and count.
func Roll(seed int64, count int) ([]int, error) {
	if count < 1 || count > 3 {
		return nil, ErrInvalidDiceCount
	}
	return rollWith(rand.New(rand.NewSource(seed)), count), nil
}

func rollWith(rng *rand.Rand, count int) []int {
	values := make([]int, count)
	for i := range values {
		values[i] = rng.Intn(Faces) + 1
	}
	return values
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Generator draws dice for rounds. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator returns a generator seeded from crypto/rand.
func NewGenerator() (*Generator, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return NewSeededGenerator(seed), nil
}

func NewSeededGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

func (g *Generator) Roll(count int) ([]int, error) {
	if count < 1 || count > 3 {
		return nil, ErrInvalidDiceCount
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return rollWith(g.rng, count), nil
}
