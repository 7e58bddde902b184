package engine

import (
	"math/rand/v2"
	"unicode/utf16"
)

// Source produces pseudo-random floats in [0,1).
type Source interface {
	Float64() float64
}

// SourceFunc adapts a function to Source.
type SourceFunc func() float64

func (f SourceFunc) Float64() float64 { return f() }

// unseededSource draws from the runtime's global generator.
var unseededSource Source = SourceFunc(rand.Float64)

// Mulberry32 is a small 32-bit generator. Seeded from a string through
// HashSeed, it reproduces the same sequence as the browser build of the
// generator, so a textual seed shared between the two yields identical
// prompts.
//
// Not safe for concurrent use.
type Mulberry32 struct {
	state uint32
}

// NewMulberry32 returns a generator starting from state.
func NewMulberry32(state uint32) *Mulberry32 {
	return &Mulberry32{state: state}
}

// NewSeededSource returns a Mulberry32 seeded with HashSeed(seed).
func NewSeededSource(seed string) *Mulberry32 {
	return NewMulberry32(HashSeed(seed))
}

// Float64 advances the generator.
func (m *Mulberry32) Float64() float64 {
	m.state += 0x6D2B79F5
	t := m.state
	t = (t ^ t>>15) * (t | 1)
	t ^= t + (t^t>>7)*(t|61)
	return float64(t^t>>14) / 4294967296
}

// HashSeed is 32-bit FNV-1a over the UTF-16 code units of s.
func HashSeed(s string) uint32 {
	h := uint32(2166136261)
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h ^ uint32(c)) * 16777619
	}
	return h
}
