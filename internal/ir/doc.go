// Package ir provides the compiled grammar bundle representation.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Rule, Condition and Value are sealed interfaces; shapes are decided
//     once by the compiler, never re-inspected during expansion
//   - Decoded documents use *Object so authored key order survives
//   - Canonical JSON (MarshalCanonical) is the only serialization used for
//     hashing and golden traces
package ir
