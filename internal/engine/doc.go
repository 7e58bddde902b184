// Package engine implements the grammar expansion engine.
//
// The engine receives fully resolved bundle documents (see package loader),
// compiles them once, and expands rules into text on demand.
//
// EXPANSION:
//
// Generation starts at an entry point and recurses through rules:
//  1. expand(rule) checks the override map, then the grammar, then the
//     cycle guard, and dispatches on the compiled rule shape
//  2. option lists and weighted/markov rules make one weighted draw among
//     the options whose conditions hold and fire the winner's actions
//  3. conditional rules take the first option whose conditions hold
//  4. sequential rules join every option in order
//  5. every chosen text is passed through substitute, which expands nested
//     #rule.modifier# tokens and then fills #variable# tokens
//
// Gaps in bundle content (missing rules, no candidates, cycles) never fail
// a call: a bracketed placeholder such as "[MISSING RULE: name]" is
// written into the output and a warning is logged. Only caller mistakes
// (no bundle, unknown bundle, unknown target) return an *EngineError.
//
// DETERMINISM:
//
// All randomness comes from one Source per engine. After SetSeed the
// sequence of outputs for a fixed bundle and call sequence is fixed.
// Variables mutated by actions persist across calls until the bundle is
// reloaded or unloaded.
package engine
