// Package tiny provides a minimal fluent Chain[T] for synchronous
// composition of Result[T] values over a single value type.
//
//   - Start/FromValue: create a Chain
//   - Then/Step/ThenTry: compose result-returning or error-returning functions
//   - Map: transform the value
//   - Tee/Ensure: side effects that leave the result untouched
//   - Finally: reduce to a concrete value via handlers
//
// The tag-and-probe reducer is written as one Chain over its chunk state,
// one Step per selection stage.
package tiny
