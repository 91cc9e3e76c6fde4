// Package solo contains single-value, synchronous primitives over
// rop.Result[T]. They are the building blocks the tiny chain delegates to.
//
//   - Succeed/Fail: construct a Result[T]
//   - Switch: move from Result[In] to Result[Out]
//   - Map: transform a successful value
//   - Try: call a func returning (Out, error); context errors become cancels
//   - Tee: side effect on success
//   - Finally: reduce to a concrete value via success/error/cancel handlers
package solo
