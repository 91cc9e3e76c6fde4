// Package core contains pipeline plumbing: feeding a channel of results,
// worker configuration via context, and the locomotive that drives one
// worker over a channel. It does not define business logic.
package core
