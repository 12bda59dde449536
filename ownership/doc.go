// Package ownership tracks foreign references that must be released exactly
// once.
//
// Callers release handles deterministically, usually with defer:
//
//	o := ownership.AutoRelease(ref, release)
//	defer o.Release()
//
// A handle dropped without Release is released when the garbage collector
// reclaims it. Both paths share one sync.Once, so the release function never
// runs twice for the same handle.
package ownership
