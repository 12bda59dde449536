// Package codec converts values to foreign property-list objects and back.
//
// ToForeign builds a new object graph from a value.Value or any Go value that
// value.From accepts. Strings, arrays and dictionaries are created and owned
// by the caller; booleans are the image's two singletons. FromForeign reads a
// graph without taking ownership and rejects object kinds outside strings,
// arrays, dictionaries and booleans.
package codec
