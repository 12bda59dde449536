// Package stream writes and reads property-list files through native
// streams.
//
// A call walks Created, Opened, then Serialized or Deserialized, then Closed.
// A stream that fails to open is released without being closed; an opened
// stream is closed exactly once on every path, including failures of the
// serializer or parser.
package stream
