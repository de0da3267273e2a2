/*
Package protocol implements Starhost's line-oriented wire protocol.

Requests are arrays of length-prefixed bulk strings (verb followed by
arguments); responses are a single value: simple string, integer, bulk
string, array, or a status-code-prefixed error. The framing is compatible
with the conventions of common in-memory key/value stores, so standard
tooling can speak to the server for debugging.

# Wire Format

	Request:   *3\r\n$4\r\nUSER\r\n$2\r\nua\r\n ...
	Simple:    +OK\r\n
	Integer:   :42\r\n
	Bulk:      $5\r\nhello\r\n
	Array:     *2\r\n:1\r\n$1\r\na\r\n
	Error:     -403 permission denied\r\n

Maps have no native framing; they flatten to arrays of alternating keys
and values. Null encodes as $-1.

# Value Model

Value is a tagged sum type (Null | Integer | String | Array | Map | Error)
with owning containers, so handlers build responses without worrying
about wire representation:

	v := protocol.NewMap(
		protocol.MapEntry{Key: "status", Value: protocol.NewInt(1)},
		protocol.MapEntry{Key: "game", Value: protocol.NewInt(7)},
	)

# Error Taxonomy

Errors carry a three-digit status code: 400 bad request, 403 permission
denied, 404 not found, 407 mail mismatch, 409 conflict, 412 wrong state,
601 directory in use. AsError converts internal errors to code 500.
*/
package protocol
