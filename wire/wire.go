// Package wire implements the TCP request/response framing described in
// spec.md §6: an 8-byte little-endian length prefix followed by a body,
// grounded on original_source/src/tcp_io_parser.rs's Parser (same header
// shape, same "exit" sentinel closing the connection).
package wire

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/touchhouse/touchhouse/toucherr"
)

const headerSize = 8

// ExitCommand is the literal request body that ends a connection,
// matching the original's REPL/CLI "exit" handling.
const ExitCommand = "exit"

// ReadRequest reads one length-prefixed SQL-text request from r.
func ReadRequest(r io.Reader) (string, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return "", err
	}
	bodySize := binary.LittleEndian.Uint64(header[:])

	body := make([]byte, bodySize)
	if _, err := io.ReadFull(r, body); err != nil {
		return "", err
	}
	return string(body), nil
}

// WriteRequest frames sql as a request body and writes it to w — used by
// a client (or tests) driving the protocol from the other end.
func WriteRequest(w io.Writer, sql string) error {
	return writeFrame(w, []byte(sql))
}

// Column is one named, typed result column, the wire-level projection of
// an OutputTable column (original_source/src/storage/mod.rs's
// `Column`/`OutputTable`): a name, its value type name, and its values
// already rendered to strings so the wire format has no dependency on
// package value's binary encoding.
type Column struct {
	Name   string   `json:"name"`
	Type   string   `json:"type"`
	Values []string `json:"values"`
}

// Response is the body of a framed reply: either a successful result
// table or an error message, mirroring the original's
// `Result<OutputTable, String>` response shape.
type Response struct {
	Columns []Column `json:"columns,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// OK builds the single-column "OK" acknowledgement response the original
// returns for DDL/INSERT statements (`OutputTable::build_ok`).
func OK() Response {
	return Response{Columns: []Column{{Name: "OK", Type: "String", Values: []string{"OK"}}}}
}

// ErrorResponse wraps err as a Response carrying only its message.
func ErrorResponse(err error) Response {
	return Response{Error: err.Error()}
}

// WriteResponse JSON-encodes resp and writes it as one length-prefixed
// frame. JSON, not the original's MessagePack, is the serialization here:
// no example repo in the pack vendors a MessagePack library, and
// encoding/json is what every pack repo already reaches for when it needs
// to serialize a response body (see DESIGN.md's wire ledger entry).
func WriteResponse(w io.Writer, resp Response) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return toucherr.Newf(toucherr.Internal, "encode response: %v", err)
	}
	return writeFrame(w, body)
}

func writeFrame(w io.Writer, body []byte) error {
	var header [headerSize]byte
	binary.LittleEndian.PutUint64(header[:], uint64(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// ReadResponse reads and decodes one framed Response — the client-side
// counterpart of WriteResponse, used by tests driving the protocol.
func ReadResponse(r io.Reader) (Response, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Response{}, err
	}
	bodySize := binary.LittleEndian.Uint64(header[:])

	body := make([]byte, bodySize)
	if _, err := io.ReadFull(r, body); err != nil {
		return Response{}, err
	}
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return Response{}, toucherr.Newf(toucherr.Internal, "decode response: %v", err)
	}
	return resp, nil
}
