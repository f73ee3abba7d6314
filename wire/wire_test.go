package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRequest(&buf, "SELECT 1"))

	got, err := ReadRequest(&buf)
	require.NoError(t, err)
	require.Equal(t, "SELECT 1", got)
}

func TestResponseRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	resp := Response{Columns: []Column{{Name: "id", Type: "Int64", Values: []string{"1", "2"}}}}
	require.NoError(t, WriteResponse(&buf, resp))

	got, err := ReadResponse(&buf)
	require.NoError(t, err)
	require.Equal(t, resp, got)
}

func TestOKResponse(t *testing.T) {
	resp := OK()
	require.Len(t, resp.Columns, 1)
	require.Equal(t, "OK", resp.Columns[0].Name)
}

func TestErrorResponseCarriesMessage(t *testing.T) {
	resp := ErrorResponse(errString("boom"))
	require.Equal(t, "boom", resp.Error)
	require.Empty(t, resp.Columns)
}

type errString string

func (e errString) Error() string { return string(e) }
