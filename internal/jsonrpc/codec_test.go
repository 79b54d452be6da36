package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(body string) string {
	return "Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body
}

func TestWriter_ExactFraming(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	msg, err := NewResponse(NewNumberID(1), nil)
	require.NoError(t, err)
	require.NoError(t, w.Write(msg))

	body := `{"jsonrpc":"2.0","id":1,"result":null}`
	assert.Equal(t, "Content-Length: 38\r\n\r\n"+body, buf.String())
}

func TestWriter_LengthCountsUTF8Bytes(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.Write(map[string]string{"text": "héllo 世界"}))

	header, body, ok := strings.Cut(buf.String(), "\r\n\r\n")
	require.True(t, ok)
	assert.Equal(t, "Content-Length: "+strconv.Itoa(len(body)), header)
	assert.NotEqual(t, len([]rune(body)), len(body))
}

func TestRoundTrip(t *testing.T) {
	payloads := []struct {
		name   string
		result any
	}{
		{name: "null", result: nil},
		{name: "nested", result: map[string]any{
			"a": []any{1.0, "two", map[string]any{"three": true}},
			"b": map[string]any{"c": nil},
		}},
		{name: "unicode", result: map[string]any{"text": "naïve ☃ 𝄞 日本語"}},
		{name: "string", result: "plain"},
	}

	for _, tc := range payloads {
		t.Run(tc.name, func(t *testing.T) {
			original, err := NewResponse(NewStringID("req-"+tc.name), tc.result)
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, NewWriter(&buf).Write(original))

			decoded, err := NewReader(&buf, 0).Read()
			require.NoError(t, err)
			assert.Equal(t, original, decoded)
			assert.Equal(t, KindResponse, decoded.Kind())

			var got any
			require.NoError(t, json.Unmarshal(decoded.Result, &got))
			assert.Equal(t, tc.result, got)
		})
	}
}

func TestRoundTrip_ErrorResponse(t *testing.T) {
	original := NewErrorResponse(NewNumberID(7), CodeInternalError, "boom")

	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf).Write(original))

	decoded, err := NewReader(&buf, 0).Read()
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestReader_MultipleMessagesBackToBack(t *testing.T) {
	stream := frame(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`) +
		frame(`{"jsonrpc":"2.0","method":"initialized","params":{}}`)
	r := NewReader(strings.NewReader(stream), 0)

	first, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, "initialize", first.Method)
	assert.Equal(t, KindRequest, first.Kind())

	second, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, "initialized", second.Method)
	assert.Equal(t, KindNotification, second.Kind())

	_, err = r.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_HeaderTolerance(t *testing.T) {
	body := `{"jsonrpc":"2.0","method":"exit"}`
	stream := "Content-Type: application/vscode-jsonrpc; charset=utf-8\r\n" +
		"content-length: " + strconv.Itoa(len(body)) + "\n" +
		"X-Extra:value\r\n" +
		"\r\n" + body

	msg, err := NewReader(strings.NewReader(stream), 0).Read()
	require.NoError(t, err)
	assert.Equal(t, "exit", msg.Method)
}

func TestReader_NoMessage(t *testing.T) {
	tests := []struct {
		name   string
		stream string
	}{
		{name: "empty stream", stream: ""},
		{name: "eof in headers", stream: "Content-Length: 10\r\n"},
		{name: "zero length", stream: "Content-Length: 0\r\n\r\n"},
		{name: "missing length", stream: "Content-Type: x\r\n\r\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewReader(strings.NewReader(tc.stream), 0).Read()
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestReader_FramingErrors(t *testing.T) {
	t.Run("missing separator", func(t *testing.T) {
		_, err := NewReader(strings.NewReader("garbage\r\n\r\n"), 0).Read()
		var headerErr *HeaderError
		assert.True(t, errors.As(err, &headerErr), "got %T", err)
	})

	t.Run("non-integer length", func(t *testing.T) {
		_, err := NewReader(strings.NewReader("Content-Length: ten\r\n\r\n"), 0).Read()
		var headerErr *HeaderError
		assert.True(t, errors.As(err, &headerErr), "got %T", err)
	})

	t.Run("negative length", func(t *testing.T) {
		_, err := NewReader(strings.NewReader("Content-Length: -4\r\n\r\n"), 0).Read()
		var headerErr *HeaderError
		assert.True(t, errors.As(err, &headerErr), "got %T", err)
	})

	t.Run("truncated body", func(t *testing.T) {
		_, err := NewReader(strings.NewReader("Content-Length: 50\r\n\r\n{}"), 0).Read()
		var truncErr *TruncatedBodyError
		assert.True(t, errors.As(err, &truncErr), "got %T", err)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := NewReader(strings.NewReader(frame(`{"jsonrpc":`)), 0).Read()
		var parseErr *ParseError
		assert.True(t, errors.As(err, &parseErr), "got %T", err)
	})

	t.Run("invalid utf8", func(t *testing.T) {
		_, err := NewReader(strings.NewReader(frame("\"\xff\"")), 0).Read()
		var parseErr *ParseError
		assert.True(t, errors.As(err, &parseErr), "got %T", err)
	})
}

func TestReader_MessageSizeLimit(t *testing.T) {
	hostile := []string{
		"Content-Length: 9223372036854775807\r\n\r\n{}",
		"Content-Length: 2000000000\r\n\r\n{}",
		"Content-Length: 99999999999999999999\r\n\r\n{}",
	}
	for _, stream := range hostile {
		_, err := NewReader(strings.NewReader(stream), 0).Read()
		var headerErr *HeaderError
		assert.True(t, errors.As(err, &headerErr), "stream %q: got %v", stream, err)
	}

	body := `{"jsonrpc":"2.0","method":"exit"}`

	t.Run("at limit", func(t *testing.T) {
		msg, err := NewLimitedReader(strings.NewReader(frame(body)), 0, len(body)).Read()
		require.NoError(t, err)
		assert.Equal(t, "exit", msg.Method)
	})

	t.Run("over limit", func(t *testing.T) {
		_, err := NewLimitedReader(strings.NewReader(frame(body)), 0, len(body)-1).Read()
		var headerErr *HeaderError
		require.True(t, errors.As(err, &headerErr), "got %v", err)
		assert.Contains(t, headerErr.Error(), "exceeds")
	})
}
