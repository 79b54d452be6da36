package jsonrpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_Kind(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Kind
	}{
		{name: "request with number id", body: `{"jsonrpc":"2.0","id":1,"method":"initialize"}`, want: KindRequest},
		{name: "request with string id", body: `{"jsonrpc":"2.0","id":"a","method":"shutdown"}`, want: KindRequest},
		{name: "notification", body: `{"jsonrpc":"2.0","method":"initialized"}`, want: KindNotification},
		{name: "null id is a notification", body: `{"jsonrpc":"2.0","id":null,"method":"exit"}`, want: KindNotification},
		{name: "result response", body: `{"jsonrpc":"2.0","id":2,"result":{}}`, want: KindResponse},
		{name: "null result response", body: `{"jsonrpc":"2.0","id":2,"result":null}`, want: KindResponse},
		{name: "error response", body: `{"jsonrpc":"2.0","id":2,"error":{"code":-32603,"message":"x"}}`, want: KindResponse},
		{name: "result and error", body: `{"jsonrpc":"2.0","id":2,"result":1,"error":{"code":1,"message":"x"}}`, want: KindInvalid},
		{name: "empty object", body: `{}`, want: KindInvalid},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var msg Message
			require.NoError(t, json.Unmarshal([]byte(tc.body), &msg))
			assert.Equal(t, tc.want, msg.Kind())
		})
	}
}

func TestID_JSON(t *testing.T) {
	data, err := json.Marshal(NewNumberID(42))
	require.NoError(t, err)
	assert.Equal(t, "42", string(data))

	data, err = json.Marshal(NewStringID("abc"))
	require.NoError(t, err)
	assert.Equal(t, `"abc"`, string(data))

	var id ID
	require.NoError(t, json.Unmarshal([]byte(`"x-1"`), &id))
	assert.Equal(t, NewStringID("x-1"), id)
	assert.Equal(t, `"x-1"`, id.String())

	require.NoError(t, json.Unmarshal([]byte(`17`), &id))
	assert.Equal(t, NewNumberID(17), id)
	assert.Equal(t, "17", id.String())

	assert.Error(t, json.Unmarshal([]byte(`1.5`), &id))
	assert.Error(t, json.Unmarshal([]byte(`{}`), &id))
}

func TestNewNotification_OmitsNilParams(t *testing.T) {
	msg, err := NewNotification("exit", nil)
	require.NoError(t, err)

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Equal(t, `{"jsonrpc":"2.0","method":"exit"}`, string(data))
}

func TestNewErrorResponse(t *testing.T) {
	msg := NewErrorResponse(NewNumberID(3), CodeMethodNotFound, "method not found: foo")

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":3,"error":{"code":-32601,"message":"method not found: foo"}}`, string(data))
	assert.EqualError(t, msg.Error, "jsonrpc error -32601: method not found: foo")
}
