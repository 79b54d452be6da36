package lsp

import (
	"github.com/woxQAQ/basic-lsp-server/pkg/protocol"
)

// Method is the closed set of methods the server understands. Any other
// method name parses to MethodUnknown.
type Method int

const (
	MethodUnknown Method = iota
	MethodInitialize
	MethodInitialized
	MethodShutdown
	MethodExit
	MethodDidOpen
	MethodDidChange
	MethodDidClose
	MethodDidSave
)

var methodNames = map[string]Method{
	protocol.MethodInitialize:  MethodInitialize,
	protocol.MethodInitialized: MethodInitialized,
	protocol.MethodShutdown:    MethodShutdown,
	protocol.MethodExit:        MethodExit,
	protocol.MethodDidOpen:     MethodDidOpen,
	protocol.MethodDidChange:   MethodDidChange,
	protocol.MethodDidClose:    MethodDidClose,
	protocol.MethodDidSave:     MethodDidSave,
}

// ParseMethod maps a wire method name to its Method.
func ParseMethod(name string) Method {
	if m, ok := methodNames[name]; ok {
		return m
	}
	return MethodUnknown
}

func (m Method) String() string {
	switch m {
	case MethodInitialize:
		return protocol.MethodInitialize
	case MethodInitialized:
		return protocol.MethodInitialized
	case MethodShutdown:
		return protocol.MethodShutdown
	case MethodExit:
		return protocol.MethodExit
	case MethodDidOpen:
		return protocol.MethodDidOpen
	case MethodDidChange:
		return protocol.MethodDidChange
	case MethodDidClose:
		return protocol.MethodDidClose
	case MethodDidSave:
		return protocol.MethodDidSave
	default:
		return "unknown"
	}
}
