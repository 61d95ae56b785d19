package reliability

// Category classifies a failure by where it happened, which decides whether
// the caller hears about it or the engine absorbs it and continues.
type Category string

const (
	CategoryConnection Category = "connection"
	CategoryDevice     Category = "device"
	CategoryDecode     Category = "decode"
	CategoryTool       Category = "tool"
	CategoryProtocol   Category = "protocol"
)

// UserVisible reports whether failures of this category surface through the
// caller's error callback. Decode, tool, and protocol failures are absorbed
// with best-effort continuation.
func (c Category) UserVisible() bool {
	switch c {
	case CategoryConnection, CategoryDevice:
		return true
	default:
		return false
	}
}

// IsRetryableCloseCode classifies websocket close codes where a fresh
// caller-initiated connect is worth attempting.
func IsRetryableCloseCode(code int) bool {
	switch code {
	case 1001, 1006, 1011, 1012, 1013:
		return true
	default:
		return false
	}
}

// IsRetryableSessionCode classifies remote session error codes the same way.
func IsRetryableSessionCode(code string) bool {
	switch code {
	case "rate_limited", "resource_exhausted", "unavailable", "overloaded":
		return true
	default:
		return false
	}
}
