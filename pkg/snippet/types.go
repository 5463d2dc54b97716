// Package snippet provides a client for the UiAutomator snippet running on
// the device. The wire protocol is line-delimited JSON-RPC: a handshake
// followed by one request line and one response line per call.
package snippet

import "encoding/json"

// Handshake commands.
const (
	cmdInitiate = "initiate"
	cmdContinue = "continue"
)

// handshakeRequest opens or resumes a session.
type handshakeRequest struct {
	Cmd string `json:"cmd"`
	UID int    `json:"uid"`
}

// handshakeResponse acknowledges a session.
type handshakeResponse struct {
	Status bool `json:"status"`
	UID    int  `json:"uid"`
}

// Request is one RPC call.
type Request struct {
	ID     int64         `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

// Response is one RPC reply.
type Response struct {
	ID       int64           `json:"id"`
	Result   json.RawMessage `json:"result"`
	Callback *string         `json:"callback"`
	Error    *string         `json:"error"`
}

// Method signatures: positional parameter names following the selector.
// Operations listed in noSelector take no leading selector argument.
var methodParams = map[string][]string{
	"click":               {"x", "y"},
	"clickObj":            {"duration"},
	"clickObjPoint":       {"x", "y", "duration"},
	"clickObjAndWait":     {"timeout"},
	"longClick":           nil,
	"clear":               nil,
	"setText":             {"text"},
	"findChildObjects":    {"selector"},
	"getChildren":         nil,
	"dragObj":             {"x", "y", "speed"},
	"dragObjToObj":        {"target", "speed"},
	"fling":               {"direction", "speed", "margin", "marginPercent"},
	"swipeObj":            {"direction", "percent", "speed", "margin", "marginPercent"},
	"scroll":              {"direction", "percent", "speed", "margin", "marginPercent"},
	"scrollUntil":         {"target", "direction", "margin", "marginPercent"},
	"scrollUntilFinished": {"direction", "margin", "marginPercent"},
	"pinchOpen":           {"percent", "speed"},
	"pinchClose":          {"percent", "speed"},
	"getObjInfo":          nil,
	"findObjects":         nil,
}

var noSelector = map[string]bool{
	"click": true,
}

// Remote methods answering with null when nothing matches.
var nullMeansNotFound = map[string]bool{
	"getObjInfo":  true,
	"getChildren": true,
}
