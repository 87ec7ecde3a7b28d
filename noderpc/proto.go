package noderpc

import (
	"github.com/fxamacker/cbor/v2"
)

// Method names understood by the node's control server.
const (
	MethodPing                = "ping"
	MethodGetStats            = "getstats"
	MethodGetConfigAll        = "getconfigall"
	MethodGetConfigParam      = "getconfigparam"
	MethodSendMessage         = "sendmessage"
	MethodSetStatesGcInterval = "setstatesgcinterval"
)

// request is the envelope carried as a control query payload.
type request struct {
	Method string          `cbor:"m"`
	Body   cbor.RawMessage `cbor:"b,omitempty"`
}

// response is the envelope carried back as the answer payload. Error and Body
// are mutually exclusive.
type response struct {
	Error string          `cbor:"e,omitempty"`
	Body  cbor.RawMessage `cbor:"b,omitempty"`
}

type pingBody struct {
	Value uint64 `cbor:"value"`
}

type configParamBody struct {
	Param uint32 `cbor:"param"`
}

type sendMessageBody struct {
	Message []byte `cbor:"message"`
}

type setStatesGcIntervalBody struct {
	IntervalMs uint32 `cbor:"interval_ms"`
}

// Stats is the node's answer to getstats.
type Stats struct {
	// Ready reports whether the node has synced far enough to serve the rest
	// of the fields.
	Ready bool `cbor:"ready"`

	// TimeDiff is the gap in seconds between now and the latest known
	// masterchain block. Large values mean the node is catching up.
	TimeDiff int32 `cbor:"time_diff"`

	// LastMcBlock identifies the latest applied masterchain block.
	LastMcBlock string `cbor:"last_mc_block,omitempty"`

	// InCurrentVset and InNextVset report whether the configured validator
	// key participates in the current and the next validator set.
	InCurrentVset bool `cbor:"in_current_vset"`
	InNextVset    bool `cbor:"in_next_vset"`
}

// Running reports whether the node is synced within maxTimeDiff seconds and
// usable as a validation target.
func (s *Stats) Running(maxTimeDiff int32) bool {
	return s.Ready && s.TimeDiff <= maxTimeDiff
}

// ConfigWithID is the node's answer to getconfigall: the serialized
// blockchain config along with the block it was read at. The config bytes are
// opaque here; decoding them is the business of tooling that understands the
// chain's formats.
type ConfigWithID struct {
	BlockID string `cbor:"block_id"`
	Config  []byte `cbor:"config"`
}

// NodeError is an error reported by the node itself: the query round trip
// succeeded but the node rejected or failed the command.
type NodeError struct {
	Method  string
	Message string
}

func (e *NodeError) Error() string {
	return "node rejected " + e.Method + ": " + e.Message
}
