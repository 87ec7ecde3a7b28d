package noderpc

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/xerrors"

	"github.com/nodeward/nodeward/control"
)

// Client issues typed commands to a node's control endpoint. Safe for
// concurrent use; commands share one control connection and are multiplexed
// by it.
type Client struct {
	conn *control.Conn
}

// NewClient wraps an established control connection.
func NewClient(conn *control.Conn) *Client {
	return &Client{conn: conn}
}

// Close closes the underlying control connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(ctx context.Context, method string, body, out interface{}) error {
	var rawBody cbor.RawMessage
	if body != nil {
		var err error
		rawBody, err = cbor.Marshal(body)
		if err != nil {
			return xerrors.Errorf("encoding %s body: %w", method, err)
		}
	}
	payload, err := cbor.Marshal(request{Method: method, Body: rawBody})
	if err != nil {
		return xerrors.Errorf("encoding %s request: %w", method, err)
	}

	answer, err := c.conn.Call(ctx, payload)
	if err != nil {
		return xerrors.Errorf("%s: %w", method, err)
	}

	var resp response
	if err := cbor.Unmarshal(answer, &resp); err != nil {
		return xerrors.Errorf("decoding %s response: %w", method, err)
	}
	if resp.Error != "" {
		return &NodeError{Method: method, Message: resp.Error}
	}
	if out != nil {
		if err := cbor.Unmarshal(resp.Body, out); err != nil {
			return xerrors.Errorf("decoding %s response body: %w", method, err)
		}
	}
	return nil
}

// Ping checks that the control round trip works: the node must echo the
// random value back.
func (c *Client) Ping(ctx context.Context) error {
	var nonce [8]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return err
	}
	sent := binary.LittleEndian.Uint64(nonce[:])

	var got pingBody
	if err := c.call(ctx, MethodPing, &pingBody{Value: sent}, &got); err != nil {
		return err
	}
	if got.Value != sent {
		return xerrors.Errorf("ping value mismatch: sent %d, got %d", sent, got.Value)
	}
	return nil
}

// GetStats fetches the node's sync and validation status.
func (c *Client) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := c.call(ctx, MethodGetStats, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetConfigAll fetches the serialized blockchain config at the latest block.
func (c *Client) GetConfigAll(ctx context.Context) (*ConfigWithID, error) {
	var config ConfigWithID
	if err := c.call(ctx, MethodGetConfigAll, nil, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// GetConfigParam fetches one serialized blockchain config parameter.
func (c *Client) GetConfigParam(ctx context.Context, param uint32) ([]byte, error) {
	var value []byte
	if err := c.call(ctx, MethodGetConfigParam, &configParamBody{Param: param}, &value); err != nil {
		return nil, err
	}
	return value, nil
}

// SendMessage hands a signed external message to the node for broadcasting.
// Delivery is not awaited: a nil error means the node accepted the bytes,
// nothing more.
func (c *Client) SendMessage(ctx context.Context, message []byte) error {
	return c.call(ctx, MethodSendMessage, &sendMessageBody{Message: message}, nil)
}

// SetStatesGcInterval reconfigures the node's shard state garbage collection
// interval.
func (c *Client) SetStatesGcInterval(ctx context.Context, interval time.Duration) error {
	ms := interval.Milliseconds()
	if ms <= 0 || ms > int64(^uint32(0)) {
		return xerrors.Errorf("interval %s out of range", interval)
	}
	return c.call(ctx, MethodSetStatesGcInterval, &setStatesGcIntervalBody{IntervalMs: uint32(ms)}, nil)
}
