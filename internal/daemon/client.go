package daemon

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
)

// Client is a thin wrapper around the same line-delimited protocol Server
// speaks, for a CLI verb (`trident stream-disk`) running as a separate
// process from the daemon to drive it.
type Client struct {
	conn net.Conn
	sc   *bufio.Scanner
	enc  *json.Encoder
}

func Dial(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial trident daemon at %s: %w", socketPath, err)
	}
	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Client{conn: conn, sc: sc, enc: json.NewEncoder(conn)}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) Version() (*VersionResponse, error) {
	if err := c.enc.Encode(Request{Method: "Version"}); err != nil {
		return nil, err
	}
	var resp VersionResponse
	if err := c.recv(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StreamDisk sends the StreamDisk request and invokes onFrame for every
// frame the daemon emits, stopping at the Completed frame (returned to the
// caller so it can surface Ok/Error/RebootRequired).
func (c *Client) StreamDisk(req StreamDiskRequest, onFrame func(Frame)) (*CompletedFrame, error) {
	if err := c.enc.Encode(Request{Method: "StreamDisk", Params: req}); err != nil {
		return nil, err
	}
	for c.sc.Scan() {
		var frame Frame
		if err := json.Unmarshal(c.sc.Bytes(), &frame); err != nil {
			return nil, fmt.Errorf("decode frame: %w", err)
		}
		onFrame(frame)
		if frame.Type == FrameCompleted {
			return frame.Completed, nil
		}
	}
	if err := c.sc.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("daemon closed the connection before a Completed frame arrived")
}

func (c *Client) recv(out interface{}) error {
	if !c.sc.Scan() {
		if err := c.sc.Err(); err != nil {
			return err
		}
		return fmt.Errorf("daemon closed the connection without responding")
	}
	var errResp ErrorResponse
	line := c.sc.Bytes()
	if err := json.Unmarshal(line, &errResp); err == nil && errResp.Error != "" {
		return fmt.Errorf("daemon: %s", errResp.Error)
	}
	return json.Unmarshal(line, out)
}
