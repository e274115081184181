package rpc

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"github.com/tilewall/tilewall/internal/transport"
)

// Client issues one Request per Call over a caller-supplied stream, one
// smux stream per call, reading back exactly one Response line.
type Client struct {
	rw     io.ReadWriter
	reader *bufio.Reader
}

// NewClient wraps an already-open stream (a smux.Stream in production,
// a net.Conn or in-memory pipe in tests).
func NewClient(rw io.ReadWriter) *Client {
	return &Client{rw: rw, reader: bufio.NewReader(rw)}
}

// Call sends req and returns the dispatcher's Response.
func (c *Client) Call(req Request) (Response, error) {
	line, err := marshalLine(req)
	if err != nil {
		return Response{}, errors.Wrap(err, "marshal request")
	}
	if _, err := c.rw.Write(line); err != nil {
		return Response{}, errors.Wrap(err, "write request")
	}

	respLine, err := c.reader.ReadBytes('\n')
	if err != nil && len(respLine) == 0 {
		return Response{}, errors.Wrap(err, "read response")
	}
	var resp Response
	if err := json.Unmarshal(respLine, &resp); err != nil {
		return Response{}, errors.Wrap(err, "decode response")
	}
	return resp, nil
}

// CallScreenshot issues an OpScreenshot request and relays the image bytes
// that follow the response line onto dst, using the byte count the
// dispatcher reported in the response result.
func (c *Client) CallScreenshot(req Request, dst io.Writer) (Response, error) {
	resp, err := c.Call(req)
	if err != nil || !resp.OK {
		return resp, err
	}
	size, _ := resp.Result["bytes"].(float64)
	if _, err := transport.Copy(dst, io.LimitReader(c.reader, int64(size))); err != nil {
		return resp, errors.Wrap(err, "relay screenshot bytes")
	}
	return resp, nil
}
