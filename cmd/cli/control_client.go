package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

type controlClient struct {
	c *http.Client
}

func newControlClient(addr string) *controlClient {
	return &controlClient{c: &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				d := net.Dialer{}
				return d.DialContext(ctx, "unix", addr)
			},
		},
		Timeout: time.Second * 30,
	}}
}

func (c *controlClient) post(path string, data io.Reader) (*http.Response, error) {
	return c.c.Post("http://unix"+path, contentTypeJson, data)
}

func (c *controlClient) get(path string) (*http.Response, error) {
	return c.c.Get("http://unix" + path)
}

// call posts req as JSON to path, decoding the response into resp if not nil.
func (c *controlClient) call(path string, req, resp any) error {
	var body io.Reader
	if req != nil {
		buf, err := json.Marshal(req)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}
	res, err := c.post(path, body)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return decodeResponse(res, resp)
}

func decodeResponse(res *http.Response, resp any) error {
	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(res.Body)
		return fmt.Errorf("%w: %s: %s", errControlServer, res.Status, strings.TrimSpace(string(msg)))
	}
	if resp == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(resp)
}
