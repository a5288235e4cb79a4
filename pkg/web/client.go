package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/teslashibe/go-planar/internal/httpc"
	"github.com/teslashibe/go-planar/pkg/sim"
)

// Client drives a remote simulator server over its HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL
// (e.g. "http://localhost:8080").
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpc.Client,
	}
}

// State returns the remote arm state.
func (c *Client) State(ctx context.Context) (*StateResponse, error) {
	var out StateResponse
	if err := httpc.DoJSON(ctx, c.http, http.MethodGet, c.baseURL+"/api/state", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Move runs a move on the server and waits for its result.
func (c *Client) Move(ctx context.Context, req MoveRequest) (*sim.Result, error) {
	var out sim.Result
	if err := httpc.DoJSON(ctx, c.http, http.MethodPost, c.baseURL+"/api/move", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reset returns the remote arm to home.
func (c *Client) Reset(ctx context.Context) (*StateResponse, error) {
	var out StateResponse
	if err := httpc.DoJSON(ctx, c.http, http.MethodPost, c.baseURL+"/api/reset", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Input queues an obstacle command on the server.
func (c *Client) Input(ctx context.Context, command string) error {
	return httpc.DoJSON(ctx, c.http, http.MethodPost, c.baseURL+"/api/input", InputRequest{Command: command}, nil)
}
