// Package client calls the attestation service over HTTP, optionally through a
// vsock connection into the enclave the service runs in.
package client

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/DIMO-Network/initial-attestation/pkg/attest"
	"github.com/DIMO-Network/initial-attestation/pkg/server"
	"github.com/mdlayher/vsock"
)

// NewVsockHTTPClient returns an HTTP client whose connections all go to a
// vsock port of the given context ID, whatever the request URL host.
func NewVsockHTTPClient(cid, port uint32) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				conn, err := vsock.Dial(cid, port, nil)
				if err != nil {
					return nil, fmt.Errorf("failed to dial vsock: %w", err)
				}
				return conn, nil
			},
		},
	}
}

// APIError is a failed attestation request.
type APIError struct {
	HTTPStatus int
	Status     server.Status
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("attestation request failed: %s (%d): %s", e.Status, e.HTTPStatus, e.Message)
}

// Unwrap returns the attestation error kind of the status, so errors.Is works
// the same on both sides of the wire.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case server.StatusInitFailed:
		return attest.ErrInitFailed
	case server.StatusBufferOverflow:
		return attest.ErrTokenBufferOverflow
	case server.StatusClaimUnavailable:
		return attest.ErrClaimUnavailable
	case server.StatusInvalidArgument:
		return attest.ErrInvalidInput
	}
	return attest.ErrGeneral
}

// Client calls the attestation service.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New creates a Client for the service at baseURL.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{httpClient: httpClient, baseURL: baseURL}
}

// TokenSize returns the size of the token issued for a challenge of
// challengeSize bytes.
func (c *Client) TokenSize(ctx context.Context, challengeSize int, opts attest.Options) (uint32, error) {
	query := url.Values{}
	query.Set("challengeSize", strconv.Itoa(challengeSize))
	query.Set("keySelect", strconv.Itoa(int(opts.KeySelect)))
	query.Set("omitClaims", strconv.FormatBool(opts.OmitClaims))
	var resp server.SizeResponse
	if err := c.do(ctx, http.MethodGet, "/iat/size?"+query.Encode(), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Size, nil
}

// Token requests a token over challenge. A zero bufferSize lets the service
// size the buffer.
func (c *Client) Token(ctx context.Context, challenge []byte, opts attest.Options, bufferSize uint32) ([]byte, error) {
	req := server.TokenRequest{
		Challenge:        challenge,
		KeySelect:        opts.KeySelect,
		OmitClaims:       opts.OmitClaims,
		ShortCircuitSign: opts.ShortCircuitSign,
		BufferSize:       bufferSize,
	}
	var resp server.TokenResponse
	if err := c.do(ctx, http.MethodPost, "/iat/token", req, &resp); err != nil {
		return nil, err
	}
	return resp.Token, nil
}

// PublicKey returns the public key of a signing key slot.
func (c *Client) PublicKey(ctx context.Context, slot uint8) (crypto.PublicKey, *server.KeyResponse, error) {
	var resp server.KeyResponse
	if err := c.do(ctx, http.MethodGet, "/iat/keys/"+strconv.Itoa(int(slot)), nil, &resp); err != nil {
		return nil, nil, err
	}
	pub, err := x509.ParsePKIXPublicKey(resp.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return pub, &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		reqBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(reqBytes)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // ignore error

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{HTTPStatus: resp.StatusCode, Status: server.StatusGeneral, Message: string(respBytes)}
		var errResp server.ErrorResponse
		if json.Unmarshal(respBytes, &errResp) == nil && errResp.Message != "" {
			apiErr.Status = errResp.Status
			apiErr.Message = errResp.Message
		}
		return apiErr
	}
	if err := json.Unmarshal(respBytes, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
