package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"pve-lxc/internal/config"
	"pve-lxc/internal/logger"
	pvedomain "pve-lxc/internal/proxmox/domain"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
)

const (
	formContentType = "application/x-www-form-urlencoded"
	ticketPath      = "access/ticket"
)

// HTTPTransport talks to api2/json over HTTPS, authenticating with either an
// API token or a login ticket.
type HTTPTransport struct {
	log     *logger.Logger
	client  *http.Client
	baseURL string
	auth    authenticator
}

var _ Transport = (*HTTPTransport)(nil)

func NewHTTPTransport(cfg *config.ProxmoxConfig) (*HTTPTransport, error) {
	transport := cleanhttp.DefaultPooledTransport()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.RequestTimeout(),
	}

	return NewHTTPTransportWithClient(cfg, client)
}

// NewHTTPTransportWithClient uses client for every request, login included.
func NewHTTPTransportWithClient(cfg *config.ProxmoxConfig, client *http.Client) (*HTTPTransport, error) {
	baseURL := cfg.APIURL()
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid proxmox host %q: %w", cfg.Host, err)
	}

	ret := &HTTPTransport{
		log:     logger.NewLogger("ProxmoxTransport"),
		client:  client,
		baseURL: baseURL,
	}

	if cfg.UsesToken() {
		ret.auth = newTokenAuth(cfg.TokenID, cfg.TokenSecret)
	} else {
		ret.auth = newTicketAuth(ticketSource{
			log:      ret.log,
			client:   client,
			url:      baseURL + ticketPath,
			username: cfg.UserID(),
			password: cfg.Password,
		})
	}

	return ret, nil
}

func (h *HTTPTransport) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return h.do(ctx, http.MethodGet, path, nil)
}

func (h *HTTPTransport) Post(ctx context.Context, path string, body url.Values) (json.RawMessage, error) {
	return h.do(ctx, http.MethodPost, path, body)
}

func (h *HTTPTransport) Put(ctx context.Context, path string, body url.Values) (json.RawMessage, error) {
	return h.do(ctx, http.MethodPut, path, body)
}

func (h *HTTPTransport) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	return h.do(ctx, http.MethodDelete, path, nil)
}

func (h *HTTPTransport) do(ctx context.Context, method, path string, body url.Values) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reader = strings.NewReader(body.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+strings.TrimPrefix(path, "/"), reader)
	if err != nil {
		h.log.Error("Failed to create request: %v", err)
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", formContentType)
	}

	if err := h.auth.authorize(req); err != nil {
		h.log.Error("Failed to get ticket: %v", err)
		return nil, err
	}

	h.log.Debug("%s %s", method, path)

	resp, err := h.client.Do(req)
	if err != nil {
		h.log.Error("Failed to make request: %v", err)
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		h.log.Error("Failed to read response body: %v", err)
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		h.auth.invalidate()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(resp, method, path, raw)
		h.log.Debug("Request failed: %v", apiErr)
		return nil, apiErr
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	var envelope pvedomain.Response
	if err := json.Unmarshal(raw, &envelope); err != nil {
		h.log.Error("Failed to unmarshal response: %v", err)
		return nil, fmt.Errorf("failed to decode response of %s %s: %w", method, path, err)
	}

	return envelope.Data, nil
}

// newAPIError builds an error from a failed reply. The API puts its message
// in the status line and per-parameter problems in the errors member.
func newAPIError(resp *http.Response, method, path string, body []byte) *pvedomain.APIError {
	ret := &pvedomain.APIError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Method:     method,
		Path:       path,
	}

	var envelope pvedomain.Response
	if err := json.Unmarshal(body, &envelope); err == nil {
		ret.Errors = envelope.Errors
		ret.Message = envelope.Message
	}

	return ret
}
