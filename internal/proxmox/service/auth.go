package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"pve-lxc/internal/logger"
	pvedomain "pve-lxc/internal/proxmox/domain"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

const (
	authCookieName = "PVEAuthCookie"
	csrfHeaderName = "CSRFPreventionToken"

	// Tickets are valid for two hours; renew a little earlier.
	ticketLifetime = 110 * time.Minute
)

type authenticator interface {
	authorize(req *http.Request) error
	// invalidate drops credentials the server has refused.
	invalidate()
}

// tokenAuth signs requests with a PVEAPIToken header. API tokens are exempt
// from CSRF checks.
type tokenAuth struct {
	header string
}

func newTokenAuth(tokenID, secret string) *tokenAuth {
	return &tokenAuth{header: fmt.Sprintf("PVEAPIToken=%s=%s", tokenID, secret)}
}

func (a *tokenAuth) authorize(req *http.Request) error {
	req.Header.Set("Authorization", a.header)
	return nil
}

func (a *tokenAuth) invalidate() {}

// ticketAuth signs requests with a login ticket cookie and, for anything but
// GET, the CSRF token that came with it. The ticket is shared by all requests
// until it expires or the server rejects it.
type ticketAuth struct {
	mu     sync.Mutex
	ticket *oauth2.Token
	login  ticketSource
}

func newTicketAuth(login ticketSource) *ticketAuth {
	return &ticketAuth{login: login}
}

func (a *ticketAuth) authorize(req *http.Request) error {
	tok, err := a.token(req.Context())
	if err != nil {
		return err
	}

	req.AddCookie(&http.Cookie{Name: authCookieName, Value: tok.AccessToken})

	if req.Method != http.MethodGet {
		if csrf, ok := tok.Extra(csrfHeaderName).(string); ok {
			req.Header.Set(csrfHeaderName, csrf)
		}
	}

	return nil
}

// token returns the current ticket, logging in with ctx when there is none.
// Holding mu while logging in keeps concurrent callers to a single login.
func (a *ticketAuth) token(ctx context.Context) (*oauth2.Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	src := a.login
	src.ctx = ctx

	tok, err := oauth2.ReuseTokenSource(a.ticket, &src).Token()
	if err != nil {
		return nil, err
	}

	a.ticket = tok

	return tok, nil
}

func (a *ticketAuth) invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.ticket = nil
}

// ticketSource logs in through access/ticket each time Token is called.
type ticketSource struct {
	ctx      context.Context
	log      *logger.Logger
	client   *http.Client
	url      string
	username string
	password string
}

func (s *ticketSource) Token() (*oauth2.Token, error) {
	s.log.Debug("Requesting ticket for %s", s.username)

	form := url.Values{
		"username": {s.username},
		"password": {s.password},
	}

	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, s.url, strings.NewReader(form.Encode()))
	if err != nil {
		s.log.Error("Failed to create request: %v", err)
		return nil, err
	}
	req.Header.Set("Content-Type", formContentType)

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Error("Failed to make POST request: %v", err)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		s.log.Error("Failed to read response body: %v", err)
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		s.log.Error("Failed to authenticate %s: %s", s.username, resp.Status)
		return nil, newAPIError(resp, http.MethodPost, ticketPath, body)
	}

	var authResp pvedomain.AuthResponse
	if err := json.Unmarshal(body, &authResp); err != nil {
		s.log.Error("Failed to unmarshal response: %v", err)
		return nil, fmt.Errorf("failed to decode ticket response: %w", err)
	}

	if authResp.Data.Ticket == "" {
		return nil, fmt.Errorf("authentication of %s returned no ticket", s.username)
	}

	s.log.Debug("Authentication successful for %s", s.username)

	tok := &oauth2.Token{
		AccessToken: authResp.Data.Ticket,
		TokenType:   authCookieName,
		Expiry:      time.Now().Add(ticketLifetime),
	}

	return tok.WithExtra(map[string]interface{}{
		csrfHeaderName: authResp.Data.CSRFPreventionToken,
	}), nil
}
