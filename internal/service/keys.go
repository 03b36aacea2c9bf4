package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"pve-lxc/internal/logger"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
)

// DefaultKeysURL serves the public keys of a GitHub account at <user>.keys.
const DefaultKeysURL = "https://github.com/"

// KeyService fetches published SSH public keys for container root accounts.
type KeyService struct {
	baseURL string
	client  *http.Client
	log     *logger.Logger
}

func NewKeyService(baseURL string) *KeyService {
	if baseURL == "" {
		baseURL = DefaultKeysURL
	}

	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &KeyService{
		baseURL: baseURL,
		client:  cleanhttp.DefaultClient(),
		log:     logger.NewLogger("KeyService"),
	}
}

// PublicKeys returns the keys of every user, one per line, in the order given.
// A user without keys is an error.
func (s *KeyService) PublicKeys(ctx context.Context, users ...string) (string, error) {
	var keys []string

	for _, user := range users {
		s.log.Debug("Getting public keys of %s", user)

		userKeys, err := s.publicKeys(ctx, user)
		if err != nil {
			s.log.Error("Failed to get public keys of %s: %v", user, err)
			return "", err
		}

		if len(userKeys) == 0 {
			return "", fmt.Errorf("no public key found for user %s", user)
		}

		keys = append(keys, userKeys...)
	}

	return strings.Join(keys, "\n"), nil
}

func (s *KeyService) publicKeys(ctx context.Context, user string) ([]string, error) {
	target := s.baseURL + url.PathEscape(user) + ".keys"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", target, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, line := range strings.Split(string(body), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			keys = append(keys, line)
		}
	}

	return keys, nil
}
