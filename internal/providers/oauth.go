package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"shipping-gateway/internal/common/errors"
	"shipping-gateway/internal/common/logging"
)

// refreshSkew is how long before expiry a token is considered stale.
const refreshSkew = 2 * time.Minute

type cachedToken struct {
	accessToken string
	tokenURL    string
	clientID    string
	secret      string
	expiresAt   time.Time
}

// TokenCache caches OAuth2 client-credentials tokens per (tokenURL,
// clientID) pair. FedEx and UPS tokens expire hourly; fetching them lazily
// with proactive refresh keeps token acquisition off the request path's
// tail latency.
type TokenCache struct {
	client *http.Client
	logger logging.Logger

	mu     sync.Mutex
	tokens map[string]*cachedToken
}

// NewTokenCache creates a token cache using the given HTTP client.
func NewTokenCache(client *http.Client, logger logging.Logger) *TokenCache {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &TokenCache{
		client: client,
		logger: logger,
		tokens: make(map[string]*cachedToken),
	}
}

// Token returns a valid access token, fetching a fresh one when the cached
// token is missing or near expiry.
func (tc *TokenCache) Token(ctx context.Context, tokenURL, clientID, clientSecret string) (string, error) {
	key := tokenURL + "|" + clientID

	tc.mu.Lock()
	cached, ok := tc.tokens[key]
	if ok && time.Until(cached.expiresAt) > refreshSkew {
		token := cached.accessToken
		tc.mu.Unlock()
		return token, nil
	}
	tc.mu.Unlock()

	return tc.fetch(ctx, key, tokenURL, clientID, clientSecret)
}

// RefreshExpiring re-fetches every cached token within the refresh window.
// Called on a schedule so request-path calls almost always hit the cache.
func (tc *TokenCache) RefreshExpiring(ctx context.Context) {
	tc.mu.Lock()
	stale := make(map[string]*cachedToken)
	for key, tok := range tc.tokens {
		if time.Until(tok.expiresAt) <= refreshSkew*2 {
			stale[key] = tok
		}
	}
	tc.mu.Unlock()

	for key, tok := range stale {
		if _, err := tc.fetch(ctx, key, tok.tokenURL, tok.clientID, tok.secret); err != nil {
			tc.logger.Warn("Scheduled token refresh failed",
				logging.String("token_url", tok.tokenURL),
				logging.Err(err),
			)
		}
	}
}

func (tc *TokenCache) fetch(ctx context.Context, key, tokenURL, clientID, clientSecret string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.InternalError("failed to build token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := tc.client.Do(req)
	if err != nil {
		return "", errors.ConnectionError("token request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.AuthError(fmt.Sprintf("token endpoint returned status %d", resp.StatusCode))
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", errors.InternalError("failed to decode token response", err)
	}
	if body.AccessToken == "" {
		return "", errors.AuthError("token endpoint returned empty access token")
	}

	ttl := time.Duration(body.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}

	tc.mu.Lock()
	tc.tokens[key] = &cachedToken{
		accessToken: body.AccessToken,
		tokenURL:    tokenURL,
		clientID:    clientID,
		secret:      clientSecret,
		expiresAt:   time.Now().Add(ttl),
	}
	tc.mu.Unlock()

	return body.AccessToken, nil
}
