package webapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
)

// maybeRefreshToken exchanges a configured refresh token for a fresh
// access token. A failed refresh keeps the previous token: the platform
// may still accept it, so the connector degrades with a warning instead
// of going dark.
func (c *Client) maybeRefreshToken(ctx context.Context) error {
	refreshToken := c.credential("refresh_token")
	tokenURL := c.credential("token_url")
	if refreshToken == "" || tokenURL == "" {
		return nil
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	if id := c.credential("client_id"); id != "" {
		form.Set("client_id", id)
	}
	if secret := c.credential("client_secret"); secret != "" {
		form.Set("client_secret", secret)
	}

	token, err := c.requestToken(ctx, tokenURL, form)
	if err != nil {
		log.Printf("[%s] Token refresh failed, keeping previous token: %v", c.platform, err)
		return nil
	}

	c.mu.Lock()
	c.creds["access_token"] = token
	c.mu.Unlock()
	log.Printf("[%s] Access token refreshed", c.platform)
	return nil
}

func (c *Client) requestToken(ctx context.Context, tokenURL string, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", err
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned no access_token")
	}
	return result.AccessToken, nil
}
