// Package youtube implements the remote platform adapters: OAuth2
// credential plumbing, the resumable upload transport, and collection
// (playlist) management.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
)

// Scopes required for uploading videos and managing playlists.
var Scopes = []string{
	"https://www.googleapis.com/auth/youtube.upload",
	"https://www.googleapis.com/auth/youtube",
}

// secretsDoc mirrors the installed-app client secrets document.
type secretsDoc struct {
	Installed *clientSecrets `json:"installed"`
	Web       *clientSecrets `json:"web"`
}

type clientSecrets struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	AuthURI      string   `json:"auth_uri"`
	TokenURI     string   `json:"token_uri"`
	RedirectURIs []string `json:"redirect_uris"`
}

// OAuthConfig loads an oauth2.Config from a client secrets JSON file.
func OAuthConfig(path string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read client secrets: %w", err)
	}

	var doc secretsDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse client secrets: %w", err)
	}

	sec := doc.Installed
	if sec == nil {
		sec = doc.Web
	}
	if sec == nil || sec.ClientID == "" {
		return nil, fmt.Errorf("client secrets %s: no installed or web credentials", path)
	}

	redirect := "urn:ietf:wg:oauth:2.0:oob"
	if len(sec.RedirectURIs) > 0 {
		redirect = sec.RedirectURIs[0]
	}

	return &oauth2.Config{
		ClientID:     sec.ClientID,
		ClientSecret: sec.ClientSecret,
		RedirectURL:  redirect,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  sec.AuthURI,
			TokenURL: sec.TokenURI,
		},
	}, nil
}

// LoadToken reads a cached OAuth2 token.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token cache: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parse token cache: %w", err)
	}
	return &tok, nil
}

// SaveToken writes the token cache with owner-only permissions.
func SaveToken(path string, tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write token cache: %w", err)
	}
	return nil
}

// cachingSource persists refreshed tokens back to the cache file so the
// next run does not need a fresh authorization.
type cachingSource struct {
	src  oauth2.TokenSource
	path string
	last string
}

func (c *cachingSource) Token() (*oauth2.Token, error) {
	tok, err := c.src.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != c.last {
		c.last = tok.AccessToken
		// Best effort: a failed cache write only costs a refresh next run.
		_ = SaveToken(c.path, tok)
	}
	return tok, nil
}

// Client builds an authenticated HTTP client from the client secrets and
// token cache files, refreshing and re-caching the token as needed.
func Client(ctx context.Context, secretsPath, tokenPath string) (*http.Client, error) {
	conf, err := OAuthConfig(secretsPath)
	if err != nil {
		return nil, err
	}

	tok, err := LoadToken(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("no usable token (run authorization first): %w", err)
	}

	src := &cachingSource{
		src:  conf.TokenSource(ctx, tok),
		path: tokenPath,
		last: tok.AccessToken,
	}
	return oauth2.NewClient(ctx, src), nil
}

// AuthURL returns the URL a user must visit to authorize the uploader.
func AuthURL(conf *oauth2.Config) string {
	return conf.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token and caches it.
func Exchange(ctx context.Context, conf *oauth2.Config, code, tokenPath string) (*oauth2.Token, error) {
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	if err := SaveToken(tokenPath, tok); err != nil {
		return nil, err
	}
	return tok, nil
}
