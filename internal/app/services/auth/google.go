package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/sudoku-arena/arena-api/pkg/logger"
)

const defaultUserinfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// GoogleProfile is the subset of the userinfo response the service needs.
type GoogleProfile struct {
	Subject string
	Email   string
	Name    string
}

// GoogleVerifier exchanges OAuth2 codes and resolves Google profiles.
type GoogleVerifier struct {
	config      *oauth2.Config
	client      *http.Client
	userinfoURL string
	log         *logger.Logger
}

// NewGoogleVerifier builds a verifier for the given OAuth2 client.
func NewGoogleVerifier(clientID, clientSecret, redirectURL string, log *logger.Logger) (*GoogleVerifier, error) {
	clientID = strings.TrimSpace(clientID)
	clientSecret = strings.TrimSpace(clientSecret)
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("google client id and secret are required")
	}
	if log == nil {
		log = logger.NewDefault("google-auth")
	}
	return &GoogleVerifier{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		client:      &http.Client{Timeout: 10 * time.Second},
		userinfoURL: defaultUserinfoURL,
		log:         log,
	}, nil
}

// Verify resolves a profile from either an authorization code or an access
// token obtained by the frontend.
func (v *GoogleVerifier) Verify(ctx context.Context, code, accessToken string) (GoogleProfile, error) {
	accessToken = strings.TrimSpace(accessToken)
	code = strings.TrimSpace(code)

	if accessToken == "" {
		if code == "" {
			return GoogleProfile{}, fmt.Errorf("either code or access_token is required")
		}
		token, err := v.config.Exchange(ctx, code)
		if err != nil {
			return GoogleProfile{}, fmt.Errorf("exchange authorization code: %w", err)
		}
		accessToken = token.AccessToken
	}

	return v.fetchProfile(ctx, accessToken)
}

func (v *GoogleVerifier) fetchProfile(ctx context.Context, accessToken string) (GoogleProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.userinfoURL, nil)
	if err != nil {
		return GoogleProfile{}, fmt.Errorf("build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := v.client.Do(req)
	if err != nil {
		return GoogleProfile{}, fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return GoogleProfile{}, fmt.Errorf("read userinfo response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return GoogleProfile{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	parsed := gjson.ParseBytes(body)
	profile := GoogleProfile{
		Subject: parsed.Get("sub").String(),
		Email:   strings.ToLower(strings.TrimSpace(parsed.Get("email").String())),
		Name:    parsed.Get("name").String(),
	}
	if profile.Email == "" {
		return GoogleProfile{}, fmt.Errorf("userinfo response missing email")
	}
	if verified := parsed.Get("email_verified"); verified.Exists() && !verified.Bool() {
		return GoogleProfile{}, fmt.Errorf("google account email is not verified")
	}
	return profile, nil
}
