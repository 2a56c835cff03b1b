package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mitoc/member/internal/models/dtos"
)

// tokenLifetime bounds how long a request token stays valid.
const tokenLifetime = 15 * time.Minute

const isoDate = "2006-01-02"

// TripsAPI is the contract against the MITOC Trips site: it resolves an
// email to the full set of addresses verified for the same identity, and
// receives best-effort notifications when an expiration changes.
type TripsAPI interface {
	VerifiedEmails(ctx context.Context, email string) (primary string, allEmails []string, err error)
	UpdateMembership(ctx context.Context, email string, update dtos.MembershipUpdate) error
}

// ProviderError describes a failed trips API call.
type ProviderError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("trips api %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("trips api %s: %s", e.Op, e.Message)
}

// TripsAPIProvider talks to the trips site over HTTP. Every request carries
// a freshly signed short-lived token; the API rejects anything else, since
// a members' email list is not information we give away freely.
type TripsAPIProvider struct {
	BaseURL string
	Client  *http.Client

	secretKey []byte
}

var _ TripsAPI = (*TripsAPIProvider)(nil)

func NewTripsAPIProvider(baseURL, secretKey string, timeout time.Duration) *TripsAPIProvider {
	return &TripsAPIProvider{
		BaseURL:   baseURL,
		secretKey: []byte(secretKey),
		Client:    &http.Client{Timeout: timeout},
	}
}

// VerifiedEmails returns the primary email plus every address the trips
// site has verified as belonging to the same person. People update their
// email addresses there far more often than they renew memberships, so
// this is the best shot at identifying who an unknown address belongs to.
func (p *TripsAPIProvider) VerifiedEmails(ctx context.Context, email string) (string, []string, error) {
	token, err := p.bearerJWT(jwt.MapClaims{"email": email})
	if err != nil {
		return "", nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/data/verified_emails/", nil)
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("Authorization", token)

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", nil, &ProviderError{Op: "verified_emails", Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", nil, &ProviderError{
			Op:         "verified_emails",
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	}

	var result dtos.VerifiedEmailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", nil, &ProviderError{Op: "verified_emails", Message: "bad response: " + err.Error()}
	}
	return result.Primary, result.Emails, nil
}

// UpdateMembership tells the trips membership cache about a new expiration.
// The local database stays authoritative; the cache self-heals on its next
// poll, so callers treat failures as best-effort.
func (p *TripsAPIProvider) UpdateMembership(ctx context.Context, email string, update dtos.MembershipUpdate) error {
	token, err := p.bearerJWT(jwt.MapClaims{"email": email})
	if err != nil {
		return err
	}

	payload := map[string]string{"email": email}
	if update.MembershipExpires != nil {
		payload["membership_expires"] = update.MembershipExpires.Format(isoDate)
	}
	if update.WaiverExpires != nil {
		payload["waiver_expires"] = update.WaiverExpires.Format(isoDate)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/data/membership/", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return &ProviderError{Op: "update_membership", Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &ProviderError{
			Op:         "update_membership",
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}
	return nil
}

// bearerJWT signs a short-lived token for the trips API. The "Bearer:"
// prefix (with colon) is what the API expects.
func (p *TripsAPIProvider) bearerJWT(claims jwt.MapClaims) (string, error) {
	claims["exp"] = time.Now().Add(tokenLifetime).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString(p.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return "Bearer: " + signed, nil
}
