package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/prefeitura-rio/app-credentialing/internal/models"
	"github.com/prefeitura-rio/app-credentialing/internal/utils"
	"github.com/prefeitura-rio/app-credentialing/internal/utils/httpclient"
)

// Verifier answers one primary-source check for a provider. A pending record means
// the source has not answered yet.
type Verifier interface {
	Verify(ctx context.Context, p *models.Provider, check models.CheckType) (models.VerificationStatus, error)
}

// VerifierFunc adapts a function to Verifier
type VerifierFunc func(ctx context.Context, p *models.Provider, check models.CheckType) (models.VerificationStatus, error)

// Verify calls f
func (f VerifierFunc) Verify(ctx context.Context, p *models.Provider, check models.CheckType) (models.VerificationStatus, error) {
	return f(ctx, p, check)
}

// Verifier error categories
const (
	VerifierErrorUnavailable     = "unavailable"
	VerifierErrorRejected        = "rejected"
	VerifierErrorInvalidResponse = "invalid_response"
	VerifierErrorTransport       = "transport"
)

// VerifierError classifies a failure to obtain an answer from a primary source
type VerifierError struct {
	Category  string
	Retryable bool
	Err       error
}

func (e *VerifierError) Error() string {
	return fmt.Sprintf("verifier %s: %v", e.Category, e.Err)
}

func (e *VerifierError) Unwrap() error {
	return e.Err
}

// IsRetryableVerifierError reports whether err is a VerifierError worth retrying
func IsRetryableVerifierError(err error) bool {
	var target *VerifierError
	return errors.As(err, &target) && target.Retryable
}

var npiDigits = regexp.MustCompile(`^\d{10}$`)

// LocalVerifier answers checks from the data already held on the provider
type LocalVerifier struct {
	now      func() time.Time
	excluded map[string]bool
}

// NewLocalVerifier creates a rule-based verifier. NPIs in excludedNPIs fail the sanctions check.
func NewLocalVerifier(now func() time.Time, excludedNPIs ...string) *LocalVerifier {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	excluded := make(map[string]bool, len(excludedNPIs))
	for _, npi := range excludedNPIs {
		excluded[strings.TrimSpace(npi)] = true
	}
	return &LocalVerifier{now: now, excluded: excluded}
}

// Verify applies the local rule for check
func (v *LocalVerifier) Verify(ctx context.Context, p *models.Provider, check models.CheckType) (models.VerificationStatus, error) {
	if err := ctx.Err(); err != nil {
		return models.VerificationStatus{}, err
	}
	now := v.now()
	rec := models.VerificationStatus{LastChecked: &now, Source: "local"}

	switch check {
	case models.CheckLicenses:
		rec.Status, rec.Notes = models.CheckFailed, "no active state license"
		for _, l := range p.Credentials.StateLicenses {
			if l.IsActiveAt(now) {
				rec.Status, rec.Notes = models.CheckVerified, fmt.Sprintf("active license in %s", l.State)
				break
			}
		}
	case models.CheckDEANPI:
		if npiDigits.MatchString(p.EffectiveNPI()) {
			rec.Status, rec.Notes = models.CheckVerified, "NPI format confirmed"
		} else {
			rec.Status, rec.Notes = models.CheckFailed, "NPI missing or malformed"
		}
	case models.CheckSanctions:
		if v.excluded[p.EffectiveNPI()] {
			rec.Status, rec.Notes = models.CheckFailed, "provider appears on exclusion list"
		} else {
			rec.Status, rec.Notes = models.CheckVerified, "no sanctions found"
		}
	case models.CheckEducation, models.CheckMalpractice, models.CheckWorkHistory:
		rec.Status, rec.Notes = models.CheckVerified, "no adverse records"
	default:
		return models.VerificationStatus{}, fmt.Errorf("%w: %q", models.ErrInvalidCheckType, check)
	}
	return rec, nil
}

type gatewayRequest struct {
	ProviderID string   `json:"providerId"`
	NPI        string   `json:"npi,omitempty"`
	DEANumber  string   `json:"deaNumber,omitempty"`
	FirstName  string   `json:"firstName"`
	LastName   string   `json:"lastName"`
	States     []string `json:"licenseStates,omitempty"`
}

type gatewayResponse struct {
	Status models.CheckStatus `json:"status"`
	Source string             `json:"source"`
	Notes  string             `json:"notes"`
}

// HTTPVerifier asks a primary-source gateway over HTTP
type HTTPVerifier struct {
	baseURL string
	pool    *httpclient.Pool
	now     func() time.Time
}

// NewHTTPVerifier creates a verifier posting to {baseURL}/verifications/{check}
func NewHTTPVerifier(baseURL string, pool *httpclient.Pool, now func() time.Time) *HTTPVerifier {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &HTTPVerifier{baseURL: strings.TrimRight(baseURL, "/"), pool: pool, now: now}
}

// Verify posts the provider identity and decodes the gateway's answer
func (v *HTTPVerifier) Verify(ctx context.Context, p *models.Provider, check models.CheckType) (models.VerificationStatus, error) {
	ctx, span := utils.TraceExternalService(ctx, "psv_gateway", string(check))
	defer span.End()

	body := gatewayRequest{
		ProviderID: p.ID,
		NPI:        p.EffectiveNPI(),
		DEANumber:  p.Credentials.DEANumber,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
	}
	for _, l := range p.Credentials.StateLicenses {
		body.States = append(body.States, l.State)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return models.VerificationStatus{}, fmt.Errorf("failed to encode gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/verifications/"+string(check), bytes.NewReader(payload))
	if err != nil {
		return models.VerificationStatus{}, fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := v.pool.Get()
	defer v.pool.Put(client)

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return models.VerificationStatus{}, ctx.Err()
		}
		utils.RecordErrorInSpan(span, err, map[string]interface{}{"check": string(check)})
		return models.VerificationStatus{}, &VerifierError{Category: VerifierErrorTransport, Retryable: true, Err: err}
	}
	defer resp.Body.Close()
	utils.AddSpanAttribute(span, "http.status_code", resp.StatusCode)

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return models.VerificationStatus{}, &VerifierError{
			Category:  VerifierErrorUnavailable,
			Retryable: true,
			Err:       fmt.Errorf("gateway returned %d", resp.StatusCode),
		}
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.VerificationStatus{}, &VerifierError{
			Category: VerifierErrorRejected,
			Err:      fmt.Errorf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
		}
	}

	var out gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.VerificationStatus{}, &VerifierError{Category: VerifierErrorInvalidResponse, Err: err}
	}
	if !out.Status.IsValid() || out.Status == models.CheckNotStarted {
		return models.VerificationStatus{}, &VerifierError{
			Category: VerifierErrorInvalidResponse,
			Err:      fmt.Errorf("unexpected status %q", out.Status),
		}
	}

	now := v.now()
	source := out.Source
	if source == "" {
		source = "gateway"
	}
	return models.VerificationStatus{Status: out.Status, LastChecked: &now, Source: source, Notes: out.Notes}, nil
}
