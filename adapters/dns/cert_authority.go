package dns

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cvlinkhq/cvlink/internal/domain/domainverify"
	"github.com/cvlinkhq/cvlink/pkg/apperror"
)

// certAuthorityClient talks to the SSL authority's issuance endpoint. The
// authority handles the ACME dance itself; we only request and observe.
type certAuthorityClient struct {
	baseURL string
	client  *http.Client
}

func NewCertAuthorityClient(baseURL string, timeout time.Duration) domainverify.CertificateIssuer {
	return &certAuthorityClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type issueCertificateRequest struct {
	Domain string `json:"domain"`
}

type issueCertificateResponse struct {
	Status string `json:"status"`
}

func (c *certAuthorityClient) IssueCertificate(ctx context.Context, domain string) error {
	body, err := json.Marshal(issueCertificateRequest{Domain: domain})
	if err != nil {
		return fmt.Errorf("failed to marshal issuance request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/certificates", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build issuance request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return apperror.NewExternal("certificate authority unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return apperror.NewExternal(fmt.Sprintf("certificate authority returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("certificate issuance rejected for %s (status %d)", domain, resp.StatusCode)
	}

	var issued issueCertificateResponse
	if err := json.NewDecoder(resp.Body).Decode(&issued); err != nil {
		return apperror.NewExternal("certificate authority sent an unreadable response", err)
	}
	if issued.Status != "issued" {
		return fmt.Errorf("certificate issuance failed for %s: status %q", domain, issued.Status)
	}
	return nil
}
