package domainverify

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusFailed   Status = "failed"
)

type SSLStatus string

const (
	SSLPending SSLStatus = "pending"
	SSLIssued  SSLStatus = "issued"
	SSLFailed  SSLStatus = "failed"
)

var (
	ErrNoActiveVerification = errors.New("no active domain verification")
	ErrInvalidDomain        = errors.New("invalid domain name")
)

var domainLabel = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// DomainVerification tracks one custom-domain attempt. A profile has at most
// one record with status != failed at a time.
type DomainVerification struct {
	ID                 uuid.UUID  `json:"id"`
	ProfileID          uuid.UUID  `json:"profile_id"`
	Domain             string     `json:"domain"`
	VerificationStatus Status     `json:"verification_status"`
	CnameTarget        string     `json:"cname_target"`
	DNSRecords         []string   `json:"dns_records"`
	SSLStatus          SSLStatus  `json:"ssl_status"`
	CheckFailures      int        `json:"check_failures"`
	LastChecked        *time.Time `json:"last_checked"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// ValidateDomain accepts a bare hostname of at least two labels, no scheme,
// no port, max 253 characters.
func ValidateDomain(domain string) error {
	d := strings.ToLower(strings.TrimSuffix(domain, "."))
	if len(d) == 0 || len(d) > 253 || strings.Contains(d, "/") || strings.Contains(d, ":") {
		return ErrInvalidDomain
	}
	labels := strings.Split(d, ".")
	if len(labels) < 2 {
		return ErrInvalidDomain
	}
	for _, l := range labels {
		if len(l) == 0 || len(l) > 63 || !domainLabel.MatchString(l) {
			return ErrInvalidDomain
		}
	}
	return nil
}

type Repository interface {
	// Replace marks any non-failed record for the profile as failed and
	// inserts the fresh pending one, in a single transaction.
	Replace(ctx context.Context, v *DomainVerification) error
	FindActiveByProfile(ctx context.Context, profileID uuid.UUID) (*DomainVerification, error)
	// ListDue returns non-failed records whose last check is older than the
	// cutoff (never-checked records first).
	ListDue(ctx context.Context, cutoff time.Time, limit int) ([]*DomainVerification, error)
	// UpdateState persists the outcome of one recheck as a single atomic
	// write of status, ssl status, failure count, observed records and
	// last_checked.
	UpdateState(ctx context.Context, v *DomainVerification) error
}

// CNAMEResolver is the external DNS authority.
type CNAMEResolver interface {
	ResolveCNAME(ctx context.Context, domain string) (target string, err error)
}

// CertificateIssuer is the external SSL authority.
type CertificateIssuer interface {
	IssueCertificate(ctx context.Context, domain string) error
}
