package dns

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/cvlinkhq/cvlink/internal/domain/domainverify"
	"github.com/cvlinkhq/cvlink/pkg/apperror"
)

// cnameResolver queries the live DNS tree for a domain's CNAME with a bounded
// timeout. It never holds any store state; the verification use case owns the
// record update.
type cnameResolver struct {
	resolver *net.Resolver
	timeout  time.Duration
}

func NewCNAMEResolver(timeout time.Duration) domainverify.CNAMEResolver {
	return &cnameResolver{
		resolver: &net.Resolver{PreferGo: true},
		timeout:  timeout,
	}
}

func (r *cnameResolver) ResolveCNAME(ctx context.Context, domain string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cname, err := r.resolver.LookupCNAME(ctx, domain)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			// The name exists but carries no CNAME: a mismatch, not an outage.
			return "", nil
		}
		return "", apperror.NewExternal("DNS lookup failed for "+domain, err)
	}

	return strings.TrimSuffix(strings.ToLower(cname), "."), nil
}
