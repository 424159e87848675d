package domainverify

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cvlinkhq/cvlink/internal/domain/domainverify"
	"github.com/cvlinkhq/cvlink/internal/domain/profile"
	"github.com/cvlinkhq/cvlink/pkg/apperror"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

type RecheckDomainUseCase struct {
	verificationRepo domainverify.Repository
	profileRepo      profile.Repository
	resolver         domainverify.CNAMEResolver
	issuer           domainverify.CertificateIssuer
	cache            Cache
	maxCheckFailures int
	logger           logger.Logger
}

func NewRecheckDomainUseCase(
	vRepo domainverify.Repository,
	pRepo profile.Repository,
	resolver domainverify.CNAMEResolver,
	issuer domainverify.CertificateIssuer,
	cache Cache,
	maxCheckFailures int,
	log logger.Logger,
) *RecheckDomainUseCase {
	return &RecheckDomainUseCase{
		verificationRepo: vRepo,
		profileRepo:      pRepo,
		resolver:         resolver,
		issuer:           issuer,
		cache:            cache,
		maxCheckFailures: maxCheckFailures,
		logger:           log,
	}
}

type RecheckDomainInput struct {
	ProfileID uuid.UUID
}

type RecheckDomainOutput struct {
	Verification *domainverify.DomainVerification
}

// Execute runs one verification check for the profile's active record.
// Legal transitions: pending→verified, pending→failed, verified→pending
// (drift). failed records are never revisited; only a new submission
// replaces them. Safe to call repeatedly: an issued certificate is never
// requested again.
func (uc *RecheckDomainUseCase) Execute(ctx context.Context, input RecheckDomainInput) (*RecheckDomainOutput, error) {
	v, err := uc.verificationRepo.FindActiveByProfile(ctx, input.ProfileID)
	if err != nil {
		if errors.Is(err, domainverify.ErrNoActiveVerification) {
			return nil, apperror.NewNotFound("domain verification", input.ProfileID.String())
		}
		return nil, apperror.NewInternal("failed to load domain verification", err)
	}

	if err := uc.check(ctx, v); err != nil {
		return nil, err
	}
	return &RecheckDomainOutput{Verification: v}, nil
}

// check resolves the CNAME outside any store transaction, decides the next
// state in memory, then persists it with a single write.
func (uc *RecheckDomainUseCase) check(ctx context.Context, v *domainverify.DomainVerification) error {
	now := time.Now().UTC()
	wasVerified := v.VerificationStatus == domainverify.StatusVerified

	target, resolveErr := uc.resolver.ResolveCNAME(ctx, v.Domain)
	switch {
	case resolveErr != nil && errors.Is(resolveErr, apperror.ErrExternal):
		// Provider outage or timeout: the external scheduler retries with
		// backoff. Only the check clock moves.
		uc.logger.Warn("DNS authority unavailable during recheck",
			zap.String("domain", v.Domain), zap.Error(resolveErr))
		v.LastChecked = &now

	case resolveErr != nil:
		return apperror.NewInternal("CNAME resolution failed unexpectedly", resolveErr)

	case matchesTarget(target, v.CnameTarget):
		v.DNSRecords = []string{target}
		v.CheckFailures = 0
		v.LastChecked = &now
		if !wasVerified {
			v.VerificationStatus = domainverify.StatusVerified
			uc.logger.Info("Custom domain verified", zap.String("domain", v.Domain))
		}
		uc.attemptSSLIssuance(ctx, v)

	default:
		v.LastChecked = &now
		if target != "" {
			v.DNSRecords = []string{target}
		} else {
			v.DNSRecords = []string{}
		}

		switch {
		case wasVerified:
			// Drift: the previously correct CNAME no longer resolves to us.
			// Back to pending rather than failed so a transient DNS hiccup
			// on the user's side can self-heal.
			v.VerificationStatus = domainverify.StatusPending
			v.CheckFailures = 0
			uc.logger.Warn("Verified domain drifted, back to pending",
				zap.String("domain", v.Domain), zap.String("observed", target))

		case target != "":
			// A CNAME exists but points elsewhere: permanent mismatch.
			v.VerificationStatus = domainverify.StatusFailed
			uc.logger.Warn("Domain verification failed on CNAME mismatch",
				zap.String("domain", v.Domain),
				zap.String("observed", target),
				zap.String("expected", v.CnameTarget))

		default:
			// No CNAME yet. Give the user's DNS change time to propagate
			// before giving up.
			v.CheckFailures++
			if v.CheckFailures >= uc.maxCheckFailures {
				v.VerificationStatus = domainverify.StatusFailed
				uc.logger.Warn("Domain verification failed after repeated empty lookups",
					zap.String("domain", v.Domain), zap.Int("failures", v.CheckFailures))
			}
		}
	}

	if err := uc.verificationRepo.UpdateState(ctx, v); err != nil {
		return apperror.NewInternal("failed to persist verification state", err)
	}

	isVerified := v.VerificationStatus == domainverify.StatusVerified
	if isVerified != wasVerified {
		if err := uc.profileRepo.SetDomainVerified(ctx, v.ProfileID, isVerified); err != nil {
			return apperror.NewInternal("failed to update profile domain flag", err)
		}
		uc.cache.Invalidate(ctx, v.Domain)
	}

	return nil
}

// attemptSSLIssuance asks the SSL authority for a certificate exactly once
// per verified domain. Transient authority errors leave the status pending
// for the next recheck; rejections are final.
func (uc *RecheckDomainUseCase) attemptSSLIssuance(ctx context.Context, v *domainverify.DomainVerification) {
	if v.SSLStatus != domainverify.SSLPending {
		return
	}

	err := uc.issuer.IssueCertificate(ctx, v.Domain)
	switch {
	case err == nil:
		v.SSLStatus = domainverify.SSLIssued
		uc.logger.Info("SSL certificate issued", zap.String("domain", v.Domain))
	case errors.Is(err, apperror.ErrExternal):
		uc.logger.Warn("SSL authority unavailable, will retry",
			zap.String("domain", v.Domain), zap.Error(err))
	default:
		v.SSLStatus = domainverify.SSLFailed
		uc.logger.Error("SSL issuance rejected", err, zap.String("domain", v.Domain))
	}
}

func matchesTarget(observed, expected string) bool {
	return observed != "" &&
		strings.EqualFold(strings.TrimSuffix(observed, "."), strings.TrimSuffix(expected, "."))
}
