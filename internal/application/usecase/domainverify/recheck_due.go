package domainverify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cvlinkhq/cvlink/pkg/apperror"
)

// RecheckDueInput selects the batch: records not checked since the cutoff.
type RecheckDueInput struct {
	Cutoff time.Time
	Limit  int
}

type RecheckDueOutput struct {
	Checked int
}

// ExecuteDue runs one scheduler sweep. Each record gets its own check; one
// failing domain never blocks the rest of the batch, and an in-flight check
// runs to completion even if the scheduler is stopping.
func (uc *RecheckDomainUseCase) ExecuteDue(ctx context.Context, input RecheckDueInput) (*RecheckDueOutput, error) {
	due, err := uc.verificationRepo.ListDue(ctx, input.Cutoff, input.Limit)
	if err != nil {
		return nil, apperror.NewInternal("failed to list due verifications", err)
	}

	checked := 0
	for _, v := range due {
		if err := uc.check(ctx, v); err != nil {
			uc.logger.Error("Recheck failed", err, zap.String("domain", v.Domain))
			continue
		}
		checked++
	}

	return &RecheckDueOutput{Checked: checked}, nil
}
