package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sbguangha/tianyishenshu/internal/model"
	"github.com/sbguangha/tianyishenshu/internal/repository"
	"github.com/sbguangha/tianyishenshu/internal/utils"

	"github.com/google/uuid"
)

const (
	MaxBatchSize     = 100
	DefaultPageLimit = 20
	MaxPageLimit     = 100
	MaxPage          = 100000

	maxGenerateAttempts = 5
)

// ExchangeCodeService is the registry of single-use invitation codes
type ExchangeCodeService interface {
	Generate(ctx context.Context, actor string) (*model.ExchangeCode, error)
	GenerateBatch(ctx context.Context, actor string, count int) ([]model.ExchangeCode, error)
	Validate(ctx context.Context, code string) (bool, *model.ExchangeCode, error)
	Redeem(ctx context.Context, code, redeemer string) (bool, error)
	Release(ctx context.Context, code, redeemer string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filters model.ExchangeCodeFilters) (*model.ExchangeCodePage, error)
	ExpirePending(ctx context.Context, olderThan time.Duration) (int64, error)
}

type exchangeCodeService struct {
	repo         repository.ExchangeCodeRepository
	storeTimeout time.Duration
	now          func() time.Time
}

// NewExchangeCodeService creates a new ExchangeCodeService. A zero storeTimeout disables the per-call deadline.
func NewExchangeCodeService(repo repository.ExchangeCodeRepository, storeTimeout time.Duration) ExchangeCodeService {
	return &exchangeCodeService{repo: repo, storeTimeout: storeTimeout, now: time.Now}
}

func (s *exchangeCodeService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return storeContext(ctx, s.storeTimeout)
}

// Generate creates one pending code. Collisions with an existing code are retried.
func (s *exchangeCodeService) Generate(ctx context.Context, actor string) (*model.ExchangeCode, error) {
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		now := s.now().UTC()
		code, err := utils.GenerateExchangeCode(now)
		if err != nil {
			return nil, internalError("generate exchange code", err)
		}
		ec := &model.ExchangeCode{
			ID:        uuid.NewString(),
			Code:      code,
			Status:    model.ExchangeCodeStatusPending,
			CreatedAt: now,
			CreatedBy: actor,
		}

		sctx, cancel := s.withTimeout(ctx)
		err = s.repo.Insert(sctx, ec)
		cancel()
		if err == nil {
			return ec, nil
		}
		if !errors.Is(err, repository.ErrDuplicateCode) {
			return nil, internalError("insert exchange code", err)
		}
		log.Printf("INFO: exchange code collision on attempt %d, regenerating", attempt+1)
	}
	return nil, internalError("generate exchange code", fmt.Errorf("no unique code after %d attempts", maxGenerateAttempts))
}

// GenerateBatch creates count codes for actor
func (s *exchangeCodeService) GenerateBatch(ctx context.Context, actor string, count int) ([]model.ExchangeCode, error) {
	if count < 1 || count > MaxBatchSize {
		return nil, validationError(fmt.Sprintf("count must be between 1 and %d", MaxBatchSize))
	}
	codes := make([]model.ExchangeCode, 0, count)
	for i := 0; i < count; i++ {
		ec, err := s.Generate(ctx, actor)
		if err != nil {
			return nil, err
		}
		codes = append(codes, *ec)
	}
	log.Printf("INFO: %s generated %d exchange codes", actor, count)
	return codes, nil
}

// Validate reports whether code names a pending record. It never mutates state, and
// malformed codes are answered without a lookup.
func (s *exchangeCodeService) Validate(ctx context.Context, code string) (bool, *model.ExchangeCode, error) {
	code = utils.NormalizeExchangeCode(code)
	if !utils.IsValidExchangeCode(code) {
		return false, nil, nil
	}

	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ec, err := s.repo.FindByCode(sctx, code)
	if err != nil {
		return false, nil, internalError("find exchange code", err)
	}
	if ec == nil || ec.Status != model.ExchangeCodeStatusPending {
		return false, ec, nil
	}
	return true, ec, nil
}

// Redeem marks a pending code used by redeemer. Among concurrent callers for one code
// exactly one sees true.
func (s *exchangeCodeService) Redeem(ctx context.Context, code, redeemer string) (bool, error) {
	code = utils.NormalizeExchangeCode(code)
	if !utils.IsValidExchangeCode(code) {
		return false, nil
	}

	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ok, err := s.repo.Redeem(sctx, code, redeemer, s.now().UTC())
	if err != nil {
		return false, internalError("redeem exchange code", err)
	}
	return ok, nil
}

// Release puts a code redeemed by redeemer back to pending
func (s *exchangeCodeService) Release(ctx context.Context, code, redeemer string) error {
	code = utils.NormalizeExchangeCode(code)
	if !utils.IsValidExchangeCode(code) {
		return nil
	}

	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	released, err := s.repo.Release(sctx, code, redeemer)
	if err != nil {
		return internalError("release exchange code", err)
	}
	if !released {
		log.Printf("INFO: exchange code %s was not held by the redeemer, nothing released", code)
	}
	return nil
}

// Delete removes a code that has not been used yet
func (s *exchangeCodeService) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return notFound("exchange code not found")
	}

	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	deleted, err := s.repo.DeleteIfPending(sctx, id)
	if err != nil {
		return internalError("delete exchange code", err)
	}
	if deleted {
		return nil
	}

	ec, err := s.repo.FindByID(sctx, id)
	if err != nil {
		return internalError("find exchange code", err)
	}
	if ec == nil {
		return notFound("exchange code not found")
	}
	return conflict("only pending exchange codes can be deleted")
}

// List returns one page of codes together with registry-wide counts
func (s *exchangeCodeService) List(ctx context.Context, filters model.ExchangeCodeFilters) (*model.ExchangeCodePage, error) {
	switch filters.Status {
	case "":
		filters.Status = model.ExchangeCodeStatusAll
	case model.ExchangeCodeStatusAll, model.ExchangeCodeStatusPending, model.ExchangeCodeStatusUsed, model.ExchangeCodeStatusExpired:
	default:
		return nil, validationError("status must be one of pending, used, expired, all")
	}
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.Page > MaxPage {
		return nil, validationError(fmt.Sprintf("page must not exceed %d", MaxPage))
	}
	if filters.Limit < 1 {
		filters.Limit = DefaultPageLimit
	}
	if filters.Limit > MaxPageLimit {
		filters.Limit = MaxPageLimit
	}

	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	codes, total, err := s.repo.List(sctx, filters)
	if err != nil {
		return nil, internalError("list exchange codes", err)
	}
	stats, err := s.repo.Stats(sctx)
	if err != nil {
		return nil, internalError("exchange code stats", err)
	}

	return &model.ExchangeCodePage{
		Codes: codes,
		Pagination: model.Pagination{
			Page:       filters.Page,
			Limit:      filters.Limit,
			Total:      total,
			TotalPages: (total + filters.Limit - 1) / filters.Limit,
		},
		Stats: *stats,
	}, nil
}

// ExpirePending retires pending codes created more than olderThan ago
func (s *exchangeCodeService) ExpirePending(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, validationError("older_than must be a positive duration")
	}
	cutoff := s.now().UTC().Add(-olderThan)

	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	n, err := s.repo.ExpirePendingBefore(sctx, cutoff)
	if err != nil {
		return 0, internalError("expire exchange codes", err)
	}
	if n > 0 {
		log.Printf("INFO: expired %d pending exchange codes created before %s", n, cutoff.Format(time.RFC3339))
	}
	return n, nil
}

func storeContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
