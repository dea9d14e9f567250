package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/cassiomorais/wallet/internal/domain/account"
	"github.com/cassiomorais/wallet/internal/domain/ledger"
	"github.com/cassiomorais/wallet/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	SignupBonusDescription = "Bônus de boas-vindas"

	searchMinQueryLength = 3
	searchLimit          = 5
)

type AccountService struct {
	accountRepo account.Repository
	ledger      *LedgerService
	txManager   TransactionManager
	hasher      PasswordHasher
	signupBonus decimal.Decimal
	logger      zerolog.Logger
	metrics     *observability.Metrics
}

func NewAccountService(
	accountRepo account.Repository,
	ledger *LedgerService,
	txManager TransactionManager,
	hasher PasswordHasher,
	signupBonus decimal.Decimal,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *AccountService {
	return &AccountService{
		accountRepo: accountRepo,
		ledger:      ledger,
		txManager:   txManager,
		hasher:      hasher,
		signupBonus: signupBonus,
		logger:      observability.Component(logger, "accounts"),
		metrics:     metrics,
	}
}

// Register creates an account and credits the signup bonus in the same unit
// of work: either both persist or neither does.
func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (*account.Account, error) {
	if err := account.ValidatePassword(req.Password); err != nil {
		return nil, err
	}
	// validate the profile before paying for a bcrypt hash
	if _, err := account.NewAccount(req.Name, req.Email, req.NationalID, "-"); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	acct, err := account.NewAccount(req.Name, req.Email, req.NationalID, hash)
	if err != nil {
		return nil, err
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.accountRepo.Create(txCtx, acct); err != nil {
			return err
		}
		if !s.signupBonus.IsPositive() {
			return nil
		}
		_, err := s.ledger.Issue(txCtx, acct.ID, s.signupBonus, SignupBonusDescription, ledger.SignupKey(acct.ID))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AccountRegistered()
	s.logger.Info().
		Str("account_id", acct.ID.String()).
		Str("signup_bonus", ledger.Format(s.signupBonus)).
		Msg("Account registered")

	return s.accountRepo.GetByID(ctx, acct.ID)
}

func (s *AccountService) GetProfile(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	return s.accountRepo.GetByID(ctx, id)
}

func (s *AccountService) GetBalance(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	acct, err := s.accountRepo.GetByID(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return acct.Balance, nil
}

// FindByIdentifier resolves an email or national id to an account.
func (s *AccountService) FindByIdentifier(ctx context.Context, identifier string) (*account.Account, error) {
	kind, value, err := account.ParseIdentifier(identifier)
	if err != nil {
		return nil, err
	}
	if kind == account.IdentifierEmail {
		return s.accountRepo.GetByEmail(ctx, value)
	}
	return s.accountRepo.GetByNationalID(ctx, value)
}

// Search suggests recipients for the caller. Short queries return nothing.
func (s *AccountService) Search(ctx context.Context, callerID uuid.UUID, query string) ([]*account.Account, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < searchMinQueryLength {
		return []*account.Account{}, nil
	}
	return s.accountRepo.Search(ctx, query, callerID, searchLimit)
}
