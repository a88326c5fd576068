package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sbguangha/tianyishenshu/internal/model"
	"github.com/sbguangha/tianyishenshu/internal/repository"
	"github.com/sbguangha/tianyishenshu/internal/sms"
	"github.com/sbguangha/tianyishenshu/internal/utils"

	"github.com/google/uuid"
)

// CredentialService proves control of a phone number and provisions the identity behind it
type CredentialService interface {
	SendSMSCode(ctx context.Context, phone string) (string, error)
	CheckSMSCode(ctx context.Context, phone, code string) error
	VerifyPassword(ctx context.Context, phone, password string) (*model.User, error)
	RegisterPassword(ctx context.Context, phone, password string) (*model.User, error)
	Admit(ctx context.Context, phone, redeemedCode string) (*model.User, error)
	AdmitByPhone(ctx context.Context, phone string) (*model.User, error)
	RecordLogin(ctx context.Context, user *model.User) (*model.User, error)
}

// CredentialOptions carries the policy knobs of the verifier
type CredentialOptions struct {
	SuperAdminPhone     string
	SMSCodeTTL          time.Duration
	RequireExchangeCode bool
	StoreTimeout        time.Duration
}

type credentialService struct {
	users  repository.UserRepository
	codes  repository.SMSCodeStore
	sender sms.Sender
	hasher *utils.Hasher
	opts   CredentialOptions
	now    func() time.Time
}

// NewCredentialService creates a new CredentialService
func NewCredentialService(users repository.UserRepository, codes repository.SMSCodeStore, sender sms.Sender, hasher *utils.Hasher, opts CredentialOptions) CredentialService {
	if opts.SMSCodeTTL <= 0 {
		opts.SMSCodeTTL = 5 * time.Minute
	}
	return &credentialService{
		users:  users,
		codes:  codes,
		sender: sender,
		hasher: hasher,
		opts:   opts,
		now:    time.Now,
	}
}

func (s *credentialService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return storeContext(ctx, s.opts.StoreTimeout)
}

// SendSMSCode issues a fresh code for phone, replacing any outstanding one, and returns it
// so that development builds can echo it.
func (s *credentialService) SendSMSCode(ctx context.Context, phone string) (string, error) {
	if !utils.IsValidPhone(phone) {
		return "", validationError(msgInvalidPhone)
	}
	code, err := utils.GenerateSMSCode()
	if err != nil {
		return "", internalError("generate sms code", err)
	}

	sctx, cancel := s.withTimeout(ctx)
	err = s.codes.Save(sctx, phone, utils.HashSMSCode(code), s.opts.SMSCodeTTL)
	cancel()
	if err != nil {
		return "", internalError("save sms code", err)
	}

	if err := s.sender.SendCode(ctx, phone, code); err != nil {
		return "", internalError("send sms code", err)
	}
	return code, nil
}

// CheckSMSCode consumes the outstanding code for phone. A code verifies at most once.
func (s *credentialService) CheckSMSCode(ctx context.Context, phone, code string) error {
	if !utils.IsValidPhone(phone) {
		return validationError(msgInvalidPhone)
	}
	if !utils.IsValidSMSCode(code) {
		return validationError(msgInvalidSMSCode)
	}

	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ok, err := s.codes.Consume(sctx, phone, utils.HashSMSCode(code))
	if err != nil {
		return internalError("consume sms code", err)
	}
	if !ok {
		return invalidCredential(msgSMSCodeIncorrect)
	}
	return nil
}

// VerifyPassword returns the identity for phone when password matches its stored hash.
// Unknown phone, missing hash and mismatch are indistinguishable to the caller.
func (s *credentialService) VerifyPassword(ctx context.Context, phone, password string) (*model.User, error) {
	if !utils.IsValidPhone(phone) {
		return nil, validationError(msgInvalidPhone)
	}
	if !utils.IsValidPassword(password) {
		return nil, validationError(msgInvalidPassword)
	}

	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	user, err := s.users.FindByPhone(sctx, phone)
	if err != nil {
		return nil, internalError("find user", err)
	}
	if user == nil || user.PasswordHash == "" {
		return nil, invalidCredential(msgPasswordIncorrect)
	}
	if !s.hasher.CheckPasswordHash(password, user.PasswordHash) {
		return nil, invalidCredential(msgPasswordIncorrect)
	}
	return user, nil
}

// RegisterPassword creates a password identity for a phone not seen before
func (s *credentialService) RegisterPassword(ctx context.Context, phone, password string) (*model.User, error) {
	if !utils.IsValidPhone(phone) {
		return nil, validationError(msgInvalidPhone)
	}
	if !utils.IsValidPassword(password) {
		return nil, validationError(msgInvalidPassword)
	}
	if s.opts.RequireExchangeCode {
		return nil, validationError(msgRegistrationGated)
	}

	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	existing, err := s.users.FindByPhone(sctx, phone)
	if err != nil {
		return nil, internalError("check existing user", err)
	}
	if existing != nil {
		return nil, conflict(msgPhoneAlreadyExists)
	}

	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		return nil, internalError("hash password", err)
	}

	now := s.now().UTC()
	user := &model.User{
		ID:            uuid.NewString(),
		Phone:         phone,
		PasswordHash:  hash,
		Roles:         ComputeRoles(nil, phone, s.opts.SuperAdminPhone),
		RedeemedCodes: []string{},
		LastLoginAt:   &now,
		CreatedAt:     now,
	}
	if err := s.users.Create(sctx, user); err != nil {
		if errors.Is(err, repository.ErrPhoneTaken) {
			return nil, conflict(msgPhoneAlreadyExists)
		}
		return nil, internalError("create user", err)
	}
	if user.HasRole(model.RoleAdmin) {
		log.Printf("INFO: user %s registered with admin role via super admin phone", user.ID)
	}
	return user, nil
}

// Admit provisions or refreshes the identity for a phone whose exchange code was just redeemed
func (s *credentialService) Admit(ctx context.Context, phone, redeemedCode string) (*model.User, error) {
	return s.admit(ctx, phone, redeemedCode, true)
}

// AdmitByPhone is Admit for a verified phone that presented no exchange code. Unknown
// phones are provisioned only while registration is open.
func (s *credentialService) AdmitByPhone(ctx context.Context, phone string) (*model.User, error) {
	return s.admit(ctx, phone, "", !s.opts.RequireExchangeCode)
}

// RecordLogin refreshes roles and last login time of an already verified identity
func (s *credentialService) RecordLogin(ctx context.Context, user *model.User) (*model.User, error) {
	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.refresh(sctx, user, "")
}

func (s *credentialService) admit(ctx context.Context, phone, redeemedCode string, allowCreate bool) (*model.User, error) {
	if !utils.IsValidPhone(phone) {
		return nil, validationError(msgInvalidPhone)
	}

	sctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.users.FindByPhone(sctx, phone)
	if err != nil {
		return nil, internalError("find user", err)
	}
	if user != nil {
		return s.refresh(sctx, user, redeemedCode)
	}
	if !allowCreate {
		return nil, validationError(msgRegistrationGated)
	}

	now := s.now().UTC()
	user = &model.User{
		ID:            uuid.NewString(),
		Phone:         phone,
		Roles:         ComputeRoles(nil, phone, s.opts.SuperAdminPhone),
		RedeemedCodes: []string{},
		LastLoginAt:   &now,
		CreatedAt:     now,
	}
	if redeemedCode != "" {
		user.RedeemedCodes = append(user.RedeemedCodes, redeemedCode)
	}

	err = s.users.Create(sctx, user)
	if err == nil {
		log.Printf("INFO: provisioned user %s", user.ID)
		return user, nil
	}
	if !errors.Is(err, repository.ErrPhoneTaken) {
		return nil, internalError("create user", err)
	}

	// lost a concurrent first login; continue with the winner's record
	winner, err := s.users.FindByPhone(sctx, phone)
	if err != nil {
		return nil, internalError("find user", err)
	}
	if winner == nil {
		return nil, internalError("find user", errors.New("user vanished after unique violation"))
	}
	return s.refresh(sctx, winner, redeemedCode)
}

func (s *credentialService) refresh(ctx context.Context, user *model.User, redeemedCode string) (*model.User, error) {
	now := s.now().UTC()
	updated := *user
	updated.Roles = ComputeRoles(user.Roles, user.Phone, s.opts.SuperAdminPhone)
	updated.RedeemedCodes = append([]string{}, user.RedeemedCodes...)
	updated.LastLoginAt = &now

	// the store appends redeemedCode itself and hands back the full set
	if err := s.users.UpdateLogin(ctx, &updated, redeemedCode); err != nil {
		return nil, internalError("update user login", err)
	}
	if !user.HasRole(model.RoleAdmin) && updated.HasRole(model.RoleAdmin) {
		log.Printf("INFO: user %s granted admin role via super admin phone", user.ID)
	}
	return &updated, nil
}
