package service

import (
	"context"
	"log"
	"time"

	"github.com/sbguangha/tianyishenshu/internal/model"
	"github.com/sbguangha/tianyishenshu/internal/utils"
)

// TokenIssuer signs session tokens. *utils.JWTUtil implements it.
type TokenIssuer interface {
	GenerateToken(userID, phone string, roles []string, rememberMe bool) (string, time.Time, error)
}

// AuthResult is what every successful login returns to the client
type AuthResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

// SMSSendResult reports a dispatched code. DevCode is set only when echoing is enabled.
type SMSSendResult struct {
	Sent    bool   `json:"sent"`
	DevCode string `json:"code,omitempty"`
}

// SessionIdentity is the identity carried by a validated session
type SessionIdentity struct {
	ID    string   `json:"id"`
	Phone string   `json:"phone"`
	Roles []string `json:"roles"`
}

// AuthService provides the login flows built on the credential verifier, the
// exchange code registry and the session issuer
type AuthService interface {
	SendSMSCode(ctx context.Context, phone string) (*SMSSendResult, error)
	LoginWithSMS(ctx context.Context, phone, code string, rememberMe bool) (*AuthResult, error)
	LoginWithPassword(ctx context.Context, phone, password string, rememberMe bool) (*AuthResult, error)
	Register(ctx context.Context, phone, password string, rememberMe bool) (*AuthResult, error)
	RedeemLogin(ctx context.Context, phone, code, exchangeCode string, rememberMe bool) (*AuthResult, error)
	Me(claims *utils.JWTClaims) *SessionIdentity
}

type authService struct {
	credentials   CredentialService
	exchangeCodes ExchangeCodeService
	issuer        TokenIssuer
	echoSMSCode   bool
}

// NewAuthService creates a new AuthService. echoSMSCode returns issued SMS codes to the
// client and must stay off in production.
func NewAuthService(credentials CredentialService, exchangeCodes ExchangeCodeService, issuer TokenIssuer, echoSMSCode bool) AuthService {
	return &authService{
		credentials:   credentials,
		exchangeCodes: exchangeCodes,
		issuer:        issuer,
		echoSMSCode:   echoSMSCode,
	}
}

// SendSMSCode dispatches a one-time login code to phone
func (s *authService) SendSMSCode(ctx context.Context, phone string) (*SMSSendResult, error) {
	code, err := s.credentials.SendSMSCode(ctx, phone)
	if err != nil {
		return nil, err
	}
	res := &SMSSendResult{Sent: true}
	if s.echoSMSCode {
		res.DevCode = code
	}
	return res, nil
}

// LoginWithSMS signs in with a one-time SMS code
func (s *authService) LoginWithSMS(ctx context.Context, phone, code string, rememberMe bool) (*AuthResult, error) {
	if err := s.credentials.CheckSMSCode(ctx, phone, code); err != nil {
		return nil, err
	}
	user, err := s.credentials.AdmitByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	return s.issue(user, rememberMe)
}

// LoginWithPassword signs in with phone and password
func (s *authService) LoginWithPassword(ctx context.Context, phone, password string, rememberMe bool) (*AuthResult, error) {
	user, err := s.credentials.VerifyPassword(ctx, phone, password)
	if err != nil {
		return nil, err
	}
	user, err = s.credentials.RecordLogin(ctx, user)
	if err != nil {
		return nil, err
	}
	return s.issue(user, rememberMe)
}

// Register creates a password account and signs it in
func (s *authService) Register(ctx context.Context, phone, password string, rememberMe bool) (*AuthResult, error) {
	user, err := s.credentials.RegisterPassword(ctx, phone, password)
	if err != nil {
		return nil, err
	}
	return s.issue(user, rememberMe)
}

// RedeemLogin is the gated first login: SMS code, then the exchange code, then admission.
// Every way an exchange code can fail to redeem yields the same CODE_UNAVAILABLE error.
func (s *authService) RedeemLogin(ctx context.Context, phone, code, exchangeCode string, rememberMe bool) (*AuthResult, error) {
	if !utils.IsValidPhone(phone) {
		return nil, validationError(msgInvalidPhone)
	}
	if !utils.IsValidSMSCode(code) {
		return nil, validationError(msgInvalidSMSCode)
	}
	exchangeCode = utils.NormalizeExchangeCode(exchangeCode)
	if !utils.IsValidExchangeCode(exchangeCode) {
		return nil, validationError(msgInvalidCode)
	}

	if err := s.credentials.CheckSMSCode(ctx, phone, code); err != nil {
		return nil, err
	}

	redeemed, err := s.exchangeCodes.Redeem(ctx, exchangeCode, phone)
	if err != nil {
		return nil, err
	}
	if !redeemed {
		return nil, codeUnavailable()
	}

	user, err := s.credentials.Admit(ctx, phone, exchangeCode)
	if err != nil {
		// hand the code back so the caller can retry; the request context may already be done
		if relErr := s.exchangeCodes.Release(context.WithoutCancel(ctx), exchangeCode, phone); relErr != nil {
			log.Printf("ERROR: exchange code %s stays used after failed admission: %v", exchangeCode, relErr)
		}
		return nil, err
	}
	return s.issue(user, rememberMe)
}

// Me echoes the identity of a validated session
func (s *authService) Me(claims *utils.JWTClaims) *SessionIdentity {
	return &SessionIdentity{
		ID:    claims.Subject,
		Phone: claims.Phone,
		Roles: append([]string(nil), claims.Roles...),
	}
}

func (s *authService) issue(user *model.User, rememberMe bool) (*AuthResult, error) {
	token, expiresAt, err := s.issuer.GenerateToken(user.ID, user.Phone, user.Roles, rememberMe)
	if err != nil {
		return nil, internalError("issue session", err)
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}
