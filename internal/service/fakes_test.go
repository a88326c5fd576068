package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sbguangha/tianyishenshu/internal/model"
	"github.com/sbguangha/tianyishenshu/internal/repository"
	"github.com/sbguangha/tianyishenshu/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var errStoreDown = errors.New("store unavailable")

var (
	_ repository.UserRepository         = (*memUserRepo)(nil)
	_ repository.ExchangeCodeRepository = (*memCodeRepo)(nil)
)

// memUserRepo is an in-memory UserRepository keyed by phone
type memUserRepo struct {
	mu      sync.Mutex
	byPhone map[string]model.User
	calls   int
	failAll bool

	// lookupDelay stretches FindByPhone to widen read-modify-write windows
	lookupDelay time.Duration
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byPhone: map[string]model.User{}}
}

func (r *memUserRepo) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failAll {
		return errStoreDown
	}
	if _, ok := r.byPhone[user.Phone]; ok {
		return repository.ErrPhoneTaken
	}
	r.byPhone[user.Phone] = cloneUser(*user)
	return nil
}

func (r *memUserRepo) FindByPhone(_ context.Context, phone string) (*model.User, error) {
	if r.lookupDelay > 0 {
		time.Sleep(r.lookupDelay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failAll {
		return nil, errStoreDown
	}
	u, ok := r.byPhone[phone]
	if !ok {
		return nil, nil
	}
	c := cloneUser(u)
	return &c, nil
}

func (r *memUserRepo) UpdateLogin(_ context.Context, user *model.User, redeemedCode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failAll {
		return errStoreDown
	}
	u, ok := r.byPhone[user.Phone]
	if !ok || u.ID != user.ID {
		return errors.New("user not found")
	}
	u.Roles = append([]string(nil), user.Roles...)
	u.LastLoginAt = user.LastLoginAt
	if redeemedCode != "" && !u.HasRedeemed(redeemedCode) {
		u.RedeemedCodes = append(u.RedeemedCodes, redeemedCode)
	}
	r.byPhone[user.Phone] = u
	user.RedeemedCodes = append([]string{}, u.RedeemedCodes...)
	return nil
}

func (r *memUserRepo) get(phone string) (model.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byPhone[phone]
	return cloneUser(u), ok
}

func (r *memUserRepo) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func cloneUser(u model.User) model.User {
	u.Roles = append([]string(nil), u.Roles...)
	u.RedeemedCodes = append([]string(nil), u.RedeemedCodes...)
	return u
}

// memCodeRepo is an in-memory ExchangeCodeRepository whose Redeem is a locked compare-and-swap
type memCodeRepo struct {
	mu       sync.Mutex
	codes    map[string]*model.ExchangeCode // by code
	calls    int
	failAll  bool
	dupFirst int // leading Insert calls that report a collision
}

func newMemCodeRepo() *memCodeRepo {
	return &memCodeRepo{codes: map[string]*model.ExchangeCode{}}
}

func (r *memCodeRepo) Insert(_ context.Context, c *model.ExchangeCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failAll {
		return errStoreDown
	}
	if r.dupFirst > 0 {
		r.dupFirst--
		return repository.ErrDuplicateCode
	}
	if _, ok := r.codes[c.Code]; ok {
		return repository.ErrDuplicateCode
	}
	cp := *c
	r.codes[c.Code] = &cp
	return nil
}

func (r *memCodeRepo) FindByCode(_ context.Context, code string) (*model.ExchangeCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failAll {
		return nil, errStoreDown
	}
	c, ok := r.codes[code]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *memCodeRepo) FindByID(_ context.Context, id string) (*model.ExchangeCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	for _, c := range r.codes {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memCodeRepo) Redeem(_ context.Context, code, usedBy string, usedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failAll {
		return false, errStoreDown
	}
	c, ok := r.codes[code]
	if !ok || c.Status != model.ExchangeCodeStatusPending {
		return false, nil
	}
	c.Status = model.ExchangeCodeStatusUsed
	c.UsedAt = &usedAt
	c.UsedBy = &usedBy
	return true, nil
}

func (r *memCodeRepo) Release(_ context.Context, code, usedBy string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failAll {
		return false, errStoreDown
	}
	c, ok := r.codes[code]
	if !ok || c.Status != model.ExchangeCodeStatusUsed || c.UsedBy == nil || *c.UsedBy != usedBy {
		return false, nil
	}
	c.Status = model.ExchangeCodeStatusPending
	c.UsedAt = nil
	c.UsedBy = nil
	return true, nil
}

func (r *memCodeRepo) DeleteIfPending(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	for k, c := range r.codes {
		if c.ID == id && c.Status == model.ExchangeCodeStatusPending {
			delete(r.codes, k)
			return true, nil
		}
	}
	return false, nil
}

func (r *memCodeRepo) filtered(status string) []model.ExchangeCode {
	out := []model.ExchangeCode{}
	for _, c := range r.codes {
		if status == model.ExchangeCodeStatusAll || c.Status == status {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *memCodeRepo) List(_ context.Context, f model.ExchangeCodeFilters) ([]model.ExchangeCode, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	all := r.filtered(f.Status)
	start := f.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (r *memCodeRepo) Stats(_ context.Context) (*model.ExchangeCodeStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	s := &model.ExchangeCodeStats{}
	for _, c := range r.codes {
		s.Total++
		switch c.Status {
		case model.ExchangeCodeStatusPending:
			s.Pending++
		case model.ExchangeCodeStatusUsed:
			s.Used++
		case model.ExchangeCodeStatusExpired:
			s.Expired++
		}
	}
	return s, nil
}

func (r *memCodeRepo) ExpirePendingBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	var n int64
	for _, c := range r.codes {
		if c.Status == model.ExchangeCodeStatusPending && c.CreatedAt.Before(cutoff) {
			c.Status = model.ExchangeCodeStatusExpired
			n++
		}
	}
	return n, nil
}

func (r *memCodeRepo) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *memCodeRepo) seed(t *testing.T, code, status string, createdAt time.Time) *model.ExchangeCode {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	c := &model.ExchangeCode{
		ID:        uuid.NewString(),
		Code:      code,
		Status:    status,
		CreatedAt: createdAt,
		CreatedBy: "admin",
	}
	if status == model.ExchangeCodeStatusUsed {
		by := "13900000000"
		c.UsedAt = &createdAt
		c.UsedBy = &by
	}
	r.codes[code] = c
	cp := *c
	return &cp
}

// recordingSender remembers the last code sent per phone
type recordingSender struct {
	mu   sync.Mutex
	sent map[string]string
	err  error
}

func newRecordingSender() *recordingSender {
	return &recordingSender{sent: map[string]string{}}
}

func (s *recordingSender) SendCode(_ context.Context, phone, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent[phone] = code
	return nil
}

func (s *recordingSender) last(phone string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[phone]
}

const (
	testPhone      = "13800000000"
	testAdminPhone = "13911112222"
	testSecret     = "test-secret"
)

type testEnv struct {
	users    *memUserRepo
	codes    *memCodeRepo
	sender   *recordingSender
	mr       *miniredis.Miniredis
	creds    CredentialService
	registry ExchangeCodeService
	jwt      *utils.JWTUtil
	auth     AuthService
}

func newTestEnv(t *testing.T, opts CredentialOptions) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := &testEnv{
		users:  newMemUserRepo(),
		codes:  newMemCodeRepo(),
		sender: newRecordingSender(),
		mr:     mr,
	}
	if opts.SuperAdminPhone == "" {
		opts.SuperAdminPhone = testAdminPhone
	}
	env.creds = NewCredentialService(env.users, repository.NewRedisSMSCodeStore(rdb), env.sender, utils.NewHasher(4), opts)
	env.registry = NewExchangeCodeService(env.codes, time.Second)
	env.jwt = utils.NewJWTUtil(utils.JWTConfig{
		Secret:   testSecret,
		Issuer:   "test",
		ShortTTL: time.Hour,
		LongTTL:  24 * time.Hour,
	})
	env.auth = NewAuthService(env.creds, env.registry, env.jwt, false)
	return env
}

// sendCode issues an SMS code for phone and returns what the sender received
func (e *testEnv) sendCode(t *testing.T, phone string) string {
	t.Helper()
	_, err := e.creds.SendSMSCode(context.Background(), phone)
	if err != nil {
		t.Fatalf("send sms code: %v", err)
	}
	return e.sender.last(phone)
}
