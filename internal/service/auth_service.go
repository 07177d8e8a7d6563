package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/supportdesk/internal/config"
	"github.com/mbeoliero/supportdesk/internal/transport"
	"github.com/mbeoliero/supportdesk/pkg/errcode"
	"github.com/mbeoliero/supportdesk/pkg/jwt"
	"golang.org/x/crypto/bcrypt"
)

const (
	loginCodeTTL    = 5 * time.Minute
	loginCodeDigits = 6
)

// LoginCodeStore keeps one pending login code hash per admin
type LoginCodeStore interface {
	Put(ctx context.Context, adminId int64, hash string, ttl time.Duration) error
	Take(ctx context.Context, adminId int64) (string, error)
}

// AuthService issues admin API tokens. Admins prove their identity with a one-time code
// delivered to their private chat with the bot.
type AuthService struct {
	codes     LoginCodeStore
	transport transport.Transport
	cfg       *config.Config
}

// NewAuthService creates a new AuthService
func NewAuthService(codes LoginCodeStore, tr transport.Transport, cfg *config.Config) *AuthService {
	return &AuthService{codes: codes, transport: tr, cfg: cfg}
}

// LoginRequest represents an admin login request
type LoginRequest struct {
	AdminId int64  `json:"admin_id"`
	Code    string `json:"code"`
}

// LoginResponse represents an admin login response
type LoginResponse struct {
	Token       string `json:"token"`
	AdminId     int64  `json:"admin_id"`
	ExpireHours int    `json:"expire_hours"`
}

// RequestCode sends a fresh login code to the private chat of adminId
func (s *AuthService) RequestCode(ctx context.Context, adminId int64) error {
	if !s.cfg.Support.IsAdmin(adminId) {
		log.CtxWarn(ctx, "login code requested for non-admin: admin_id=%d", adminId)
		return errcode.ErrNotAdmin
	}

	code, err := newLoginCode()
	if err != nil {
		log.CtxError(ctx, "generate login code failed: %v", err)
		return errcode.ErrInternalServer
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		log.CtxError(ctx, "hash login code failed: %v", err)
		return errcode.ErrInternalServer
	}
	if err := s.codes.Put(ctx, adminId, string(hash), loginCodeTTL); err != nil {
		log.CtxError(ctx, "store login code failed: admin_id=%d, error=%v", adminId, err)
		return errcode.ErrStoreFailure.Wrap(err)
	}

	text := fmt.Sprintf("🔑 Login-Code: <code>%s</code>\n\nGültig für %d Minuten.", code, int(loginCodeTTL/time.Minute))
	if _, err := s.transport.SendText(ctx, transport.Target{ChatId: adminId}, text, true); err != nil {
		log.CtxWarn(ctx, "deliver login code failed: admin_id=%d, error=%v", adminId, err)
		return err
	}

	log.CtxInfo(ctx, "login code sent: admin_id=%d", adminId)
	return nil
}

// Login exchanges a login code for a token. A code is usable once.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	if !s.cfg.Support.IsAdmin(req.AdminId) {
		return nil, errcode.ErrNotAdmin
	}

	stored, err := s.codes.Take(ctx, req.AdminId)
	if err != nil {
		log.CtxError(ctx, "load login code failed: admin_id=%d, error=%v", req.AdminId, err)
		return nil, errcode.ErrStoreFailure.Wrap(err)
	}
	if stored == "" || bcrypt.CompareHashAndPassword([]byte(stored), []byte(req.Code)) != nil {
		log.CtxDebug(ctx, "login code rejected: admin_id=%d", req.AdminId)
		return nil, errcode.ErrCodeInvalid
	}

	token, err := jwt.GenerateToken(req.AdminId, s.cfg.JWT.Secret, s.cfg.JWT.ExpireHours)
	if err != nil {
		log.CtxError(ctx, "generate token failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	log.CtxInfo(ctx, "admin logged in: admin_id=%d", req.AdminId)
	return &LoginResponse{Token: token, AdminId: req.AdminId, ExpireHours: s.cfg.JWT.ExpireHours}, nil
}

func newLoginCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < loginCodeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", loginCodeDigits, n.Int64()), nil
}
