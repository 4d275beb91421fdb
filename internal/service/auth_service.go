package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/agripulse/agri_go_server/config"
	"github.com/agripulse/agri_go_server/internal/model"
	"github.com/agripulse/agri_go_server/internal/model/dto"
	"github.com/agripulse/agri_go_server/internal/pkg/jwt"
	"github.com/agripulse/agri_go_server/internal/pkg/queue"
	"github.com/agripulse/agri_go_server/internal/repository"
)

var (
	ErrEmailExists        = errors.New("user already exists with this email")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidVerifyCode  = errors.New("verification code is invalid or expired")
	ErrAccountNotFound    = errors.New("account not found")
)

const verificationTTL = 24 * time.Hour

type AuthService struct {
	accountRepo *repository.AccountRepository
	ledger      *LedgerService
	jobQueue    *queue.Queue
	cfg         *config.Config
}

func NewAuthService(accountRepo *repository.AccountRepository, ledger *LedgerService, jobQueue *queue.Queue, cfg *config.Config) *AuthService {
	return &AuthService{
		accountRepo: accountRepo,
		ledger:      ledger,
		jobQueue:    jobQueue,
		cfg:         cfg,
	}
}

// Register 账户注册，同时开通免费订阅
func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	exists, err := s.accountRepo.ExistsByEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	verifyCode, err := generateRandomCode(32)
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().UTC().Add(verificationTTL)

	useCase := req.UseCase
	if useCase == "" {
		useCase = "other"
	}

	account := &model.Account{
		Email:                 req.Email,
		PasswordHash:          string(hashedPassword),
		Name:                  strings.TrimSpace(req.Name),
		Organization:          strings.TrimSpace(req.Organization),
		UseCase:               useCase,
		VerificationCode:      &verifyCode,
		VerificationExpiresAt: &expiresAt,
	}
	if err := s.accountRepo.Create(account); err != nil {
		return nil, err
	}

	sub, err := s.ledger.Create(account.ID, model.PlanFree)
	if err != nil {
		return nil, err
	}

	if s.jobQueue != nil {
		err := s.jobQueue.PushEmail(ctx, &queue.EmailJob{
			Template: queue.TemplateVerification,
			To:       account.Email,
			Data: map[string]string{
				"name": account.Name,
				"code": verifyCode,
			},
		})
		if err != nil {
			log.Printf("[auth] enqueue verification email for %s failed: %v", account.Email, err)
		}
	}

	token, err := jwt.GenerateToken(account.ID, s.cfg.JWT.Secret, s.cfg.JWT.ExpireHours)
	if err != nil {
		return nil, err
	}

	return &dto.AuthResponse{
		Token:   token,
		Plan:    string(sub.Plan),
		Account: buildAccountInfo(account, sub),
	}, nil
}

// Login 账户登录
func (s *AuthService) Login(req *dto.LoginRequest) (*dto.AuthResponse, error) {
	account, err := s.accountRepo.GetByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.accountRepo.TouchLogin(account.ID, time.Now().UTC()); err != nil {
		log.Printf("[auth] touch login for account %d failed: %v", account.ID, err)
	}

	return s.issue(account)
}

// VerifyEmail 验证邮箱
func (s *AuthService) VerifyEmail(code string) (*dto.AuthResponse, error) {
	account, err := s.accountRepo.GetByVerificationCode(code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidVerifyCode
		}
		return nil, err
	}

	if account.VerificationExpiresAt == nil || time.Now().UTC().After(*account.VerificationExpiresAt) {
		return nil, ErrInvalidVerifyCode
	}

	account.IsVerified = true
	account.VerificationCode = nil
	account.VerificationExpiresAt = nil
	if err := s.accountRepo.Update(account); err != nil {
		return nil, err
	}

	return s.issue(account)
}

// Me 当前账户及订阅
func (s *AuthService) Me(accountID int64) (*dto.AccountInfo, error) {
	account, err := s.accountRepo.GetByID(accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	sub, err := s.ledger.FindActiveByAccount(accountID)
	if err != nil {
		return nil, err
	}
	return buildAccountInfo(account, sub), nil
}

// UpdateProfile 更新账户信息，只修改传入的字段
func (s *AuthService) UpdateProfile(accountID int64, req *dto.UpdateProfileRequest) (*dto.AccountInfo, error) {
	fields := map[string]interface{}{}
	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		fields["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Organization != nil {
		fields["organization"] = strings.TrimSpace(*req.Organization)
	}
	if req.UseCase != nil && *req.UseCase != "" {
		fields["use_case"] = *req.UseCase
	}

	if len(fields) > 0 {
		if err := s.accountRepo.UpdateFields(accountID, fields); err != nil {
			return nil, err
		}
	}
	return s.Me(accountID)
}

// GetAccountByID 根据 ID 获取账户
func (s *AuthService) GetAccountByID(id int64) (*model.Account, error) {
	return s.accountRepo.GetByID(id)
}

func (s *AuthService) issue(account *model.Account) (*dto.AuthResponse, error) {
	sub, err := s.ledger.FindActiveByAccount(account.ID)
	if err != nil {
		return nil, err
	}

	token, err := jwt.GenerateToken(account.ID, s.cfg.JWT.Secret, s.cfg.JWT.ExpireHours)
	if err != nil {
		return nil, err
	}

	plan := string(model.PlanFree)
	if sub != nil {
		plan = string(sub.Plan)
	}
	return &dto.AuthResponse{
		Token:   token,
		Plan:    plan,
		Account: buildAccountInfo(account, sub),
	}, nil
}

func buildAccountInfo(account *model.Account, sub *model.Subscription) *dto.AccountInfo {
	info := &dto.AccountInfo{
		ID:           account.ID,
		Email:        account.Email,
		Name:         account.Name,
		Organization: account.Organization,
		UseCase:      account.UseCase,
		IsVerified:   account.IsVerified,
		CreatedAt:    account.CreatedAt.Format(time.RFC3339),
	}
	if sub != nil {
		info.Subscription = BuildSubscriptionInfo(sub)
	}
	return info
}

func generateRandomCode(length int) (string, error) {
	bytes := make([]byte, length/2)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
