package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/agripulse/agri_go_server/config"
	"github.com/agripulse/agri_go_server/internal/model"
	"github.com/agripulse/agri_go_server/internal/model/dto"
	"github.com/agripulse/agri_go_server/internal/pkg/metrics"
	"github.com/agripulse/agri_go_server/internal/pkg/paystack"
	"github.com/agripulse/agri_go_server/internal/pkg/pubsub"
	"github.com/agripulse/agri_go_server/internal/pkg/queue"
	"github.com/agripulse/agri_go_server/internal/pkg/stripepay"
	"github.com/agripulse/agri_go_server/internal/repository"
)

var (
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrGatewayUnavailable   = errors.New("payment gateway unavailable")
	ErrSignatureInvalid     = errors.New("invalid webhook signature")
	ErrInvalidPayload       = errors.New("invalid webhook payload")
	ErrPaymentNotPending    = errors.New("no pending payment for this reference")
)

// 事件来源
const (
	ProviderPaystack = "paystack"
	ProviderStripe   = "stripe"
	ProviderManual   = "manual"
)

// PaystackGateway Paystack 交易初始化
type PaystackGateway interface {
	InitializeTransaction(ctx context.Context, req *paystack.InitializeRequest) (*paystack.Transaction, error)
}

// StripeGateway Stripe Checkout 与 webhook 解析
type StripeGateway interface {
	CreateCheckout(req *stripepay.CheckoutRequest) (*stripepay.CheckoutResult, error)
	ParseEvent(payload []byte, sigHeader string) (*stripepay.Event, error)
}

type PaymentService struct {
	ledger      *LedgerService
	accountRepo *repository.AccountRepository
	eventRepo   *repository.PaymentEventRepository
	paystack    PaystackGateway
	stripe      StripeGateway
	publisher   *pubsub.Publisher
	jobQueue    *queue.Queue
	metrics     *metrics.Metrics
	cfg         *config.Config
}

func NewPaymentService(
	ledger *LedgerService,
	accountRepo *repository.AccountRepository,
	eventRepo *repository.PaymentEventRepository,
	paystackGateway PaystackGateway,
	stripeGateway StripeGateway,
	publisher *pubsub.Publisher,
	jobQueue *queue.Queue,
	m *metrics.Metrics,
	cfg *config.Config,
) *PaymentService {
	return &PaymentService{
		ledger:      ledger,
		accountRepo: accountRepo,
		eventRepo:   eventRepo,
		paystack:    paystackGateway,
		stripe:      stripeGateway,
		publisher:   publisher,
		jobQueue:    jobQueue,
		metrics:     m,
		cfg:         cfg,
	}
}

// Plans 套餐目录
func (s *PaymentService) Plans() []model.PlanDefinition {
	return model.Catalog()
}

// newReference 本地生成的支付 reference
func newReference(prefix string) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return prefix + id[:16]
}

// Checkout 选择套餐与支付方式，以账户为键写入待支付订阅
func (s *PaymentService) Checkout(ctx context.Context, accountID int64, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	plan, ok := model.ParsePlan(req.Plan)
	if !ok {
		return nil, ErrPlanNotFound
	}
	def, _ := model.LookupPlan(plan)

	account, err := s.accountRepo.GetByID(accountID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	if plan == model.PlanFree {
		pricing := model.Pricing{Amount: decimal.Zero, Currency: model.CurrencyNGN, Interval: def.Interval}
		sub, err := s.ledger.Enroll(accountID, def, pricing, nil)
		if err != nil {
			return nil, err
		}
		return &dto.CheckoutResponse{
			Plan:     string(sub.Plan),
			Status:   string(sub.Status),
			Amount:   decimal.Zero,
			Currency: model.CurrencyNGN,
		}, nil
	}

	method := model.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod)))
	switch method {
	case model.MethodPaystack:
		return s.checkoutPaystack(ctx, account, def)
	case model.MethodBankTransfer:
		return s.checkoutBank(account, def)
	case model.MethodUSDT:
		return s.checkoutUSDT(account, def)
	case model.MethodStripe:
		return s.checkoutStripe(account, def)
	default:
		return nil, ErrInvalidPaymentMethod
	}
}

func (s *PaymentService) checkoutPaystack(ctx context.Context, account *model.Account, def model.PlanDefinition) (*dto.CheckoutResponse, error) {
	if s.paystack == nil {
		return nil, ErrGatewayUnavailable
	}

	tx, err := s.paystack.InitializeTransaction(ctx, &paystack.InitializeRequest{
		Email:       account.Email,
		Amount:      def.PriceNGN.Mul(decimal.NewFromInt(100)).IntPart(), // kobo
		Currency:    model.CurrencyNGN,
		Reference:   newReference("PSK"),
		CallbackURL: s.cfg.Payment.Paystack.CallbackURL,
		Metadata: map[string]string{
			"account_id":     strconv.FormatInt(account.ID, 10),
			"plan_id":        string(def.ID),
			"payment_method": string(model.MethodPaystack),
		},
	})
	if err != nil {
		log.Printf("[payment] paystack initialize failed for account %d: %v", account.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	pricing := model.Pricing{Amount: def.PriceNGN, Currency: model.CurrencyNGN, Interval: def.Interval}
	sub, err := s.ledger.Enroll(account.ID, def, pricing, &model.Payment{
		Method:    model.MethodPaystack,
		Intent:    model.IntentSubscription,
		Reference: tx.Reference,
		Status:    model.PaymentPending,
	})
	if err != nil {
		return nil, err
	}

	return &dto.CheckoutResponse{
		Plan:             string(sub.Plan),
		Status:           string(sub.Status),
		PaymentMethod:    string(model.MethodPaystack),
		Reference:        tx.Reference,
		Amount:           def.PriceNGN,
		Currency:         model.CurrencyNGN,
		AuthorizationURL: tx.AuthorizationURL,
	}, nil
}

func (s *PaymentService) checkoutBank(account *model.Account, def model.PlanDefinition) (*dto.CheckoutResponse, error) {
	reference := newReference("AGRI")
	pricing := model.Pricing{Amount: def.PriceNGN, Currency: model.CurrencyNGN, Interval: def.Interval}

	sub, err := s.ledger.Enroll(account.ID, def, pricing, &model.Payment{
		Method:    model.MethodBankTransfer,
		Intent:    model.IntentSubscription,
		Reference: reference,
		Status:    model.PaymentPending,
	})
	if err != nil {
		return nil, err
	}

	bank := s.cfg.Payment.Bank
	return &dto.CheckoutResponse{
		Plan:          string(sub.Plan),
		Status:        string(sub.Status),
		PaymentMethod: string(model.MethodBankTransfer),
		Reference:     reference,
		Amount:        def.PriceNGN,
		Currency:      model.CurrencyNGN,
		BankDetails: &dto.BankDetails{
			BankName:      bank.BankName,
			AccountName:   bank.AccountName,
			AccountNumber: bank.AccountNumber,
			Instructions: fmt.Sprintf("Please transfer NGN %s to the account above and use the reference: %s",
				def.PriceNGN.StringFixed(2), reference),
		},
	}, nil
}

// usdtAmount NGN 价格按配置汇率换算为 USDT，保留两位小数
func (s *PaymentService) usdtAmount(priceNGN decimal.Decimal) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(s.cfg.Payment.USDT.RateFromNGN)
	if err != nil || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("invalid usdt rate %q", s.cfg.Payment.USDT.RateFromNGN)
	}
	return priceNGN.Mul(rate).Round(2), nil
}

func (s *PaymentService) checkoutUSDT(account *model.Account, def model.PlanDefinition) (*dto.CheckoutResponse, error) {
	amount, err := s.usdtAmount(def.PriceNGN)
	if err != nil {
		return nil, err
	}

	usdt := s.cfg.Payment.USDT
	reference := newReference("USDT")
	pricing := model.Pricing{Amount: def.PriceNGN, Currency: model.CurrencyNGN, Interval: def.Interval}

	sub, err := s.ledger.Enroll(account.ID, def, pricing, &model.Payment{
		Method:      model.MethodUSDT,
		Intent:      model.IntentSubscription,
		Reference:   reference,
		Status:      model.PaymentPending,
		USDTAddress: usdt.WalletAddress,
		USDTNetwork: usdt.Network,
		USDTAmount:  amount,
	})
	if err != nil {
		return nil, err
	}

	return &dto.CheckoutResponse{
		Plan:          string(sub.Plan),
		Status:        string(sub.Status),
		PaymentMethod: string(model.MethodUSDT),
		Reference:     reference,
		Amount:        amount,
		Currency:      model.CurrencyUSDT,
		USDT: &dto.USDTDetails{
			WalletAddress: usdt.WalletAddress,
			Network:       usdt.Network,
			Amount:        amount,
			Instructions: fmt.Sprintf("Please send %s USDT to the %s wallet address above and use the reference: %s",
				amount.StringFixed(2), usdt.Network, reference),
		},
	}, nil
}

func (s *PaymentService) checkoutStripe(account *model.Account, def model.PlanDefinition) (*dto.CheckoutResponse, error) {
	if s.stripe == nil {
		return nil, ErrGatewayUnavailable
	}

	reference := newReference("STRIPE")
	frontend := strings.TrimRight(s.cfg.Server.FrontendURL, "/")

	result, err := s.stripe.CreateCheckout(&stripepay.CheckoutRequest{
		Reference:  reference,
		Email:      account.Email,
		PlanName:   def.Name,
		Currency:   model.CurrencyUSD,
		UnitAmount: def.PriceUSD.Mul(decimal.NewFromInt(100)).IntPart(),
		SuccessURL: frontend + "/payment/success?reference=" + reference,
		CancelURL:  frontend + "/payment/cancel",
	})
	if err != nil {
		log.Printf("[payment] stripe checkout failed for account %d: %v", account.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	pricing := model.Pricing{Amount: def.PriceUSD, Currency: model.CurrencyUSD, Interval: def.Interval}
	sub, err := s.ledger.Enroll(account.ID, def, pricing, &model.Payment{
		Method:    model.MethodStripe,
		Intent:    model.IntentSubscription,
		Reference: reference,
		Status:    model.PaymentPending,
	})
	if err != nil {
		return nil, err
	}

	return &dto.CheckoutResponse{
		Plan:             string(sub.Plan),
		Status:           string(sub.Status),
		PaymentMethod:    string(model.MethodStripe),
		Reference:        reference,
		Amount:           def.PriceUSD,
		Currency:         model.CurrencyUSD,
		AuthorizationURL: result.URL,
	}, nil
}

// HandlePaystackWebhook 校验签名后应用 charge 事件，未知 reference 只记录不报错
func (s *PaymentService) HandlePaystackWebhook(ctx context.Context, body []byte, signature string) (*dto.PaymentActionResponse, error) {
	if !paystack.VerifySignature(body, signature, s.cfg.Payment.Paystack.SecretKey) {
		return nil, ErrSignatureInvalid
	}

	ev, err := paystack.ParseEvent(body)
	if err != nil {
		return nil, ErrInvalidPayload
	}

	var outcome string
	switch ev.Event {
	case paystack.EventChargeSuccess:
		outcome = model.OutcomeSuccess
	case paystack.EventChargeFailed:
		outcome = model.OutcomeFailure
	default:
		s.record(ProviderPaystack, ev.Event, ev.Data.Reference, "", false, body)
		return &dto.PaymentActionResponse{Reference: ev.Data.Reference}, nil
	}

	return s.applyWebhook(ctx, ProviderPaystack, ev.Event, ev.Data.Reference, PaymentResult{Outcome: outcome}, body)
}

// HandleStripeWebhook 处理 Stripe Checkout 事件
func (s *PaymentService) HandleStripeWebhook(ctx context.Context, body []byte, sigHeader string) (*dto.PaymentActionResponse, error) {
	if s.stripe == nil {
		return nil, ErrGatewayUnavailable
	}

	ev, err := s.stripe.ParseEvent(body, sigHeader)
	if err != nil {
		switch {
		case errors.Is(err, stripepay.ErrInvalidSignature):
			return nil, ErrSignatureInvalid
		case errors.Is(err, stripepay.ErrNotConfigured):
			return nil, ErrGatewayUnavailable
		default:
			return nil, ErrInvalidPayload
		}
	}

	var outcome string
	switch {
	case ev.Type == stripepay.EventCheckoutCompleted && ev.Paid, ev.Type == stripepay.EventCheckoutAsyncSucceeded:
		outcome = model.OutcomeSuccess
	case ev.Type == stripepay.EventCheckoutAsyncFailed, ev.Type == stripepay.EventCheckoutExpired:
		outcome = model.OutcomeFailure
	default:
		// 异步支付方式会先收到未支付的 completed 事件
		s.record(ProviderStripe, ev.Type, ev.Reference, "", false, body)
		return &dto.PaymentActionResponse{Reference: ev.Reference}, nil
	}

	return s.applyWebhook(ctx, ProviderStripe, ev.Type, ev.Reference, PaymentResult{Outcome: outcome}, body)
}

func (s *PaymentService) applyWebhook(ctx context.Context, provider, event, reference string, result PaymentResult, body []byte) (*dto.PaymentActionResponse, error) {
	resp, err := s.apply(ctx, provider, event, reference, result, body)
	if errors.Is(err, ErrReferenceNotFound) {
		log.Printf("[payment] %s webhook %s: unknown reference %q acknowledged", provider, event, reference)
		return &dto.PaymentActionResponse{Reference: reference}, nil
	}
	return resp, err
}

// apply 写入支付结果、审计记录，并在状态变化时通知账户
func (s *PaymentService) apply(ctx context.Context, provider, event, reference string, result PaymentResult, payload []byte) (*dto.PaymentActionResponse, error) {
	applied, err := s.ledger.ApplyPayment(reference, result)
	if err != nil {
		if errors.Is(err, ErrReferenceNotFound) {
			s.record(provider, event, reference, result.Outcome, false, payload)
		}
		return nil, err
	}

	s.record(provider, event, reference, result.Outcome, applied, payload)
	s.metrics.Payment(provider, result.Outcome, applied)

	resp := &dto.PaymentActionResponse{Reference: reference, Applied: applied}
	sub, err := s.ledger.FindByReference(reference)
	if err != nil {
		return nil, err
	}
	resp.Status = string(sub.Status)

	if applied {
		s.notify(ctx, sub, result.Outcome)
	}
	return resp, nil
}

// record 审计记录写入失败不影响主流程
func (s *PaymentService) record(provider, event, reference, outcome string, applied bool, payload []byte) {
	if s.eventRepo == nil {
		return
	}
	if !json.Valid(payload) {
		payload = nil
	}
	err := s.eventRepo.Create(&model.PaymentEvent{
		Provider:  provider,
		Event:     event,
		Reference: reference,
		Outcome:   outcome,
		Applied:   applied,
		Payload:   datatypes.JSON(payload),
	})
	if err != nil {
		log.Printf("[payment] failed to record %s event for %s: %v", provider, reference, err)
	}
}

// notify 推送订阅变化，成功时发送收据邮件
func (s *PaymentService) notify(ctx context.Context, sub *model.Subscription, outcome string) {
	if s.publisher != nil {
		err := s.publisher.PublishSubscription(ctx, &pubsub.EventMessage{
			AccountID: sub.AccountID,
			Status:    string(sub.Status),
			Plan:      string(sub.Plan),
			Reference: sub.Payment.Reference,
		})
		if err != nil {
			log.Printf("[payment] publish subscription event failed: %v", err)
		}
	}

	if outcome != model.OutcomeSuccess || s.jobQueue == nil {
		return
	}
	account, err := s.accountRepo.GetByID(sub.AccountID)
	if err != nil {
		log.Printf("[payment] receipt skipped, account %d: %v", sub.AccountID, err)
		return
	}
	err = s.jobQueue.PushEmail(ctx, &queue.EmailJob{
		Template: queue.TemplateReceipt,
		To:       account.Email,
		Data: map[string]string{
			"name":      account.Name,
			"plan":      string(sub.Plan),
			"reference": sub.Payment.Reference,
			"amount":    sub.Pricing.Amount.StringFixed(2),
			"currency":  sub.Pricing.Currency,
			"method":    string(sub.Payment.Method),
		},
	})
	if err != nil {
		log.Printf("[payment] enqueue receipt failed: %v", err)
	}
}

// ConfirmManual 运营人员确认银行转账/USDT 到账
func (s *PaymentService) ConfirmManual(ctx context.Context, req *dto.ConfirmPaymentRequest) (*dto.PaymentActionResponse, error) {
	payload, _ := json.Marshal(req)
	return s.apply(ctx, ProviderManual, "payment.confirmed", req.Reference, PaymentResult{
		Outcome: model.OutcomeSuccess,
		Proof:   req.Proof,
		TxHash:  req.TxHash,
	}, payload)
}

// FailManual 运营人员标记支付失败
func (s *PaymentService) FailManual(ctx context.Context, req *dto.FailPaymentRequest) (*dto.PaymentActionResponse, error) {
	payload, _ := json.Marshal(req)
	return s.apply(ctx, ProviderManual, "payment.failed", req.Reference, PaymentResult{
		Outcome: model.OutcomeFailure,
	}, payload)
}

// SubmitProof 用户为待确认的转账提交凭证
func (s *PaymentService) SubmitProof(accountID int64, req *dto.ConfirmPaymentRequest) error {
	sub, err := s.ledger.FindActiveByAccount(accountID)
	if err != nil {
		return err
	}
	if sub == nil || sub.Payment.Reference != req.Reference || sub.Payment.Status != model.PaymentPending {
		return ErrPaymentNotPending
	}
	return s.ledger.AttachProof(sub.ID, req.Proof, req.TxHash)
}

// Cancel 取消订阅
func (s *PaymentService) Cancel(ctx context.Context, accountID int64, atPeriodEnd bool) (*dto.SubscriptionInfo, error) {
	sub, err := s.ledger.Cancel(accountID, atPeriodEnd)
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishSubscription(ctx, &pubsub.EventMessage{
			AccountID: accountID,
			Status:    string(sub.Status),
			Plan:      string(sub.Plan),
		}); err != nil {
			log.Printf("[payment] publish cancel event failed: %v", err)
		}
	}
	return BuildSubscriptionInfo(sub), nil
}

// Status 当前订阅状态，无记录时返回免费套餐
func (s *PaymentService) Status(accountID int64) (*dto.SubscriptionInfo, error) {
	sub, err := s.ledger.FindActiveByAccount(accountID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		sub = freeTemplate()
		sub.AccountID = accountID
	}
	return BuildSubscriptionInfo(sub), nil
}

// BuildSubscriptionInfo 订阅转换为接口返回结构
func BuildSubscriptionInfo(sub *model.Subscription) *dto.SubscriptionInfo {
	info := &dto.SubscriptionInfo{
		Plan:   string(sub.Plan),
		Status: string(sub.Status),
		Limits: sub.Limits,
		APIRequests: dto.MeterInfo{
			Used:      sub.Usage.APIRequests,
			Limit:     sub.Limits.APIRequests,
			Remaining: sub.Remaining(model.CapabilityAPI),
		},
		DataExports: dto.MeterInfo{
			Used:      sub.Usage.DataExports,
			Limit:     sub.Limits.DataExports,
			Remaining: sub.Remaining(model.CapabilityExport),
		},
		PaymentMethod:     string(sub.Payment.Method),
		PaymentStatus:     string(sub.Payment.Status),
		PaymentReference:  sub.Payment.Reference,
		AutoRenew:         sub.AutoRenew,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if !sub.Period.Start.IsZero() {
		info.PeriodStart = sub.Period.Start.Format(time.RFC3339)
	}
	if !sub.Period.End.IsZero() {
		info.PeriodEnd = sub.Period.End.Format(time.RFC3339)
	}
	return info
}
