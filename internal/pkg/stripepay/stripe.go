package stripepay

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"
)

const (
	EventCheckoutCompleted      = "checkout.session.completed"
	EventCheckoutAsyncSucceeded = "checkout.session.async_payment_succeeded"
	EventCheckoutAsyncFailed    = "checkout.session.async_payment_failed"
	EventCheckoutExpired        = "checkout.session.expired"
)

var (
	ErrNotConfigured    = errors.New("stripe is not configured")
	ErrInvalidSignature = errors.New("stripe signature verification failed")
)

// CheckoutRequest 一次性支付的 Checkout Session 参数，金额单位为分
type CheckoutRequest struct {
	Reference  string
	Email      string
	PlanName   string
	Currency   string
	UnitAmount int64
	SuccessURL string
	CancelURL  string
}

// CheckoutResult 已创建的 Session
type CheckoutResult struct {
	SessionID string
	URL       string
}

// Event webhook 中与支付相关的字段
type Event struct {
	ID        string
	Type      string
	Reference string
	Paid      bool
}

type Client struct {
	secretKey     string
	webhookSecret string
}

func NewClient(secretKey, webhookSecret string) *Client {
	if secretKey != "" {
		stripe.Key = secretKey
	}
	return &Client{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
	}
}

// CreateCheckout 创建 Checkout Session，client_reference_id 为本地支付 reference
func (c *Client) CreateCheckout(req *CheckoutRequest) (*CheckoutResult, error) {
	if c.secretKey == "" {
		return nil, ErrNotConfigured
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.Reference),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(req.UnitAmount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.PlanName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	params.AddMetadata("reference", req.Reference)

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session failed: %w", err)
	}
	return &CheckoutResult{SessionID: sess.ID, URL: sess.URL}, nil
}

// ParseEvent 校验签名并取出 reference
func (c *Client) ParseEvent(payload []byte, sigHeader string) (*Event, error) {
	if c.webhookSecret == "" {
		return nil, ErrNotConfigured
	}

	event, err := webhook.ConstructEventWithOptions(
		payload,
		sigHeader,
		c.webhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	ev := &Event{ID: event.ID, Type: string(event.Type)}
	switch ev.Type {
	case EventCheckoutCompleted, EventCheckoutAsyncSucceeded, EventCheckoutAsyncFailed, EventCheckoutExpired:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("invalid session payload: %w", err)
		}
		ev.Reference = sess.ClientReferenceID
		if ev.Reference == "" {
			ev.Reference = sess.Metadata["reference"]
		}
		ev.Paid = sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid
	}
	return ev, nil
}
