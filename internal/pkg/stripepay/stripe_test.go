package stripepay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79/webhook"
)

const testWebhookSecret = "whsec_test_secret"

func header(t *testing.T, payload []byte, secret string) string {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return sp.Header
}

func TestClient_ParseEvent(t *testing.T) {
	client := NewClient("", testWebhookSecret)

	tests := []struct {
		name      string
		payload   string
		reference string
		eventType string
		paid      bool
	}{
		{
			name:      "completed and paid",
			payload:   `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","object":"checkout.session","client_reference_id":"STRIPE-1","payment_status":"paid"}}}`,
			reference: "STRIPE-1",
			eventType: EventCheckoutCompleted,
			paid:      true,
		},
		{
			name:      "completed unpaid",
			payload:   `{"id":"evt_2","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_2","object":"checkout.session","client_reference_id":"STRIPE-2","payment_status":"unpaid"}}}`,
			reference: "STRIPE-2",
			eventType: EventCheckoutCompleted,
		},
		{
			name:      "reference from metadata",
			payload:   `{"id":"evt_3","object":"event","type":"checkout.session.expired","data":{"object":{"id":"cs_3","object":"checkout.session","metadata":{"reference":"STRIPE-3"}}}}`,
			reference: "STRIPE-3",
			eventType: EventCheckoutExpired,
		},
		{
			name:      "unrelated event",
			payload:   `{"id":"evt_4","object":"event","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`,
			eventType: "customer.created",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := []byte(tt.payload)
			ev, err := client.ParseEvent(payload, header(t, payload, testWebhookSecret))
			require.NoError(t, err)
			assert.Equal(t, tt.eventType, ev.Type)
			assert.Equal(t, tt.reference, ev.Reference)
			assert.Equal(t, tt.paid, ev.Paid)
		})
	}
}

func TestClient_ParseEvent_BadSignature(t *testing.T) {
	client := NewClient("", testWebhookSecret)
	payload := []byte(`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{}}}`)

	_, err := client.ParseEvent(payload, header(t, payload, "whsec_other"))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = client.ParseEvent(payload, "")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestClient_NotConfigured(t *testing.T) {
	client := NewClient("", "")

	_, err := client.ParseEvent([]byte(`{}`), "t=1,v1=abc")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = client.CreateCheckout(&CheckoutRequest{Reference: "x"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
