package razorpay

import "encoding/json"

// WebhookEvent is the decoded form of a webhook delivery. Only the events the
// reconciliation flow reacts to get their own variant; everything else decodes
// to Ignored so unknown event types are acked explicitly, not dropped.
type WebhookEvent interface {
	webhookEvent()
}

type PaymentCaptured struct {
	PaymentID string
	OrderID   string
	Amount    int64
}

type PaymentFailed struct {
	PaymentID string
	Reason    string
}

type Ignored struct {
	Event string
}

func (PaymentCaptured) webhookEvent() {}
func (PaymentFailed) webhookEvent()   {}
func (Ignored) webhookEvent()         {}

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID               string `json:"id"`
				OrderID          string `json:"order_id"`
				Amount           int64  `json:"amount"`
				ErrorDescription string `json:"error_description"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

func ParseWebhook(body []byte) (WebhookEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}

	entity := env.Payload.Payment.Entity
	switch env.Event {
	case "payment.captured":
		return PaymentCaptured{PaymentID: entity.ID, OrderID: entity.OrderID, Amount: entity.Amount}, nil
	case "payment.failed":
		reason := entity.ErrorDescription
		if reason == "" {
			reason = "payment failed"
		}
		return PaymentFailed{PaymentID: entity.ID, Reason: reason}, nil
	default:
		return Ignored{Event: env.Event}, nil
	}
}
