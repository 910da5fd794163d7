package gateway

import (
	"context"
	"time"

	gw "app/internal/gateway"

	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/paymentintent"
	"github.com/stripe/stripe-go/v79/refund"
)

// Stripe実装。
// 外部呼び出しはタイムアウト＋サーキットブレーカ越しに行う。
// タイムアウトもゲートウェイ失敗として呼び出し元へ返す（ローカル状態は呼び出し元が短Txで更新する）。
type StripeGateway struct {
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[any]
}

func NewStripeGateway(secretKey string, timeout time.Duration) *StripeGateway {
	stripe.Key = secretKey

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "stripe",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			//連続5回失敗で遮断
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &StripeGateway{
		timeout: timeout,
		breaker: cb,
	}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, in gw.CreateIntentInput) (gw.CreateIntentResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(in.AmountMinor),
		Currency: stripe.String(in.Currency),
	}
	params.Context = ctx
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}

	res, err := g.breaker.Execute(func() (any, error) {
		return paymentintent.New(params)
	})
	if err != nil {
		return gw.CreateIntentResult{}, err
	}

	pi := res.(*stripe.PaymentIntent)
	return gw.CreateIntentResult{
		IntentID:     pi.ID,
		ClientSecret: pi.ClientSecret,
	}, nil
}

func (g *StripeGateway) RetrieveIntent(ctx context.Context, intentID string) (gw.IntentStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	res, err := g.breaker.Execute(func() (any, error) {
		return paymentintent.Get(intentID, params)
	})
	if err != nil {
		return gw.IntentStatus{}, err
	}

	pi := res.(*stripe.PaymentIntent)
	return gw.IntentStatus{
		Status:    string(pi.Status),
		Succeeded: pi.Status == stripe.PaymentIntentStatusSucceeded,
	}, nil
}

func (g *StripeGateway) CreateRefund(ctx context.Context, intentID string, amountMinor *int64) (gw.RefundResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
	}
	params.Context = ctx
	//amountMinorがnilなら全額
	if amountMinor != nil {
		params.Amount = stripe.Int64(*amountMinor)
	}

	res, err := g.breaker.Execute(func() (any, error) {
		return refund.New(params)
	})
	if err != nil {
		return gw.RefundResult{}, err
	}

	rf := res.(*stripe.Refund)
	return gw.RefundResult{RefundID: rf.ID}, nil
}
