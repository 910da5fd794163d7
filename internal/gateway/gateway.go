package gateway

import "context"

// 外部決済ゲートウェイとの契約。
// 金額は最小通貨単位（centなど）で渡す。
// 呼び出しは遅延・失敗しうるので、DBトランザクションの外で呼ぶこと。
type PaymentGateway interface {
	CreateIntent(ctx context.Context, in CreateIntentInput) (CreateIntentResult, error)
	RetrieveIntent(ctx context.Context, intentID string) (IntentStatus, error)
	CreateRefund(ctx context.Context, intentID string, amountMinor *int64) (RefundResult, error)
}

type CreateIntentInput struct {
	AmountMinor int64
	Currency    string
	Metadata    map[string]string
}

type CreateIntentResult struct {
	IntentID     string
	ClientSecret string
}

type IntentStatus struct {
	//ゲートウェイの生のステータス文字列
	Status string
	//支払いが成立したか
	Succeeded bool
}

type RefundResult struct {
	RefundID string
}
