package usecase

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"app/internal/domain/model"
	"app/internal/gateway"
	repo "app/internal/repository"

	"github.com/shopspring/decimal"
)

// PaymentUsecase は決済の開始・確定・返金を担当します。
// ゲートウェイ呼び出しは遅くて失敗しうるので、必ずDBトランザクションの外で行う。
// DB側の状態遷移はゲートウェイ応答が返ってから短いTxで確定する。
type PaymentUsecase struct {
	tx       repo.TransactionManager
	gw       gateway.PaymentGateway
	currency string
}

func NewPaymentUsecase(tx repo.TransactionManager, gw gateway.PaymentGateway, currency string) *PaymentUsecase {
	return &PaymentUsecase{
		tx:       tx,
		gw:       gw,
		currency: currency,
	}
}

type CreateIntentOutput struct {
	PaymentID    int64           `json:"payment_id"`
	IntentID     string          `json:"payment_intent_id"`
	ClientSecret string          `json:"client_secret"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Status       string          `json:"status"`
}

type PaymentOutput struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"order_id"`
	PaymentMethod string          `json:"payment_method"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	TransactionID string          `json:"transaction_id,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	CompletedAt   *time.Time      `json:"completed_at"`
}

// 最小通貨単位へ（10.50 USD → 1050 cent）
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).IntPart()
}

// CreateIntent は注文の支払いを開始します。
// Payment行を先に作ってからゲートウェイを呼ぶ（呼び出しの痕跡を必ず残す）。
func (u *PaymentUsecase) CreateIntent(ctx context.Context, userID int64, orderID int64, method string) (CreateIntentOutput, error) {
	if userID <= 0 {
		return CreateIntentOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return CreateIntentOutput{}, NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	//対応している決済手段はstripeのみ
	method = strings.ToLower(strings.TrimSpace(method))
	if method == "" {
		method = string(model.PaymentMethodStripe)
	}
	if method != string(model.PaymentMethodStripe) {
		return CreateIntentOutput{}, NewHTTPError(http.StatusBadRequest, "unsupported payment method")
	}
	paymentMethod := model.PaymentMethod(method)

	var (
		paymentID int64
		amount    decimal.Decimal
	)

	//Tx1: 注文チェックとPayment行の確保
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if o.UserID != userID {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if o.Status == model.OrderStatusCancelled {
			return NewHTTPError(http.StatusBadRequest, "order is cancelled")
		}
		if o.IsPaid {
			return NewHTTPError(http.StatusBadRequest, "order already paid")
		}

		amount = o.Total

		p, found, err := r.Payments().FindByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if found {
			switch p.Status {
			case model.PaymentStatusCompleted, model.PaymentStatusRefunded:
				return NewHTTPError(http.StatusBadRequest, "order already paid")
			case model.PaymentStatusProcessing:
				return NewHTTPError(http.StatusConflict, "payment already in progress")
			default:
				//PENDING / FAILEDは同じ行を再利用する（注文と1対1）
				p.Amount = o.Total
				p.PaymentMethod = paymentMethod
				p.Currency = u.currency
				if err := r.Payments().ResetForRetry(ctx, p); err != nil {
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
				paymentID = p.ID
				return nil
			}
		}

		id, err := r.Payments().Create(ctx, model.Payment{
			OrderID:       orderID,
			UserID:        userID,
			PaymentMethod: paymentMethod,
			Amount:        o.Total,
			Status:        model.PaymentStatusPending,
			Currency:      u.currency,
		})
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		paymentID = id
		return nil
	})
	if err != nil {
		return CreateIntentOutput{}, err
	}

	//ゲートウェイ呼び出し（Txの外）
	res, gwErr := u.gw.CreateIntent(ctx, gateway.CreateIntentInput{
		AmountMinor: toMinorUnits(amount),
		Currency:    u.currency,
		Metadata: map[string]string{
			"order_id": strconv.FormatInt(orderID, 10),
			"user_id":  strconv.FormatInt(userID, 10),
		},
	})
	if gwErr != nil {
		//失敗を記録してから502を返す
		_ = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			return r.Payments().MarkFailed(ctx, paymentID, gwErr.Error())
		})
		return CreateIntentOutput{}, NewHTTPError(http.StatusBadGateway, "payment gateway error")
	}

	//Tx2: intent idを保存してPROCESSINGへ
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.Payments().MarkProcessing(ctx, paymentID, res.IntentID)
	})
	if err != nil {
		return CreateIntentOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return CreateIntentOutput{
		PaymentID:    paymentID,
		IntentID:     res.IntentID,
		ClientSecret: res.ClientSecret,
		Amount:       amount,
		Currency:     u.currency,
		Status:       string(model.PaymentStatusProcessing),
	}, nil
}

// Confirm はゲートウェイに支払い結果を照会し、成立していれば
// Payment完了と注文の支払済み化を1トランザクションで確定します。
func (u *PaymentUsecase) Confirm(ctx context.Context, userID int64, intentID string) (PaymentOutput, error) {
	if userID <= 0 {
		return PaymentOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return PaymentOutput{}, NewHTTPError(http.StatusBadRequest, "payment_intent_id required")
	}

	var p model.Payment

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		found, err := r.Payments().FindByIntentID(ctx, userID, intentID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		p = found
		return nil
	})
	if err != nil {
		return PaymentOutput{}, err
	}

	//確認済みなら同じ結果を返すだけ
	if p.Status == model.PaymentStatusCompleted || p.Status == model.PaymentStatusRefunded {
		return toPaymentOutput(p), nil
	}

	//照会（Txの外）
	st, gwErr := u.gw.RetrieveIntent(ctx, intentID)
	if gwErr != nil {
		return PaymentOutput{}, NewHTTPError(http.StatusBadGateway, "payment gateway error")
	}

	now := time.Now()

	if !st.Succeeded {
		msg := fmt.Sprintf("payment not completed: %s", st.Status)
		err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			return r.Payments().MarkFailed(ctx, p.ID, msg)
		})
		if err != nil {
			return PaymentOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return PaymentOutput{}, NewHTTPError(http.StatusBadRequest, msg)
	}

	//Payment完了と注文の支払済み化は一緒にcommitする。
	//intent発行後にキャンセルされた注文を復活させないよう、注文状態はTx内で読み直す
	var orderCancelled bool
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, p.OrderID)
		if err != nil {
			return err
		}
		if o.Status == model.OrderStatusCancelled {
			orderCancelled = true
			return nil
		}
		if err := r.Payments().MarkCompleted(ctx, p.ID, intentID, now); err != nil {
			return err
		}
		return r.Orders().MarkPaid(ctx, p.OrderID, string(p.PaymentMethod), now)
	})
	if err != nil {
		return PaymentOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if orderCancelled {
		//注文は無効のまま。成立してしまった支払いは失敗として記録し、返金導線に回す
		err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			return r.Payments().MarkFailed(ctx, p.ID, "order was cancelled before confirmation")
		})
		if err != nil {
			return PaymentOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return PaymentOutput{}, NewHTTPError(http.StatusConflict, "order is cancelled")
	}

	p.Status = model.PaymentStatusCompleted
	p.TransactionID = intentID
	p.CompletedAt = &now
	return toPaymentOutput(p), nil
}

// AdminRefund は完了済みの支払いを返金します。
// ゲートウェイ返金が成功したときだけREFUNDEDにする（失敗時はCOMPLETEDのまま）。
func (u *PaymentUsecase) AdminRefund(ctx context.Context, adminUserID int64, paymentID int64) (PaymentOutput, error) {
	if adminUserID <= 0 {
		return PaymentOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if paymentID <= 0 {
		return PaymentOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var p model.Payment

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		found, err := r.Payments().FindByID(ctx, paymentID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		p = found
		return nil
	})
	if err != nil {
		return PaymentOutput{}, err
	}

	if p.Status != model.PaymentStatusCompleted {
		return PaymentOutput{}, NewHTTPError(http.StatusBadRequest, "only completed payments can be refunded")
	}

	//全額返金（Txの外）
	if _, gwErr := u.gw.CreateRefund(ctx, p.PaymentIntentID, nil); gwErr != nil {
		return PaymentOutput{}, NewHTTPError(http.StatusBadGateway, "payment gateway error")
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.Payments().MarkRefunded(ctx, p.ID)
	})
	if err != nil {
		return PaymentOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	p.Status = model.PaymentStatusRefunded
	return toPaymentOutput(p), nil
}

func (u *PaymentUsecase) ListMyPayments(ctx context.Context, userID int64) ([]PaymentOutput, error) {
	if userID <= 0 {
		return nil, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var payments []model.Payment

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		list, err := r.Payments().ListByUserID(ctx, userID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		payments = list
		return nil
	})
	if err != nil {
		return nil, err
	}

	outs := make([]PaymentOutput, 0, len(payments))
	for _, p := range payments {
		outs = append(outs, toPaymentOutput(p))
	}
	return outs, nil
}

func toPaymentOutput(p model.Payment) PaymentOutput {
	return PaymentOutput{
		ID:            p.ID,
		OrderID:       p.OrderID,
		PaymentMethod: string(p.PaymentMethod),
		Amount:        p.Amount,
		Currency:      p.Currency,
		Status:        string(p.Status),
		TransactionID: p.TransactionID,
		ErrorMessage:  p.ErrorMessage,
		CreatedAt:     p.CreatedAt,
		CompletedAt:   p.CompletedAt,
	}
}
