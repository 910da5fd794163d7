package usecase

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderUsecase は注文確定（チェックアウト）とキャンセルを担当します。
// カート・在庫・クーポン・注文を1つのトランザクションで動かす中核です。
type OrderUsecase struct {
	tx          repo.TransactionManager
	taxRate     decimal.Decimal
	shippingFee decimal.Decimal
}

func NewOrderUsecase(tx repo.TransactionManager, taxRate decimal.Decimal, shippingFee decimal.Decimal) *OrderUsecase {
	return &OrderUsecase{
		tx:          tx,
		taxRate:     taxRate,
		shippingFee: shippingFee,
	}
}

type ShippingInput struct {
	Address    string
	City       string
	State      string
	Country    string
	PostalCode string
	Phone      string
	Notes      string
}

type PlaceOrderInput struct {
	Shipping       ShippingInput
	CouponCode     string
	IdempotencyKey string
}

type OrderItemOutput struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
}

type OrderOutput struct {
	ID           int64             `json:"id"`
	OrderNumber  string            `json:"order_number"`
	UserID       int64             `json:"user_id"`
	Status       string            `json:"status"`
	Subtotal     decimal.Decimal   `json:"subtotal"`
	Discount     decimal.Decimal   `json:"discount"`
	Tax          decimal.Decimal   `json:"tax"`
	ShippingCost decimal.Decimal   `json:"shipping_cost"`
	Total        decimal.Decimal   `json:"total"`
	IsPaid       bool              `json:"is_paid"`
	PaidAt       *time.Time        `json:"paid_at"`
	CreatedAt    time.Time         `json:"created_at"`
	Items        []OrderItemOutput `json:"items"`
}

// 配送先の必須チェック
func validateShipping(s ShippingInput) error {
	if strings.TrimSpace(s.Address) == "" {
		return NewHTTPError(http.StatusBadRequest, "shipping_address required")
	}
	if strings.TrimSpace(s.City) == "" {
		return NewHTTPError(http.StatusBadRequest, "shipping_city required")
	}
	if strings.TrimSpace(s.State) == "" {
		return NewHTTPError(http.StatusBadRequest, "shipping_state required")
	}
	if strings.TrimSpace(s.Country) == "" {
		return NewHTTPError(http.StatusBadRequest, "shipping_country required")
	}
	if strings.TrimSpace(s.PostalCode) == "" {
		return NewHTTPError(http.StatusBadRequest, "shipping_postal_code required")
	}
	if strings.TrimSpace(s.Phone) == "" {
		return NewHTTPError(http.StatusBadRequest, "phone_number required")
	}
	return nil
}

// PlaceOrder はカートを不変の注文に変換します。
// カート検証→クーポン→金額計算→在庫予約→注文作成→カートクリアまでを
// 1トランザクションで行い、途中で失敗したら何も起きなかったことにする。
func (u *OrderUsecase) PlaceOrder(ctx context.Context, userID int64, in PlaceOrderInput) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if err := validateShipping(in.Shipping); err != nil {
		return OrderOutput{}, err
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" || len(key) > 255 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid idempotency_key")
	}
	couponCode := strings.ToUpper(strings.TrimSpace(in.CouponCode))

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 同じキーなら同じ結果
		existing, found, err := r.Orders().FindByIdempotencyKey(ctx, userID, key)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if found {
			items, err := r.OrderItems().ListByOrderID(ctx, existing.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			out = toOrderOutput(existing, items)
			return nil
		}

		//ACTIVEカート取得
		cart, err := r.Carts().FindActiveByUserID(ctx, userID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusBadRequest, "cart empty")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		cartItems, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if len(cartItems) == 0 {
			return NewHTTPError(http.StatusBadRequest, "cart empty")
		}

		//この瞬間の価格で小計を確定する
		now := time.Now()
		subtotal := decimal.Zero
		orderItems := make([]model.OrderItem, 0, len(cartItems))

		for _, ci := range cartItems {
			p, err := r.Products().FindByID(ctx, ci.ProductID)
			if err == repo.ErrNotFound {
				return NewHTTPError(http.StatusBadRequest, "invalid")
			}
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if !p.IsActive {
				return NewHTTPError(http.StatusBadRequest, "invalid")
			}

			lineTotal := p.Price.Mul(decimal.NewFromInt(ci.Quantity))
			subtotal = subtotal.Add(lineTotal)

			//スナップショット（後で商品が変わっても注文は変わらない）
			orderItems = append(orderItems, model.OrderItem{
				ProductID:           ci.ProductID,
				ProductNameSnapshot: p.Name,
				UnitPriceSnapshot:   p.Price,
				Quantity:            ci.Quantity,
				TotalPrice:          lineTotal,
				CreatedAt:           now,
			})
		}

		//クーポン（失敗したら注文ごと失敗させる）
		discount := decimal.Zero
		var coupon model.Coupon
		usingCoupon := couponCode != ""

		if usingCoupon {
			//行ロック。同一コードの同時利用はここで直列化される
			coupon, err = r.Coupons().FindByCodeForUpdate(ctx, couponCode)
			if err == repo.ErrNotFound {
				return NewHTTPError(http.StatusBadRequest, "invalid coupon code")
			}
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}

			if ok, reason := coupon.IsValid(now); !ok {
				return NewHTTPError(http.StatusBadRequest, reason)
			}
			if subtotal.LessThan(coupon.MinPurchaseAmount) {
				return NewHTTPError(http.StatusBadRequest,
					fmt.Sprintf("minimum purchase amount is %s", coupon.MinPurchaseAmount.StringFixed(2)))
			}

			//ユーザーごとの上限
			used, err := r.Coupons().CountUsagesByUser(ctx, coupon.ID, userID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if used >= coupon.UsageLimitPerUser {
				return NewHTTPError(http.StatusBadRequest, "coupon usage limit reached for user")
			}

			discount = coupon.CalculateDiscount(subtotal)
		}

		//金額内訳（total = subtotal - discount + tax + shipping）
		tax := subtotal.Mul(u.taxRate).Round(2)
		total := subtotal.Sub(discount).Add(tax).Add(u.shippingFee)

		//在庫予約。1行でも足りなければTxごとロールバック（部分予約は残らない）
		for i, ci := range cartItems {
			ok, err := r.Inventory().DecreaseStockIfEnough(ctx, ci.ProductID, ci.Quantity)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if !ok {
				return NewHTTPError(http.StatusBadRequest,
					fmt.Sprintf("insufficient stock for %s", orderItems[i].ProductNameSnapshot))
			}
		}

		// 注文作成
		orderID, err := r.Orders().Create(ctx, model.Order{
			OrderNumber:        newOrderNumber(),
			UserID:             userID,
			Status:             model.OrderStatusPending,
			ShippingAddress:    strings.TrimSpace(in.Shipping.Address),
			ShippingCity:       strings.TrimSpace(in.Shipping.City),
			ShippingState:      strings.TrimSpace(in.Shipping.State),
			ShippingCountry:    strings.TrimSpace(in.Shipping.Country),
			ShippingPostalCode: strings.TrimSpace(in.Shipping.PostalCode),
			PhoneNumber:        strings.TrimSpace(in.Shipping.Phone),
			Notes:              in.Shipping.Notes,
			Subtotal:           subtotal,
			Discount:           discount,
			Tax:                tax,
			ShippingCost:       u.shippingFee,
			Total:              total,
			IdempotencyKey:     key,
			CreatedAt:          now,
			UpdatedAt:          now,
		})
		if err != nil {
			//競合（同時に同じキーが入った等）はもう一回検索して同じ結果を返す
			if err == gorm.ErrDuplicatedKey {
				ex2, found2, err2 := r.Orders().FindByIdempotencyKey(ctx, userID, key)
				if err2 == nil && found2 {
					items2, err3 := r.OrderItems().ListByOrderID(ctx, ex2.ID)
					if err3 != nil {
						return NewHTTPError(http.StatusInternalServerError, "db error")
					}
					out = toOrderOutput(ex2, items2)
					return nil
				}
			}
			return NewHTTPError(http.StatusBadRequest, "idempotency conflict")
		}

		//注文明細一括作成
		if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//クーポンの枠を取り、利用履歴を残す。
		//枠の判定と加算は1文（最後の1枠の取り合いは片方しか勝てない）
		if usingCoupon {
			got, err := r.Coupons().TakeUsageSlot(ctx, coupon.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if !got {
				return NewHTTPError(http.StatusBadRequest, "coupon usage limit reached")
			}

			if err := r.Coupons().CreateUsage(ctx, model.CouponUsage{
				CouponID:       coupon.ID,
				UserID:         userID,
				OrderID:        orderID,
				DiscountAmount: discount,
				CreatedAt:      now,
			}); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
		}

		//カートをCHECKED_OUTにして、明細をクリア（再注文防止）
		if err := r.Carts().UpdateStatus(ctx, cart.ID, model.CartStatusCheckedOut); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if err := r.Carts().Clear(ctx, cart.ID); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		created, err := r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		out = toOrderOutput(created, orderItems)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// CancelOrder は未出荷・未払いの注文を取り消し、在庫を戻します。
// 在庫戻しとステータス変更は1トランザクション
func (u *OrderUsecase) CancelOrder(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if o.UserID != userID {
			//他人の注文は「存在しない扱い」にする
			return NewHTTPError(http.StatusNotFound, "not found")
		}

		if o.Status == model.OrderStatusShipped || o.Status == model.OrderStatusDelivered {
			return NewHTTPError(http.StatusBadRequest, "cannot cancel shipped or delivered order")
		}
		if o.Status == model.OrderStatusCancelled {
			return NewHTTPError(http.StatusBadRequest, "order already cancelled")
		}
		if o.IsPaid {
			return NewHTTPError(http.StatusBadRequest, "cannot cancel paid order")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//予約していた数量を戻す
		for _, it := range items {
			if err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
		}

		if err := r.Orders().UpdateStatus(ctx, orderID, model.OrderStatusCancelled); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		o.Status = model.OrderStatusCancelled
		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64) ([]OrderOutput, error) {
	if userID <= 0 {
		return []OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListByUserID(ctx, userID, 1, 50)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			outs = append(outs, toOrderOutput(o, items))
		}
		return nil
	})

	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

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

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func newOrderNumber() string {
	return "ORD-" + strings.ToUpper(uuid.NewString()[:8])
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
			Total:     it.TotalPrice,
		})
	}

	return OrderOutput{
		ID:           o.ID,
		OrderNumber:  o.OrderNumber,
		UserID:       o.UserID,
		Status:       string(o.Status),
		Subtotal:     o.Subtotal,
		Discount:     o.Discount,
		Tax:          o.Tax,
		ShippingCost: o.ShippingCost,
		Total:        o.Total,
		IsPaid:       o.IsPaid,
		PaidAt:       o.PaidAt,
		CreatedAt:    o.CreatedAt,
		Items:        outItems,
	}
}
