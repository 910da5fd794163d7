package usecase_test

import (
	"context"
	"testing"

	"app/internal/domain/model"
	"app/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newCartUC() (*usecase.CartUsecase, *CartRepoMock, *CartItemRepoMock, *ProductRepoMock) {
	cartRepo := new(CartRepoMock)
	itemRepo := new(CartItemRepoMock)
	productRepo := new(ProductRepoMock)
	return usecase.NewCartUsecase(cartRepo, itemRepo, productRepo), cartRepo, itemRepo, productRepo
}

// 小計は常に現在の商品価格で計算される
func TestCartUsecase_GetCart_LivePricing(t *testing.T) {
	ctx := context.Background()
	uc, cartRepo, itemRepo, productRepo := newCartUC()

	cartRepo.On("GetOrCreateActiveByUserID", mock.Anything, int64(1)).
		Return(model.Cart{ID: 10, UserID: 1}, nil)
	itemRepo.On("ListByCartID", mock.Anything, int64(10)).
		Return([]model.CartItem{{ID: 1, CartID: 10, ProductID: 5, Quantity: 3}}, nil)
	productRepo.On("FindByID", mock.Anything, int64(5)).
		Return(model.Product{ID: 5, Name: "Mug", Price: dec("12.50"), IsActive: true}, nil)

	out, err := uc.GetCart(ctx, 1)

	assert.NoError(t, err)
	assert.Equal(t, 1, len(out.Items))
	assert.True(t, out.Items[0].Total.Equal(dec("37.50")))
	assert.True(t, out.Total.Equal(dec("37.50")))
}

// 非公開になった商品は表示からも合計からも落ちる
func TestCartUsecase_GetCart_DropsInactiveProducts(t *testing.T) {
	ctx := context.Background()
	uc, cartRepo, itemRepo, productRepo := newCartUC()

	cartRepo.On("GetOrCreateActiveByUserID", mock.Anything, int64(1)).
		Return(model.Cart{ID: 10, UserID: 1}, nil)
	itemRepo.On("ListByCartID", mock.Anything, int64(10)).
		Return([]model.CartItem{
			{ID: 1, CartID: 10, ProductID: 5, Quantity: 1},
			{ID: 2, CartID: 10, ProductID: 6, Quantity: 1},
		}, nil)
	productRepo.On("FindByID", mock.Anything, int64(5)).
		Return(model.Product{ID: 5, Price: dec("10.00"), IsActive: true}, nil)
	productRepo.On("FindByID", mock.Anything, int64(6)).
		Return(model.Product{ID: 6, Price: dec("99.00"), IsActive: false}, nil)

	out, err := uc.GetCart(ctx, 1)

	assert.NoError(t, err)
	assert.Equal(t, 1, len(out.Items))
	assert.True(t, out.Total.Equal(dec("10.00")))
}

// 既存数量との合算で在庫を超えたら追加できない
func TestCartUsecase_AddToCart_StockExceededWithExisting(t *testing.T) {
	ctx := context.Background()
	uc, cartRepo, itemRepo, productRepo := newCartUC()

	cartRepo.On("GetOrCreateActiveByUserID", mock.Anything, int64(1)).
		Return(model.Cart{ID: 10, UserID: 1}, nil)
	productRepo.On("FindByID", mock.Anything, int64(5)).
		Return(model.Product{ID: 5, Price: dec("10.00"), Stock: 5, IsActive: true}, nil)
	itemRepo.On("ListByCartID", mock.Anything, int64(10)).
		Return([]model.CartItem{{ID: 1, CartID: 10, ProductID: 5, Quantity: 4}}, nil)

	_, err := uc.AddToCart(ctx, 1, usecase.AddCartInput{ProductID: 5, Quantity: 2})

	assertErrContains(t, err, "stock exceeded")
	itemRepo.AssertNotCalled(t, "UpsertByCartAndProduct", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCartUsecase_AddToCart_InactiveProduct(t *testing.T) {
	ctx := context.Background()
	uc, cartRepo, _, productRepo := newCartUC()

	cartRepo.On("GetOrCreateActiveByUserID", mock.Anything, int64(1)).
		Return(model.Cart{ID: 10, UserID: 1}, nil)
	productRepo.On("FindByID", mock.Anything, int64(5)).
		Return(model.Product{ID: 5, IsActive: false}, nil)

	_, err := uc.AddToCart(ctx, 1, usecase.AddCartInput{ProductID: 5, Quantity: 1})

	assertErrContains(t, err, "invalid")
}

// 他人の明細は触れない
func TestCartUsecase_UpdateCartItem_NotOwned(t *testing.T) {
	ctx := context.Background()
	uc, _, itemRepo, _ := newCartUC()

	itemRepo.On("IsOwnedByUser", mock.Anything, int64(99), int64(1)).Return(false, nil)

	_, err := uc.UpdateCartItem(ctx, 1, 99, usecase.UpdateCartItemInput{Quantity: 2})

	assertErrContains(t, err, "not found")
	itemRepo.AssertNotCalled(t, "UpdateQuantity", mock.Anything, mock.Anything, mock.Anything)
}
