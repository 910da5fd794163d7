package usecase_test

import (
	"context"
	"testing"

	"app/internal/domain/model"
	"app/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newAdminOrderUC(repos *txReposStub, audit *AuditRepoMock) *usecase.AdminOrderUsecase {
	return usecase.NewAdminOrderUsecase(&txManagerStub{repos: repos}, audit)
}

func TestAdminOrderUsecase_UpdateStatus_PendingToProcessing(t *testing.T) {
	ctx := context.Background()
	repos := newTxReposStub()
	audit := new(AuditRepoMock)
	uc := newAdminOrderUC(repos, audit)

	repos.orders.On("FindByID", mock.Anything, int64(100)).
		Return(model.Order{ID: 100, UserID: 1, Status: model.OrderStatusPending}, nil)
	repos.orderItems.On("ListByOrderID", mock.Anything, int64(100)).
		Return([]model.OrderItem{}, nil)
	repos.orders.On("UpdateStatus", mock.Anything, int64(100), model.OrderStatusProcessing).Return(nil)
	audit.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.ActorUserID == 9 &&
			l.Action == model.AuditActionUpdateOrderStatus &&
			l.ResourceType == model.AuditResourceOrder &&
			l.ResourceID == 100
	})).Return(nil)

	out, err := uc.UpdateStatus(ctx, 9, 100, "PROCESSING")

	assert.NoError(t, err)
	assert.Equal(t, "PROCESSING", out.Status)
	audit.AssertExpectations(t)
}

// DELIVEREDは終端。そこからは動かせない
func TestAdminOrderUsecase_UpdateStatus_TerminalGuard(t *testing.T) {
	ctx := context.Background()
	repos := newTxReposStub()
	uc := newAdminOrderUC(repos, new(AuditRepoMock))

	repos.orders.On("FindByID", mock.Anything, int64(100)).
		Return(model.Order{ID: 100, Status: model.OrderStatusDelivered}, nil)

	_, err := uc.UpdateStatus(ctx, 9, 100, "PROCESSING")

	assertErrContains(t, err, "cannot transition")
	repos.orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

// 出荷後はキャンセルできない
func TestAdminOrderUsecase_UpdateStatus_ShippedCannotCancel(t *testing.T) {
	ctx := context.Background()
	repos := newTxReposStub()
	uc := newAdminOrderUC(repos, new(AuditRepoMock))

	repos.orders.On("FindByID", mock.Anything, int64(100)).
		Return(model.Order{ID: 100, Status: model.OrderStatusShipped}, nil)

	_, err := uc.UpdateStatus(ctx, 9, 100, "CANCELLED")

	assertErrContains(t, err, "cannot transition")
}

// 管理者キャンセルは在庫を戻す
func TestAdminOrderUsecase_UpdateStatus_CancelRestoresStock(t *testing.T) {
	ctx := context.Background()
	repos := newTxReposStub()
	audit := new(AuditRepoMock)
	uc := newAdminOrderUC(repos, audit)

	repos.orders.On("FindByID", mock.Anything, int64(100)).
		Return(model.Order{ID: 100, Status: model.OrderStatusPending}, nil)
	repos.orderItems.On("ListByOrderID", mock.Anything, int64(100)).
		Return([]model.OrderItem{{ProductID: 5, Quantity: 3}}, nil)
	repos.inventory.On("IncreaseStock", mock.Anything, int64(5), int64(3)).Return(nil)
	repos.orders.On("UpdateStatus", mock.Anything, int64(100), model.OrderStatusCancelled).Return(nil)
	audit.On("Create", mock.Anything, mock.Anything).Return(nil)

	out, err := uc.UpdateStatus(ctx, 9, 100, "CANCELLED")

	assert.NoError(t, err)
	assert.Equal(t, "CANCELLED", out.Status)
	repos.inventory.AssertExpectations(t)
}

// 支払済み注文は先に返金しないとキャンセルできない
func TestAdminOrderUsecase_UpdateStatus_PaidCancelNeedsRefund(t *testing.T) {
	ctx := context.Background()
	repos := newTxReposStub()
	uc := newAdminOrderUC(repos, new(AuditRepoMock))

	repos.orders.On("FindByID", mock.Anything, int64(100)).
		Return(model.Order{ID: 100, Status: model.OrderStatusProcessing, IsPaid: true}, nil)

	_, err := uc.UpdateStatus(ctx, 9, 100, "CANCELLED")

	assertErrContains(t, err, "refund the payment")
	repos.inventory.AssertNotCalled(t, "IncreaseStock", mock.Anything, mock.Anything, mock.Anything)
}

func TestAdminOrderUsecase_UpdateStatus_InvalidStatusString(t *testing.T) {
	ctx := context.Background()
	repos := newTxReposStub()
	uc := newAdminOrderUC(repos, new(AuditRepoMock))

	_, err := uc.UpdateStatus(ctx, 9, 100, "CANCELED")

	assertErrContains(t, err, "invalid status")
}
