package auth_test

import (
	"context"
	"testing"
	"time"

	"app/internal/domain/model"
	auth "app/internal/usecase/auth_usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type UserRepoMock struct{ mock.Mock }

func (m *UserRepoMock) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepoMock) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) UpdateLastLogin(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type hasherStub struct{}

func (hasherStub) Hash(plain string) (string, error) { return "hashed:" + plain, nil }

type verifierStub struct{ ok bool }

func (v verifierStub) Verify(plain string, hashed string) bool { return v.ok }

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type issuerStub struct{}

func (issuerStub) Issue(userID int64, role model.Role, now time.Time) (string, time.Time, error) {
	return "token", now.Add(15 * time.Minute), nil
}

func TestRegisterUser_Success(t *testing.T) {
	ctx := context.Background()
	userRepo := new(UserRepoMock)
	uc := auth.NewRegisterUserUsecase(userRepo, hasherStub{}, fixedClock{now: time.Now()})

	userRepo.On("FindByEmail", mock.Anything, "new@example.com").Return(nil, nil)
	userRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *model.User) bool {
		return u.Email == "new@example.com" &&
			u.PasswordHash == "hashed:correct-horse-battery" &&
			u.Role == model.RoleUser &&
			u.IsActive
	})).Return(nil)

	out, err := uc.Execute(ctx, auth.RegisterUserInput{
		Email:    "new@example.com",
		Password: "correct-horse-battery",
	})

	assert.NoError(t, err)
	// ハッシュは応答に含めない
	assert.Equal(t, "", out.User.PasswordHash)
	userRepo.AssertExpectations(t)
}

func TestRegisterUser_InvalidEmail(t *testing.T) {
	uc := auth.NewRegisterUserUsecase(new(UserRepoMock), hasherStub{}, fixedClock{now: time.Now()})

	_, err := uc.Execute(context.Background(), auth.RegisterUserInput{
		Email:    "not-an-email",
		Password: "correct-horse-battery",
	})
	assert.ErrorIs(t, err, auth.ErrInvalidEmailFormat)
}

func TestRegisterUser_PasswordTooShort(t *testing.T) {
	uc := auth.NewRegisterUserUsecase(new(UserRepoMock), hasherStub{}, fixedClock{now: time.Now()})

	_, err := uc.Execute(context.Background(), auth.RegisterUserInput{
		Email:    "a@example.com",
		Password: "short",
	})
	assert.ErrorIs(t, err, auth.ErrPasswordTooShort)
}

func TestRegisterUser_WeakPassword(t *testing.T) {
	uc := auth.NewRegisterUserUsecase(new(UserRepoMock), hasherStub{}, fixedClock{now: time.Now()})

	_, err := uc.Execute(context.Background(), auth.RegisterUserInput{
		Email:    "a@example.com",
		Password: "123456789012",
	})
	assert.ErrorIs(t, err, auth.ErrWeakPassword)
}

func TestRegisterUser_EmailAlreadyExists(t *testing.T) {
	userRepo := new(UserRepoMock)
	uc := auth.NewRegisterUserUsecase(userRepo, hasherStub{}, fixedClock{now: time.Now()})

	userRepo.On("FindByEmail", mock.Anything, "dup@example.com").
		Return(&model.User{ID: 1, Email: "dup@example.com"}, nil)

	_, err := uc.Execute(context.Background(), auth.RegisterUserInput{
		Email:    "dup@example.com",
		Password: "correct-horse-battery",
	})
	assert.ErrorIs(t, err, auth.ErrEmailAlreadyExists)
	userRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestLogin_Success(t *testing.T) {
	ctx := context.Background()
	userRepo := new(UserRepoMock)
	now := time.Now()
	uc := auth.NewLoginUsecase(userRepo, verifierStub{ok: true}, issuerStub{}, fixedClock{now: now})

	userRepo.On("FindByEmail", mock.Anything, "a@example.com").
		Return(&model.User{ID: 1, Email: "a@example.com", PasswordHash: "h", Role: model.RoleUser, IsActive: true}, nil)
	userRepo.On("UpdateLastLogin", mock.Anything, int64(1)).Return(nil)

	out, err := uc.Execute(ctx, auth.LoginInput{Email: "a@example.com", Password: "pw"})

	assert.NoError(t, err)
	assert.Equal(t, "token", out.Token.AccessToken)
	assert.Equal(t, 900, out.Token.ExpiresIn)
	assert.Equal(t, "", out.User.PasswordHash)
	userRepo.AssertExpectations(t)
}

// 未知のメールでもパスワード違いと同じエラーにする
func TestLogin_UnknownEmail(t *testing.T) {
	userRepo := new(UserRepoMock)
	uc := auth.NewLoginUsecase(userRepo, verifierStub{ok: true}, issuerStub{}, fixedClock{now: time.Now()})

	userRepo.On("FindByEmail", mock.Anything, "nobody@example.com").Return(nil, nil)

	_, err := uc.Execute(context.Background(), auth.LoginInput{Email: "nobody@example.com", Password: "pw"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestLogin_WrongPassword(t *testing.T) {
	userRepo := new(UserRepoMock)
	uc := auth.NewLoginUsecase(userRepo, verifierStub{ok: false}, issuerStub{}, fixedClock{now: time.Now()})

	userRepo.On("FindByEmail", mock.Anything, "a@example.com").
		Return(&model.User{ID: 1, PasswordHash: "h", IsActive: true}, nil)

	_, err := uc.Execute(context.Background(), auth.LoginInput{Email: "a@example.com", Password: "bad"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	userRepo.AssertNotCalled(t, "UpdateLastLogin", mock.Anything, mock.Anything)
}

func TestLogin_InactiveUser(t *testing.T) {
	userRepo := new(UserRepoMock)
	uc := auth.NewLoginUsecase(userRepo, verifierStub{ok: true}, issuerStub{}, fixedClock{now: time.Now()})

	userRepo.On("FindByEmail", mock.Anything, "a@example.com").
		Return(&model.User{ID: 1, PasswordHash: "h", IsActive: false}, nil)

	_, err := uc.Execute(context.Background(), auth.LoginInput{Email: "a@example.com", Password: "pw"})
	assert.ErrorIs(t, err, auth.ErrUserInactive)
}
