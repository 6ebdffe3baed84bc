package services_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vytor/flashstudy/internal/errors"
	"github.com/vytor/flashstudy/internal/models"
	"github.com/vytor/flashstudy/internal/services"
	"github.com/vytor/flashstudy/internal/testutil/mocks"
)

func TestUserService_CreateUser(t *testing.T) {
	repo := new(mocks.MockUserRepository)
	svc := services.NewUserService(repo)

	repo.On("Upsert", mock.Anything, "nora").Return(&models.User{ID: 4, Username: "nora", CreatedAt: time.Now()}, nil)

	u, err := svc.CreateUser(context.Background(), "  nora ")
	require.NoError(t, err)
	assert.Equal(t, int64(4), u.ID)

	_, err = svc.CreateUser(context.Background(), " ")
	assert.Equal(t, errors.ErrCodeValidation, errors.Code(err))

	_, err = svc.CreateUser(context.Background(), strings.Repeat("n", 65))
	assert.Equal(t, errors.ErrCodeValidation, errors.Code(err))
	repo.AssertNumberOfCalls(t, "Upsert", 1)
}

func TestUserService_GetUser(t *testing.T) {
	repo := new(mocks.MockUserRepository)
	svc := services.NewUserService(repo)

	repo.On("Get", mock.Anything, int64(1)).Return(&models.User{ID: 1, Username: "omar"}, nil)
	repo.On("Get", mock.Anything, int64(2)).Return(nil, nil)

	u, err := svc.GetUser(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "omar", u.Username)

	_, err = svc.GetUser(context.Background(), 2)
	assert.Equal(t, errors.ErrCodeNotFound, errors.Code(err))
}
