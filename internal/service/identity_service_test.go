package service

import (
	"context"
	"errors"
	"testing"

	"banking-services/internal/core/ports/mocks"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestIdentityService_Authenticate(t *testing.T) {
	tests := []struct {
		name   string
		exists bool
	}{
		{"known customer", true},
		{"unknown customer", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			dir := mocks.NewMockAccountDirectory(ctrl)
			dir.EXPECT().CustomerExists(gomock.Any(), "cust-1").Return(tt.exists, nil)

			ok, err := NewIdentityService(dir, zerolog.Nop()).Authenticate(context.Background(), "cust-1")
			require.NoError(t, err)
			assert.Equal(t, tt.exists, ok)
		})
	}
}

func TestIdentityService_EmptyCustomer(t *testing.T) {
	ctrl := gomock.NewController(t)
	dir := mocks.NewMockAccountDirectory(ctrl)

	ok, err := NewIdentityService(dir, zerolog.Nop()).Authenticate(context.Background(), " ")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIdentityService_StoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	dir := mocks.NewMockAccountDirectory(ctrl)
	dir.EXPECT().CustomerExists(gomock.Any(), "cust-1").Return(false, errors.New("connection refused"))

	_, err := NewIdentityService(dir, zerolog.Nop()).Authenticate(context.Background(), "cust-1")
	assert.ErrorContains(t, err, "connection refused")
}
