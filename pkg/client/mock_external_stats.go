package client

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockExternalStats is a mock implementation of ExternalStats for testing.
// It uses testify/mock to allow test assertions on method calls.
type MockExternalStats struct {
	mock.Mock
}

// ItemAmount mocks an external per-item catch count lookup.
func (m *MockExternalStats) ItemAmount(ctx context.Context, playerID uuid.UUID, itemID string) (int, error) {
	args := m.Called(ctx, playerID, itemID)
	return args.Int(0), args.Error(1)
}

// TotalCaught mocks an external total catch count lookup.
func (m *MockExternalStats) TotalCaught(ctx context.Context, playerID uuid.UUID) (int, error) {
	args := m.Called(ctx, playerID)
	return args.Int(0), args.Error(1)
}

// NewMockExternalStats creates a new mock external stats source.
func NewMockExternalStats() *MockExternalStats {
	return &MockExternalStats{}
}
