package session

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/brightpane/assistant-client/internal/domain"
)

// MockBackend mocks the domain.Backend interface
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Register(ctx context.Context, creds domain.Credentials) error {
	args := m.Called(ctx, creds)
	return args.Error(0)
}

func (m *MockBackend) Login(ctx context.Context, creds domain.Credentials) (string, error) {
	args := m.Called(ctx, creds)
	return args.String(0), args.Error(1)
}

func (m *MockBackend) Me(ctx context.Context) (*domain.Identity, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Identity), args.Error(1)
}

func (m *MockBackend) Ask(ctx context.Context, question string) (string, error) {
	args := m.Called(ctx, question)
	return args.String(0), args.Error(1)
}

func (m *MockBackend) Upload(ctx context.Context, filename string, file io.Reader) error {
	args := m.Called(ctx, filename, file)
	return args.Error(0)
}
