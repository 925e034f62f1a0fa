package mocks

import (
	"context"

	"dialogue-server/internal/ai"

	"github.com/stretchr/testify/mock"
)

// MockAIClient is a mock type for the ai.Client type
type MockAIClient struct {
	mock.Mock
}

// GenerateText provides a mock function with given fields: ctx, systemPrompt, userInput, params
func (_m *MockAIClient) GenerateText(ctx context.Context, systemPrompt string, userInput string, params ai.Params) (string, ai.Usage, error) {
	ret := _m.Called(ctx, systemPrompt, userInput, params)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, string, string, ai.Params) string); ok {
		r0 = rf(ctx, systemPrompt, userInput, params)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(string)
		}
	}

	var r1 ai.Usage
	if ret.Get(1) != nil {
		r1 = ret.Get(1).(ai.Usage)
	}

	return r0, r1, ret.Error(2)
}

// GenerateTextStream provides a mock function with given fields: ctx, systemPrompt, userInput, params, chunkHandler.
// Если в качестве первого возвращаемого значения задана строка, она передается
// в chunkHandler одним фрагментом.
func (_m *MockAIClient) GenerateTextStream(ctx context.Context, systemPrompt string, userInput string, params ai.Params, chunkHandler func(string) error) (ai.Usage, error) {
	ret := _m.Called(ctx, systemPrompt, userInput, params, chunkHandler)

	if text, ok := ret.Get(0).(string); ok && chunkHandler != nil && text != "" {
		_ = chunkHandler(text)
	}

	var r1 ai.Usage
	if u, ok := ret.Get(0).(ai.Usage); ok {
		r1 = u
	}

	return r1, ret.Error(1)
}

// NewMockAIClient creates a new instance of MockAIClient. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockAIClient(t interface {
	mock.TestingT
	Helper()
}) *MockAIClient {
	m := &MockAIClient{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ ai.Client = (*MockAIClient)(nil)
