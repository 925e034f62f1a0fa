package mocks

import (
	"context"

	"dialogue-server/internal/storage"

	"github.com/stretchr/testify/mock"
)

// MockUploader is a mock type for the storage.Uploader type
type MockUploader struct {
	mock.Mock
}

// Upload provides a mock function with given fields: ctx, filename, body
func (_m *MockUploader) Upload(ctx context.Context, filename string, body []byte) (string, error) {
	ret := _m.Called(ctx, filename, body)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, string, []byte) string); ok {
		r0 = rf(ctx, filename, body)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(string)
		}
	}

	return r0, ret.Error(1)
}

// NewMockUploader creates a new instance of MockUploader. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockUploader(t interface {
	mock.TestingT
	Helper()
}) *MockUploader {
	m := &MockUploader{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ storage.Uploader = (*MockUploader)(nil)
