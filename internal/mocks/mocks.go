// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/flowrunner/internal/driver"
	"github.com/xkilldash9x/flowrunner/internal/flow"
)

// -- Driver Mock --

// MockDriver mocks driver.Driver.
type MockDriver struct {
	mock.Mock
}

func NewMockDriver() *MockDriver { return new(MockDriver) }

func (m *MockDriver) Launch(ctx context.Context, opts driver.LaunchOptions) (driver.Session, error) {
	args := m.Called(ctx, opts)
	if s := args.Get(0); s != nil {
		return s.(driver.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

// -- Session Mock --

// MockSession mocks driver.Session.
type MockSession struct {
	mock.Mock
}

func NewMockSession() *MockSession { return new(MockSession) }

func (m *MockSession) ID() string { return m.Called().String(0) }

func (m *MockSession) Navigate(ctx context.Context, url string, until driver.WaitCondition, timeout time.Duration) error {
	return m.Called(ctx, url, until, timeout).Error(0)
}

func (m *MockSession) ActivePage(ctx context.Context) (driver.Page, error) {
	args := m.Called(ctx)
	if p := args.Get(0); p != nil {
		return p.(driver.Page), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSession) Close(ctx context.Context) error { return m.Called(ctx).Error(0) }

// -- Page Mock --

// MockPage mocks driver.Page.
type MockPage struct {
	mock.Mock
}

func NewMockPage() *MockPage { return new(MockPage) }

func (m *MockPage) URL() string { return m.Called().String(0) }

func (m *MockPage) WaitForLoadState(ctx context.Context, state driver.WaitCondition, timeout time.Duration) error {
	return m.Called(ctx, state, timeout).Error(0)
}

func (m *MockPage) Frames(ctx context.Context) ([]driver.Frame, error) {
	args := m.Called(ctx)
	if f := args.Get(0); f != nil {
		return f.([]driver.Frame), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPage) Locate(ctx context.Context, loc flow.Locator) (driver.Element, error) {
	args := m.Called(ctx, loc)
	if e := args.Get(0); e != nil {
		return e.(driver.Element), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPage) Scroll(ctx context.Context) error { return m.Called(ctx).Error(0) }

// -- Frame Mock --

// MockFrame mocks driver.Frame.
type MockFrame struct {
	mock.Mock
}

func (m *MockFrame) Name() string { return m.Called().String(0) }
func (m *MockFrame) URL() string  { return m.Called().String(0) }

func (m *MockFrame) WaitForLoadState(ctx context.Context, state driver.WaitCondition, timeout time.Duration) error {
	return m.Called(ctx, state, timeout).Error(0)
}

// -- Element Mock --

// MockElement mocks driver.Element.
type MockElement struct {
	mock.Mock
}

func NewMockElement() *MockElement { return new(MockElement) }

func (m *MockElement) Fill(ctx context.Context, text string, timeout time.Duration) error {
	return m.Called(ctx, text, timeout).Error(0)
}

func (m *MockElement) Click(ctx context.Context, timeout time.Duration) error {
	return m.Called(ctx, timeout).Error(0)
}

func (m *MockElement) WaitVisible(ctx context.Context, timeout time.Duration) error {
	return m.Called(ctx, timeout).Error(0)
}

var (
	_ driver.Driver  = (*MockDriver)(nil)
	_ driver.Session = (*MockSession)(nil)
	_ driver.Page    = (*MockPage)(nil)
	_ driver.Frame   = (*MockFrame)(nil)
	_ driver.Element = (*MockElement)(nil)
)
