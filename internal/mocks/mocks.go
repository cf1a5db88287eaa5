// Package mocks holds testify mocks for the collaborators expectkit talks to.
package mocks

import (
	"github.com/stretchr/testify/mock"
)

// -- Coverage Mock --

// MockCoverageCollaborator mocks coverage.Collaborator and coverage.Checker.
type MockCoverageCollaborator struct {
	mock.Mock
}

func (m *MockCoverageCollaborator) SetMinimumCoverage(pct int) error {
	args := m.Called(pct)
	return args.Error(0)
}

func (m *MockCoverageCollaborator) Check() error {
	args := m.Called()
	return args.Error(0)
}

// -- Notifier Mock --

// MockNotifier mocks warnings.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(message string) {
	m.Called(message)
}

// -- Store Mock --

// MockStore mocks scope.Store[string, any].
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Lookup(key string) (any, bool, error) {
	args := m.Called(key)
	return args.Get(0), args.Bool(1), args.Error(2)
}

func (m *MockStore) Store(key string, value any) error {
	args := m.Called(key, value)
	return args.Error(0)
}

func (m *MockStore) Delete(key string) error {
	args := m.Called(key)
	return args.Error(0)
}
