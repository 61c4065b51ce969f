package mock

import (
	context "context"
	reflect "reflect"

	sale "github.com/ellavondegurechaff/marketbot/marketbot/market/sale"
	gomock "go.uber.org/mock/gomock"
)

// MockGateway is a mock of Gateway interface.
type MockGateway struct {
	ctrl     *gomock.Controller
	recorder *MockGatewayMockRecorder
	isgomock struct{}
}

// MockGatewayMockRecorder is the mock recorder for MockGateway.
type MockGatewayMockRecorder struct {
	mock *MockGateway
}

// NewMockGateway creates a new mock instance.
func NewMockGateway(ctrl *gomock.Controller) *MockGateway {
	mock := &MockGateway{ctrl: ctrl}
	mock.recorder = &MockGatewayMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockGateway) EXPECT() *MockGatewayMockRecorder {
	return m.recorder
}

// ExchangeSaleContacts mocks base method.
func (m *MockGateway) ExchangeSaleContacts(ctx context.Context, snap sale.Snapshot, buyerID string) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ExchangeSaleContacts", ctx, snap, buyerID)
	ret0, _ := ret[0].(error)
	return ret0
}

// ExchangeSaleContacts indicates an expected call of ExchangeSaleContacts.
func (mr *MockGatewayMockRecorder) ExchangeSaleContacts(ctx, snap, buyerID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ExchangeSaleContacts", reflect.TypeOf((*MockGateway)(nil).ExchangeSaleContacts), ctx, snap, buyerID)
}

// SaleClosed mocks base method.
func (m *MockGateway) SaleClosed(ctx context.Context, snap sale.Snapshot) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SaleClosed", ctx, snap)
	ret0, _ := ret[0].(error)
	return ret0
}

// SaleClosed indicates an expected call of SaleClosed.
func (mr *MockGatewayMockRecorder) SaleClosed(ctx, snap any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SaleClosed", reflect.TypeOf((*MockGateway)(nil).SaleClosed), ctx, snap)
}
