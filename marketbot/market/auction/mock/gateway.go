package mock

import (
	context "context"
	reflect "reflect"

	auction "github.com/ellavondegurechaff/marketbot/marketbot/market/auction"
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

// AuctionCancelled mocks base method.
func (m *MockGateway) AuctionCancelled(ctx context.Context, snap auction.Snapshot) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "AuctionCancelled", ctx, snap)
	ret0, _ := ret[0].(error)
	return ret0
}

// AuctionCancelled indicates an expected call of AuctionCancelled.
func (mr *MockGatewayMockRecorder) AuctionCancelled(ctx, snap any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "AuctionCancelled", reflect.TypeOf((*MockGateway)(nil).AuctionCancelled), ctx, snap)
}

// AuctionChanged mocks base method.
func (m *MockGateway) AuctionChanged(ctx context.Context, snap auction.Snapshot) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "AuctionChanged", ctx, snap)
	ret0, _ := ret[0].(error)
	return ret0
}

// AuctionChanged indicates an expected call of AuctionChanged.
func (mr *MockGatewayMockRecorder) AuctionChanged(ctx, snap any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "AuctionChanged", reflect.TypeOf((*MockGateway)(nil).AuctionChanged), ctx, snap)
}

// AuctionFinished mocks base method.
func (m *MockGateway) AuctionFinished(ctx context.Context, snap auction.Snapshot) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "AuctionFinished", ctx, snap)
	ret0, _ := ret[0].(error)
	return ret0
}

// AuctionFinished indicates an expected call of AuctionFinished.
func (mr *MockGatewayMockRecorder) AuctionFinished(ctx, snap any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "AuctionFinished", reflect.TypeOf((*MockGateway)(nil).AuctionFinished), ctx, snap)
}

// AuctionOpened mocks base method.
func (m *MockGateway) AuctionOpened(ctx context.Context, snap auction.Snapshot) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "AuctionOpened", ctx, snap)
	ret0, _ := ret[0].(error)
	return ret0
}

// AuctionOpened indicates an expected call of AuctionOpened.
func (mr *MockGatewayMockRecorder) AuctionOpened(ctx, snap any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "AuctionOpened", reflect.TypeOf((*MockGateway)(nil).AuctionOpened), ctx, snap)
}

// ExchangeContacts mocks base method.
func (m *MockGateway) ExchangeContacts(ctx context.Context, snap auction.Snapshot) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ExchangeContacts", ctx, snap)
	ret0, _ := ret[0].(error)
	return ret0
}

// ExchangeContacts indicates an expected call of ExchangeContacts.
func (mr *MockGatewayMockRecorder) ExchangeContacts(ctx, snap any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ExchangeContacts", reflect.TypeOf((*MockGateway)(nil).ExchangeContacts), ctx, snap)
}
