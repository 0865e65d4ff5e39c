package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Mock is an in-memory Provider used in development and tests. It remembers
// every created authority and marks it verified on the first verify call.
type Mock struct {
	mu       sync.Mutex
	payments map[string]*mockPayment
}

type mockPayment struct {
	amount   int64
	verified bool
}

// NewMock returns an empty mock gateway.
func NewMock() *Mock {
	return &Mock{payments: make(map[string]*mockPayment)}
}

func (m *Mock) CreatePayment(_ context.Context, req CreateRequest) (CreateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	authority := "A" + uuid.NewString()
	m.payments[authority] = &mockPayment{amount: req.Amount}
	return CreateResult{
		Authority:   authority,
		RedirectURL: fmt.Sprintf("https://gateway.local/pay/%s", authority),
	}, nil
}

func (m *Mock) VerifyPayment(_ context.Context, req VerifyRequest) (VerifyResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[req.Authority]
	if !ok || p.amount != req.Amount {
		return VerifyResult{Code: -51}, nil
	}
	if p.verified {
		return VerifyResult{Verified: true, AlreadyVerified: true, RefID: "mock-ref", Code: CodeAlreadyVerified}, nil
	}
	p.verified = true
	return VerifyResult{Verified: true, RefID: "mock-ref", Code: CodeVerified}, nil
}
