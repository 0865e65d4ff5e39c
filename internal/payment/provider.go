package payment

import "context"

// CreateRequest captures the information required to open a payment with the
// gateway. Amount is the final charge including shipping.
type CreateRequest struct {
	Amount      int64
	Description string
	CallbackURL string
	Email       string
	Mobile      string
}

// CreateResult is the normalised response from a successful gateway create
// call. Authority is the gateway's opaque transaction handle and doubles as
// the checkout intent key.
type CreateResult struct {
	Authority   string
	RedirectURL string
}

// VerifyRequest asks the gateway whether the transaction identified by
// Authority settled for the given amount.
type VerifyRequest struct {
	Authority string
	Amount    int64
}

// VerifyResult carries the settlement outcome. AlreadyVerified reports the
// gateway's own idempotent-success signal for a repeated verify.
type VerifyResult struct {
	Verified        bool
	AlreadyVerified bool
	RefID           string
	Code            int
}

// Provider abstracts the operations required from the upstream payment gateway.
type Provider interface {
	CreatePayment(ctx context.Context, req CreateRequest) (CreateResult, error)
	VerifyPayment(ctx context.Context, req VerifyRequest) (VerifyResult, error)
}
