package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bazar-commerce/backend-bazar/internal/resilience"
)

const (
	// CodeVerified is the gateway's success status for a first verify.
	CodeVerified = 100
	// CodeAlreadyVerified is returned for a repeated verify on a settled
	// transaction, the gateway's own idempotency signal.
	CodeAlreadyVerified = 101
)

// ErrGatewayUnavailable is returned once the retry budget against the gateway
// is exhausted.
var ErrGatewayUnavailable = errors.New("payment: gateway unavailable")

// Zarinpal implements Provider against the Zarinpal v4 REST API.
type Zarinpal struct {
	MerchantID string
	BaseURL    string
	Client     resilience.HTTPClient
}

type zarinpalCreateReq struct {
	MerchantID  string            `json:"merchant_id"`
	Amount      int64             `json:"amount"`
	CallbackURL string            `json:"callback_url"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type zarinpalVerifyReq struct {
	MerchantID string `json:"merchant_id"`
	Amount     int64  `json:"amount"`
	Authority  string `json:"authority"`
}

type zarinpalEnvelope struct {
	Data struct {
		Code      int         `json:"code"`
		Message   string      `json:"message"`
		Authority string      `json:"authority"`
		RefID     json.Number `json:"ref_id"`
	} `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

// CreatePayment opens a transaction and returns the authority plus the
// redirect URL the client must visit to pay.
func (z Zarinpal) CreatePayment(ctx context.Context, req CreateRequest) (CreateResult, error) {
	payload := zarinpalCreateReq{
		MerchantID:  z.MerchantID,
		Amount:      req.Amount,
		CallbackURL: req.CallbackURL,
		Description: req.Description,
	}
	if req.Email != "" || req.Mobile != "" {
		payload.Metadata = map[string]string{}
		if req.Email != "" {
			payload.Metadata["email"] = req.Email
		}
		if req.Mobile != "" {
			payload.Metadata["mobile"] = req.Mobile
		}
	}

	var envelope zarinpalEnvelope
	if err := z.post(ctx, "/pg/v4/payment/request.json", payload, &envelope); err != nil {
		return CreateResult{}, err
	}
	if envelope.Data.Code != CodeVerified || envelope.Data.Authority == "" {
		return CreateResult{}, fmt.Errorf("payment: gateway rejected create: code=%d %s", envelope.Data.Code, envelope.Data.Message)
	}
	return CreateResult{
		Authority:   envelope.Data.Authority,
		RedirectURL: z.startPayURL(envelope.Data.Authority),
	}, nil
}

// VerifyPayment settles the transaction. Codes other than 100 and 101 mean
// the payment did not go through; that is a normal outcome, not an error.
func (z Zarinpal) VerifyPayment(ctx context.Context, req VerifyRequest) (VerifyResult, error) {
	payload := zarinpalVerifyReq{
		MerchantID: z.MerchantID,
		Amount:     req.Amount,
		Authority:  req.Authority,
	}
	var envelope zarinpalEnvelope
	if err := z.post(ctx, "/pg/v4/payment/verify.json", payload, &envelope); err != nil {
		return VerifyResult{}, err
	}
	result := VerifyResult{
		Code:  envelope.Data.Code,
		RefID: envelope.Data.RefID.String(),
	}
	switch envelope.Data.Code {
	case CodeVerified:
		result.Verified = true
	case CodeAlreadyVerified:
		result.Verified = true
		result.AlreadyVerified = true
	}
	return result, nil
}

func (z Zarinpal) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := strings.TrimRight(z.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := z.Client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrGatewayUnavailable, err)
	}
	return nil
}

func (z Zarinpal) startPayURL(authority string) string {
	host := strings.TrimRight(z.BaseURL, "/")
	return host + "/pg/StartPay/" + authority
}
