package custodial

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/opentelemetry"
)

// HTTPService is a SigningService over a custody provider's REST API:
//
//	POST {base}/v1/wallets/{walletID}/signatures  {"message":"<hex>"} -> {"id":"..."}
//	GET  {base}/v1/signatures/{id}                -> {"status":"...","signature":"<hex>","reason":"..."}
type HTTPService struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPService returns a service rooted at baseURL. A non-empty token is
// sent as a bearer credential.
func NewHTTPService(baseURL, token string, client *http.Client) *HTTPService {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &HTTPService{baseURL: strings.TrimRight(baseURL, "/"), token: token, client: client}
}

type signatureRequest struct {
	Message string `json:"message"`
}

type signatureCreated struct {
	ID string `json:"id"`
}

type signatureStatus struct {
	Status    SignatureStatus `json:"status"`
	Signature string          `json:"signature,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

// RequestSignature implements SigningService.
func (s *HTTPService) RequestSignature(ctx context.Context, walletID string, message []byte) (string, error) {
	body, err := json.Marshal(signatureRequest{Message: hex.EncodeToString(message)})
	if err != nil {
		return "", err
	}

	var created signatureCreated
	if err := s.do(ctx, http.MethodPost, "/v1/wallets/"+url.PathEscape(walletID)+"/signatures", body, &created); err != nil {
		return "", err
	}

	if created.ID == "" {
		return "", fmt.Errorf("custody provider returned no request id")
	}

	return created.ID, nil
}

// Signature implements SigningService.
func (s *HTTPService) Signature(ctx context.Context, requestID string) (SignatureResult, error) {
	var status signatureStatus
	if err := s.do(ctx, http.MethodGet, "/v1/signatures/"+url.PathEscape(requestID), nil, &status); err != nil {
		return SignatureResult{}, err
	}

	res := SignatureResult{Status: status.Status, Reason: status.Reason}

	if status.Signature != "" {
		sig, err := hex.DecodeString(strings.TrimPrefix(status.Signature, "0x"))
		if err != nil {
			return SignatureResult{}, fmt.Errorf("decoding signature: %w", err)
		}

		res.Signature = sig
	}

	return res, nil
}

func (s *HTTPService) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return err
	}

	req.Header.Set(constant.HeaderContentType, "application/json")

	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	opentelemetry.InjectHTTPContext(ctx, req.Header)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("custody provider %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("custody provider %s %s: %s", method, path, log.SanitizeExternalResponse(resp.StatusCode))
	}

	return json.Unmarshal(raw, out)
}
