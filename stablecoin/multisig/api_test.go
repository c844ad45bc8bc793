//go:build unit

package multisig

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	libHTTP "github.com/LerianStudio/lib-stablecoin/stablecoin/net/http"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(svc *Service) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true, ErrorHandler: libHTTP.FiberErrorHandler})
	NewHandler(svc).RegisterRoutes(app)

	return app
}

func call(t *testing.T, app *fiber.App, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, raw
}

func TestHandler_Routes(t *testing.T) {
	t.Parallel()

	svc, _ := newService(epoch)
	app := newTestApp(svc)

	alice := newSigner(t, ledger.KeyTypeED25519)
	outsider := newSigner(t, ledger.KeyTypeED25519)
	msg := frozenMessage(t, epoch)

	status, raw := call(t, app, http.MethodPost, "/v1/transactions", CreateInput{
		Message:   msg,
		AccountID: "0.0.1001",
		KeyList:   []string{alice.pub.Key},
		Network:   "testnet",
	})
	require.Equal(t, http.StatusCreated, status, string(raw))

	var created Created
	require.NoError(t, json.Unmarshal(raw, &created))
	require.NotEmpty(t, created.TransactionID)

	path := "/v1/transactions/" + created.TransactionID

	status, raw = call(t, app, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, status)

	var got Transaction
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, 1, got.Threshold)

	status, _ = call(t, app, http.MethodPut, path, outsider.sign(t, msg))
	assert.Equal(t, http.StatusForbidden, status)

	bad := alice.sign(t, msg)
	bad.Signature = strings.Repeat("00", 64)
	status, _ = call(t, app, http.MethodPut, path, bad)
	assert.Equal(t, http.StatusNotAcceptable, status)

	status, _ = call(t, app, http.MethodPut, path, alice.sign(t, msg))
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = call(t, app, http.MethodPut, path, alice.sign(t, msg))
	assert.Equal(t, http.StatusConflict, status)

	status, raw = call(t, app, http.MethodGet, "/v1/transactions?status=SIGNED&publicKey="+alice.pub.Key, nil)
	require.Equal(t, http.StatusOK, status)

	var page Page
	require.NoError(t, json.Unmarshal(raw, &page))
	assert.Equal(t, 1, page.TotalItems)

	status, _ = call(t, app, http.MethodGet, "/v1/transactions?status=LOST", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, app, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = call(t, app, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, app, http.MethodGet, "/v1/transactions/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHandler_CreateRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	svc, _ := newService(epoch)
	app := newTestApp(svc)

	status, raw := call(t, app, http.MethodPost, "/v1/transactions", CreateInput{Message: "zz", Network: "moon"})
	require.Equal(t, http.StatusBadRequest, status)

	var body libHTTP.ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.NotEmpty(t, body.Fields)
}

func TestClient_AgainstHandler(t *testing.T) {
	t.Parallel()

	svc, _ := newService(epoch)
	server := httptest.NewServer(adaptor.FiberApp(newTestApp(svc)))
	t.Cleanup(server.Close)

	client := NewClient(server.URL+"/", server.Client())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	alice := newSigner(t, ledger.KeyTypeSECP256K1)
	msg := frozenMessage(t, epoch)

	created, err := client.Create(ctx, CreateInput{
		Message:   msg,
		AccountID: "0.0.1001",
		KeyList:   []string{alice.pub.Key},
		Network:   "testnet",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, created.Status)
	assert.Equal(t, msg, created.Message)

	require.NoError(t, client.Sign(ctx, created.ID, alice.sign(t, msg)))

	signed, err := client.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSigned, signed.Status)

	err = client.Sign(ctx, created.ID, alice.sign(t, msg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already_signed")

	_, err = client.Get(ctx, uuid.NewString())
	require.ErrorIs(t, err, constant.ErrNotFound)
}
