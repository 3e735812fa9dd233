package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/certenIO/certen-key-vault/internal/app"
	"github.com/certenIO/certen-key-vault/internal/signqueue"
	"github.com/certenIO/certen-key-vault/internal/vault"
)

const testPassword = "correct horse battery staple123"

func newTestServer(t *testing.T, opts Options) (*Server, *app.Service) {
	t.Helper()
	v := vault.New(vault.NewMemStore(), vault.Options{Iterations: 1024})
	svc := app.NewService(v, signqueue.New(signqueue.Options{}), app.Options{})
	return NewServer(svc, opts), svc
}

func call(t *testing.T, ts *httptest.Server, token, method string, params any) rpcResponse {
	t.Helper()
	body := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		body["params"] = params
	}
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/rpc", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected http status %d", resp.StatusCode)
	}
	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func resultMap(t *testing.T, resp rpcResponse) map[string]any {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("remarshal result: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return m
}

func TestBearerTokenRequired(t *testing.T) {
	s, _ := newTestServer(t, Options{Token: "secret-token"})
	ts := httptest.NewServer(s.httpServer.Handler)
	defer ts.Close()

	raw := []byte(`{"jsonrpc":"2.0","id":1,"method":"VAULT_STATUS"}`)
	resp, err := ts.Client().Post(ts.URL+"/rpc", "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	out := call(t, ts, "secret-token", "VAULT_STATUS", nil)
	if out.Error != nil {
		t.Fatalf("authorized call failed: %+v", out.Error)
	}
}

func TestParseAndValidationErrors(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	ts := httptest.NewServer(s.httpServer.Handler)
	defer ts.Close()

	resp, err := ts.Client().Post(ts.URL+"/rpc", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if out.Error == nil || out.Error.Code != -32700 {
		t.Fatalf("expected parse error, got %+v", out.Error)
	}

	if out := call(t, ts, "", "NO_SUCH_METHOD", nil); out.Error == nil || out.Error.Code != -32601 {
		t.Fatalf("expected method not found, got %+v", out.Error)
	}
	if out := call(t, ts, "", "VAULT_UNLOCK", map[string]any{}); out.Error == nil || out.Error.Code != -32602 {
		t.Fatalf("expected invalid params, got %+v", out.Error)
	}
}

func TestOversizedBodyRejected(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	ts := httptest.NewServer(s.httpServer.Handler)
	defer ts.Close()

	big := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"VAULT_STATUS","params":{"junk":%q}}`,
		strings.Repeat("a", int(maxBodyBytes)))
	resp, err := ts.Client().Post(ts.URL+"/rpc", "application/json", strings.NewReader(big))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.StatusCode)
	}
}

func TestVaultLifecycleOverRPC(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	ts := httptest.NewServer(s.httpServer.Handler)
	defer ts.Close()

	status := resultMap(t, call(t, ts, "", "VAULT_STATUS", nil))
	if status["isInitialized"] != false {
		t.Fatalf("fresh vault reports initialized: %v", status)
	}

	init := resultMap(t, call(t, ts, "", "VAULT_INITIALIZE", map[string]any{"password": testPassword}))
	mnemonic, _ := init["mnemonic"].(string)
	if len(strings.Fields(mnemonic)) != 24 {
		t.Fatalf("expected 24-word mnemonic, got %q", mnemonic)
	}

	if out := call(t, ts, "", "VAULT_LOCK", nil); out.Error != nil {
		t.Fatalf("lock: %+v", out.Error)
	}
	if out := call(t, ts, "", "VAULT_UNLOCK", map[string]any{"password": "wrong"}); out.Error == nil || out.Error.Code != -32001 {
		t.Fatalf("expected invalid password code, got %+v", out.Error)
	}
	if out := call(t, ts, "", "GET_KEYS", nil); out.Error == nil || out.Error.Code != -32002 {
		t.Fatalf("expected vault locked code, got %+v", out.Error)
	}
	if out := call(t, ts, "", "VAULT_UNLOCK", map[string]any{"password": testPassword}); out.Error != nil {
		t.Fatalf("unlock: %+v", out.Error)
	}

	keys := resultMap(t, call(t, ts, "", "GET_KEYS", nil))
	list, _ := keys["keys"].([]any)
	if len(list) != 2 {
		t.Fatalf("expected 2 auto-derived keys, got %d", len(list))
	}
	first := list[0].(map[string]any)
	if _, leaked := first["privateKey"]; leaked {
		t.Fatal("bulk listing leaked private key over rpc")
	}
}

func TestKeyManagementOverRPC(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	ts := httptest.NewServer(s.httpServer.Handler)
	defer ts.Close()
	resultMap(t, call(t, ts, "", "VAULT_INITIALIZE", map[string]any{"password": testPassword}))

	created := resultMap(t, call(t, ts, "", "GENERATE_KEY", map[string]any{"keyType": "secp256k1", "name": "hot"}))
	keyID, _ := created["id"].(string)
	if keyID == "" {
		t.Fatalf("no key id in %v", created)
	}
	addrs, _ := created["addresses"].(map[string]any)
	eth, _ := addrs["ethereum"].(string)
	if !strings.HasPrefix(eth, "0x") {
		t.Fatalf("missing ethereum address: %v", addrs)
	}

	found := resultMap(t, call(t, ts, "", "FIND_KEY", map[string]any{"address": eth}))
	if found["id"] != keyID {
		t.Fatalf("FIND_KEY returned %v", found["id"])
	}

	renamed := resultMap(t, call(t, ts, "", "UPDATE_KEY_METADATA", map[string]any{"keyId": keyID, "name": "cold"}))
	if renamed["name"] != "cold" {
		t.Fatalf("rename not applied: %v", renamed)
	}

	exported := resultMap(t, call(t, ts, "", "GET_KEY_WITH_PRIVATE", map[string]any{"keyId": keyID}))
	priv, _ := exported["privateKey"].(string)
	if len(priv) != 64 {
		t.Fatalf("expected 32-byte private key hex, got %q", priv)
	}

	reimported := resultMap(t, call(t, ts, "", "IMPORT_KEY", map[string]any{
		"keyType": "secp256k1", "privateKeyHex": priv, "name": "copy",
	}))
	if reimported["publicKey"] != exported["publicKey"] {
		t.Fatal("reimported key has different public key")
	}

	if out := call(t, ts, "", "REMOVE_KEY", map[string]any{"keyId": keyID}); out.Error != nil {
		t.Fatalf("remove: %+v", out.Error)
	}
	if out := call(t, ts, "", "GET_KEY_WITH_PRIVATE", map[string]any{"keyId": keyID}); out.Error == nil || out.Error.Code != -32005 {
		t.Fatalf("expected key not found code, got %+v", out.Error)
	}
}

func TestSignApprovalFlowOverRPC(t *testing.T) {
	s, svc := newTestServer(t, Options{SubmitWait: 5 * time.Second})
	ts := httptest.NewServer(s.httpServer.Handler)
	defer ts.Close()
	resultMap(t, call(t, ts, "", "VAULT_INITIALIZE", map[string]any{"password": testPassword}))

	keys, err := svc.Vault.GetAllKeys("ed25519")
	if err != nil || len(keys) == 0 {
		t.Fatalf("list keys: %v", err)
	}
	keyID := keys[0].ID

	hash := strings.Repeat("ab", 32)
	var wg sync.WaitGroup
	var submitResp rpcResponse
	wg.Add(1)
	go func() {
		defer wg.Done()
		submitResp = call(t, ts, "", "SIGN_ACCOUNT_HASH", map[string]any{"hash": hash, "origin": "https://dapp.example"})
	}()

	// Poll until the submission is visible to the approver.
	var requestID string
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		pending := resultMap(t, call(t, ts, "", "GET_PENDING_SIGN_REQUEST", nil))
		if req, ok := pending["request"].(map[string]any); ok {
			requestID, _ = req["id"].(string)
			if kind, _ := req["kind"].(string); kind != "account_hash" {
				t.Errorf("unexpected kind %q", kind)
			}
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if requestID == "" {
		t.Fatal("pending request never appeared")
	}

	approved := resultMap(t, call(t, ts, "", "APPROVE_SIGN_REQUEST", map[string]any{"requestId": requestID, "keyId": keyID}))
	if sig, _ := approved["signature"].(string); len(sig) != 128 {
		t.Fatalf("expected 64-byte signature hex, got %q", sig)
	}

	wg.Wait()
	submitted := resultMap(t, submitResp)
	if submitted["signature"] != approved["signature"] {
		t.Fatal("submitter and approver saw different signatures")
	}
}

func TestRejectDeliversErrorCode(t *testing.T) {
	s, _ := newTestServer(t, Options{SubmitWait: 5 * time.Second})
	ts := httptest.NewServer(s.httpServer.Handler)
	defer ts.Close()
	resultMap(t, call(t, ts, "", "VAULT_INITIALIZE", map[string]any{"password": testPassword}))

	var wg sync.WaitGroup
	var submitResp rpcResponse
	wg.Add(1)
	go func() {
		defer wg.Done()
		submitResp = call(t, ts, "", "SIGN_PERSONAL_MESSAGE", map[string]any{
			"message": "0x68656c6c6f", "origin": "https://dapp.example",
		})
	}()

	var requestID string
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		pending := resultMap(t, call(t, ts, "", "GET_PENDING_SIGN_REQUEST", nil))
		if req, ok := pending["request"].(map[string]any); ok {
			requestID, _ = req["id"].(string)
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if requestID == "" {
		t.Fatal("pending request never appeared")
	}
	if out := call(t, ts, "", "REJECT_SIGN_REQUEST", map[string]any{"requestId": requestID, "reason": "nope"}); out.Error != nil {
		t.Fatalf("reject: %+v", out.Error)
	}

	wg.Wait()
	if submitResp.Error == nil || submitResp.Error.Code != -32010 {
		t.Fatalf("expected user rejected code, got %+v", submitResp.Error)
	}
}

func TestPredictCreate2KnownVector(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	ts := httptest.NewServer(s.httpServer.Handler)
	defer ts.Close()

	out := resultMap(t, call(t, ts, "", "PREDICT_CREATE2", map[string]any{
		"deployer":     "0x0000000000000000000000000000000000000000",
		"salt":         "0x0000000000000000000000000000000000000000000000000000000000000000",
		"initCodeHash": "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
	}))
	if got := out["address"]; got != "0x4D1A2e2bB4F88F0250f26Ffff098B0b30B26BF38" {
		t.Fatalf("unexpected create2 address %v", got)
	}
}

func TestRateLimitKicksIn(t *testing.T) {
	s, _ := newTestServer(t, Options{RateLimitRPS: 1, RateLimitBurst: 2})
	ts := httptest.NewServer(s.httpServer.Handler)
	defer ts.Close()

	raw := []byte(`{"jsonrpc":"2.0","id":1,"method":"VAULT_STATUS"}`)
	var limited bool
	for i := 0; i < 10; i++ {
		resp, err := ts.Client().Post(ts.URL+"/rpc", "application/json", bytes.NewReader(raw))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Fatal("rate limiter never triggered")
	}
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	ts := httptest.NewServer(s.httpServer.Handler)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status %d", resp.StatusCode)
	}

	resp, err = ts.Client().Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status %d", resp.StatusCode)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(buf.String(), "certen_vault_pending_sign_requests") {
		t.Fatal("pending gauge missing from metrics exposition")
	}
}
