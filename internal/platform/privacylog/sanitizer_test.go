package privacylog

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestHandlerRedactsSecretMaterial(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(WrapHandler(slog.NewJSONHandler(&buf, nil)))
	logger.Info("unlock attempt",
		"password", "hunter2",
		"mnemonic", "abandon abandon about",
		"private_key_hex", "deadbeef",
		"status", "ok",
	)

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}
	for _, key := range []string{"password", "mnemonic", "private_key_hex"} {
		if got, _ := payload[key].(string); got != redactedValue {
			t.Fatalf("%s leaked: %q", key, got)
		}
	}
	if got, _ := payload["status"].(string); got != "ok" {
		t.Fatalf("benign attr mangled: %q", got)
	}
}

func TestHandlerFingerprintsOrigins(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(WrapHandler(slog.NewJSONHandler(&buf, nil)))
	logger.Info("sign request queued",
		"origin", "https://dapp.example",
		"key_id", "8f14e45f-ceea-467f-a0e6-e11ac4e52b7d",
		"request_id", "req-1",
	)

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}
	if _, ok := payload["origin"]; ok {
		t.Fatal("origin logged in the clear")
	}
	fp, _ := payload["origin_fp"].(string)
	if !strings.HasPrefix(fp, "fp_") {
		t.Fatalf("unexpected fingerprint %q", fp)
	}
	if _, ok := payload["key_id"]; ok {
		t.Fatal("key_id logged in the clear")
	}
	if kfp, _ := payload["key_id_fp"].(string); !strings.HasPrefix(kfp, "fp_") {
		t.Fatalf("unexpected key_id fingerprint %q", kfp)
	}
	if got, _ := payload["request_id"].(string); got != "req-1" {
		t.Fatalf("request_id should stay plain, got %q", got)
	}
}

func TestFingerprintIsStableWithinProcess(t *testing.T) {
	a := Fingerprint("https://dapp.example")
	b := Fingerprint("https://dapp.example")
	c := Fingerprint("https://other.example")
	if a != b {
		t.Fatalf("fingerprint not stable: %q vs %q", a, b)
	}
	if a == c {
		t.Fatal("distinct values collided")
	}
	if Fingerprint("  ") != "" {
		t.Fatal("blank value should fingerprint to empty")
	}
}

func TestHandlerImplementsSlogContract(t *testing.T) {
	var buf bytes.Buffer
	h := WrapHandler(slog.NewJSONHandler(&buf, nil))
	if !h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("expected handler enabled for info")
	}
	rec := slog.NewRecord(time.Now().UTC(), slog.LevelInfo, "msg", 0)
	rec.AddAttrs(slog.String("signer_url", "acc://signer.acme/book/1"))
	if err := h.Handle(context.Background(), rec); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if !strings.Contains(buf.String(), "signer_url_fp") {
		t.Fatalf("expected fingerprinted signer_url, got %s", buf.String())
	}
}
