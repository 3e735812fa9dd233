// Package privacylog wraps a slog.Handler so secret material and
// caller-identifying values never reach the log sink in the clear.
// Passwords, mnemonics and private keys are redacted outright; origins,
// signer URLs and key IDs are reduced to a per-boot fingerprint so log lines
// stay correlatable without recording which sites or keys used the vault.
package privacylog

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
)

const redactedValue = "[REDACTED]"

var (
	bootNonce = randomNonce()

	// Keys whose values are secret material. Matched by substring so
	// "new_password" and "private_key_hex" are caught too.
	secretKeyParts = []string{
		"password", "passphrase", "mnemonic", "private", "seed",
		"secret", "token", "authorization",
	}

	// Keys whose values identify a caller, key or account and are logged
	// only as fingerprints. Request IDs stay plain: they are minted by the
	// queue, returned to the caller, and needed verbatim for correlation.
	fingerprintedKeys = map[string]struct{}{
		"origin":     {},
		"signer_url": {},
		"address":    {},
		"public_key": {},
		"key_id":     {},
	}
)

type SanitizingHandler struct {
	next slog.Handler
}

func WrapHandler(next slog.Handler) slog.Handler {
	if next == nil {
		return nil
	}
	return &SanitizingHandler{next: next}
}

func (h *SanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SanitizingHandler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(SanitizeAttr(attr))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SanitizingHandler{next: h.next.WithAttrs(sanitizeAttrs(attrs))}
}

func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{next: h.next.WithGroup(name)}
}

func SanitizeAttr(attr slog.Attr) slog.Attr {
	key := strings.TrimSpace(attr.Key)
	lowerKey := strings.ToLower(key)
	if isSecretKey(lowerKey) {
		return slog.String(key, redactedValue)
	}
	if _, ok := fingerprintedKeys[lowerKey]; ok {
		return slog.String(fingerprintKeyName(key), Fingerprint(valueToString(attr.Value)))
	}
	if attr.Value.Kind() == slog.KindGroup {
		return slog.Any(key, sanitizeGroupValue(attr.Value.Group()))
	}
	return attr
}

// Fingerprint maps a value to a short stable token. The token is salted
// with a per-process nonce, so fingerprints correlate within one run but
// cannot be joined across restarts or reversed offline.
func Fingerprint(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(trimmed + "|" + bootNonce))
	return "fp_" + hex.EncodeToString(sum[:8])
}

func sanitizeAttrs(attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		out = append(out, SanitizeAttr(attr))
	}
	return out
}

func sanitizeGroupValue(attrs []slog.Attr) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, attr := range sanitizeAttrs(attrs) {
		switch attr.Value.Kind() {
		case slog.KindString:
			out[attr.Key] = attr.Value.String()
		case slog.KindInt64:
			out[attr.Key] = attr.Value.Int64()
		case slog.KindUint64:
			out[attr.Key] = attr.Value.Uint64()
		case slog.KindFloat64:
			out[attr.Key] = attr.Value.Float64()
		case slog.KindBool:
			out[attr.Key] = attr.Value.Bool()
		case slog.KindDuration:
			out[attr.Key] = attr.Value.Duration().String()
		case slog.KindTime:
			out[attr.Key] = attr.Value.Time().UTC().Format("2006-01-02T15:04:05.000000000Z")
		default:
			out[attr.Key] = attr.Value.Any()
		}
	}
	return out
}

func fingerprintKeyName(key string) string {
	if strings.HasSuffix(strings.ToLower(strings.TrimSpace(key)), "_fp") {
		return key
	}
	return key + "_fp"
}

func isSecretKey(key string) bool {
	for _, part := range secretKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

func valueToString(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return fmt.Sprintf("%d", v.Int64())
	case slog.KindUint64:
		return fmt.Sprintf("%d", v.Uint64())
	case slog.KindFloat64:
		return fmt.Sprintf("%g", v.Float64())
	case slog.KindBool:
		return fmt.Sprintf("%t", v.Bool())
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().UTC().Format("2006-01-02T15:04:05.000000000Z")
	default:
		return fmt.Sprint(v.Any())
	}
}

func randomNonce() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "fallback_nonce"
	}
	return hex.EncodeToString(buf)
}
