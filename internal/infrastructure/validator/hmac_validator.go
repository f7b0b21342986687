package validator

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"bazaar.com/internal/domain/port"
	"bazaar.com/internal/infrastructure/logger"
)

// Request headers carrying the caller's signature.
const (
	HeaderCaller    = "X-Caller"
	HeaderTimestamp = "X-Timestamp"
	HeaderNonce     = "X-Nonce"
	HeaderSignature = "X-Signature"
)

const nonceRetention = time.Hour

// ErrUnauthorized wraps every authentication failure.
var ErrUnauthorized = errors.New("unauthorized")

// NonceStore tracks used nonces to prevent replay attacks
type NonceStore struct {
	mu     sync.Mutex
	nonces map[string]time.Time
	now    func() time.Time
}

// NewNonceStore creates a new nonce store
func NewNonceStore() *NonceStore {
	return &NonceStore{
		nonces: make(map[string]time.Time),
		now:    time.Now,
	}
}

// IsValid reports whether the nonce has not been seen within the retention
// window, and records it
func (ns *NonceStore) IsValid(nonce string, timestamp time.Time) bool {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if seenAt, exists := ns.nonces[nonce]; exists {
		if ns.now().Sub(seenAt) <= nonceRetention {
			return false
		}
	}
	ns.nonces[nonce] = timestamp

	if len(ns.nonces) > 10000 {
		ns.cleanup()
	}
	return true
}

func (ns *NonceStore) cleanup() {
	now := ns.now()
	for nonce, seenAt := range ns.nonces {
		if now.Sub(seenAt) > nonceRetention {
			delete(ns.nonces, nonce)
		}
	}
}

// HMACAuthenticator implements the RequestAuthenticator port. Callers sign with
// their own secret when one is configured, otherwise with the shared secret.
type HMACAuthenticator struct {
	secret             string
	callerSecrets      map[string]string
	nonceStore         *NonceStore
	timestampTolerance time.Duration
	now                func() time.Time
	logger             logger.Logger
}

// NewHMACAuthenticator creates a new HMAC authenticator
func NewHMACAuthenticator(
	secret string,
	callerSecrets map[string]string,
	timestampTolerance time.Duration,
	logger logger.Logger,
) port.RequestAuthenticator {
	return &HMACAuthenticator{
		secret:             secret,
		callerSecrets:      callerSecrets,
		nonceStore:         NewNonceStore(),
		timestampTolerance: timestampTolerance,
		now:                time.Now,
		logger:             logger,
	}
}

// Authenticate verifies the request signature and returns the signing caller
func (v *HMACAuthenticator) Authenticate(ctx context.Context, r *http.Request, body []byte) (string, error) {
	caller := r.Header.Get(HeaderCaller)
	timestampStr := r.Header.Get(HeaderTimestamp)
	nonce := r.Header.Get(HeaderNonce)
	signature := r.Header.Get(HeaderSignature)

	if caller == "" {
		return "", fmt.Errorf("%w: missing %s header", ErrUnauthorized, HeaderCaller)
	}
	if timestampStr == "" {
		return "", fmt.Errorf("%w: missing %s header", ErrUnauthorized, HeaderTimestamp)
	}
	if nonce == "" {
		return "", fmt.Errorf("%w: missing %s header", ErrUnauthorized, HeaderNonce)
	}
	if signature == "" {
		return "", fmt.Errorf("%w: missing %s header", ErrUnauthorized, HeaderSignature)
	}

	timestamp, err := strconv.ParseInt(timestampStr, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: invalid %s format: %v", ErrUnauthorized, HeaderTimestamp, err)
	}
	requestTime := time.Unix(timestamp, 0)

	now := v.now()
	timeDiff := now.Sub(requestTime)
	if timeDiff < 0 {
		timeDiff = -timeDiff
	}
	if timeDiff > v.timestampTolerance {
		v.logger.LogWarning(ctx, "Request timestamp out of tolerance",
			"caller", caller,
			"timestamp", timestamp,
			"current_time", now.Unix(),
			"difference_seconds", timeDiff.Seconds(),
			"tolerance_seconds", v.timestampTolerance.Seconds())
		return "", fmt.Errorf("%w: timestamp out of tolerance: difference is %v, max allowed is %v",
			ErrUnauthorized, timeDiff, v.timestampTolerance)
	}

	secret := v.secretFor(caller)
	if secret == "" {
		return "", fmt.Errorf("%w: no secret configured for caller %s", ErrUnauthorized, caller)
	}

	expected := Sign(secret, timestampStr, nonce, caller, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		v.logger.LogWarning(ctx, "Invalid signature", "caller", caller)
		return "", fmt.Errorf("%w: invalid signature", ErrUnauthorized)
	}

	// Only signed requests consume a nonce
	if !v.nonceStore.IsValid(nonce, now) {
		v.logger.LogWarning(ctx, "Duplicate nonce detected (replay attack)",
			"caller", caller,
			"nonce", nonce,
			"timestamp", timestamp)
		return "", fmt.Errorf("%w: duplicate nonce detected: possible replay attack", ErrUnauthorized)
	}

	return caller, nil
}

func (v *HMACAuthenticator) secretFor(caller string) string {
	if secret, ok := v.callerSecrets[caller]; ok {
		return secret
	}
	return v.secret
}

// Sign computes the hex HMAC-SHA256 of
// timestamp + "\n" + nonce + "\n" + caller + "\n" + body.
func Sign(secret, timestamp, nonce, caller string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "\n" + nonce + "\n" + caller + "\n"))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignRequest sets the authentication headers on r for the given caller.
func SignRequest(r *http.Request, secret, caller, nonce string, body []byte, at time.Time) {
	timestamp := strconv.FormatInt(at.Unix(), 10)
	r.Header.Set(HeaderCaller, caller)
	r.Header.Set(HeaderTimestamp, timestamp)
	r.Header.Set(HeaderNonce, nonce)
	r.Header.Set(HeaderSignature, Sign(secret, timestamp, nonce, caller, body))
}
