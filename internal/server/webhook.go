package server

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Payment-Signature"

const maxWebhookBody = 1 << 20

var errBadSignature = errors.New("invalid payment signature")

// GatewayVerifier authenticates payment gateway callbacks with a shared secret.
type GatewayVerifier struct {
	secret []byte
}

// NewGatewayVerifier returns nil when secret is empty, which leaves the
// webhook unregistered.
func NewGatewayVerifier(secret string) *GatewayVerifier {
	if secret == "" {
		return nil
	}
	return &GatewayVerifier{secret: []byte(secret)}
}

// Sign returns the signature the gateway is expected to send for body.
func (v *GatewayVerifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks signature against body in constant time.
func (v *GatewayVerifier) Verify(body []byte, signature string) error {
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) != sha256.Size {
		return errBadSignature
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return errBadSignature
	}
	return nil
}

// Require rejects requests whose body does not match SignatureHeader. The
// verified body is handed to next unchanged.
func (v *GatewayVerifier) Require(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not read body")
			return
		}
		if len(body) > maxWebhookBody {
			writeError(w, http.StatusRequestEntityTooLarge, "body too large")
			return
		}
		if err := v.Verify(body, r.Header.Get(SignatureHeader)); err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		next(w, r, ps)
	}
}
