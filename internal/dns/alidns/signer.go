package alidns

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	apiVersion       = "2015-01-09"
	responseFormat   = "json"
	signatureMethod  = "HMAC-SHA1"
	signatureVersion = "1.0"
	timestampLayout  = "2006-01-02T15:04:05Z"

	signatureKey = "Signature"
)

// Signer adds authentication fields to Alidns RPC requests and signs them.
type Signer struct {
	accessKeyID     string
	accessKeySecret string
	now             func() time.Time
	nonce           func() string
}

// SignerOption configures a Signer.
type SignerOption func(*Signer)

// WithClock overrides the time source used for the Timestamp field.
func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) { s.now = now }
}

// WithNonce overrides the SignatureNonce generator.
func WithNonce(nonce func() string) SignerOption {
	return func(s *Signer) { s.nonce = nonce }
}

// NewSigner returns a Signer for the given access key pair.
func NewSigner(accessKeyID, accessKeySecret string, opts ...SignerOption) *Signer {
	s := &Signer{
		accessKeyID:     accessKeyID,
		accessKeySecret: accessKeySecret,
		now:             time.Now,
		nonce:           randomNonce,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func randomNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Sign copies params, adds the housekeeping fields and the Signature.
// The input map is not modified.
func (s *Signer) Sign(params map[string]string, method string) map[string]string {
	signed := make(map[string]string, len(params)+8)
	for k, v := range params {
		signed[k] = v
	}
	signed["Format"] = responseFormat
	signed["Version"] = apiVersion
	signed["AccessKeyId"] = s.accessKeyID
	signed["Timestamp"] = s.now().UTC().Format(timestampLayout)
	signed["SignatureMethod"] = signatureMethod
	signed["SignatureNonce"] = s.nonce()
	signed["SignatureVersion"] = signatureVersion

	signed[signatureKey] = computeSignature(s.accessKeySecret, method, signed)
	return signed
}

// canonicalQuery serialises params sorted by key, excluding Signature.
// Spaces are encoded as %20, never '+'.
func canonicalQuery(params map[string]string) string {
	values := make(url.Values, len(params))
	for k, v := range params {
		if k == signatureKey {
			continue
		}
		values.Set(k, v)
	}
	return strings.ReplaceAll(values.Encode(), "+", "%20")
}

// stringToSign builds METHOD&%2F&<percent-encoded canonical query>.
func stringToSign(method string, params map[string]string) string {
	return method + "&" + percentEncode("/") + "&" + percentEncode(canonicalQuery(params))
}

// percentEncode escapes everything outside the RFC 3986 unreserved set.
func percentEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func computeSignature(secret, method string, params map[string]string) string {
	mac := hmac.New(sha1.New, []byte(secret+"&"))
	mac.Write([]byte(stringToSign(method, params)))
	return strings.TrimSpace(base64.StdEncoding.EncodeToString(mac.Sum(nil)))
}

// VerifySignature recomputes the signature of a signed parameter set and
// compares it with the Signature field.
func VerifySignature(secret, method string, signed map[string]string) bool {
	got, ok := signed[signatureKey]
	if !ok {
		return false
	}
	want := computeSignature(secret, method, signed)
	return hmac.Equal([]byte(got), []byte(want))
}
