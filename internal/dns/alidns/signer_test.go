package alidns

import (
	"strings"
	"testing"
	"time"
)

var fixedTime = time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)

func fixedSigner() *Signer {
	return NewSigner("test-key-id", "test-key-secret",
		WithClock(func() time.Time { return fixedTime }),
		WithNonce(func() string { return "0123456789abcdef0123456789abcdef" }),
	)
}

// Example request from the Alidns signature documentation.
func TestComputeSignature_DocumentedExample(t *testing.T) {
	params := map[string]string{
		"Format":           "XML",
		"AccessKeyId":      "testid",
		"Action":           "DescribeDomainRecords",
		"SignatureMethod":  "HMAC-SHA1",
		"DomainName":       "example.com",
		"SignatureNonce":   "f59ed6a9-83fc-473b-9cc6-99c95df3856e",
		"SignatureVersion": "1.0",
		"Version":          "2015-01-09",
		"Timestamp":        "2016-03-24T16:41:54Z",
	}

	wantStringToSign := "GET&%2F&AccessKeyId%3Dtestid%26Action%3DDescribeDomainRecords" +
		"%26DomainName%3Dexample.com%26Format%3DXML%26SignatureMethod%3DHMAC-SHA1" +
		"%26SignatureNonce%3Df59ed6a9-83fc-473b-9cc6-99c95df3856e%26SignatureVersion%3D1.0" +
		"%26Timestamp%3D2016-03-24T16%253A41%253A54Z%26Version%3D2015-01-09"
	if got := stringToSign("GET", params); got != wantStringToSign {
		t.Errorf("stringToSign:\n got %s\nwant %s", got, wantStringToSign)
	}

	if got := computeSignature("testsecret", "GET", params); got != "uRpHwaSEt3J+6KQD//svCh/x+pI=" {
		t.Errorf("expected documented signature, got %q", got)
	}
}

func TestSign_FixedClockAndNonce(t *testing.T) {
	signed := fixedSigner().Sign(map[string]string{
		"Action":      "GetMainDomainName",
		"InputString": "www.example.com",
	}, "POST")

	want := map[string]string{
		"Action":           "GetMainDomainName",
		"InputString":      "www.example.com",
		"Format":           "json",
		"Version":          "2015-01-09",
		"AccessKeyId":      "test-key-id",
		"Timestamp":        "2024-05-01T08:30:00Z",
		"SignatureMethod":  "HMAC-SHA1",
		"SignatureNonce":   "0123456789abcdef0123456789abcdef",
		"SignatureVersion": "1.0",
		"Signature":        "qbi98UQLR9kfty3aX9wcjeHQjIc=",
	}
	if len(signed) != len(want) {
		t.Fatalf("expected %d fields, got %d: %v", len(want), len(signed), signed)
	}
	for k, v := range want {
		if signed[k] != v {
			t.Errorf("field %s: got %q, want %q", k, signed[k], v)
		}
	}
}

func TestSign_SpacesAndReservedCharacters(t *testing.T) {
	signed := fixedSigner().Sign(map[string]string{
		"Action":     "AddDomainRecord",
		"DomainName": "example.com",
		"RR":         "www",
		"Type":       "TXT",
		"Value":      "hello world+*~/",
		"Line":       "default",
	}, "POST")

	query := canonicalQuery(signed)
	if !strings.Contains(query, "Value=hello%20world%2B%2A~%2F") {
		t.Errorf("unexpected value encoding in %s", query)
	}
	if strings.Contains(query, "+") {
		t.Errorf("canonical query must not contain '+': %s", query)
	}
	if signed["Signature"] != "FCtgag3jPCOA5lG3HUUtyQFuhfI=" {
		t.Errorf("unexpected signature %q", signed["Signature"])
	}
}

func TestSign_Deterministic(t *testing.T) {
	params := map[string]string{"Action": "DescribeDomainRecords", "DomainName": "example.com"}

	first := fixedSigner().Sign(params, "POST")
	second := fixedSigner().Sign(params, "POST")
	if first["Signature"] != second["Signature"] {
		t.Errorf("same input produced different signatures: %q vs %q", first["Signature"], second["Signature"])
	}

	changed := fixedSigner().Sign(map[string]string{"Action": "DescribeDomainRecords", "DomainName": "example.org"}, "POST")
	if changed["Signature"] == first["Signature"] {
		t.Error("changing a parameter value must change the signature")
	}

	otherMethod := fixedSigner().Sign(params, "GET")
	if otherMethod["Signature"] == first["Signature"] {
		t.Error("changing the method must change the signature")
	}
}

func TestSign_DoesNotMutateInput(t *testing.T) {
	params := map[string]string{"Action": "GetMainDomainName"}
	fixedSigner().Sign(params, "POST")
	if len(params) != 1 {
		t.Errorf("input params were modified: %v", params)
	}
}

func TestSign_FreshNoncePerRequest(t *testing.T) {
	s := NewSigner("id", "secret")
	a := s.Sign(map[string]string{"Action": "GetMainDomainName"}, "POST")
	b := s.Sign(map[string]string{"Action": "GetMainDomainName"}, "POST")

	if a["SignatureNonce"] == b["SignatureNonce"] {
		t.Error("expected a fresh nonce for every request")
	}
	if len(a["SignatureNonce"]) != 32 || strings.Contains(a["SignatureNonce"], "-") {
		t.Errorf("expected 32 hex characters, got %q", a["SignatureNonce"])
	}
	if a["Signature"] == b["Signature"] {
		t.Error("expected different signatures for different nonces")
	}
}

func TestVerifySignature(t *testing.T) {
	signed := fixedSigner().Sign(map[string]string{"Action": "GetMainDomainName"}, "POST")
	if !VerifySignature("test-key-secret", "POST", signed) {
		t.Error("expected signature to verify")
	}
	if VerifySignature("wrong-secret", "POST", signed) {
		t.Error("expected verification with the wrong secret to fail")
	}

	signed["InputString"] = "tampered.example.com"
	if VerifySignature("test-key-secret", "POST", signed) {
		t.Error("expected verification of tampered params to fail")
	}
}

func TestCompact(t *testing.T) {
	ttl := 600
	var noTTL *int
	var noPriority *string

	got := compact(Params{
		"Action":   "UpdateDomainRecord",
		"TTL":      &ttl,
		"Missing":  nil,
		"NilTTL":   noTTL,
		"Priority": noPriority,
		"PageSize": 100,
	})

	want := map[string]string{"Action": "UpdateDomainRecord", "TTL": "600", "PageSize": "100"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s: got %q, want %q", k, got[k], v)
		}
	}
}
