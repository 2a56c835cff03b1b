package signature

import (
	"errors"
	"testing"
)

func TestSignIsOrderSensitive(t *testing.T) {
	signer := NewSecureAcceptanceSigner("secret-key")
	data := map[string]string{"name": "Dennis", "age": "37"}

	nameFirst := signer.Sign(data, []string{"name", "age"})
	ageFirst := signer.Sign(data, []string{"age", "name"})

	if nameFirst == ageFirst {
		t.Errorf("Expected different digests for different field orders, both were %s", nameFirst)
	}
}

func TestSignMissingFieldsSerializeEmpty(t *testing.T) {
	signer := NewSecureAcceptanceSigner("secret-key")

	withEmpty := signer.Sign(map[string]string{"a": "1", "b": ""}, []string{"a", "b"})
	withMissing := signer.Sign(map[string]string{"a": "1"}, []string{"a", "b"})

	if withEmpty != withMissing {
		t.Errorf("Expected missing field to sign as empty string: %s != %s", withEmpty, withMissing)
	}
}

func TestVerifyRequestRoundTrip(t *testing.T) {
	signer := NewSecureAcceptanceSigner("secret-key")
	data := map[string]string{
		"decision":           "ACCEPT",
		"req_amount":         "15.00",
		"signed_field_names": "decision,req_amount",
	}
	data["signature"] = signer.Sign(data, []string{"decision", "req_amount"})

	ok, err := signer.VerifyRequest(data)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !ok {
		t.Error("Expected a self-signed payload to verify")
	}
}

func TestVerifyRequestTamperedField(t *testing.T) {
	signer := NewSecureAcceptanceSigner("secret-key")
	data := map[string]string{
		"decision":           "ACCEPT",
		"req_amount":         "15.00",
		"signed_field_names": "decision,req_amount",
	}
	data["signature"] = signer.Sign(data, []string{"decision", "req_amount"})
	data["req_amount"] = "0.01"

	ok, err := signer.VerifyRequest(data)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if ok {
		t.Error("Expected tampered payload to fail verification")
	}
}

func TestVerifyRequestWrongSecret(t *testing.T) {
	signer := NewSecureAcceptanceSigner("secret-key")
	data := map[string]string{
		"decision":           "ACCEPT",
		"signed_field_names": "decision",
	}
	data["signature"] = signer.Sign(data, []string{"decision"})

	other := NewSecureAcceptanceSigner("other-key")
	ok, err := other.VerifyRequest(data)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if ok {
		t.Error("Expected verification under a different secret to fail")
	}
}

func TestVerifyRequestNoSignedFieldNames(t *testing.T) {
	signer := NewSecureAcceptanceSigner("secret-key")

	_, err := signer.VerifyRequest(map[string]string{"signature": "whatever"})
	if !errors.Is(err, ErrNoSignedFields) {
		t.Errorf("Expected ErrNoSignedFields, got %v", err)
	}
}
