package normalize

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"testing"
)

// encryptForTest seals payload the way the platform does: AES-256-CBC with
// the SHA-256 of the key, random IV prepended, PKCS#7 padding.
func encryptForTest(t *testing.T, key string, payload []byte) string {
	t.Helper()
	sum := sha256.Sum256([]byte(key))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		t.Fatal(err)
	}

	pad := aes.BlockSize - len(payload)%aes.BlockSize
	padded := append(append([]byte(nil), payload...), bytes.Repeat([]byte{byte(pad)}, pad)...)

	raw := make([]byte, aes.BlockSize+len(padded))
	if _, err := rand.Read(raw[:aes.BlockSize]); err != nil {
		t.Fatal(err)
	}
	cipher.NewCBCEncrypter(block, raw[:aes.BlockSize]).CryptBlocks(raw[aes.BlockSize:], padded)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestLark_EncryptedEnvelope(t *testing.T) {
	sealed := encryptForTest(t, "secret-key", []byte(larkV2Message))
	envelope, _ := json.Marshal(map[string]string{"encrypt": sealed})

	n := NewLark("verify-me", nil).WithEncryptKey("secret-key")
	res, err := n.Normalize(context.Background(), envelope)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsMessage() {
		t.Fatal("expected a message after decryption")
	}
	if res.Message.SourceChatID != "oc_general" || res.Message.SenderID != "ou_alice" {
		t.Errorf("message = %+v", res.Message)
	}
}

func TestLark_EncryptedEnvelopeWithoutKey(t *testing.T) {
	sealed := encryptForTest(t, "secret-key", []byte(larkV2Message))
	envelope, _ := json.Marshal(map[string]string{"encrypt": sealed})

	n := NewLark("verify-me", nil)
	if _, err := n.Normalize(context.Background(), envelope); err == nil {
		t.Error("expected error when no encrypt key is configured")
	}
}

func TestLark_EncryptedEnvelopeWrongKey(t *testing.T) {
	sealed := encryptForTest(t, "secret-key", []byte(larkV2Message))
	envelope, _ := json.Marshal(map[string]string{"encrypt": sealed})

	// Wrong-key decryption yields either a padding error or garbage that
	// matches no envelope; it must never surface a message.
	n := NewLark("verify-me", nil).WithEncryptKey("other-key")
	res, err := n.Normalize(context.Background(), envelope)
	if err == nil && res.IsMessage() {
		t.Error("wrong key produced a message")
	}
}

func TestDecryptLarkPayload_RejectsGarbage(t *testing.T) {
	if _, err := decryptLarkPayload("k", "not base64!"); err == nil {
		t.Error("expected error for bad base64")
	}
	if _, err := decryptLarkPayload("k", base64.StdEncoding.EncodeToString([]byte("short"))); err == nil {
		t.Error("expected error for truncated ciphertext")
	}
	// An IV with no ciphertext body must be rejected, not decrypted to an
	// empty buffer.
	ivOnly := base64.StdEncoding.EncodeToString(make([]byte, aes.BlockSize))
	if _, err := decryptLarkPayload("k", ivOnly); err == nil {
		t.Error("expected error for IV-only ciphertext")
	}
}

func TestLark_EncryptedEnvelopeIVOnly(t *testing.T) {
	ivOnly := base64.StdEncoding.EncodeToString(make([]byte, aes.BlockSize))
	envelope, _ := json.Marshal(map[string]string{"encrypt": ivOnly})

	n := NewLark("verify-me", nil).WithEncryptKey("secret-key")
	if _, err := n.Normalize(context.Background(), envelope); err == nil {
		t.Error("expected error for empty ciphertext body")
	}
}
