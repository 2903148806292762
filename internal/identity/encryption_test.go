package identity

import (
	"bytes"
	"testing"
)

// fastParams keeps Argon2 at its 64 KiB minimum so the suite stays quick.
func fastParams() EncryptionParams {
	return EncryptionParams{Memory: 64, Iterations: 1, Parallelism: 1}
}

func TestEncryptDecrypt_Roundtrip(t *testing.T) {
	seed := []byte("secret identity seed")
	pass := []byte("strong-password-123")

	box, err := Encrypt(seed, pass, fastParams())
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	got, err := Decrypt(box, pass)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	if !bytes.Equal(got, seed) {
		t.Errorf("decrypted = %q, want %q", got, seed)
	}
}

func TestDecrypt_WrongPassword(t *testing.T) {
	encrypted, err := Encrypt([]byte("data"), []byte("right"), fastParams())
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	if _, err := Decrypt(encrypted, []byte("wrong")); err == nil {
		t.Error("Decrypt() with wrong password should fail")
	}
}

func TestDecrypt_TruncatedData(t *testing.T) {
	if _, err := Decrypt([]byte("too short"), []byte("pass")); err == nil {
		t.Error("Decrypt() of truncated data should fail")
	}
}

func TestDecrypt_CorruptedCiphertext(t *testing.T) {
	encrypted, err := Encrypt([]byte("data"), []byte("pass"), fastParams())
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	// Flip a bit in the ciphertext tail.
	encrypted[len(encrypted)-1] ^= 0x01

	if _, err := Decrypt(encrypted, []byte("pass")); err == nil {
		t.Error("Decrypt() of corrupted ciphertext should fail")
	}
}

func TestEncrypt_DifferentEachTime(t *testing.T) {
	plaintext := []byte("data")
	password := []byte("pass")

	e1, err := Encrypt(plaintext, password, fastParams())
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	e2, err := Encrypt(plaintext, password, fastParams())
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	if bytes.Equal(e1, e2) {
		t.Error("two encryptions should differ (random salt and nonce)")
	}
}

func TestEncrypt_OutputFormat(t *testing.T) {
	params := fastParams()
	encrypted, err := Encrypt([]byte("x"), []byte("pass"), params)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	if len(encrypted) < headerSize {
		t.Fatalf("output %d bytes, shorter than the header", len(encrypted))
	}
	// Parallelism byte sits right after salt and the two uint32 params.
	if encrypted[SaltSize+8] != params.Parallelism {
		t.Errorf("parallelism byte = %d, want %d", encrypted[SaltSize+8], params.Parallelism)
	}
}

func TestDefaultParams(t *testing.T) {
	params := DefaultParams()
	if params.Memory == 0 || params.Iterations == 0 || params.Parallelism == 0 {
		t.Errorf("default params contain zeros: %+v", params)
	}
}
