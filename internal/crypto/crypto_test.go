package crypto

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(MinIterations)
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	return c
}

func TestNewCodec(t *testing.T) {
	tests := []struct {
		name       string
		iterations int
		want       int
		wantErr    bool
	}{
		{"default", 0, DefaultIterations, false},
		{"minimum", MinIterations, MinIterations, false},
		{"custom", 250_000, 250_000, false},
		{"too low", MinIterations - 1, 0, true},
		{"too high", MaxIterations + 1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCodec(tt.iterations)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewCodec() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidIterations) {
					t.Errorf("NewCodec() error = %v, want ErrInvalidIterations", err)
				}
				return
			}
			if c.Iterations() != tt.want {
				t.Errorf("Iterations() = %d, want %d", c.Iterations(), tt.want)
			}
		})
	}
}

func TestDeriveKey_Deterministic(t *testing.T) {
	salt := bytes.Repeat([]byte{0x42}, SaltSize)

	enc1, mac1 := DeriveKey([]byte("hunter2"), salt, MinIterations)
	enc2, mac2 := DeriveKey([]byte("hunter2"), salt, MinIterations)

	if len(enc1) != KeySize || len(mac1) != MACKeySize {
		t.Fatalf("DeriveKey() lengths = %d/%d, want %d/%d", len(enc1), len(mac1), KeySize, MACKeySize)
	}
	if !bytes.Equal(enc1, enc2) || !bytes.Equal(mac1, mac2) {
		t.Error("DeriveKey() not deterministic for same passphrase and salt")
	}
	if bytes.Equal(enc1, mac1) {
		t.Error("DeriveKey() encryption and mac keys are identical")
	}

	otherSalt := bytes.Repeat([]byte{0x43}, SaltSize)
	enc3, _ := DeriveKey([]byte("hunter2"), otherSalt, MinIterations)
	if bytes.Equal(enc1, enc3) {
		t.Error("DeriveKey() same key for different salts")
	}
}

func TestEncryptDecrypt(t *testing.T) {
	c := newTestCodec(t)

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"empty", []byte{}},
		{"short", []byte("hello")},
		{"block aligned", bytes.Repeat([]byte("a"), 32)},
		{"document", []byte(`{"version":1,"applications":{"appA":{"wifi1":{"type":1}}}}`)},
		{"long", bytes.Repeat([]byte("x"), 10000)},
		{"binary", []byte{0x00, 0xFF, 0x00, 0xFF, 0xDE, 0xAD, 0xBE, 0xEF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := c.Encrypt(tt.plaintext, []byte("correct horse"))
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}

			got, err := c.Decrypt(env, []byte("correct horse"))
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(got, tt.plaintext) {
				t.Errorf("Decrypt() = %q, want %q", got, tt.plaintext)
			}
		})
	}
}

func TestDecrypt_WrongPassphrase(t *testing.T) {
	c := newTestCodec(t)

	// Repeat to make sure no padding accident ever yields plaintext.
	for i := 0; i < 20; i++ {
		env, err := c.Encrypt([]byte("secret document"), []byte("A"))
		if err != nil {
			t.Fatalf("Encrypt() error = %v", err)
		}
		got, err := c.Decrypt(env, []byte("B"))
		if !errors.Is(err, ErrWrongPassphrase) {
			t.Fatalf("Decrypt() error = %v, want ErrWrongPassphrase", err)
		}
		if got != nil {
			t.Fatalf("Decrypt() returned plaintext %q on wrong passphrase", got)
		}
	}
}

func TestEncrypt_Freshness(t *testing.T) {
	c := newTestCodec(t)
	plaintext := []byte("same plaintext")

	env1, err := c.Encrypt(plaintext, []byte("pass"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	env2, err := c.Encrypt(plaintext, []byte("pass"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if bytes.Equal(env1.Salt, env2.Salt) {
		t.Error("Encrypt() reused salt")
	}
	if bytes.Equal(env1.IV, env2.IV) {
		t.Error("Encrypt() reused iv")
	}
	if bytes.Equal(env1.Ciphertext, env2.Ciphertext) {
		t.Error("Encrypt() produced identical ciphertext")
	}
}

func TestEncryptDecrypt_EmptyPassphrase(t *testing.T) {
	c := newTestCodec(t)

	if _, err := c.Encrypt([]byte("x"), nil); !errors.Is(err, ErrEmptyPassphrase) {
		t.Errorf("Encrypt() error = %v, want ErrEmptyPassphrase", err)
	}

	env, err := c.Encrypt([]byte("x"), []byte("pass"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if _, err := c.Decrypt(env, []byte{}); !errors.Is(err, ErrEmptyPassphrase) {
		t.Errorf("Decrypt() error = %v, want ErrEmptyPassphrase", err)
	}
}

func TestDecrypt_UsesEnvelopeIterations(t *testing.T) {
	weak := newTestCodec(t)
	strong, err := NewCodec(MinIterations * 2)
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}

	env, err := weak.Encrypt([]byte("old file"), []byte("pass"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if env.Iterations != MinIterations {
		t.Fatalf("Iterations = %d, want %d", env.Iterations, MinIterations)
	}

	got, err := strong.Decrypt(env, []byte("pass"))
	if err != nil {
		t.Fatalf("Decrypt() with stronger codec error = %v", err)
	}
	if string(got) != "old file" {
		t.Errorf("Decrypt() = %q, want %q", got, "old file")
	}
}

func TestDecrypt_TamperedCiphertext(t *testing.T) {
	c := newTestCodec(t)

	env, err := c.Encrypt([]byte("payload"), []byte("pass"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	env.Ciphertext[0] ^= 0x01

	if _, err := c.Decrypt(env, []byte("pass")); err == nil {
		t.Fatal("Decrypt() of tampered ciphertext should fail")
	}
}

func TestDecrypt_StructurallyInvalid(t *testing.T) {
	c := newTestCodec(t)

	good, err := c.Encrypt([]byte("payload"), []byte("pass"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(e *Envelope)
	}{
		{"short salt", func(e *Envelope) { e.Salt = e.Salt[:8] }},
		{"short iv", func(e *Envelope) { e.IV = e.IV[:4] }},
		{"unaligned ciphertext", func(e *Envelope) { e.Ciphertext = e.Ciphertext[:len(e.Ciphertext)-1] }},
		{"empty ciphertext", func(e *Envelope) { e.Ciphertext = nil }},
		{"bad version", func(e *Envelope) { e.Version = 9 }},
		{"unknown kdf", func(e *Envelope) { e.KDF = 7 }},
		{"zero iterations", func(e *Envelope) { e.Iterations = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := *good
			tt.mutate(&env)
			if _, err := c.Decrypt(&env, []byte("pass")); !errors.Is(err, ErrCorruptEnvelope) {
				t.Errorf("Decrypt() error = %v, want ErrCorruptEnvelope", err)
			}
		})
	}
}

func TestGenerateSalt(t *testing.T) {
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt() error = %v", err)
	}
	if len(salt) != SaltSize {
		t.Errorf("GenerateSalt() returned salt of length %d, want %d", len(salt), SaltSize)
	}

	salt2, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt() second call error = %v", err)
	}
	if bytes.Equal(salt, salt2) {
		t.Error("GenerateSalt() returned identical salts")
	}
}

func TestZeroBytes(t *testing.T) {
	data := []byte("sensitive data here")
	ZeroBytes(data)
	for i, b := range data {
		if b != 0 {
			t.Errorf("ZeroBytes() byte %d = %d, want 0", i, b)
		}
	}
}

func TestPKCS7(t *testing.T) {
	for n := 0; n <= 33; n++ {
		data := bytes.Repeat([]byte{0xAB}, n)
		padded := pkcs7Pad(data, 16)
		if len(padded)%16 != 0 || len(padded) <= n {
			t.Fatalf("pkcs7Pad(%d) length = %d", n, len(padded))
		}
		got, err := pkcs7Unpad(padded, 16)
		if err != nil {
			t.Fatalf("pkcs7Unpad(%d) error = %v", n, err)
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("pkcs7Unpad(%d) = %x, want %x", n, got, data)
		}
	}

	bad := [][]byte{
		{},
		bytes.Repeat([]byte{0x00}, 16),
		bytes.Repeat([]byte{0x11}, 16),
		append(bytes.Repeat([]byte{0x01}, 14), 0x03, 0x02),
	}
	for _, b := range bad {
		if _, err := pkcs7Unpad(b, 16); err == nil {
			t.Errorf("pkcs7Unpad(%x) should fail", b)
		}
	}
}

func TestGenerateRandomSecret(t *testing.T) {
	tests := []struct {
		name   string
		length int
		want   int
	}{
		{"default", 0, DefaultSecretLength},
		{"negative", -3, DefaultSecretLength},
		{"custom", 24, 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := GenerateRandomSecret(tt.length)
			if err != nil {
				t.Fatalf("GenerateRandomSecret() error = %v", err)
			}
			if len(s) != tt.want {
				t.Errorf("GenerateRandomSecret() length = %d, want %d", len(s), tt.want)
			}
			for _, r := range s {
				if !strings.ContainsRune(SecretAlphabet, r) {
					t.Errorf("GenerateRandomSecret() produced %q outside alphabet", r)
				}
			}
		})
	}

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		s, err := GenerateRandomSecret(16)
		if err != nil {
			t.Fatalf("GenerateRandomSecret() error = %v", err)
		}
		if seen[s] {
			t.Fatalf("GenerateRandomSecret() repeated %q", s)
		}
		seen[s] = true
	}
}
