package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
)

// Contact point secrets are encrypted at rest with a key from the
// environment. The previous key keeps old rows readable across a rotation;
// values are rewritten under the primary key on their next update.
const (
	SettingsKeyEnv     = "NW_SETTINGS_ENCRYPTION_KEY"
	SettingsPrevKeyEnv = "NW_SETTINGS_ENCRYPTION_PREV_KEY"
)

var ErrSecretUnreadable = errors.New("secret value cannot be decrypted")

// MaskedSettingValue is what read APIs return for sensitive values. Updates
// that send it back leave the stored value untouched.
const MaskedSettingValue = "********"

type encryptedSettingValue struct {
	Enc   string `json:"enc"`
	Nonce string `json:"nonce"`
	Data  string `json:"data"`
}

// IsSensitiveSettingKey reports whether a settings key holds a value that
// must not be stored or listed in the clear.
func IsSensitiveSettingKey(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "" {
		return false
	}
	markers := []string{"secret", "token", "password", "api_key", "private_key", "webhook_url"}
	for _, m := range markers {
		if strings.Contains(k, m) {
			return true
		}
	}
	return false
}

// ProtectSettingValue encrypts the value of a sensitive settings key. Without
// a configured key, or for non-sensitive keys, the value passes through.
func ProtectSettingValue(key, value string) string {
	if !IsSensitiveSettingKey(key) || value == "" {
		return value
	}
	if isEncryptedValue(value) {
		return value
	}
	gcm := loadPrimarySettingsGCM()
	if gcm == nil {
		return value
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return value
	}
	ct := gcm.Seal(nil, nonce, []byte(value), nil)
	payload := encryptedSettingValue{
		Enc:   "aes-gcm-v1",
		Nonce: base64.StdEncoding.EncodeToString(nonce),
		Data:  base64.StdEncoding.EncodeToString(ct),
	}
	out, err := json.Marshal(payload)
	if err != nil {
		return value
	}
	return string(out)
}

// RevealSettingValue decrypts an encrypted settings value, trying the
// primary key and then the previous one. Plain values pass through
// unchanged; an envelope no configured key can open is an error.
func RevealSettingValue(value string) (string, error) {
	if !isEncryptedValue(value) {
		return value, nil
	}
	var payload encryptedSettingValue
	if err := json.Unmarshal([]byte(value), &payload); err != nil {
		return value, nil
	}
	nonce, err := base64.StdEncoding.DecodeString(payload.Nonce)
	if err != nil {
		return "", ErrSecretUnreadable
	}
	ct, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		return "", ErrSecretUnreadable
	}
	for _, gcm := range loadSettingsGCMs() {
		if pt, err := gcm.Open(nil, nonce, ct, nil); err == nil {
			return string(pt), nil
		}
	}
	return "", ErrSecretUnreadable
}

// ProtectSettings encrypts the sensitive entries of a contact point settings
// map in place and returns it.
func ProtectSettings(settings map[string]string) map[string]string {
	for k, v := range settings {
		settings[k] = ProtectSettingValue(k, v)
	}
	return settings
}

// MaskSettings replaces sensitive values with a placeholder for read APIs.
func MaskSettings(settings map[string]string) map[string]string {
	out := make(map[string]string, len(settings))
	for k, v := range settings {
		if IsSensitiveSettingKey(k) && v != "" {
			out[k] = MaskedSettingValue
			continue
		}
		out[k] = v
	}
	return out
}

func isEncryptedValue(value string) bool {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "{") {
		return false
	}
	var payload encryptedSettingValue
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return false
	}
	return payload.Enc == "aes-gcm-v1" && payload.Nonce != "" && payload.Data != ""
}

func loadPrimarySettingsGCM() cipher.AEAD {
	keyBytes := parseSettingsKey(strings.TrimSpace(os.Getenv(SettingsKeyEnv)))
	if len(keyBytes) == 0 {
		return nil
	}
	return newGCM(keyBytes)
}

func loadSettingsGCMs() []cipher.AEAD {
	keys := []string{
		strings.TrimSpace(os.Getenv(SettingsKeyEnv)),
		strings.TrimSpace(os.Getenv(SettingsPrevKeyEnv)),
	}
	out := make([]cipher.AEAD, 0, 2)
	seen := map[string]struct{}{}
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keyBytes := parseSettingsKey(key)
		if len(keyBytes) == 0 {
			continue
		}
		if gcm := newGCM(keyBytes); gcm != nil {
			out = append(out, gcm)
		}
	}
	return out
}

func parseSettingsKey(k string) []byte {
	if strings.TrimSpace(k) == "" {
		return nil
	}
	// Prefer a base64 key, fall back to raw bytes.
	keyBytes, err := base64.StdEncoding.DecodeString(k)
	if err != nil {
		keyBytes = []byte(k)
	}
	// Normalize to the key sizes AES accepts.
	switch len(keyBytes) {
	case 16, 24, 32:
	default:
		if len(keyBytes) < 16 {
			return nil
		}
		if len(keyBytes) < 24 {
			keyBytes = keyBytes[:16]
		} else if len(keyBytes) < 32 {
			keyBytes = keyBytes[:24]
		} else {
			keyBytes = keyBytes[:32]
		}
	}
	return keyBytes
}

func newGCM(keyBytes []byte) cipher.AEAD {
	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil
	}
	return gcm
}
