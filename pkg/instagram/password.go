package instagram

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/crypto/nacl/box"
)

const passwordPrefix = "#PWD_INSTAGRAM_BROWSER"

// encryptPassword builds the enc_password form value. The password is sealed
// with AES-256-GCM under a random key, and the key is sealed anonymously to the
// provider's public key. Without key material the plain version 0 form is used.
func encryptPassword(password, keyID, publicKeyHex, version, timestamp string, random io.Reader) (string, error) {
	if keyID == "" || publicKeyHex == "" || version == "" {
		return fmt.Sprintf("%s:0:%s:%s", passwordPrefix, timestamp, password), nil
	}

	id, err := strconv.Atoi(keyID)
	if err != nil || id < 0 || id > 255 {
		return "", fmt.Errorf("invalid password key id %q", keyID)
	}
	pub, err := hex.DecodeString(publicKeyHex)
	if err != nil || len(pub) != 32 {
		return "", fmt.Errorf("invalid password public key")
	}
	var recipient [32]byte
	copy(recipient[:], pub)

	key := make([]byte, 32)
	if _, err := io.ReadFull(random, key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	sealed := gcm.Seal(nil, nonce, []byte(password), []byte(timestamp))
	ciphertext, tag := sealed[:len(sealed)-gcm.Overhead()], sealed[len(sealed)-gcm.Overhead():]

	sealedKey, err := box.SealAnonymous(nil, key, &recipient, random)
	if err != nil {
		return "", fmt.Errorf("failed to seal key: %w", err)
	}

	payload := []byte{1, byte(id), byte(len(sealedKey) & 255), byte((len(sealedKey) >> 8) & 255)}
	payload = append(payload, sealedKey...)
	payload = append(payload, tag...)
	payload = append(payload, ciphertext...)

	return fmt.Sprintf("%s:%s:%s:%s", passwordPrefix, version, timestamp, base64.StdEncoding.EncodeToString(payload)), nil
}
