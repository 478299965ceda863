package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// TokenCipherService はアクセストークンの保存時暗号化のインターフェースを定義する。
// 連携アカウントのアクセストークン/リフレッシュトークンはDBに平文で置かず、
// このサービスで暗号化した文字列を保存する。
type TokenCipherService interface {
	// Encrypt は平文トークンを暗号化し、base64エンコードした文字列を返す。
	Encrypt(plaintext string) (string, error)
	// Decrypt はEncryptが返した文字列を復号して平文トークンを返す。
	Decrypt(encoded string) (string, error)
}

// tokenCipher はAES-GCMによるTokenCipherServiceの実装。
// nonceは暗号化のたびにランダム生成し、暗号文の先頭に連結して保存する。
type tokenCipher struct {
	aead cipher.AEAD
}

// NewTokenCipher はTokenCipherServiceの新しいインスタンスを生成する。
// keyはAES-128/192/256に対応する16/24/32バイトでなければならない。
func NewTokenCipher(key []byte) (*tokenCipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES-GCM: %w", err)
	}
	return &tokenCipher{aead: aead}, nil
}

// Encrypt は平文トークンをAES-GCMで暗号化する。
func (c *tokenCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt はEncryptが返した文字列を復号する。
// 改ざんされた暗号文や別の鍵で暗号化された文字列はエラーとなる。
func (c *tokenCipher) Decrypt(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode token: %w", err)
	}

	nonceSize := c.aead.NonceSize()
	if len(sealed) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt token: %w", err)
	}

	return string(plaintext), nil
}
