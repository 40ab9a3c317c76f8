package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"ms-darshan/internal/models"

	"github.com/skip2/go-qrcode"
)

const dataURLPrefix = "data:image/png;base64,"

// QRGenerator seals ticket payloads with AES-GCM and renders them as QR codes.
// The scanner reads the sealed token back and hands it to Decrypt.
type QRGenerator struct {
	secret []byte
}

func NewQRGenerator(secret string) *QRGenerator {
	hashed := sha256.Sum256([]byte(secret))
	return &QRGenerator{secret: hashed[:]}
}

func (q *QRGenerator) Encrypt(p models.QRPayload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return encryptAES(data, q.secret)
}

func (q *QRGenerator) Decrypt(token string) (*models.QRPayload, error) {
	data, err := decryptAES(token, q.secret)
	if err != nil {
		return nil, err
	}
	var p models.QRPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("malformed QR payload: %w", err)
	}
	if p.TicketID == "" {
		return nil, errors.New("QR payload has no ticket id")
	}
	return &p, nil
}

// PNG renders the sealed payload as a 256px QR image.
func (q *QRGenerator) PNG(p models.QRPayload) ([]byte, error) {
	token, err := q.Encrypt(p)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(token, qrcode.Medium, 256)
}

// DataURL is the PNG as an inline data URL, the form stored on the ticket.
func (q *QRGenerator) DataURL(p models.QRPayload) (string, error) {
	png, err := q.PNG(p)
	if err != nil {
		return "", err
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(png), nil
}

// DecodeDataURL returns the PNG bytes of a data URL produced by DataURL.
func DecodeDataURL(s string) ([]byte, error) {
	if len(s) < len(dataURLPrefix) || s[:len(dataURLPrefix)] != dataURLPrefix {
		return nil, errors.New("not a PNG data URL")
	}
	return base64.StdEncoding.DecodeString(s[len(dataURLPrefix):])
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// encryptAES seals data with AES-GCM; the token is nonce || ciphertext || tag.
func encryptAES(data []byte, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, data, nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

func decryptAES(token string, key []byte) ([]byte, error) {
	sealed, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid QR token encoding: %w", err)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize()+gcm.Overhead() {
		return nil, errors.New("QR token too short")
	}

	nonce, body := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, errors.New("QR token failed authentication")
	}
	return plain, nil
}
