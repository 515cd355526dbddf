// Package password реализует хеширование паролей и одноразовых токенов сброса.
//
// GetHash создаёт bcrypt-хэш пароля для хранения, CompareHash проверяет введённый
// пароль против сохранённого хэша. Токены сброса хранятся только в виде SHA-256.
package password

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// Cost - стоимость bcrypt.
const Cost = 12

// ResetTokenTTL - время жизни токена сброса пароля.
const ResetTokenTTL = 10 * time.Minute

// GetHash принимает пароль пользователя и возвращает его bcrypt‑хэш.
func GetHash(password string) (string, error) {
	const op = "password.GetHash"
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), Cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashed), nil
}

// CompareHash сравнивает bcrypt‑хэш с введённым паролем.
//
// Возвращает nil, если пароль соответствует хэшу, иначе - ошибку.
func CompareHash(originalHash, externalPassword string) error {
	const op = "password.CompareHash"
	if err := bcrypt.CompareHashAndPassword([]byte(originalHash), []byte(externalPassword)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// HashToken возвращает hex SHA-256 от токена сброса.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// GenerateResetToken создаёт случайный токен сброса.
// raw уходит пользователю, digest сохраняется в базе.
func GenerateResetToken(now time.Time) (raw, digest string, expires time.Time, err error) {
	const op = "password.GenerateResetToken"
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	raw = hex.EncodeToString(buf)
	return raw, HashToken(raw), now.Add(ResetTokenTTL), nil
}

// Hasher ограничивает число одновременных bcrypt-операций.
type Hasher struct {
	sem *semaphore.Weighted
}

// NewHasher создаёт Hasher. При limit <= 0 используется GOMAXPROCS.
func NewHasher(limit int) *Hasher {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	return &Hasher{sem: semaphore.NewWeighted(int64(limit))}
}

// Hash - GetHash под семафором.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	const op = "password.Hasher.Hash"
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer h.sem.Release(1)
	return GetHash(password)
}

// Compare - CompareHash под семафором.
func (h *Hasher) Compare(ctx context.Context, hash, password string) error {
	const op = "password.Hasher.Compare"
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer h.sem.Release(1)
	return CompareHash(hash, password)
}
