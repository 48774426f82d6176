package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/casevault/backend/pkg/models"
)

/* ============================== JWT Claims ============================== */

// Claims is the JWT payload we issue and expect. Sub carries the advocate ID.
type Claims struct {
	Sub string `json:"sub"`
	jwt.RegisteredClaims
}

/* ============================== JWT Helpers ============================= */

// IssueToken signs a short-lived HS256 JWT for the given advocate.
func IssueToken(secret, advocateID string, ttl time.Duration) (string, error) {
	claims := &Claims{
		Sub: advocateID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}

// ParseToken verifies signature and expiry and returns the subject (advocate
// ID). Any failure yields an error; callers treat all of them as 401.
func ParseToken(secret, tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Sub == "" {
		return "", errors.New("invalid token claims")
	}
	return claims.Sub, nil
}

/* =========================== Password Helpers =========================== */

// HashPassword produces a salted bcrypt hash; never reversible.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

/* ============================ Authentication ============================ */

// Authenticate looks up an advocate by email and verifies the password.
// Absent, inactive, and wrong-password all return nil so callers cannot
// reveal which check failed.
func Authenticate(db *gorm.DB, email, password string) *models.Advocate {
	email = strings.ToLower(strings.TrimSpace(email))

	var adv models.Advocate
	if err := db.Where("email = ?", email).First(&adv).Error; err != nil {
		return nil
	}
	if !CheckPassword(password, adv.PasswordHash) {
		return nil
	}
	if !adv.IsActive {
		return nil
	}
	return &adv
}
