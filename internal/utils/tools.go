package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// CheckPasswordStrength validates the password policy: at least 8
// characters with an upper, a lower, a digit and a special character.
func CheckPasswordStrength(password string) []string {
	var issues []string

	if len(password) < 8 {
		issues = append(issues, "password must be at least 8 characters long")
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !hasUpper {
		issues = append(issues, "password must contain at least one uppercase letter")
	}
	if !hasLower {
		issues = append(issues, "password must contain at least one lowercase letter")
	}
	if !hasDigit {
		issues = append(issues, "password must contain at least one number")
	}
	if !hasSpecial {
		issues = append(issues, "password must contain at least one special character")
	}

	return issues
}

// RandomToken returns a URL-safe random string of n bytes of entropy.
func RandomToken(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// NewAPIKey returns a plaintext API key with the service prefix.
func NewAPIKey() string {
	return "nda_" + RandomToken(32)
}

// HashToken is used for API keys and mailed auth tokens; only the digest is
// persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

var unsafeFilenameChars = regexp.MustCompile(`[^\w\s.-]`)
var filenameSeparators = regexp.MustCompile(`[\s-]+`)

// SanitizeFilename strips characters unsafe for storage paths.
func SanitizeFilename(name string) string {
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = filenameSeparators.ReplaceAllString(name, "-")
	return strings.Trim(name, "-.")
}

// SecureFilename builds a collision-free storage name scoped by owner.
func SecureFilename(originalName, ownerID string) string {
	ext := ""
	if idx := strings.LastIndex(originalName, "."); idx >= 0 {
		ext = originalName[idx:]
	}
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s_%s%s", ownerID, timestamp, RandomToken(8), ext)
}
