package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Maphikza/safesocial-coordinator.git/internal/logger"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/spf13/viper"
)

var log = logger.CategoryAPI

var jwtKey []byte

// Claims identifies the owner address a token was issued to.
type Claims struct {
	Address string `json:"address"`
	jwt.RegisteredClaims
}

// statusRecorder remembers the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs information about each request
func LoggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		log.Info(r.Method, r.URL.Path, rec.status, time.Since(start), "request_id="+RequestID(r.Context()))
	}
}

// JSONContentTypeMiddleware ensures that requests have the correct content type
func JSONContentTypeMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead && r.Method != http.MethodOptions {
			contentType := r.Header.Get("Content-Type")
			if !strings.Contains(contentType, "application/json") {
				http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
				return
			}
		}
		next.ServeHTTP(w, r)
	}
}

// ErrorMiddleware wraps the handler and catches any panics, returning them as 500 errors
func ErrorMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Error("Panic occurred:", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	}
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ApplyMiddleware applies a list of middleware to a handler
func ApplyMiddleware(h http.HandlerFunc, middleware ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	for _, m := range middleware {
		h = m(h)
	}
	return h
}

func GenerateJWTKey() ([]byte, error) {
	key := make([]byte, 32) // 256 bits
	_, err := rand.Read(key)
	if err != nil {
		return nil, fmt.Errorf("failed to generate JWT key: %v", err)
	}
	return key, nil
}

func jwtKeyPath(name string) string {
	return filepath.Join(viper.GetString("jwt_keys_dir"), name, "jwt_key")
}

func SaveJWTKey(key []byte, name string) error {
	encodedKey := base64.StdEncoding.EncodeToString(key)
	keyPath := jwtKeyPath(name)

	if err := os.WriteFile(keyPath, []byte(encodedKey), 0600); err != nil {
		log.Error("Error saving JWT key:", err)
		return fmt.Errorf("failed to save JWT key: %v", err)
	}

	log.Debug("JWT key saved at", keyPath)
	return nil
}

func LoadJWTKey(name string) ([]byte, error) {
	keyPath := jwtKeyPath(name)

	encodedKey, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read JWT key: %w", err)
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(encodedKey)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode JWT key: %v", err)
	}

	log.Debug("JWT key loaded from", keyPath)
	return key, nil
}

// InitJWTKey loads an existing key. It returns os.ErrNotExist when no key
// has been saved for name yet.
func InitJWTKey(name string) error {
	key, err := LoadJWTKey(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return os.ErrNotExist
		}
		return err
	}

	jwtKey = key
	return nil
}

func GetJWTKey() []byte {
	return jwtKey
}

// SetJWTKey installs key without touching disk.
func SetJWTKey(key []byte) {
	jwtKey = key
}

// EnsureJWTKey loads the key for name, generating and saving a new one when
// none exists yet.
func EnsureJWTKey(name string) error {
	err := InitJWTKey(name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	keyDir := filepath.Dir(jwtKeyPath(name))
	if err := os.MkdirAll(keyDir, 0700); err != nil {
		return fmt.Errorf("failed to create directory for JWT key: %v", err)
	}

	log.Info("Generating a new JWT key for", name)
	newKey, err := GenerateJWTKey()
	if err != nil {
		return err
	}
	if err := SaveJWTKey(newKey, name); err != nil {
		return err
	}

	jwtKey = newKey
	return nil
}

// GenerateJWT issues a 15 minute token for address.
func GenerateJWT(address string) (string, error) {
	signingKey := GetJWTKey()
	if signingKey == nil {
		return "", fmt.Errorf("JWT signing key not available")
	}

	now := time.Now()
	claims := &Claims{
		Address: address,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   address,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(signingKey)
}
