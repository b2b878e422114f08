package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Maphikza/safesocial-coordinator.git/internal/multisig"
	"github.com/golang-jwt/jwt/v4"
	"github.com/spf13/viper"
)

func NewAPI(service *multisig.Service, challenges ChallengeStore, name string) *API {
	return &API{
		Service:    service,
		Challenges: challenges,
		Name:       name,
	}
}

// Routes registers every endpoint. Reads only need CORS; writes need a token
// from /verify.
func (s *API) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	public := func(h http.HandlerFunc) http.HandlerFunc {
		return ApplyMiddleware(h, s.CORSMiddleware, LoggingMiddleware, RequestIDMiddleware, ErrorMiddleware)
	}
	private := func(h http.HandlerFunc) http.HandlerFunc {
		return public(ApplyMiddleware(h, JSONContentTypeMiddleware, s.JWTMiddleware))
	}

	mux.HandleFunc("GET /challenge", public(s.HandleChallengeRequest))
	mux.HandleFunc("POST /verify", public(s.VerifyChallenge))

	mux.HandleFunc("POST /api/wallets", private(s.HandleCreateWallet))
	mux.HandleFunc("GET /api/wallets/{address}", public(s.HandleGetWallet))
	mux.HandleFunc("PATCH /api/wallets/{address}/owners/{owner}", private(s.HandleRenameOwner))

	mux.HandleFunc("POST /api/transactions", private(s.HandlePropose))
	mux.HandleFunc("GET /api/transactions", public(s.HandleListTransactions))
	mux.HandleFunc("GET /api/transactions/{id}", public(s.HandleGetTransaction))
	mux.HandleFunc("PATCH /api/transactions/{id}", private(s.HandleUpdateTransaction))
	mux.HandleFunc("GET /api/transactions/{id}/signatures", public(s.HandleGetSignatures))
	mux.HandleFunc("POST /api/transactions/{id}/signatures", private(s.HandleSign))
	mux.HandleFunc("POST /api/transactions/{id}/execute", private(s.HandleExecute))

	mux.HandleFunc("OPTIONS /", public(func(w http.ResponseWriter, r *http.Request) {}))
	return mux
}

// Serve listens on api_port until ctx is cancelled.
func (s *API) Serve(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", viper.GetInt("api_port")),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening on", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func (s *API) CORSMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allowedOrigin := viper.GetString("allowed_origin")
		w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PATCH")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	}
}

func (s *API) JWTMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized: Authorization header missing", http.StatusUnauthorized)
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			http.Error(w, "Unauthorized: Invalid token format", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return GetJWTKey(), nil
		})

		if err != nil {
			var validationErr *jwt.ValidationError
			if errors.As(err, &validationErr) && validationErr.Errors&jwt.ValidationErrorExpired != 0 {
				http.Error(w, "Token expired", http.StatusUnauthorized)
				return
			}
			log.Debug("Rejected token:", err)
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}

		if !token.Valid || claims.Address == "" {
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// ClaimsFrom returns the token claims JWTMiddleware attached to ctx.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}
