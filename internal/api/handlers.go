package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Maphikza/safesocial-coordinator.git/internal/multisig"
	"github.com/Maphikza/safesocial-coordinator.git/lib/utils"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response:", err)
	}
}

// writeError renders err with the status its kind maps to.
func writeError(w http.ResponseWriter, err error) {
	kind := multisig.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		log.Error("Request failed:", err)
		writeJSON(w, status, ErrorResponse{Error: "internal", Message: "internal server error"})
		return
	}
	writeJSON(w, status, ErrorResponse{Error: string(kind), Message: err.Error()})
}

func statusFor(kind multisig.Kind) int {
	switch kind {
	case multisig.KindInvalidRequest, multisig.KindMalformedSignature, multisig.KindInvalidNonce,
		multisig.KindInvalidOwner, multisig.KindThresholdViolation:
		return http.StatusBadRequest
	case multisig.KindNotAnOwner, multisig.KindInvalidSignature:
		return http.StatusForbidden
	case multisig.KindNotFound:
		return http.StatusNotFound
	case multisig.KindDuplicateOperation, multisig.KindDuplicateWallet, multisig.KindDuplicateSigner,
		multisig.KindInvalidState, multisig.KindConflict:
		return http.StatusConflict
	case multisig.KindExternalSubmissionFailed:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func badRequest(format string, args ...interface{}) error {
	return &multisig.Error{Kind: multisig.KindInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is empty")
		}
		return badRequest("cannot parse JSON: %v", err)
	}
	return nil
}

// actor resolves who is acting on a request: the token holder, or claimed
// when it names that same address.
func actor(r *http.Request, claimed string) (string, error) {
	claims, ok := ClaimsFrom(r.Context())
	if !ok {
		return "", &multisig.Error{Kind: multisig.KindNotAnOwner, Message: "no authenticated address"}
	}
	if claimed != "" && !utils.SameAddress(claimed, claims.Address) {
		return "", &multisig.Error{
			Kind:    multisig.KindNotAnOwner,
			Message: fmt.Sprintf("token was issued to %s, not %s", claims.Address, claimed),
		}
	}
	return claims.Address, nil
}
