package api

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	coordinatordb "github.com/Maphikza/safesocial-coordinator.git/internal/database"
	"github.com/Maphikza/safesocial-coordinator.git/internal/multisig"
	"github.com/Maphikza/safesocial-coordinator.git/lib/signatures"
	"github.com/Maphikza/safesocial-coordinator.git/lib/utils"
)

func (s *API) HandleCreateWallet(w http.ResponseWriter, r *http.Request) {
	var req CreateWalletRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if _, err := actor(r, ""); err != nil {
		writeError(w, err)
		return
	}

	wallet, owners, err := s.Service.CreateWallet(r.Context(), multisig.CreateWalletRequest{
		Address:        req.Address,
		Name:           req.Name,
		Owners:         req.Owners,
		Threshold:      req.Threshold,
		ChainID:        req.ChainID,
		CreationTxHash: req.CreationTxHash,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, WalletResponse{Wallet: wallet, Owners: owners})
}

func (s *API) HandleGetWallet(w http.ResponseWriter, r *http.Request) {
	wallet, owners, err := s.Service.GetWallet(r.Context(), r.PathValue("address"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, WalletResponse{Wallet: wallet, Owners: owners})
}

// HandleRenameOwner changes an owner's display name. Any active owner of the
// wallet may rename any other.
func (s *API) HandleRenameOwner(w http.ResponseWriter, r *http.Request) {
	var req RenameOwnerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	by, err := actor(r, "")
	if err != nil {
		writeError(w, err)
		return
	}

	walletAddress := r.PathValue("address")
	_, owners, err := s.Service.GetWallet(r.Context(), walletAddress)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, ok := multisig.FindOwner(owners, by); !ok {
		writeError(w, &multisig.Error{Kind: multisig.KindNotAnOwner, Message: by + " is not an owner of this wallet"})
		return
	}

	if err := s.Service.RenameOwner(r.Context(), walletAddress, r.PathValue("owner"), req.Name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *API) HandleChallengeRequest(w http.ResponseWriter, r *http.Request) {
	challenge, hash, err := generateChallenge()
	if err != nil {
		http.Error(w, "Failed to generate challenge", http.StatusInternalServerError)
		return
	}

	err = s.Challenges.SaveChallenge(r.Context(), coordinatordb.Challenge{
		Challenge: challenge,
		Hash:      hash,
		Status:    coordinatordb.ChallengeStatusUnused,
		CreatedAt: time.Now(),
	})
	if err != nil {
		log.Error("Failed to save challenge:", err)
		http.Error(w, "Failed to save challenge", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, ChallengeResponse{Challenge: challenge, Hash: hash})
}

func generateChallenge() (string, string, error) {
	timestamp := time.Now().Format(time.RFC3339Nano)
	letters := []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	challenge := make([]byte, 12)
	_, err := rand.Read(challenge)
	if err != nil {
		return "", "", err
	}
	for i := range challenge {
		challenge[i] = letters[challenge[i]%byte(len(letters))]
	}
	fullChallenge := fmt.Sprintf("%s-%s", string(challenge), timestamp)
	return fullChallenge, challengeHash(fullChallenge), nil
}

func challengeHash(challenge string) string {
	hash := sha256.Sum256([]byte(challenge))
	return hex.EncodeToString(hash[:])
}

// VerifyChallenge exchanges a personal_sign signature over an unused
// challenge for a token bound to the signing address.
func (s *API) VerifyChallenge(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	if err := s.Challenges.ExpireOldChallenges(ctx); err != nil {
		log.Warn("Failed to expire old challenges:", err)
	}

	challenge, err := s.Challenges.GetChallenge(ctx, challengeHash(req.Challenge))
	if err != nil || challenge.Status != coordinatordb.ChallengeStatusUnused {
		http.Error(w, "Invalid or expired challenge", http.StatusUnauthorized)
		return
	}
	if time.Since(challenge.CreatedAt) > coordinatordb.ChallengeTTL {
		http.Error(w, "Challenge expired", http.StatusUnauthorized)
		return
	}

	sig, err := signatures.Validate(req.Signature)
	if err != nil {
		http.Error(w, "Malformed signature", http.StatusBadRequest)
		return
	}
	recovered, err := signatures.RecoverSigner(signatures.TextHash([]byte(req.Challenge)), sig)
	if err != nil || !utils.SameAddress(recovered, req.Address) {
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	if err := s.Challenges.MarkChallengeAsUsed(ctx, challenge.Hash, recovered); err != nil {
		http.Error(w, "Invalid or expired challenge", http.StatusUnauthorized)
		return
	}

	tokenString, err := GenerateJWT(recovered)
	if err != nil {
		log.Error("Failed to generate token:", err)
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": tokenString, "address": recovered})
}
