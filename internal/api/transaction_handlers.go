package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Maphikza/safesocial-coordinator.git/internal/multisig"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// HandlePropose records a new operation proposed by the token holder.
func (s *API) HandlePropose(w http.ResponseWriter, r *http.Request) {
	var req ProposeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	proposer, err := actor(r, "")
	if err != nil {
		writeError(w, err)
		return
	}

	var data []byte
	if req.Data != "" && req.Data != "0x" {
		if data, err = hexutil.Decode(req.Data); err != nil {
			writeError(w, badRequest("data is not 0x-prefixed hex: %v", err))
			return
		}
	}

	tx, err := s.Service.Propose(r.Context(), multisig.ProposeRequest{
		WalletAddress: req.WalletAddress,
		To:            req.To,
		Value:         req.Value,
		Data:          data,
		Type:          req.Type,
		Description:   req.Description,
		Nonce:         req.Nonce,
		CreatedBy:     proposer,
		UsePaymaster:  req.UsePaymaster,
		TargetOwner:   req.TargetOwner,
		NewThreshold:  req.NewThreshold,
		OperationHash: req.OperationHash,
	})
	switch {
	case errors.Is(err, multisig.ErrDuplicateOperation) && tx != nil:
		writeJSON(w, http.StatusOK, ProposeResponse{Transaction: tx, Created: false})
	case err != nil:
		writeError(w, err)
	default:
		writeJSON(w, http.StatusCreated, ProposeResponse{Transaction: tx, Created: true})
	}
}

// HandleListTransactions lists a wallet's transactions, newest first.
// Query: wallet (required), status, limit.
func (s *API) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	walletAddress := query.Get("wallet")
	if walletAddress == "" {
		writeError(w, badRequest("wallet query parameter is required"))
		return
	}
	wallet, _, err := s.Service.GetWallet(r.Context(), walletAddress)
	if err != nil {
		writeError(w, err)
		return
	}

	filter := multisig.TransactionFilter{WalletID: wallet.ID}
	if v := query.Get("status"); v != "" {
		if filter.Status, err = multisig.ParseStatus(v); err != nil {
			writeError(w, badRequest("%v", err))
			return
		}
	}
	if v := query.Get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil || filter.Limit < 0 {
			writeError(w, badRequest("invalid limit %q", v))
			return
		}
	}

	txs, err := s.Service.ListTransactions(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if txs == nil {
		txs = []multisig.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *API) HandleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.Service.GetTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// HandleUpdateTransaction cancels a proposal or records the result of an
// execution made outside the coordinator.
func (s *API) HandleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req UpdateTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	by, err := actor(r, "")
	if err != nil {
		writeError(w, err)
		return
	}

	var tx *multisig.Transaction
	switch req.Action {
	case "cancel":
		tx, err = s.Service.Cancel(r.Context(), r.PathValue("id"), by)
	case "result":
		tx, err = s.Service.RecordExecutionResult(r.Context(), r.PathValue("id"), req.Success, req.TxHash, by)
	default:
		err = badRequest("unknown action %q", req.Action)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// HandleGetSignatures returns the signature status, or only the
// concatenated blob when concatenated=true.
func (s *API) HandleGetSignatures(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if r.URL.Query().Get("concatenated") == "true" {
		blob, err := s.Service.GetAggregatedSignature(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ConcatenatedResponse{TransactionID: id, ConcatenatedSignature: hexutil.Encode(blob)})
		return
	}

	status, err := s.Service.SignatureStatus(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// HandleSign records the token holder's signature.
func (s *API) HandleSign(w http.ResponseWriter, r *http.Request) {
	var req SignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	signer, err := actor(r, req.Signer)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.Service.Sign(r.Context(), r.PathValue("id"), signer, req.Signature)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *API) HandleExecute(w http.ResponseWriter, r *http.Request) {
	executor, err := actor(r, "")
	if err != nil {
		writeError(w, err)
		return
	}

	tx, err := s.Service.Execute(r.Context(), r.PathValue("id"), executor)
	if err != nil {
		if tx != nil && tx.Status == multisig.StatusFailed {
			writeJSON(w, http.StatusBadGateway, struct {
				ErrorResponse
				Transaction *multisig.Transaction `json:"transaction"`
			}{ErrorResponse{Error: string(multisig.KindOf(err)), Message: err.Error()}, tx})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}
