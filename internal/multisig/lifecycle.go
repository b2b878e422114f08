package multisig

import (
	"time"

	"github.com/google/uuid"
)

// Sign records signer's approval. The signature must already be validated
// for shape; ownership and uniqueness are checked here against the loaded
// state. Reaching the threshold moves PENDING to READY. Signatures arriving
// while READY are still recorded.
func (s *TxState) Sign(signer string, sig []byte, now time.Time) (*Signature, error) {
	owner, err := CanAcceptSignature(&s.Tx, s.Signatures, s.Owners, signer)
	if err != nil {
		return nil, err
	}

	record := Signature{
		ID:            uuid.NewString(),
		TransactionID: s.Tx.ID,
		OwnerID:       owner.ID,
		SignerAddress: signer,
		Signature:     append([]byte(nil), sig...),
		SignedAt:      now,
	}
	s.Signatures = append(s.Signatures, record)
	s.Added = append(s.Added, record)

	if s.Tx.Status == StatusPending && s.IsReady() {
		s.Tx.Status = StatusReady
	}
	return &record, nil
}

// Cancel withdraws an open proposal. Only an active owner may cancel.
func (s *TxState) Cancel(by string, now time.Time) error {
	if !s.Tx.Status.Open() {
		return newError(KindInvalidState, "cannot cancel transaction with status %s", s.Tx.Status)
	}
	if _, ok := FindOwner(s.Owners, by); !ok {
		return newError(KindNotAnOwner, "%s is not an active owner of this wallet", by)
	}
	s.Tx.Status = StatusCancelled
	s.Tx.CancelledBy = by
	s.Tx.CancelledAt = &now
	return nil
}

// MarkExecuted records a successful on-chain execution. The wallet nonce
// moves past the executed one, and any governance effect is applied. A
// governance effect that no longer fits the wallet is reported through the
// returned error while the execution itself stays recorded.
func (s *TxState) MarkExecuted(chainTxHash, by string, now time.Time) (governanceErr error, err error) {
	if err := s.requireReady("executed"); err != nil {
		return nil, err
	}
	s.Tx.Status = StatusExecuted
	s.recordExecution(chainTxHash, by, now)

	if s.Tx.Nonce >= s.Wallet.NextNonce {
		s.Wallet.NextNonce = s.Tx.Nonce + 1
		s.WalletUpdated = true
	}
	if s.Tx.Type.Governance() {
		governanceErr = s.applyGovernance(now)
	}
	return governanceErr, nil
}

// MarkFailed records a rejected or reverted execution attempt.
func (s *TxState) MarkFailed(chainTxHash, by string, now time.Time) error {
	if err := s.requireReady("failed"); err != nil {
		return err
	}
	s.Tx.Status = StatusFailed
	s.recordExecution(chainTxHash, by, now)
	return nil
}

func (s *TxState) requireReady(target string) error {
	if s.Tx.Status != StatusReady {
		return newError(KindInvalidState, "cannot mark transaction %s from status %s", target, s.Tx.Status)
	}
	return nil
}

func (s *TxState) recordExecution(chainTxHash, by string, now time.Time) {
	s.Tx.ExecutedAt = &now
	s.Tx.ExecutionTxHash = chainTxHash
	s.Tx.ExecutedBy = by
}
