package multisig

// IsReady reports whether count distinct signatures meet threshold.
func IsReady(count, threshold int) bool {
	return count >= threshold
}

// Remaining is how many more signatures are needed, never negative.
func Remaining(count, threshold int) int {
	if count >= threshold {
		return 0
	}
	return threshold - count
}

// CanAcceptSignature decides whether signer may add a signature to tx given
// the signatures already recorded and the wallet's active owners. Checks run
// in a fixed order: lifecycle state, ownership, then uniqueness. The matching
// owner record is returned on success.
func CanAcceptSignature(tx *Transaction, sigs []Signature, owners []Owner, signer string) (Owner, error) {
	if !tx.Status.Open() {
		return Owner{}, newError(KindInvalidState, "cannot sign transaction with status %s", tx.Status)
	}
	owner, ok := FindOwner(owners, signer)
	if !ok {
		return Owner{}, newError(KindNotAnOwner, "%s is not an active owner of this wallet", signer)
	}
	for _, sig := range sigs {
		if sig.SignerAddress == signer {
			return Owner{}, DuplicateSigner(signer)
		}
	}
	return owner, nil
}

// IsReady reports whether the loaded signatures meet the wallet threshold.
func (s *TxState) IsReady() bool {
	return IsReady(len(s.Signatures), s.Wallet.Threshold)
}

// Remaining is the number of signatures still needed.
func (s *TxState) Remaining() int {
	return Remaining(len(s.Signatures), s.Wallet.Threshold)
}
