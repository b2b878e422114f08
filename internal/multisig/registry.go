package multisig

import (
	"time"

	"github.com/Maphikza/safesocial-coordinator.git/lib/utils"
	"github.com/google/uuid"
)

const (
	defaultWalletName = "SafeSocial Wallet"
	creatorOwnerName  = "Creator"
)

// ValidateThreshold enforces 1 <= threshold <= ownerCount.
func ValidateThreshold(threshold, ownerCount int) error {
	if threshold < 1 || threshold > ownerCount {
		return newError(KindThresholdViolation, "threshold %d must be between 1 and %d", threshold, ownerCount)
	}
	return nil
}

// NormalizeOwners brings every owner address into canonical form and
// rejects invalid or repeated entries.
func NormalizeOwners(addrs []string) ([]string, error) {
	if len(addrs) == 0 {
		return nil, newError(KindInvalidOwner, "at least one owner is required")
	}
	seen := make(map[string]struct{}, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		normalized, err := utils.NormalizeAddress(addr)
		if err != nil {
			return nil, wrapError(KindInvalidOwner, err, "invalid owner address")
		}
		if _, dup := seen[normalized]; dup {
			return nil, newError(KindInvalidOwner, "owner %s listed more than once", normalized)
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out, nil
}

// NewWallet validates a wallet registration and builds its records. The
// first owner is labelled as the creator.
func NewWallet(address, name string, owners []string, threshold int, chainID uint64, now time.Time) (*Wallet, []Owner, error) {
	walletAddr, err := utils.NormalizeAddress(address)
	if err != nil {
		return nil, nil, wrapError(KindInvalidRequest, err, "invalid wallet address")
	}
	normalized, err := NormalizeOwners(owners)
	if err != nil {
		return nil, nil, err
	}
	if err := ValidateThreshold(threshold, len(normalized)); err != nil {
		return nil, nil, err
	}
	if name == "" {
		name = defaultWalletName
	}

	w := &Wallet{
		ID:        uuid.NewString(),
		Address:   walletAddr,
		Name:      name,
		Threshold: threshold,
		ChainID:   chainID,
		CreatedAt: now,
	}
	records := make([]Owner, len(normalized))
	for i, addr := range normalized {
		records[i] = Owner{
			ID:       uuid.NewString(),
			WalletID: w.ID,
			Address:  addr,
			IsActive: true,
			AddedAt:  now,
		}
	}
	records[0].Name = creatorOwnerName
	return w, records, nil
}

// FindOwner looks signer up among owners, which are expected to be active.
func FindOwner(owners []Owner, signer string) (Owner, bool) {
	for _, o := range owners {
		if o.IsActive && o.Address == signer {
			return o, true
		}
	}
	return Owner{}, false
}

func activeCount(owners []Owner) int {
	n := 0
	for _, o := range owners {
		if o.IsActive {
			n++
		}
	}
	return n
}

// ValidateGovernance checks an owner or threshold change against the
// current owner set before it is proposed.
func ValidateGovernance(typ Type, w Wallet, owners []Owner, target string, newThreshold int) error {
	active := activeCount(owners)
	switch typ {
	case TypeAddOwner:
		if target == "" {
			return newError(KindInvalidOwner, "owner to add is required")
		}
		if _, ok := FindOwner(owners, target); ok {
			return newError(KindInvalidOwner, "%s is already an owner", target)
		}
	case TypeRemoveOwner:
		if target == "" {
			return newError(KindInvalidOwner, "owner to remove is required")
		}
		if _, ok := FindOwner(owners, target); !ok {
			return newError(KindNotAnOwner, "%s is not an active owner", target)
		}
		if err := ValidateThreshold(w.Threshold, active-1); err != nil {
			return err
		}
	case TypeChangeThreshold:
		if err := ValidateThreshold(newThreshold, active); err != nil {
			return err
		}
		if newThreshold == w.Threshold {
			return newError(KindInvalidRequest, "threshold is already %d", newThreshold)
		}
	}
	return nil
}

// applyGovernance applies an executed owner or threshold change to the
// loaded state. Owners are deactivated, never deleted.
func (s *TxState) applyGovernance(now time.Time) error {
	if err := ValidateGovernance(s.Tx.Type, s.Wallet, s.Owners, s.Tx.TargetOwner, s.Tx.NewThreshold); err != nil {
		return err
	}

	switch s.Tx.Type {
	case TypeAddOwner:
		owner := Owner{
			ID:       uuid.NewString(),
			WalletID: s.Wallet.ID,
			Address:  s.Tx.TargetOwner,
			IsActive: true,
			AddedAt:  now,
		}
		s.Owners = append(s.Owners, owner)
		s.OwnerUpdates = append(s.OwnerUpdates, owner)
	case TypeRemoveOwner:
		for i := range s.Owners {
			if s.Owners[i].Address == s.Tx.TargetOwner {
				removedAt := now
				s.Owners[i].IsActive = false
				s.Owners[i].RemovedAt = &removedAt
				s.OwnerUpdates = append(s.OwnerUpdates, s.Owners[i])
			}
		}
	case TypeChangeThreshold:
		s.Wallet.Threshold = s.Tx.NewThreshold
		s.WalletUpdated = true
	}
	return nil
}
