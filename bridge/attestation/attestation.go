package attestation

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sort"

	"github.com/Ethernal-Tech/ethgo"

	"github.com/furyaxyz/elysium-bridge/bridge/validator"
)

// Status is the tag of the attestation variant
type Status uint8

const (
	// StatusPending collects votes by claim hash
	StatusPending Status = iota
	// StatusResolved has exactly one canonical claim hash
	StatusResolved
	// StatusHalted is a safety violation, no hash is applied until governance resolves it
	StatusHalted
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusResolved:
		return "resolved"
	case StatusHalted:
		return "halted"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Vote is a single orchestrator claim on a nonce
type Vote struct {
	Orchestrator ethgo.Address `json:"orchestrator"`
	Hash         ethgo.Hash    `json:"hash"`
	Height       uint64        `json:"height"`
}

// Attestation aggregates the claims of all orchestrators for one nonce of one nonce space
type Attestation struct {
	Space  string `json:"space"`
	Nonce  uint64 `json:"nonce"`
	Status Status `json:"status"`

	// Votes keeps one vote per orchestrator in arrival order
	Votes []*Vote `json:"votes"`
	// Claims holds the claimed payload per claim hash
	Claims map[ethgo.Hash]json.RawMessage `json:"claims"`

	// Validators is the signer set bound to this nonce when its first claim arrived
	Validators validator.AccountSet `json:"validators"`
	Quorum     validator.Quorum     `json:"quorum"`

	// ResolvedHash is set in the resolved state, the zero hash means the nonce was skipped
	ResolvedHash ethgo.Hash `json:"resolvedHash,omitempty"`
	// HaltedHashes lists the competing hashes in the halted state
	HaltedHashes []ethgo.Hash `json:"haltedHashes,omitempty"`

	Applied bool   `json:"applied"`
	Height  uint64 `json:"height"`
}

func newAttestation(space string, nonce uint64, set validator.ValidatorSet, height uint64) *Attestation {
	return &Attestation{
		Space:      space,
		Nonce:      nonce,
		Status:     StatusPending,
		Votes:      []*Vote{},
		Claims:     map[ethgo.Hash]json.RawMessage{},
		Validators: set.Accounts().Copy(),
		Quorum:     set.Quorum(),
		Height:     height,
	}
}

func (a *Attestation) validatorSet() validator.ValidatorSet {
	return validator.NewValidatorSet(a.Validators, a.Quorum)
}

// HasVoted reports whether the orchestrator already voted on this nonce
func (a *Attestation) HasVoted(orchestrator ethgo.Address) bool {
	for _, v := range a.Votes {
		if v.Orchestrator == orchestrator {
			return true
		}
	}

	return false
}

// PowerByHash returns the accumulated stake per distinct claim hash
func (a *Attestation) PowerByHash() map[ethgo.Hash]*big.Int {
	set := a.validatorSet()
	signers := map[ethgo.Hash]map[ethgo.Address]struct{}{}

	for _, v := range a.Votes {
		if _, ok := signers[v.Hash]; !ok {
			signers[v.Hash] = map[ethgo.Address]struct{}{}
		}

		signers[v.Hash][v.Orchestrator] = struct{}{}
	}

	result := make(map[ethgo.Hash]*big.Int, len(signers))
	for hash, s := range signers {
		result[hash] = set.VotingPower(s)
	}

	return result
}

// Hashes returns the distinct claimed hashes sorted by power desc, then by hash
func (a *Attestation) Hashes() []ethgo.Hash {
	power := a.PowerByHash()
	hashes := make([]ethgo.Hash, 0, len(power))

	for h := range power {
		hashes = append(hashes, h)
	}

	sort.Slice(hashes, func(i, j int) bool {
		if c := power[hashes[i]].Cmp(power[hashes[j]]); c != 0 {
			return c > 0
		}

		return hashes[i].String() < hashes[j].String()
	})

	return hashes
}

// ResolvedClaim returns the payload of the canonical claim
func (a *Attestation) ResolvedClaim() (json.RawMessage, bool) {
	if a.Status != StatusResolved || a.ResolvedHash == ethgo.ZeroHash {
		return nil, false
	}

	claim, ok := a.Claims[a.ResolvedHash]

	return claim, ok
}

// tally moves the attestation to the next state after a vote was added.
// It returns true when the attestation became halted.
func (a *Attestation) tally() bool {
	set := a.validatorSet()
	total := set.TotalVotingPower()
	power := a.PowerByHash()

	switch a.Status {
	case StatusPending:
		var reached []ethgo.Hash

		for _, h := range a.Hashes() {
			if a.Quorum.Reached(power[h], total) {
				reached = append(reached, h)
			}
		}

		switch {
		case len(reached) == 1:
			a.Status = StatusResolved
			a.ResolvedHash = reached[0]
		case len(reached) > 1:
			a.halt(reached)

			return true
		case len(power) > 1 && !a.quorumReachable(power, total):
			a.halt(a.Hashes())

			return true
		}
	case StatusResolved:
		if a.Applied {
			return false
		}

		for h, p := range power {
			if h != a.ResolvedHash && a.Quorum.Reached(p, total) {
				a.halt([]ethgo.Hash{a.ResolvedHash, h})

				return true
			}
		}
	case StatusHalted:
	}

	return false
}

// quorumReachable reports whether any hash can still reach quorum with the stake that did not vote yet
func (a *Attestation) quorumReachable(power map[ethgo.Hash]*big.Int, total *big.Int) bool {
	voted := new(big.Int)
	for _, p := range power {
		voted.Add(voted, p)
	}

	remaining := new(big.Int).Sub(total, voted)

	for _, p := range power {
		if a.Quorum.Reached(new(big.Int).Add(p, remaining), total) {
			return true
		}
	}

	return false
}

func (a *Attestation) halt(hashes []ethgo.Hash) {
	a.Status = StatusHalted
	a.ResolvedHash = ethgo.ZeroHash
	a.HaltedHashes = hashes
}
