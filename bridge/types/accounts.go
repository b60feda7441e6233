package types

import "github.com/furyaxyz/elysium-bridge/crypto"

var (
	// ModuleAccount holds escrowed coins of outbound transfers and auto-deployed tokens
	ModuleAccount = crypto.ModuleAddress(ModuleName)
	// GovernanceAuthority is the signer of passed governance proposals
	GovernanceAuthority = crypto.ModuleAddress("gov")
)
