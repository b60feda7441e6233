package types

import (
	"errors"

	errorsmod "cosmossdk.io/errors"
)

// ModuleName is the codespace of every error raised by the bridge
const ModuleName = "bridge"

// InternalErrorCode is the result code of errors that are not bridge errors
const InternalErrorCode uint32 = 1

// Result codes start at 2, code 1 is reserved for internal errors
var (
	ErrPermissionDenied       = errorsmod.Register(ModuleName, 2, "permission denied")
	ErrBridgeInactive         = errorsmod.Register(ModuleName, 3, "bridge is not active")
	ErrMappingNotFound        = errorsmod.Register(ModuleName, 4, "token mapping not found")
	ErrDuplicateClaim         = errorsmod.Register(ModuleName, 5, "duplicate claim")
	ErrOverflowSupply         = errorsmod.Register(ModuleName, 6, "amount overflows the maximum supply")
	ErrConflictingAttestation = errorsmod.Register(ModuleName, 7, "conflicting attestation")
	ErrInvalidRequest         = errorsmod.Register(ModuleName, 8, "invalid request")
	ErrInsufficientFunds      = errorsmod.Register(ModuleName, 9, "insufficient funds")
	ErrNotFound               = errorsmod.Register(ModuleName, 10, "not found")
	ErrUnknownOrchestrator    = errorsmod.Register(ModuleName, 11, "orchestrator is not in the validator set")
	ErrInvalidSignature       = errorsmod.Register(ModuleName, 12, "invalid signature")
	ErrVoucherRedeemed        = errorsmod.Register(ModuleName, 13, "voucher does not exist or is already redeemed")
	ErrInvalidParams          = errorsmod.Register(ModuleName, 14, "invalid params")
)

// ResultCode returns the non-zero result code of the given error (0 for nil, 1 for internal errors)
func ResultCode(err error) uint32 {
	if err == nil {
		return 0
	}

	var coded *errorsmod.Error
	if errors.As(err, &coded) {
		return coded.ABCICode()
	}

	_, code, _ := errorsmod.ABCIInfo(err, false)

	return code
}
