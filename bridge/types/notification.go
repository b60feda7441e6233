package types

// NotificationKind identifies a state change emitted by the bridge core
type NotificationKind string

const (
	NotifyClaimApplied      NotificationKind = "claim_applied"
	NotifyClaimInvalid      NotificationKind = "claim_invalid"
	NotifyAttestationHalted NotificationKind = "attestation_halted"
	NotifyTransferQueued    NotificationKind = "transfer_queued"
	NotifyTransferCancelled NotificationKind = "transfer_cancelled"
	NotifyBatchCut          NotificationKind = "batch_cut"
	NotifyBatchExecuted     NotificationKind = "batch_executed"
	NotifyBatchTimedOut     NotificationKind = "batch_timed_out"
	NotifyVoucherCreated    NotificationKind = "voucher_created"
	NotifyVoucherRedeemed   NotificationKind = "voucher_redeemed"
	NotifyValsetProposed    NotificationKind = "valset_proposed"
	NotifyValsetActivated   NotificationKind = "valset_activated"
	NotifyBridgeToggled     NotificationKind = "bridge_toggled"
	NotifyParamsUpdated     NotificationKind = "params_updated"
	NotifyMappingUpdated    NotificationKind = "mapping_updated"
	NotifyERC20Deployed     NotificationKind = "erc20_deployed"
	NotifyBalanceChanged    NotificationKind = "balance_changed"
)

// Notification is a state change published after a state transition commits
type Notification struct {
	Kind       NotificationKind  `json:"kind"`
	Height     uint64            `json:"height"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// NewNotification creates a notification from key/value pairs
func NewNotification(kind NotificationKind, height uint64, kv ...string) Notification {
	n := Notification{Kind: kind, Height: height}

	if len(kv) > 0 {
		n.Attributes = make(map[string]string, len(kv)/2)

		for i := 0; i+1 < len(kv); i += 2 {
			n.Attributes[kv[i]] = kv[i+1]
		}
	}

	return n
}
