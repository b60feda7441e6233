package metrics

import (
	"time"

	"github.com/armon/go-metrics"
)

const (
	// BridgeMetricsPrefix is a bridge-related metrics prefix
	BridgeMetricsPrefix = "bridge"
)

// IncrClaimSubmitted counts claims accepted by the attestation store
func IncrClaimSubmitted(kind string) {
	metrics.IncrCounterWithLabels([]string{BridgeMetricsPrefix, "claims_submitted"}, 1,
		[]metrics.Label{{Name: "kind", Value: kind}})
}

// IncrClaimRejected counts claims rejected with a result code
func IncrClaimRejected(reason string) {
	metrics.IncrCounterWithLabels([]string{BridgeMetricsPrefix, "claims_rejected"}, 1,
		[]metrics.Label{{Name: "reason", Value: reason}})
}

// IncrAttestationObserved counts attestations applied to state
func IncrAttestationObserved(kind string) {
	metrics.IncrCounterWithLabels([]string{BridgeMetricsPrefix, "attestations_observed"}, 1,
		[]metrics.Label{{Name: "kind", Value: kind}})
}

// IncrClaimInvalid counts attested events that could not be applied
func IncrClaimInvalid(kind string) {
	metrics.IncrCounterWithLabels([]string{BridgeMetricsPrefix, "claims_invalid"}, 1,
		[]metrics.Label{{Name: "kind", Value: kind}})
}

// IncrAttestationHalted counts attestations halted by conflicting claims
func IncrAttestationHalted() {
	metrics.IncrCounter([]string{BridgeMetricsPrefix, "attestations_halted"}, 1)
}

// IncrBatchCut counts outgoing batches cut from the pool
func IncrBatchCut(transfers int) {
	metrics.IncrCounter([]string{BridgeMetricsPrefix, "batches_cut"}, 1)
	metrics.AddSample([]string{BridgeMetricsPrefix, "batch_size"}, float32(transfers))
}

// IncrBatchExecuted counts batches executed on the external chain
func IncrBatchExecuted() {
	metrics.IncrCounter([]string{BridgeMetricsPrefix, "batches_executed"}, 1)
}

// IncrBatchTimedOut counts batches returned to the pool after their timeout
func IncrBatchTimedOut() {
	metrics.IncrCounter([]string{BridgeMetricsPrefix, "batches_timed_out"}, 1)
}

// IncrVoucherCreated counts vouchers created for reverted transfers
func IncrVoucherCreated() {
	metrics.IncrCounter([]string{BridgeMetricsPrefix, "vouchers_created"}, 1)
}

// IncrVoucherRedeemed counts redeemed vouchers
func IncrVoucherRedeemed() {
	metrics.IncrCounter([]string{BridgeMetricsPrefix, "vouchers_redeemed"}, 1)
}

// SetBridgeActive updates the bridge switch gauge
func SetBridgeActive(active bool) {
	value := float32(0)
	if active {
		value = 1
	}

	metrics.SetGauge([]string{BridgeMetricsPrefix, "bridge_active"}, value)
}

// SetPendingTransfers updates the number of transfers waiting in the pool
func SetPendingTransfers(count int) {
	metrics.SetGauge([]string{BridgeMetricsPrefix, "pending_transfers"}, float32(count))
}

// SetLastObservedNonce updates the last applied event nonce of a source contract
func SetLastObservedNonce(space string, nonce uint64) {
	metrics.SetGaugeWithLabels([]string{BridgeMetricsPrefix, "last_observed_nonce"}, float32(nonce),
		[]metrics.Label{{Name: "space", Value: space}})
}

// UpdateMessageExecutionMetric updates the message execution time metric
func UpdateMessageExecutionMetric(msg string, start time.Time) {
	metrics.MeasureSinceWithLabels([]string{BridgeMetricsPrefix, "message_execution_time"}, start,
		[]metrics.Label{{Name: "msg", Value: msg}})
}
