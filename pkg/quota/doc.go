// Package quota implements the per-subject point ledger that protects
// the shared upstream advertising API quota.
//
// # Model
//
// Every call charges points: reads cost less than writes. The balance
// decays linearly to zero over the tier's decay window while the
// subject is idle. Exceeding the point ceiling triggers a block window
// during which all calls are refused. The upstream platform's own
// throttle feedback can extend (never shorten) a block window.
//
// # Usage
//
//	tier, _ := config.TierFor(config.TierStandard)
//	ledger := quota.NewLedger(tier)
//
//	res := ledger.Admit(subject, false)
//	if res.Allowed {
//	    ledger.Record(subject, false)
//	    // make the call
//	}
//
// Admission and charging are separate so the executor can charge
// optimistically before the network call; see pkg/upstream.
package quota
