//go:build property
// +build property

package settlement_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/BIGmindz/ChainBridge-sub000/pkg/contracts"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/settlement"
)

// TestVerdictBiconditionalProperty: for any combination of withheld
// evidence streams, status is ELIGIBLE exactly when the blocking-reason
// list is empty, and ELIGIBLE holds only when nothing was withheld.
func TestVerdictBiconditionalProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("ELIGIBLE iff zero blocking reasons", prop.ForAll(
		func(dropSet, dropRG01, dropBSRG01, dropBER, dropSignals, dropClosures, dropLedger bool) bool {
			f := passingFixture()
			if dropSet {
				f.set = nil
			}
			if dropRG01 {
				f.rg01 = nil
			}
			if dropBSRG01 {
				f.bsrg01 = nil
			}
			if dropBER {
				f.pac.BER = nil
			}
			if dropSignals {
				f.signals = nil
			}
			if dropClosures {
				f.closures = nil
			}
			if dropLedger {
				f.attestation = nil
			}

			e := settlement.NewEvaluator(0).WithClock(fixedClock())
			v, err := e.Evaluate(f.pac, f.set, f.rg01, f.bsrg01, f.signals, f.closures, f.attestation)
			if err != nil {
				return false
			}

			biconditional := (v.Status == contracts.VerdictEligible) == (len(v.BlockingReasons) == 0)
			anyDropped := dropSet || dropRG01 || dropBSRG01 || dropBER || dropSignals || dropClosures || dropLedger
			return biconditional && (v.Status == contracts.VerdictEligible) == !anyDropped
		},
		gen.Bool(), gen.Bool(), gen.Bool(), gen.Bool(), gen.Bool(), gen.Bool(), gen.Bool(),
	))

	properties.TestingRun(t)
}
