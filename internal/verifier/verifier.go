// verifier.go - Checks spend and output proofs, spend authorization and
// binding signatures.

// Package verifier validates descriptions produced by a proving session.
package verifier

import (
	"bytes"
	"context"
	"fmt"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"golang.org/x/sync/errgroup"

	"saplingcore/internal/circuit"
	"saplingcore/internal/jubjub"
	"saplingcore/internal/params"
	"saplingcore/internal/prover"
	"saplingcore/internal/redjubjub"
	"saplingcore/internal/saplingerr"
)

func verifyProof(op string, keys params.Keys, raw []byte, public frontend.Circuit) error {
	w, err := frontend.NewWitness(public, params.Curve.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return saplingerr.Wrap(saplingerr.InvalidInput, op, fmt.Errorf("public witness creation failed: %w", err))
	}
	proof := groth16.NewProof(params.Curve)
	if _, err := proof.ReadFrom(bytes.NewReader(raw)); err != nil {
		return saplingerr.Wrap(saplingerr.InvalidInput, op, fmt.Errorf("proof unmarshaling failed: %w", err))
	}
	if err := groth16.Verify(proof, keys.VK, w); err != nil {
		return saplingerr.Wrap(saplingerr.InvalidInput, op, fmt.Errorf("proof verification failed: %w", err))
	}
	return nil
}

// VerifySpend checks the spend proof and, when attached, the spend
// authorization signature over sighash under rk.
func VerifySpend(d *prover.SpendDescription, sighash [32]byte) error {
	const op = "verifier.VerifySpend"
	set, err := params.Get()
	if err != nil {
		return err
	}
	var public circuit.SpendCircuit
	d.Public().Assign(&public)
	if err := verifyProof(op, set.Spend, d.Proof, &public); err != nil {
		return err
	}
	if d.SpendAuthSig != nil && !redjubjub.Verify(&d.Rk, sighash[:], *d.SpendAuthSig, &jubjub.Bases().SpendAuth) {
		return saplingerr.New(saplingerr.InvalidInput, op, "spend authorization signature is invalid")
	}
	return nil
}

// VerifyOutput checks the output proof.
func VerifyOutput(d *prover.OutputDescription) error {
	set, err := params.Get()
	if err != nil {
		return err
	}
	var public circuit.OutputCircuit
	d.Public().Assign(&public)
	return verifyProof("verifier.VerifyOutput", set.Output, d.Proof, &public)
}

// VerifyBinding recomputes bvk from the descriptions and checks sig.
func VerifyBinding(spends []*prover.SpendDescription, outputs []*prover.OutputDescription, valueBalance int64, sighash [32]byte, sig redjubjub.Signature) error {
	cvSum := jubjub.Identity()
	for _, s := range spends {
		cvSum = jubjub.Add(&cvSum, &s.Cv)
	}
	for _, o := range outputs {
		cvSum = jubjub.Sub(&cvSum, &o.Cv)
	}
	bvk := prover.BindingKey(&cvSum, valueBalance)
	if !redjubjub.Verify(&bvk, sighash[:], sig, &jubjub.Bases().ValueRandomness) {
		return saplingerr.New(saplingerr.UnbalancedTransaction, "verifier.VerifyBinding", "binding signature does not verify")
	}
	return nil
}

// Bundle is everything a transaction publishes about its shielded part.
type Bundle struct {
	Spends           []*prover.SpendDescription
	Outputs          []*prover.OutputDescription
	ValueBalance     int64
	BindingSignature redjubjub.Signature
}

// VerifyBundle checks the binding signature, then every proof concurrently.
// The first failure cancels the remaining checks.
func VerifyBundle(ctx context.Context, b *Bundle, sighash [32]byte) error {
	if err := VerifyBinding(b.Spends, b.Outputs, b.ValueBalance, sighash, b.BindingSignature); err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	for i, s := range b.Spends {
		i, s := i, s
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := VerifySpend(s, sighash); err != nil {
				return fmt.Errorf("spend %d: %w", i, err)
			}
			return nil
		})
	}
	for i, o := range b.Outputs {
		i, o := i, o
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := VerifyOutput(o); err != nil {
				return fmt.Errorf("output %d: %w", i, err)
			}
			return nil
		})
	}
	return g.Wait()
}
