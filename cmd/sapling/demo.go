// demo.go - Funds a note, spends it and applies the bundle to a ledger.
package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"saplingcore/internal/jubjub"
	"saplingcore/internal/ledger"
	"saplingcore/internal/note"
	"saplingcore/internal/prover"
	"saplingcore/internal/random"
	"saplingcore/internal/redjubjub"
	"saplingcore/internal/verifier"
	"saplingcore/sapling"
)

type party struct {
	name      string
	xsk, xfvk []byte
	ivk, addr []byte
	encoded   string
}

func newParty(name string, fill byte, path string) (*party, error) {
	xsk, err := sapling.XSK(bytes.Repeat([]byte{fill}, 32), path)
	if err != nil {
		return nil, err
	}
	xfvk, err := sapling.XFVKFromXSK(xsk)
	if err != nil {
		return nil, err
	}
	ivk, err := sapling.IVKFromXFVK(xfvk)
	if err != nil {
		return nil, err
	}
	def, err := sapling.DefaultPaymentAddressFromXFVK(xfvk)
	if err != nil {
		return nil, err
	}
	addr := def[sapling.DiversifierIndexSize:]
	enc, err := sapling.EncodePaymentAddress(addr)
	if err != nil {
		return nil, err
	}
	return &party{name: name, xsk: xsk, xfvk: xfvk, ivk: ivk, addr: addr, encoded: enc}, nil
}

// fund appends a note of value for p and returns its rcm and position.
func fund(l *ledger.Ledger, p *party, value uint64) ([]byte, uint64, error) {
	rcm, err := sapling.RandR()
	if err != nil {
		return nil, 0, err
	}
	cmu, err := sapling.ComputeCMU(p.addr, value, rcm)
	if err != nil {
		return nil, 0, err
	}
	leaf, err := note.ParseCmu(cmu)
	if err != nil {
		return nil, 0, err
	}
	pos, err := l.AppendCommitment(leaf)
	if err != nil {
		return nil, 0, err
	}
	return rcm, pos, nil
}

// transfer is one signed bundle and the sighash it was signed over.
type transfer struct {
	bundle  *verifier.Bundle
	sighash [32]byte
}

// buildTransfer spends the note (value, rcm) at pos from sender, paying
// amount to recipient with the change back to sender and fee as the value
// balance.
func (a *app) buildTransfer(l *ledger.Ledger, sender, recipient *party, value uint64, rcm []byte, pos, amount, fee uint64) (*transfer, error) {
	if amount+fee > value {
		return nil, fmt.Errorf("note of %d cannot cover %d plus fee %d", value, amount, fee)
	}
	witness, err := l.Witness(pos)
	if err != nil {
		return nil, err
	}
	root := l.Root()
	anchor := jubjub.EncodeElement(&root)

	ctx := sapling.NewProvingContext(sapling.WithLogger(a.log.Zerolog()), sapling.WithProofObserver(a.metrics))
	defer sapling.DropProvingContext(ctx)

	ar, err := sapling.RandR()
	if err != nil {
		return nil, err
	}
	spend, err := sapling.SpendDescriptionFromXSK(ctx, sender.xsk, sender.addr, rcm, ar, value, anchor[:], witness.Bytes())
	if err != nil {
		return nil, err
	}
	memo := []byte(fmt.Sprintf("from %s", sender.name))
	payment, err := sapling.OutputDescriptionFromXFVKWithMemo(ctx, sender.xfvk, recipient.addr, nil, amount, memo)
	if err != nil {
		return nil, err
	}
	change, err := sapling.OutputDescriptionFromXFVK(ctx, sender.xfvk, sender.addr, nil, value-amount-fee)
	if err != nil {
		return nil, err
	}

	var sighash [32]byte
	rnd, err := random.Bytes(len(sighash))
	if err != nil {
		return nil, err
	}
	copy(sighash[:], rnd)

	bsig, err := sapling.BindingSignature(ctx, int64(fee), sighash[:])
	if err != nil {
		return nil, err
	}
	signed, err := sapling.SignSpendDescriptionWithXSK(spend, sender.xsk, ar, sighash[:])
	if err != nil {
		return nil, err
	}

	sd, err := prover.ParseSpendDescription(signed)
	if err != nil {
		return nil, err
	}
	pd, err := prover.ParseOutputDescription(payment)
	if err != nil {
		return nil, err
	}
	cd, err := prover.ParseOutputDescription(change)
	if err != nil {
		return nil, err
	}
	sig, err := redjubjub.ParseSignature(bsig)
	if err != nil {
		return nil, err
	}
	return &transfer{
		bundle: &verifier.Bundle{
			Spends:           []*prover.SpendDescription{sd},
			Outputs:          []*prover.OutputDescription{pd, cd},
			ValueBalance:     int64(fee),
			BindingSignature: sig,
		},
		sighash: sighash,
	}, nil
}

// receive scans outputs for notes p can decrypt and returns their values.
func receive(p *party, outputs []*prover.OutputDescription) []uint64 {
	var values []uint64
	for _, o := range outputs {
		epk := jubjub.EncodePoint(&o.Epk)
		cmu := o.CmuBytes()
		plain, err := sapling.TryDecryptNote(p.ivk, epk[:], cmu[:], o.EncCiphertext[:])
		if err != nil {
			continue
		}
		values = append(values, binary.LittleEndian.Uint64(plain))
	}
	return values
}

func (a *app) demo() error {
	if err := a.loadParams(); err != nil {
		return err
	}
	alice, err := newParty("alice", 0x01, a.cfg.DefaultPath)
	if err != nil {
		return err
	}
	bob, err := newParty("bob", 0x02, a.cfg.DefaultPath)
	if err != nil {
		return err
	}
	a.log.Info("alice %s", alice.encoded)
	a.log.Info("bob   %s", bob.encoded)

	l := ledger.New()
	rcm, pos, err := fund(l, alice, 100)
	if err != nil {
		return err
	}
	a.log.Info("funded alice with 100 at position %d", pos)

	tr, err := a.buildTransfer(l, alice, bob, 100, rcm, pos, 60, 10)
	if err != nil {
		return err
	}

	ctx, cancel := a.timeout()
	defer cancel()
	start := time.Now()
	positions, err := l.ApplyBundle(ctx, tr.bundle, tr.sighash)
	a.metrics.RecordVerification(time.Since(start))
	if err != nil {
		return fmt.Errorf("applying transfer: %w", err)
	}
	a.log.Info("bundle applied, outputs at %v", positions)
	for _, o := range tr.bundle.Outputs {
		if !l.HasCommitment(o.Cmu) {
			return fmt.Errorf("output %x is not in the tree", o.CmuBytes())
		}
	}
	if !l.IsKnownAnchor(tr.bundle.Spends[0].Anchor) {
		return errors.New("the spent anchor is no longer known")
	}
	a.log.Audit("bundle_applied", map[string]interface{}{
		"spends":  len(tr.bundle.Spends),
		"outputs": positions,
		"fee":     tr.bundle.ValueBalance,
	})

	got := receive(bob, tr.bundle.Outputs)
	if len(got) != 1 || got[0] != 60 {
		return fmt.Errorf("bob decrypted %v, want [60]", got)
	}
	a.log.Info("bob received %d", got[0])

	if _, err := l.ApplyBundle(ctx, tr.bundle, tr.sighash); !errors.Is(err, ledger.ErrDoubleSpend) {
		return fmt.Errorf("replayed bundle was not rejected as a double spend: %v", err)
	}
	a.log.Info("replayed bundle rejected: double spend")

	a.metrics.SetGauge(MetricLedgerSize, float64(l.Size()), nil)
	if err := l.SaveToFile(a.cfg.LedgerPath); err != nil {
		return err
	}
	root := l.Root()
	rootEnc := jubjub.EncodeElement(&root)
	fmt.Fprintf(a.out, "demo complete: %d commitments, root %x\n", l.Size(), rootEnc)
	return nil
}
