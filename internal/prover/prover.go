// prover.go - Proving session: builds spend and output descriptions and the
// binding signature that ties their value commitments together.
//
// A Context accumulates the value commitment trapdoors of everything it has
// produced. BindingSignature signs with their sum; Close wipes it.
//
// WARNING: A Context is not safe for concurrent use and must not be copied.

// Package prover implements the stateful proving session.
package prover

import (
	"bytes"
	"math/big"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"saplingcore/internal/address"
	"saplingcore/internal/circuit"
	"saplingcore/internal/jubjub"
	"saplingcore/internal/keyagreement"
	"saplingcore/internal/keys"
	"saplingcore/internal/merkle"
	"saplingcore/internal/note"
	"saplingcore/internal/params"
	"saplingcore/internal/random"
	"saplingcore/internal/redjubjub"
	"saplingcore/internal/saplingerr"
)

// State is the lifecycle stage of a Context.
type State int

const (
	Created State = iota
	Accumulating
	Finalized
	Destroyed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Accumulating:
		return "accumulating"
	case Finalized:
		return "finalized"
	case Destroyed:
		return "destroyed"
	}
	return "unknown"
}

// noCopy makes go vet's copylocks check flag copies of a Context.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Observer receives proof timings.
type Observer interface {
	RecordProofGeneration(circuit string, d time.Duration)
}

// SpendCredential is anything that can authorize a spend proof:
// *keys.ExtendedSpendingKey or *keys.ProofAuthorizingKey.
type SpendCredential interface {
	ProofAuthorizingKey() *keys.ProofAuthorizingKey
}

// Context is one proving session.
type Context struct {
	noCopy noCopy

	id       uuid.UUID
	log      zerolog.Logger
	observer Observer
	state    State

	bsk   *big.Int     // sum of spend rcv minus sum of output rcv
	cvSum jubjub.Point // sum of spend cv minus sum of output cv

	spends, outputs int
}

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the session logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Context) { c.log = l }
}

// WithObserver reports proof timings to o.
func WithObserver(o Observer) Option {
	return func(c *Context) { c.observer = o }
}

// New opens a session.
func New(opts ...Option) *Context {
	c := &Context{
		id:    uuid.New(),
		log:   zerolog.Nop(),
		state: Created,
		bsk:   new(big.Int),
		cvSum: jubjub.Identity(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("session", c.id.String()).Logger()
	c.log.Debug().Msg("proving session opened")
	return c
}

// ID returns the session identifier used in logs.
func (c *Context) ID() uuid.UUID { return c.id }

// State returns the lifecycle stage.
func (c *Context) State() State { return c.state }

// Counts returns how many spends and outputs have been added.
func (c *Context) Counts() (spends, outputs int) { return c.spends, c.outputs }

func (c *Context) usable(op string) error {
	switch c.state {
	case Destroyed:
		return saplingerr.New(saplingerr.UseAfterDestroy, op, "session %s was closed", c.id)
	case Finalized:
		return saplingerr.New(saplingerr.SessionFinalized, op, "session %s already signed", c.id)
	}
	return nil
}

func checkScalar(op, name string, s *big.Int) error {
	if s == nil {
		return saplingerr.New(saplingerr.InvalidInput, op, "%s is missing", name)
	}
	if s.Sign() < 0 || s.Cmp(jubjub.Order()) >= 0 {
		return saplingerr.New(saplingerr.InvalidScalar, op, "%s out of range", name)
	}
	return nil
}

func (c *Context) prove(op, name string, cs params.Keys, assignment frontend.Circuit) ([]byte, error) {
	start := time.Now()
	w, err := frontend.NewWitness(assignment, params.Curve.ScalarField())
	if err != nil {
		return nil, saplingerr.Wrap(saplingerr.ProofGenerationFailed, op, err)
	}
	proof, err := groth16.Prove(cs.CS, cs.PK, w)
	if err != nil {
		return nil, saplingerr.Wrap(saplingerr.ProofGenerationFailed, op, err)
	}
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, saplingerr.Wrap(saplingerr.ProofGenerationFailed, op, err)
	}
	took := time.Since(start)
	if c.observer != nil {
		c.observer.RecordProofGeneration(name, took)
	}
	c.log.Debug().Str("circuit", name).Dur("took", took).Msg("proof generated")
	return buf.Bytes(), nil
}

// SpendRequest describes the note being spent.
type SpendRequest struct {
	Credential  SpendCredential
	Diversifier address.Diversifier
	Rcm         *big.Int
	Ar          *big.Int // spend authorization randomizer
	Value       uint64
	Anchor      fr.Element
	Path        *merkle.Path
}

// AddSpend proves a spend and accumulates its value commitment.
// Steps:
//  1. Validate the request and check the path opens the note to the anchor
//  2. Derive the nullifier and the randomized key rk
//  3. Sample rcv and commit to the value
//  4. Generate the Groth16 proof
//  5. Accumulate rcv and cv
func (c *Context) AddSpend(req SpendRequest) (*SpendDescription, error) {
	const op = "prover.AddSpend"
	if err := c.usable(op); err != nil {
		return nil, err
	}
	if req.Credential == nil || req.Path == nil {
		return nil, saplingerr.New(saplingerr.InvalidInput, op, "credential and path are required")
	}
	if err := checkScalar(op, "rcm", req.Rcm); err != nil {
		return nil, err
	}
	if err := checkScalar(op, "ar", req.Ar); err != nil {
		return nil, err
	}
	set, err := params.Get()
	if err != nil {
		return nil, err
	}

	// Step 1: the note must sit under the anchor
	pak := req.Credential.ProofAuthorizingKey()
	addr, err := address.FromIncomingViewingKey(pak.IncomingViewingKey(), req.Diversifier)
	if err != nil {
		return nil, err
	}
	n := &note.Note{Address: addr, Value: req.Value, Rcm: req.Rcm}
	leaf := n.CmuElement()
	if !req.Path.Verify(&leaf, &req.Anchor) {
		return nil, saplingerr.New(saplingerr.InvalidInput, op, "path does not open the note to the anchor")
	}

	// Step 2: nullifier and rk
	nk := pak.NullifierKey()
	g := jubjub.Bases()
	pub := &circuit.SpendPublic{
		Anchor:    req.Anchor,
		Nullifier: n.NullifierElement(&nk, req.Path.Position),
		Rk:        redjubjub.RandomizePublic(&pak.Ak, req.Ar, &g.SpendAuth),
	}

	// Step 3: value commitment
	rcv, err := random.Scalar()
	if err != nil {
		return nil, err
	}
	pub.Cv = note.ValueCommitment(req.Value, rcv)

	// Step 4: proof
	proof, err := c.prove(op, "spend", set.Spend, circuit.SpendAssignment(pub, &circuit.SpendPrivate{
		Ak:    pak.Ak,
		Nsk:   pak.Nsk,
		Ar:    req.Ar,
		Gd:    addr.Base(),
		PkD:   addr.PkD,
		Value: req.Value,
		Rcm:   req.Rcm,
		Rcv:   rcv,
		Path:  req.Path,
	}))
	if err != nil {
		return nil, err
	}

	// Step 5: accumulate
	c.bsk.Add(c.bsk, rcv).Mod(c.bsk, jubjub.Order())
	c.cvSum = jubjub.Add(&c.cvSum, &pub.Cv)
	c.spends++
	c.state = Accumulating

	return &SpendDescription{
		Cv:        pub.Cv,
		Anchor:    pub.Anchor,
		Nullifier: pub.Nullifier,
		Rk:        pub.Rk,
		Proof:     proof,
	}, nil
}

// Sender selects how an output can be recovered by its creator.
type Sender struct {
	ovk     *keys.OutgoingViewingKey
	esk     *big.Int
	partial bool
}

// FromFullViewingKey lets the holder of xfvk recover the output.
func FromFullViewingKey(xfvk *keys.ExtendedFullViewingKey) Sender {
	ovk := xfvk.OutgoingViewingKey()
	return Sender{ovk: &ovk}
}

// FromOutgoingViewingKey lets the holder of ovk recover the output.
func FromOutgoingViewingKey(ovk keys.OutgoingViewingKey) Sender {
	return Sender{ovk: &ovk}
}

// Partial proves with the caller's esk and skips note encryption. The
// caller derives epk with keyagreement.DeriveEphemeralKey and encrypts.
func Partial(esk *big.Int) Sender {
	return Sender{esk: esk, partial: true}
}

// OutputRequest describes the note being created. The zero Sender encrypts
// with no way for the creator to recover the note.
type OutputRequest struct {
	Sender  Sender
	Address *address.PaymentAddress
	Value   uint64
	Rcm     *big.Int           // sampled when nil
	Memo    *keyagreement.Memo // EmptyMemo when nil
}

// AddOutput proves an output and accumulates the negation of its value
// commitment. For a Partial sender the ciphertexts are left zero.
func (c *Context) AddOutput(req OutputRequest) (*OutputDescription, error) {
	const op = "prover.AddOutput"
	if err := c.usable(op); err != nil {
		return nil, err
	}
	if req.Address == nil {
		return nil, saplingerr.New(saplingerr.InvalidInput, op, "recipient address is required")
	}
	if req.Rcm != nil {
		if err := checkScalar(op, "rcm", req.Rcm); err != nil {
			return nil, err
		}
	}
	esk := req.Sender.esk
	if req.Sender.partial {
		if err := checkScalar(op, "esk", esk); err != nil {
			return nil, err
		}
	}
	set, err := params.Get()
	if err != nil {
		return nil, err
	}

	rcm := req.Rcm
	if rcm == nil {
		if rcm, err = random.Scalar(); err != nil {
			return nil, err
		}
	}
	if esk == nil {
		if esk, err = random.Scalar(); err != nil {
			return nil, err
		}
	}
	rcv, err := random.Scalar()
	if err != nil {
		return nil, err
	}

	n := &note.Note{Address: req.Address, Value: req.Value, Rcm: rcm}
	epk, err := keyagreement.DeriveEphemeralKey(req.Address.D, esk)
	if err != nil {
		return nil, err
	}
	d := &OutputDescription{
		Cv:  note.ValueCommitment(req.Value, rcv),
		Cmu: n.CmuElement(),
		Epk: epk,
	}

	if !req.Sender.partial {
		memo := keyagreement.EmptyMemo()
		if req.Memo != nil {
			memo = *req.Memo
		}
		ct, err := keyagreement.Encrypt(n, memo, esk, req.Sender.ovk, &d.Cv)
		if err != nil {
			return nil, err
		}
		d.EncCiphertext = ct.Enc
		d.OutCiphertext = ct.Out
	}

	d.Proof, err = c.prove(op, "output", set.Output, circuit.OutputAssignment(d.Public(), &circuit.OutputPrivate{
		Gd:    req.Address.Base(),
		PkD:   req.Address.PkD,
		Value: req.Value,
		Rcm:   rcm,
		Rcv:   rcv,
		Esk:   esk,
	}))
	if err != nil {
		return nil, err
	}

	c.bsk.Sub(c.bsk, rcv).Mod(c.bsk, jubjub.Order())
	c.cvSum = jubjub.Sub(&c.cvSum, &d.Cv)
	c.outputs++
	c.state = Accumulating
	return d, nil
}

// BindingSignature checks that the accumulated commitments balance to
// valueBalance and signs sighash with bsk. On UnbalancedTransaction the
// session is left as it was.
func (c *Context) BindingSignature(valueBalance int64, sighash [32]byte) (redjubjub.Signature, error) {
	const op = "prover.BindingSignature"
	if err := c.usable(op); err != nil {
		return redjubjub.Signature{}, err
	}
	g := jubjub.Bases()
	bvk := BindingKey(&c.cvSum, valueBalance)
	expected := redjubjub.PublicKey(c.bsk, &g.ValueRandomness)
	if !bvk.Equal(&expected) {
		c.log.Warn().Int64("value_balance", valueBalance).Msg("binding check failed")
		return redjubjub.Signature{}, saplingerr.New(saplingerr.UnbalancedTransaction, op, "value balance %d does not match the descriptions", valueBalance)
	}
	sig, err := redjubjub.Sign(c.bsk, sighash[:], &g.ValueRandomness)
	if err != nil {
		return redjubjub.Signature{}, err
	}
	c.state = Finalized
	c.log.Info().Int("spends", c.spends).Int("outputs", c.outputs).Int64("value_balance", valueBalance).Msg("session finalized")
	return sig, nil
}

// BindingKey returns cvSum - [valueBalance] G_value.
func BindingKey(cvSum *jubjub.Point, valueBalance int64) jubjub.Point {
	vb := jubjub.Mul(&jubjub.Bases().ValueCommitment, big.NewInt(valueBalance))
	return jubjub.Sub(cvSum, &vb)
}

// Close wipes the accumulated trapdoors. Every later call, Close included,
// fails with UseAfterDestroy.
func (c *Context) Close() error {
	if c.state == Destroyed {
		return saplingerr.New(saplingerr.UseAfterDestroy, "prover.Close", "session %s was closed", c.id)
	}
	c.bsk.SetInt64(0)
	c.cvSum = jubjub.Identity()
	c.state = Destroyed
	c.log.Debug().Msg("proving session closed")
	return nil
}

// SignSpend signs sighash with the randomized key ask + ar.
func SignSpend(xsk *keys.ExtendedSpendingKey, ar *big.Int, sighash [32]byte) (redjubjub.Signature, error) {
	const op = "prover.SignSpend"
	if xsk == nil {
		return redjubjub.Signature{}, saplingerr.New(saplingerr.InvalidInput, op, "spending key is required")
	}
	if err := checkScalar(op, "ar", ar); err != nil {
		return redjubjub.Signature{}, err
	}
	rsk := redjubjub.Randomize(xsk.Expsk.Ask, ar)
	return redjubjub.Sign(rsk, sighash[:], &jubjub.Bases().SpendAuth)
}
