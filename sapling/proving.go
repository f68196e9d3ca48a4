// proving.go - Byte-slice entry points for parameters, proving sessions and
// signatures.

package sapling

import (
	"math/big"
	"time"

	"github.com/rs/zerolog"

	"saplingcore/internal/address"
	"saplingcore/internal/jubjub"
	"saplingcore/internal/keyagreement"
	"saplingcore/internal/keys"
	"saplingcore/internal/merkle"
	"saplingcore/internal/params"
	"saplingcore/internal/prover"
	"saplingcore/internal/redjubjub"
	"saplingcore/internal/saplingerr"
	"saplingcore/internal/verifier"
)

// InitParams loads the spend and output parameter blobs. Repeated calls
// after a success are no-ops.
func InitParams(spend, output []byte) error {
	return params.Load(spend, output)
}

// ParamsLoaded reports whether InitParams has succeeded.
func ParamsLoaded() bool {
	return params.Loaded()
}

// ProvingContext is an open proving session. It accumulates the value
// commitment randomness of every description it proves until
// BindingSignature finalizes it. Create one with NewProvingContext.
type ProvingContext struct {
	session *prover.Context
}

// ProofObserver receives the duration of every proof a session generates.
type ProofObserver interface {
	RecordProofGeneration(circuit string, d time.Duration)
}

// ProvingOption configures NewProvingContext.
type ProvingOption struct {
	apply prover.Option
}

// WithLogger logs session events to l.
func WithLogger(l zerolog.Logger) ProvingOption {
	return ProvingOption{apply: prover.WithLogger(l)}
}

// WithProofObserver reports proof timings to o.
func WithProofObserver(o ProofObserver) ProvingOption {
	return ProvingOption{apply: prover.WithObserver(o)}
}

// NewProvingContext opens a proving session. Release it with
// DropProvingContext.
func NewProvingContext(opts ...ProvingOption) *ProvingContext {
	inner := make([]prover.Option, 0, len(opts))
	for _, o := range opts {
		if o.apply != nil {
			inner = append(inner, o.apply)
		}
	}
	return &ProvingContext{session: prover.New(inner...)}
}

// ID identifies the session in logs.
func (ctx *ProvingContext) ID() string {
	if ctx == nil || ctx.session == nil {
		return ""
	}
	return ctx.session.ID().String()
}

func (ctx *ProvingContext) get(op string) (*prover.Context, error) {
	if ctx == nil || ctx.session == nil {
		return nil, saplingerr.New(saplingerr.InvalidInput, op, "proving context is nil")
	}
	return ctx.session, nil
}

// DropProvingContext closes ctx and wipes its accumulated secrets.
func DropProvingContext(ctx *ProvingContext) error {
	session, err := ctx.get("sapling.DropProvingContext")
	if err != nil {
		return err
	}
	return session.Close()
}

func parseSighash(op string, b []byte) ([32]byte, error) {
	var h [32]byte
	if len(b) != len(h) {
		return h, saplingerr.New(saplingerr.InvalidInput, op, "sighash must be 32 bytes, got %d", len(b))
	}
	copy(h[:], b)
	return h, nil
}

// optionalScalar decodes b, or returns nil when b is empty.
func optionalScalar(b []byte) (*big.Int, error) {
	if len(b) == 0 {
		return nil, nil
	}
	return jubjub.DecodeScalar(b)
}

func spendDescription(op string, ctx *ProvingContext, cred prover.SpendCredential, addr, rcm, ar []byte, value uint64, anchor, path []byte) ([]byte, error) {
	session, err := ctx.get(op)
	if err != nil {
		return nil, err
	}
	to, err := address.Parse(addr)
	if err != nil {
		return nil, err
	}
	owned, err := address.FromIncomingViewingKey(cred.ProofAuthorizingKey().IncomingViewingKey(), to.D)
	if err != nil {
		return nil, err
	}
	if !owned.Equal(to) {
		return nil, saplingerr.New(saplingerr.InvalidInput, op, "address does not belong to the spending key")
	}
	r, err := jubjub.DecodeScalar(rcm)
	if err != nil {
		return nil, err
	}
	a, err := jubjub.DecodeScalar(ar)
	if err != nil {
		return nil, err
	}
	root, err := jubjub.DecodeElement(anchor)
	if err != nil {
		return nil, err
	}
	p, err := merkle.ParsePath(path)
	if err != nil {
		return nil, err
	}
	d, err := session.AddSpend(prover.SpendRequest{
		Credential:  cred,
		Diversifier: to.D,
		Rcm:         r,
		Ar:          a,
		Value:       value,
		Anchor:      root,
		Path:        p,
	})
	if err != nil {
		return nil, err
	}
	return d.Bytes(), nil
}

// SpendDescriptionFromXSK proves the spend of (addr, value, rcm) under anchor.
func SpendDescriptionFromXSK(ctx *ProvingContext, xsk, addr, rcm, ar []byte, value uint64, anchor, path []byte) ([]byte, error) {
	k, err := keys.ParseExtendedSpendingKey(xsk)
	if err != nil {
		return nil, err
	}
	return spendDescription("sapling.SpendDescriptionFromXSK", ctx, k, addr, rcm, ar, value, anchor, path)
}

// SpendDescriptionFromPAK is SpendDescriptionFromXSK for a proof authorizing
// key, which can prove but not sign.
func SpendDescriptionFromPAK(ctx *ProvingContext, pak, addr, rcm, ar []byte, value uint64, anchor, path []byte) ([]byte, error) {
	k, err := keys.ParseProofAuthorizingKey(pak)
	if err != nil {
		return nil, err
	}
	return spendDescription("sapling.SpendDescriptionFromPAK", ctx, k, addr, rcm, ar, value, anchor, path)
}

// SignSpendDescriptionWithXSK appends the spend authorization signature over
// sighash to an unsigned spend description.
func SignSpendDescriptionWithXSK(spend, xsk, ar, sighash []byte) ([]byte, error) {
	const op = "sapling.SignSpendDescriptionWithXSK"
	d, err := prover.ParseSpendDescription(spend)
	if err != nil {
		return nil, err
	}
	if d.SpendAuthSig != nil {
		return nil, saplingerr.New(saplingerr.InvalidInput, op, "spend description is already signed")
	}
	k, err := keys.ParseExtendedSpendingKey(xsk)
	if err != nil {
		return nil, err
	}
	a, err := jubjub.DecodeScalar(ar)
	if err != nil {
		return nil, err
	}
	h, err := parseSighash(op, sighash)
	if err != nil {
		return nil, err
	}
	sig, err := prover.SignSpend(k, a, h)
	if err != nil {
		return nil, err
	}
	d.Authorize(sig)
	return d.Bytes(), nil
}

func outputDescription(op string, ctx *ProvingContext, sender prover.Sender, to, rcm []byte, value uint64, memo []byte) (*prover.OutputDescription, error) {
	session, err := ctx.get(op)
	if err != nil {
		return nil, err
	}
	addr, err := address.Parse(to)
	if err != nil {
		return nil, err
	}
	r, err := optionalScalar(rcm)
	if err != nil {
		return nil, err
	}
	req := prover.OutputRequest{Sender: sender, Address: addr, Value: value, Rcm: r}
	if memo != nil {
		m, err := keyagreement.ParseMemo(memo)
		if err != nil {
			return nil, err
		}
		req.Memo = &m
	}
	return session.AddOutput(req)
}

// OutputDescriptionFromXFVK proves an output recoverable with the ovk of
// xfvk. An empty rcm is sampled.
func OutputDescriptionFromXFVK(ctx *ProvingContext, xfvk, to, rcm []byte, value uint64) ([]byte, error) {
	return OutputDescriptionFromXFVKWithMemo(ctx, xfvk, to, rcm, value, nil)
}

// OutputDescriptionFromXFVKWithMemo is OutputDescriptionFromXFVK carrying a
// memo of up to 512 bytes.
func OutputDescriptionFromXFVKWithMemo(ctx *ProvingContext, xfvk, to, rcm []byte, value uint64, memo []byte) ([]byte, error) {
	k, err := keys.ParseExtendedFullViewingKey(xfvk)
	if err != nil {
		return nil, err
	}
	d, err := outputDescription("sapling.OutputDescriptionFromXFVK", ctx, prover.FromFullViewingKey(k), to, rcm, value, memo)
	if err != nil {
		return nil, err
	}
	return d.Bytes(), nil
}

// OutputDescriptionFromOVK proves an output recoverable with ovk.
func OutputDescriptionFromOVK(ctx *ProvingContext, ovk, to, rcm []byte, value uint64) ([]byte, error) {
	k, err := keys.ParseOutgoingViewingKey(ovk)
	if err != nil {
		return nil, err
	}
	d, err := outputDescription("sapling.OutputDescriptionFromOVK", ctx, prover.FromOutgoingViewingKey(k), to, rcm, value, nil)
	if err != nil {
		return nil, err
	}
	return d.Bytes(), nil
}

// PartialOutputDescription proves an output with the caller's esk and
// returns cv || cmu || proof. The caller derives epk with DeriveEPKFromESK
// and encrypts the note itself.
func PartialOutputDescription(ctx *ProvingContext, to, rcm, esk []byte, value uint64) ([]byte, error) {
	e, err := jubjub.DecodeScalar(esk)
	if err != nil {
		return nil, err
	}
	d, err := outputDescription("sapling.PartialOutputDescription", ctx, prover.Partial(e), to, rcm, value, nil)
	if err != nil {
		return nil, err
	}
	return d.Partial().Bytes(), nil
}

// BindingSignature finalizes ctx and returns the 64-byte binding signature.
func BindingSignature(ctx *ProvingContext, valueBalance int64, sighash []byte) ([]byte, error) {
	const op = "sapling.BindingSignature"
	session, err := ctx.get(op)
	if err != nil {
		return nil, err
	}
	h, err := parseSighash(op, sighash)
	if err != nil {
		return nil, err
	}
	sig, err := session.BindingSignature(valueBalance, h)
	if err != nil {
		return nil, err
	}
	return sig[:], nil
}

// VerifyBindingSignature checks sig against encoded spend and output
// descriptions. A signature that does not verify is UnbalancedTransaction.
func VerifyBindingSignature(spends, outputs [][]byte, valueBalance int64, sighash, sig []byte) error {
	h, err := parseSighash("sapling.VerifyBindingSignature", sighash)
	if err != nil {
		return err
	}
	s, err := redjubjub.ParseSignature(sig)
	if err != nil {
		return err
	}
	sd := make([]*prover.SpendDescription, 0, len(spends))
	for _, raw := range spends {
		d, err := prover.ParseSpendDescription(raw)
		if err != nil {
			return err
		}
		sd = append(sd, d)
	}
	od := make([]*prover.OutputDescription, 0, len(outputs))
	for _, raw := range outputs {
		d, err := prover.ParseOutputDescription(raw)
		if err != nil {
			return err
		}
		od = append(od, d)
	}
	return verifier.VerifyBinding(sd, od, valueBalance, h, s)
}

// VerifySpendDescription checks an encoded spend proof and, when the
// description is signed, its authorization over sighash.
func VerifySpendDescription(spend, sighash []byte) error {
	h, err := parseSighash("sapling.VerifySpendDescription", sighash)
	if err != nil {
		return err
	}
	d, err := prover.ParseSpendDescription(spend)
	if err != nil {
		return err
	}
	return verifier.VerifySpend(d, h)
}

// VerifyOutputDescription checks an encoded output proof.
func VerifyOutputDescription(output []byte) error {
	d, err := prover.ParseOutputDescription(output)
	if err != nil {
		return err
	}
	return verifier.VerifyOutput(d)
}
