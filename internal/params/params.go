// params.go - Process-wide Groth16 parameters for the spend and output circuits.
//
// Each parameter blob is a proving key followed by its verifying key, both in
// gnark WriteTo format. The proving key section is preceded by its length as
// a little-endian uint64 so that the two sections can be split without
// relying on how far the decoder reads ahead.
//
// NOTE: The constraint systems are compiled once per process. Parameters are
// loaded at most once; later Load calls are no-ops.

// Package params holds the one-time initialization gate for proof parameters.
package params

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	gnarklogger "github.com/consensys/gnark/logger"
	"github.com/rs/zerolog"

	"saplingcore/internal/circuit"
	"saplingcore/internal/saplingerr"
)

// Curve is the pairing curve of every proof.
const Curve = ecc.BLS12_381

// Keys is one circuit's compiled constraint system and key pair.
type Keys struct {
	CS constraint.ConstraintSystem
	PK groth16.ProvingKey
	VK groth16.VerifyingKey
}

// Set is the loaded parameter set.
type Set struct {
	Spend  Keys
	Output Keys
}

var (
	compileOnce sync.Once
	spendCS     constraint.ConstraintSystem
	outputCS    constraint.ConstraintSystem
	compileErr  error

	mu      sync.RWMutex
	current *Set

	log = zerolog.Nop()
)

// SetLogger routes this package's logs, and gnark's own compile and prove
// logs, to l.
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l.With().Str("component", "params").Logger()
	gnarklogger.Set(l.With().Str("component", "gnark").Logger())
}

func logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Compile returns the spend and output constraint systems, compiling them on
// first use.
func Compile() (spend, output constraint.ConstraintSystem, err error) {
	return compile(logger())
}

// compile must not take mu: Load calls it with mu held.
func compile(l zerolog.Logger) (constraint.ConstraintSystem, constraint.ConstraintSystem, error) {
	compileOnce.Do(func() {
		start := time.Now()
		spendCS, compileErr = frontend.Compile(Curve.ScalarField(), r1cs.NewBuilder, &circuit.SpendCircuit{})
		if compileErr != nil {
			compileErr = fmt.Errorf("spend circuit compilation failed: %w", compileErr)
			return
		}
		outputCS, compileErr = frontend.Compile(Curve.ScalarField(), r1cs.NewBuilder, &circuit.OutputCircuit{})
		if compileErr != nil {
			compileErr = fmt.Errorf("output circuit compilation failed: %w", compileErr)
			return
		}
		l.Info().
			Int("spend_constraints", spendCS.GetNbConstraints()).
			Int("output_constraints", outputCS.GetNbConstraints()).
			Dur("took", time.Since(start)).
			Msg("circuits compiled")
	})
	return spendCS, outputCS, compileErr
}

// Setup runs a fresh Groth16 setup for both circuits and returns the encoded
// blobs. It does not load them.
func Setup() (spend, output []byte, err error) {
	scs, ocs, err := Compile()
	if err != nil {
		return nil, nil, err
	}
	l := logger()
	start := time.Now()
	if spend, err = setupBlob(scs); err != nil {
		return nil, nil, fmt.Errorf("spend setup failed: %w", err)
	}
	if output, err = setupBlob(ocs); err != nil {
		return nil, nil, fmt.Errorf("output setup failed: %w", err)
	}
	l.Info().
		Int("spend_bytes", len(spend)).
		Int("output_bytes", len(output)).
		Dur("took", time.Since(start)).
		Msg("groth16 setup complete")
	return spend, output, nil
}

func setupBlob(cs constraint.ConstraintSystem) ([]byte, error) {
	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return nil, err
	}
	return Encode(pk, vk)
}

// Encode serializes a key pair into a parameter blob.
func Encode(pk groth16.ProvingKey, vk groth16.VerifyingKey) ([]byte, error) {
	var pkBuf bytes.Buffer
	if _, err := pk.WriteTo(&pkBuf); err != nil {
		return nil, fmt.Errorf("proving key marshaling failed: %w", err)
	}
	var buf bytes.Buffer
	buf.Grow(8 + pkBuf.Len())
	_ = binary.Write(&buf, binary.LittleEndian, uint64(pkBuf.Len()))
	buf.Write(pkBuf.Bytes())
	if _, err := vk.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("verifying key marshaling failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a parameter blob.
func Decode(blob []byte) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	const op = "params.Decode"
	if len(blob) < 8 {
		return nil, nil, saplingerr.New(saplingerr.InvalidInput, op, "parameter blob of %d bytes is truncated", len(blob))
	}
	n := binary.LittleEndian.Uint64(blob[:8])
	if n > uint64(len(blob)-8) {
		return nil, nil, saplingerr.New(saplingerr.InvalidInput, op, "proving key length %d exceeds blob", n)
	}
	pk := groth16.NewProvingKey(Curve)
	if _, err := pk.ReadFrom(bytes.NewReader(blob[8 : 8+n])); err != nil {
		return nil, nil, saplingerr.Wrap(saplingerr.InvalidInput, op, fmt.Errorf("proving key unmarshaling failed: %w", err))
	}
	vk := groth16.NewVerifyingKey(Curve)
	if _, err := vk.ReadFrom(bytes.NewReader(blob[8+n:])); err != nil {
		return nil, nil, saplingerr.Wrap(saplingerr.InvalidInput, op, fmt.Errorf("verifying key unmarshaling failed: %w", err))
	}
	return pk, vk, nil
}

// Load parses and installs the spend and output parameters. Once a set is
// installed, Load returns nil without touching its arguments.
func Load(spend, output []byte) error {
	mu.Lock()
	defer mu.Unlock()
	if current != nil {
		log.Debug().Msg("parameters already loaded")
		return nil
	}
	start := time.Now()
	scs, ocs, err := compile(log)
	if err != nil {
		return err
	}
	spk, svk, err := Decode(spend)
	if err != nil {
		return fmt.Errorf("spend parameters: %w", err)
	}
	opk, ovk, err := Decode(output)
	if err != nil {
		return fmt.Errorf("output parameters: %w", err)
	}
	current = &Set{
		Spend:  Keys{CS: scs, PK: spk, VK: svk},
		Output: Keys{CS: ocs, PK: opk, VK: ovk},
	}
	log.Info().Dur("took", time.Since(start)).Msg("parameters loaded")
	return nil
}

// Loaded reports whether Load has succeeded.
func Loaded() bool {
	mu.RLock()
	defer mu.RUnlock()
	return current != nil
}

// Get returns the loaded set or ParametersNotLoaded.
func Get() (*Set, error) {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		return nil, saplingerr.New(saplingerr.ParametersNotLoaded, "params.Get", "call Load first")
	}
	return current, nil
}
