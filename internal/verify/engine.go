package verify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/JustRK-07/SIH-disk-wipeout/internal/config"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/dispatch"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/errs"
)

// Classification is the verification verdict for an operation.
type Classification string

const (
	ClassificationPass    Classification = "PASS"
	ClassificationSuspect Classification = "SUSPECT"
	ClassificationFail    Classification = "FAIL"
)

// Expectation is the read-back model implied by the erase method. A
// zero fill must read back as zeros; a random fill must read back as
// noise; a firmware erase may legitimately produce either.
type Expectation string

const (
	ExpectZeros  Expectation = "zeros"
	ExpectOnes   Expectation = "ones"
	ExpectRandom Expectation = "random"
	ExpectErased Expectation = "erased"
)

// ExpectationForMethod maps an erase method to its read-back model. The
// multi-pass methods are judged by their final pass.
func ExpectationForMethod(m dispatch.Method) Expectation {
	switch m {
	case dispatch.MethodZero:
		return ExpectZeros
	case dispatch.MethodOne:
		return ExpectOnes
	case dispatch.MethodSecureErase:
		return ExpectErased
	default:
		return ExpectRandom
	}
}

// Sample is one inspected region of the extent.
type Sample struct {
	Offset    uint64  `json:"offset"`
	Length    int     `json:"length"`
	Entropy   float64 `json:"entropy"`
	Digest    string  `json:"digest,omitempty"`
	Signature string  `json:"signature,omitempty"`
	ReadError string  `json:"read_error,omitempty"`
}

// Verdict is the full verification record. It carries the thresholds
// that produced it so a certificate reader can audit the judgment.
type Verdict struct {
	Classification    Classification `json:"classification"`
	Expectation       Expectation    `json:"expectation"`
	Samples           []Sample       `json:"samples"`
	SampledBytes      uint64         `json:"sampled_bytes"`
	ExtentBytes       uint64         `json:"extent_bytes"`
	MeanEntropy       float64        `json:"mean_entropy"`
	MinEntropy        float64        `json:"min_entropy"`
	PatternMatches    int            `json:"pattern_matches"`
	InconclusiveReads int            `json:"inconclusive_reads"`
	EntropyThreshold  float64        `json:"entropy_threshold"`
	VerifiedAt        time.Time      `json:"verified_at"`
}

// Engine performs sampled post-wipe verification. Safe for concurrent
// use; one Engine serves operations on any number of devices.
type Engine struct {
	cfg    config.VerificationConfig
	logger zerolog.Logger

	// rand.Rand is not goroutine-safe and Verify runs concurrently for
	// different devices.
	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewEngine builds an Engine from verification configuration.
func NewEngine(cfg config.VerificationConfig, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: logger.With().Str("component", "verification-engine").Logger(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Verify samples the extent behind r and classifies it against the
// expectation. A sample that cannot be read is recorded as inconclusive
// and caps the verdict at SUSPECT; if no sample can be read at all the
// error is marked ErrVerificationInconclusive and no verdict is issued.
func (e *Engine) Verify(ctx context.Context, r io.ReaderAt, extent uint64, expect Expectation, preDigests []string) (*Verdict, error) {
	if extent == 0 {
		return nil, errors.Mark(errors.New("cannot verify a zero-length extent"), errs.ErrVerificationInconclusive)
	}

	digestSet := make(map[string]struct{}, len(preDigests))
	for _, d := range preDigests {
		digestSet[d] = struct{}{}
	}

	offsets := e.sampleOffsets(extent)
	verdict := &Verdict{
		Expectation:      expect,
		ExtentBytes:      extent,
		EntropyThreshold: e.cfg.EntropyPass,
		VerifiedAt:       time.Now().UTC(),
	}

	buf := make([]byte, e.sampleSize(extent))
	entropySum := 0.0
	verdict.MinEntropy = 8.0
	readable := 0

	for _, off := range offsets {
		if err := ctx.Err(); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "verification interrupted"), errs.ErrVerificationInconclusive)
		}

		length := len(buf)
		if remaining := extent - off; remaining < uint64(length) {
			length = int(remaining)
		}
		sample := Sample{Offset: off, Length: length}

		n, err := r.ReadAt(buf[:length], int64(off))
		if err != nil && !(err == io.EOF && n == length) {
			sample.ReadError = err.Error()
			verdict.InconclusiveReads++
			verdict.Samples = append(verdict.Samples, sample)
			continue
		}

		data := buf[:length]
		sum := sha256.Sum256(data)
		sample.Digest = hex.EncodeToString(sum[:])
		sample.Entropy = ShannonEntropy(data)
		if _, hit := digestSet[sample.Digest]; hit {
			sample.Signature = sigPreWipe
		} else {
			sample.Signature = detectSignature(data)
		}
		if sample.Signature != "" {
			verdict.PatternMatches++
		}

		entropySum += sample.Entropy
		if sample.Entropy < verdict.MinEntropy {
			verdict.MinEntropy = sample.Entropy
		}
		verdict.SampledBytes += uint64(length)
		readable++
		verdict.Samples = append(verdict.Samples, sample)
	}

	if readable == 0 {
		return nil, errors.Mark(
			errors.Newf("all %d verification samples unreadable", len(offsets)),
			errs.ErrVerificationInconclusive)
	}
	verdict.MeanEntropy = entropySum / float64(readable)

	verdict.Classification = e.classify(verdict)

	// An unreadable region can hide anything, so it can never support a
	// PASS. FAIL stands on the evidence that was readable.
	if verdict.InconclusiveReads > 0 && verdict.Classification == ClassificationPass {
		verdict.Classification = ClassificationSuspect
	}

	e.logger.Info().
		Str("classification", string(verdict.Classification)).
		Str("expectation", string(expect)).
		Float64("mean_entropy", verdict.MeanEntropy).
		Int("pattern_matches", verdict.PatternMatches).
		Int("inconclusive", verdict.InconclusiveReads).
		Msg("verification complete")

	return verdict, nil
}

func (e *Engine) classify(v *Verdict) Classification {
	switch v.Expectation {
	case ExpectZeros:
		return classifyConstant(v, 0x00)
	case ExpectOnes:
		return classifyConstant(v, 0xFF)
	case ExpectErased:
		return classifyErased(v, e.cfg.EntropyPass)
	default:
		return classifyRandom(v, e.cfg.EntropyPass)
	}
}

// classifyConstant judges a fixed-byte fill: every readable sample must
// be exactly the expected constant. Residue is a FAIL, not a SUSPECT.
func classifyConstant(v *Verdict, want byte) Classification {
	wantSig := constantSignature(want)
	for _, s := range v.Samples {
		if s.ReadError != "" {
			continue
		}
		if s.Signature == sigPreWipe {
			return ClassificationFail
		}
		if s.Signature != wantSig {
			return ClassificationFail
		}
	}
	return ClassificationPass
}

// classifyRandom judges a random fill. Structure is disqualifying: a
// constant run, a repeating pattern, or surviving pre-wipe content means
// the fill did not land. Low entropy without structure is only suspect.
func classifyRandom(v *Verdict, threshold float64) Classification {
	if v.PatternMatches > 0 {
		return ClassificationFail
	}
	if v.MeanEntropy < threshold {
		return ClassificationSuspect
	}
	return ClassificationPass
}

// classifyErased judges a firmware erase, where both all-zero and
// high-entropy read-back are legitimate (block erase vs crypto erase).
func classifyErased(v *Verdict, threshold float64) Classification {
	suspect := false
	for _, s := range v.Samples {
		if s.ReadError != "" {
			continue
		}
		switch {
		case s.Signature == sigPreWipe:
			return ClassificationFail
		case s.Signature == constantSignature(0x00):
		case s.Signature == "":
			if s.Entropy < threshold {
				suspect = true
			}
		default:
			// Any other constant or a rotating pattern is not something a
			// firmware erase produces.
			return ClassificationFail
		}
	}
	if suspect {
		return ClassificationSuspect
	}
	return ClassificationPass
}

// sampleOffsets builds the stratified plan: the first and last regions,
// evenly spaced interior points, plus a random fraction so a targeted
// partial wipe cannot dodge fixed probe points.
func (e *Engine) sampleOffsets(extent uint64) []uint64 {
	size := uint64(e.sampleSize(extent))
	if size >= extent {
		return []uint64{0}
	}

	count := e.cfg.SampleCount
	if count < 3 {
		count = 3
	}

	last := extent - size
	offsets := make([]uint64, 0, count+int(float64(count)*e.cfg.RandomFraction))
	offsets = append(offsets, 0, last)
	for i := 1; i < count-1; i++ {
		offsets = append(offsets, uint64(float64(last)*float64(i)/float64(count-1)))
	}

	random := int(float64(count) * e.cfg.RandomFraction)
	e.rngMu.Lock()
	for i := 0; i < random; i++ {
		offsets = append(offsets, uint64(e.rng.Int63n(int64(last)+1)))
	}
	e.rngMu.Unlock()
	return offsets
}

func (e *Engine) sampleSize(extent uint64) int {
	size := e.cfg.SampleSize
	if size <= 0 {
		size = 64 * 1024
	}
	if uint64(size) > extent {
		size = int(extent)
	}
	return size
}
