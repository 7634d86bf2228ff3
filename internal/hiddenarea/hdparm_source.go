package hiddenarea

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// commandRunner executes an external tool and returns its combined
// output. Tests substitute a fake; production uses os/exec.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

var (
	// "max sectors   = 586070255/586072368, HPA is enabled"
	hpaSectorsRe = regexp.MustCompile(`max sectors\s*=\s*(\d+)/(\d+)`)
	// "Real max sectors: 586072368"
	dcoRealMaxRe = regexp.MustCompile(`Real max sectors:\s*(\d+)`)
)

// HdparmSource reads and reconfigures ATA sector counts through hdparm.
type HdparmSource struct {
	run    commandRunner
	logger zerolog.Logger
}

// NewHdparmSource builds the production hdparm binding.
func NewHdparmSource(logger zerolog.Logger) *HdparmSource {
	return &HdparmSource{
		run:    execRunner,
		logger: logger.With().Str("component", "hdparm-source").Logger(),
	}
}

// ReadSectorCounts parses `hdparm -N` for current/native and
// `hdparm --dco-identify` for the factory sector count. A drive without
// DCO support reports physical equal to native.
func (h *HdparmSource) ReadSectorCounts(ctx context.Context, path string) (native, current, physical uint64, err error) {
	out, err := h.run(ctx, "hdparm", "-N", path)
	if err != nil {
		return 0, 0, 0, errors.Wrapf(err, "hdparm -N %s: %s", path, out)
	}
	m := hpaSectorsRe.FindSubmatch(out)
	if m == nil {
		return 0, 0, 0, errors.Newf("hdparm -N output for %s not recognized: %s", path, out)
	}
	current, err = strconv.ParseUint(string(m[1]), 10, 64)
	if err != nil {
		return 0, 0, 0, errors.Wrapf(err, "parsing current max sectors for %s", path)
	}
	native, err = strconv.ParseUint(string(m[2]), 10, 64)
	if err != nil {
		return 0, 0, 0, errors.Wrapf(err, "parsing native max sectors for %s", path)
	}

	physical = native
	out, err = h.run(ctx, "hdparm", "--dco-identify", path)
	if err != nil {
		// DCO identify is unsupported on plenty of drives and all USB
		// bridges; that is not a detection failure.
		h.logger.Debug().Str("device", path).Msg("dco-identify unsupported, assuming physical == native")
		return native, current, physical, nil
	}
	if m := dcoRealMaxRe.FindSubmatch(out); m != nil {
		if real, perr := strconv.ParseUint(string(m[1]), 10, 64); perr == nil && real >= native {
			physical = real
		}
	}
	return native, current, physical, nil
}

// ClearHPA restores the current max to the native max. The change is
// requested as permanent (the "p" prefix), not volatile.
func (h *HdparmSource) ClearHPA(ctx context.Context, path string) error {
	native, _, _, err := h.ReadSectorCounts(ctx, path)
	if err != nil {
		return err
	}
	out, err := h.run(ctx, "hdparm", "-N", fmt.Sprintf("p%d", native), "--yes-i-know-what-i-am-doing", path)
	if err != nil {
		return errors.Wrapf(err, "hdparm -N p%d %s: %s", native, path, out)
	}
	h.logger.Info().Str("device", path).Uint64("native", native).Msg("HPA cleared via hdparm")
	return nil
}

// ClearDCO issues a DCO restore, returning the drive to factory
// capacity.
func (h *HdparmSource) ClearDCO(ctx context.Context, path string) error {
	out, err := h.run(ctx, "hdparm", "--dco-restore", "--yes-i-know-what-i-am-doing", path)
	if err != nil {
		return errors.Wrapf(err, "hdparm --dco-restore %s: %s", path, out)
	}
	h.logger.Info().Str("device", path).Msg("DCO restored via hdparm")
	return nil
}
