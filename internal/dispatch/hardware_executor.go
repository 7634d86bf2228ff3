package dispatch

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/JustRK-07/SIH-disk-wipeout/internal/device"
)

// cmdRunner executes an external tool; tests substitute a fake.
type cmdRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execCmdRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// securityPassword is the throwaway ATA security password set just
// before the erase; the erase command consumes and clears it.
const securityPassword = "diskwipeout"

// HardwareExecutor dispatches firmware-level erasure: NVMe format with
// secure-erase settings for NVMe drives, the ATA security erase sequence
// for SATA drives.
type HardwareExecutor struct {
	run    cmdRunner
	logger zerolog.Logger
}

// NewHardwareExecutor builds the production hardware binding.
func NewHardwareExecutor(logger zerolog.Logger) *HardwareExecutor {
	return &HardwareExecutor{
		run:    execCmdRunner,
		logger: logger.With().Str("component", "hardware-executor").Logger(),
	}
}

// Execute runs the firmware erase for the device's media class.
// BytesWritten reports the full extent the firmware sanitized.
func (he *HardwareExecutor) Execute(ctx context.Context, spec PassSpec, dev device.Device, progress ProgressFunc) PassResult {
	result := PassResult{
		Index:     spec.Index,
		Method:    spec.Method,
		Pattern:   spec.Pattern,
		StartTime: time.Now().UTC(),
	}

	if spec.Pattern != PatternSecureErase {
		result.Outcome = OutcomeFailed
		result.Error = fmt.Sprintf("hardware executor only handles %s, got %s", PatternSecureErase, spec.Pattern)
		result.EndTime = time.Now().UTC()
		return result
	}

	var err error
	switch dev.Class {
	case device.ClassNVMe:
		err = he.nvmeFormat(ctx, dev.Path)
	case device.ClassHDD, device.ClassSSD:
		err = he.ataSecureErase(ctx, dev.Path)
	default:
		result.Outcome = OutcomeFailed
		result.Error = fmt.Sprintf("no firmware erase available for media class %s", dev.Class)
		result.EndTime = time.Now().UTC()
		return result
	}

	result.EndTime = time.Now().UTC()
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Error = err.Error()
		return result
	}

	result.BytesWritten = dev.SizeBytes()
	result.Outcome = OutcomeSuccess
	if progress != nil {
		progress(PassProgress{PassIndex: spec.Index, BytesWritten: result.BytesWritten, TotalBytes: result.BytesWritten})
	}
	he.logger.Info().Str("device", dev.Path).Str("class", string(dev.Class)).Msg("firmware erase complete")
	return result
}

// nvmeFormat issues a user-data secure erase format.
func (he *HardwareExecutor) nvmeFormat(ctx context.Context, path string) error {
	out, err := he.run(ctx, "nvme", "format", path, "--ses=1", "--force")
	if err != nil {
		return fmt.Errorf("nvme format %s failed: %v: %s", path, err, out)
	}
	return nil
}

// ataSecureErase sets a temporary security password and issues the
// erase, which also clears the password on completion.
func (he *HardwareExecutor) ataSecureErase(ctx context.Context, path string) error {
	out, err := he.run(ctx, "hdparm", "--user-master", "u",
		"--security-set-pass", securityPassword, path)
	if err != nil {
		return fmt.Errorf("setting ATA security password on %s failed: %v: %s", path, err, out)
	}
	out, err = he.run(ctx, "hdparm", "--user-master", "u",
		"--security-erase", securityPassword, path)
	if err != nil {
		return fmt.Errorf("ATA security erase on %s failed: %v: %s", path, err, out)
	}
	return nil
}

// CompositeExecutor routes firmware passes to the hardware executor and
// overwrite passes to the software one.
type CompositeExecutor struct {
	software Executor
	hardware Executor
}

// NewCompositeExecutor wires the two pass backends together.
func NewCompositeExecutor(software, hardware Executor) *CompositeExecutor {
	return &CompositeExecutor{software: software, hardware: hardware}
}

func (c *CompositeExecutor) Execute(ctx context.Context, spec PassSpec, dev device.Device, progress ProgressFunc) PassResult {
	if spec.Pattern == PatternSecureErase {
		return c.hardware.Execute(ctx, spec, dev, progress)
	}
	return c.software.Execute(ctx, spec, dev, progress)
}
