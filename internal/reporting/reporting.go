// Package reporting renders human- and machine-readable reports from a
// signed certificate. Reports are derived artifacts; the certificate in
// the store stays the single source of truth.
package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/JustRK-07/SIH-disk-wipeout/internal/certificate"
)

// WriteJSON exports the certificate as indented JSON under dir and
// returns the file path.
func WriteJSON(cert *certificate.Certificate, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "creating report directory %s", dir)
	}

	data, err := json.MarshalIndent(cert, "", "  ")
	if err != nil {
		return "", errors.Wrapf(err, "encoding certificate %s", cert.ID)
	}

	path := filepath.Join(dir, reportName(cert, "json"))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "writing report %s", path)
	}
	return path, nil
}

// WriteText renders the certificate as a sanitization report in the
// NIST SP 800-88 framing and writes it under dir.
func WriteText(cert *certificate.Certificate, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "creating report directory %s", dir)
	}

	path := filepath.Join(dir, reportName(cert, "txt"))
	if err := os.WriteFile(path, []byte(RenderText(cert)), 0o644); err != nil {
		return "", errors.Wrapf(err, "writing report %s", path)
	}
	return path, nil
}

// RenderText builds the textual sanitization report.
func RenderText(cert *certificate.Certificate) string {
	var b strings.Builder

	line := strings.Repeat("=", 70)
	fmt.Fprintln(&b, line)
	fmt.Fprintln(&b, "MEDIA SANITIZATION REPORT (NIST SP 800-88 Rev. 1)")
	fmt.Fprintln(&b, line)
	fmt.Fprintf(&b, "Certificate ID : %s\n", cert.ID)
	fmt.Fprintf(&b, "Issuer         : %s\n", cert.Issuer)
	fmt.Fprintf(&b, "Tool           : %s %s\n", cert.Tool, cert.ToolVersion)
	if cert.Operator != "" {
		fmt.Fprintf(&b, "Operator       : %s\n", cert.Operator)
	}
	fmt.Fprintf(&b, "Issued         : %s\n", cert.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Status         : %s\n", cert.Status)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "MEDIA")
	fmt.Fprintf(&b, "  Device       : %s\n", cert.Device.Path)
	fmt.Fprintf(&b, "  Model        : %s\n", orUnknown(cert.Device.Model))
	fmt.Fprintf(&b, "  Serial       : %s\n", orUnknown(cert.Device.Serial))
	fmt.Fprintf(&b, "  Class        : %s\n", cert.Device.Class)
	fmt.Fprintf(&b, "  Capacity     : %d bytes (%d sectors x %d)\n",
		cert.Device.SizeBytes(), cert.Device.Sectors, cert.Device.SectorSize)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "SANITIZATION")
	fmt.Fprintf(&b, "  Method       : %s (%d pass(es))\n", cert.Request.Method, cert.Request.Passes)
	for _, pr := range cert.PassResults {
		fmt.Fprintf(&b, "  Pass %-2d      : %s pattern=%s bytes=%d duration=%s\n",
			pr.Index, pr.Outcome, pr.Pattern, pr.BytesWritten,
			pr.EndTime.Sub(pr.StartTime).Round(time.Second))
		if pr.Error != "" {
			fmt.Fprintf(&b, "                 error: %s\n", pr.Error)
		}
	}
	if len(cert.PassResults) == 0 {
		fmt.Fprintln(&b, "  No passes executed.")
	}
	fmt.Fprintln(&b)

	if cert.HiddenBefore != nil {
		fmt.Fprintln(&b, "HIDDEN AREAS")
		fmt.Fprintf(&b, "  HPA detected : %v (%d sectors)\n", cert.HiddenBefore.HPAPresent(), cert.HiddenBefore.HPASize())
		fmt.Fprintf(&b, "  DCO detected : %v (%d sectors)\n", cert.HiddenBefore.DCOPresent(), cert.HiddenBefore.DCOSize())
		if cert.HiddenAfter != nil {
			fmt.Fprintf(&b, "  After removal: HPA=%v DCO=%v\n", cert.HiddenAfter.HPAPresent(), cert.HiddenAfter.DCOPresent())
		}
		fmt.Fprintln(&b)
	}

	fmt.Fprintln(&b, "VERIFICATION")
	if cert.Verdict != nil {
		v := cert.Verdict
		fmt.Fprintf(&b, "  Verdict      : %s\n", v.Classification)
		fmt.Fprintf(&b, "  Expectation  : %s\n", v.Expectation)
		fmt.Fprintf(&b, "  Samples      : %d (%d bytes, %d inconclusive)\n", len(v.Samples), v.SampledBytes, v.InconclusiveReads)
		fmt.Fprintf(&b, "  Entropy      : mean=%.3f min=%.3f threshold=%.2f bits/byte\n", v.MeanEntropy, v.MinEntropy, v.EntropyThreshold)
		fmt.Fprintf(&b, "  Patterns     : %d signature match(es)\n", v.PatternMatches)
	} else {
		fmt.Fprintln(&b, "  Not performed.")
	}
	fmt.Fprintln(&b)

	if len(cert.Warnings) > 0 {
		fmt.Fprintln(&b, "WARNINGS")
		for _, w := range cert.Warnings {
			fmt.Fprintf(&b, "  - %s\n", w)
		}
		fmt.Fprintln(&b)
	}

	fmt.Fprintln(&b, "ATTESTATION")
	fmt.Fprintf(&b, "  Scheme       : %s\n", cert.Scheme)
	fmt.Fprintf(&b, "  Content hash : %s\n", cert.ContentHash)
	fmt.Fprintf(&b, "  Prior hash   : %s\n", orNone(cert.PriorHash))
	fmt.Fprintf(&b, "  Signature    : %s\n", cert.Signature)
	if cert.PublicKey != "" {
		fmt.Fprintf(&b, "  Public key   : %s\n", cert.PublicKey)
	}
	fmt.Fprintln(&b, line)

	return b.String()
}

func reportName(cert *certificate.Certificate, ext string) string {
	device := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(strings.TrimPrefix(cert.Device.Path, "/"))
	return fmt.Sprintf("erasure_%s_%s.%s", device, cert.CreatedAt.Format("20060102_150405"), ext)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
