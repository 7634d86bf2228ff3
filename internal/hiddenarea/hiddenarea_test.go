package hiddenarea

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustRK-07/SIH-disk-wipeout/internal/errs"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/logging"
)

type fakeSource struct {
	native, current, physical uint64
	readErrs                  []error
	reads                     int
	clearHPAErr               error
	clearDCOErr               error
	hpaCleared                bool
	dcoCleared                bool
	stickyHPA                 bool
	stickyDCO                 bool
}

func (f *fakeSource) ReadSectorCounts(_ context.Context, _ string) (uint64, uint64, uint64, error) {
	f.reads++
	if len(f.readErrs) > 0 {
		err := f.readErrs[0]
		f.readErrs = f.readErrs[1:]
		if err != nil {
			return 0, 0, 0, err
		}
	}
	native, current := f.native, f.current
	if f.dcoCleared && !f.stickyDCO {
		native = f.physical
	}
	if f.hpaCleared && !f.stickyHPA {
		current = native
	}
	return native, current, f.physical, nil
}

func (f *fakeSource) ClearHPA(_ context.Context, _ string) error {
	if f.clearHPAErr != nil {
		return f.clearHPAErr
	}
	f.hpaCleared = true
	return nil
}

func (f *fakeSource) ClearDCO(_ context.Context, _ string) error {
	if f.clearDCOErr != nil {
		return f.clearDCOErr
	}
	f.dcoCleared = true
	return nil
}

func TestReportDerivesHPAAndDCO(t *testing.T) {
	report, err := NewReport(1000, 800, 1000)
	require.NoError(t, err)

	assert.True(t, report.HPAPresent())
	assert.Equal(t, uint64(200), report.HPASize())
	assert.False(t, report.DCOPresent())
	assert.Equal(t, uint64(0), report.DCOSize())
}

func TestReportRejectsInvalidCounts(t *testing.T) {
	_, err := NewReport(1000, 1200, 1000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrDetectionFailed))

	_, err = NewReport(1200, 800, 1000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrDetectionFailed))
}

func TestDetectRetriesOnce(t *testing.T) {
	src := &fakeSource{
		native: 2000, current: 2000, physical: 2000,
		readErrs: []error{errors.New("transient ata error")},
	}
	ins := NewInspector(src, logging.Nop())

	report, err := ins.Detect(context.Background(), "/dev/sdz")
	require.NoError(t, err)
	assert.Equal(t, 2, src.reads)
	assert.False(t, report.HPAPresent())
	assert.False(t, report.DCOPresent())
}

func TestDetectFailsAfterRetry(t *testing.T) {
	src := &fakeSource{
		readErrs: []error{errors.New("ata error"), errors.New("ata error")},
	}
	ins := NewInspector(src, logging.Nop())

	_, err := ins.Detect(context.Background(), "/dev/sdz")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrDetectionFailed))
}

func TestRemoveHPAVerifiesRemoval(t *testing.T) {
	src := &fakeSource{native: 1000, current: 800, physical: 1000}
	ins := NewInspector(src, logging.Nop())

	report, err := ins.RemoveHPA(context.Background(), "/dev/sdz")
	require.NoError(t, err)
	assert.False(t, report.HPAPresent())
	assert.Equal(t, uint64(1000), report.CurrentMaxSectors)
}

func TestRemoveHPAFailsWhenAreaPersists(t *testing.T) {
	src := &fakeSource{native: 1000, current: 800, physical: 1000, stickyHPA: true}
	ins := NewInspector(src, logging.Nop())

	_, err := ins.RemoveHPA(context.Background(), "/dev/sdz")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrRemovalFailed))
}

func TestRemoveDCORequiresForce(t *testing.T) {
	src := &fakeSource{native: 900, current: 900, physical: 1000}
	ins := NewInspector(src, logging.Nop())

	_, err := ins.RemoveDCO(context.Background(), "/dev/sdz", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrRemovalFailed))
	assert.False(t, src.dcoCleared)

	report, err := ins.RemoveDCO(context.Background(), "/dev/sdz", true)
	require.NoError(t, err)
	assert.False(t, report.DCOPresent())
}
