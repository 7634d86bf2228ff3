package hiddenarea

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustRK-07/SIH-disk-wipeout/internal/logging"
)

func TestHdparmSourceParsesSectorCounts(t *testing.T) {
	src := NewHdparmSource(logging.Nop())
	src.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		require.Equal(t, "hdparm", name)
		if args[0] == "-N" {
			return []byte("/dev/sdb:\n max sectors   = 586070255/586072368, HPA is enabled\n"), nil
		}
		require.Equal(t, "--dco-identify", args[0])
		return []byte("DCO Checksum verified.\nReal max sectors: 586072369\n"), nil
	}

	native, current, physical, err := src.ReadSectorCounts(context.Background(), "/dev/sdb")
	require.NoError(t, err)
	assert.Equal(t, uint64(586072368), native)
	assert.Equal(t, uint64(586070255), current)
	assert.Equal(t, uint64(586072369), physical)
}

func TestHdparmSourceToleratesMissingDCOSupport(t *testing.T) {
	src := NewHdparmSource(logging.Nop())
	src.run = func(_ context.Context, _ string, args ...string) ([]byte, error) {
		if args[0] == "-N" {
			return []byte(" max sectors   = 1000/1000, HPA is disabled\n"), nil
		}
		return []byte("DCO identify command not supported"), errors.New("exit status 22")
	}

	native, current, physical, err := src.ReadSectorCounts(context.Background(), "/dev/sdb")
	require.NoError(t, err)
	assert.Equal(t, native, physical)
	assert.Equal(t, native, current)
}

func TestHdparmSourceRejectsUnrecognizedOutput(t *testing.T) {
	src := NewHdparmSource(logging.Nop())
	src.run = func(_ context.Context, _ string, _ ...string) ([]byte, error) {
		return []byte("SG_IO: bad/missing sense data"), nil
	}

	_, _, _, err := src.ReadSectorCounts(context.Background(), "/dev/sdb")
	require.Error(t, err)
}

func TestClearHPASendsPermanentNativeMax(t *testing.T) {
	var issued []string
	src := NewHdparmSource(logging.Nop())
	src.run = func(_ context.Context, _ string, args ...string) ([]byte, error) {
		issued = append(issued, strings.Join(args, " "))
		if args[0] == "-N" && len(args) == 2 {
			return []byte(" max sectors   = 800/1000, HPA is enabled\n"), nil
		}
		return nil, nil
	}

	require.NoError(t, src.ClearHPA(context.Background(), "/dev/sdb"))
	assert.Contains(t, issued, "-N p1000 --yes-i-know-what-i-am-doing /dev/sdb")
}
