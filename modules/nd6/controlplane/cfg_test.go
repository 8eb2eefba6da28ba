package nd6

import (
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidateRejectsUndersizedNexthopMemory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NexthopMemory = 1 * datasize.KB
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveFields(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RingCapacity = 0
	require.Error(t, cfg.Validate())
}
