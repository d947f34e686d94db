//go:build integration

package i2c

import (
	"context"
	"os"
	"testing"

	"github.com/mklimuk/twi/scan"
	"github.com/stretchr/testify/require"
)

// TWI_DEVICE selects the host bus, the first one found otherwise.
func TestHostBus_Scan(t *testing.T) {
	b, err := NewHostBus(os.Getenv("TWI_DEVICE"), quiet)
	require.NoError(t, err)
	defer b.Close()

	found, err := scan.New(b, scan.WithLogger(quiet)).Scan(context.Background(), 0x08, 0x77)
	require.NoError(t, err)
	t.Logf("%s: %v", b, found)
}
