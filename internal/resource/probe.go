package resource

import (
	"fmt"

	"github.com/prometheus/procfs"
)

// Probe reads the host's memory accounting. Implementations must be cheap
// and non-blocking; the monitor calls them on every tick.
type Probe interface {
	// CurrentMemory returns used and total bytes.
	CurrentMemory() (used, total uint64, err error)
}

// procProbe reads /proc/meminfo via the procfs library.
type procProbe struct {
	fs procfs.FS
}

// NewProcProbe builds a Probe backed by the default procfs mount.
func NewProcProbe() (Probe, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("open procfs: %w", err)
	}
	return &procProbe{fs: fs}, nil
}

func (p *procProbe) CurrentMemory() (uint64, uint64, error) {
	mi, err := p.fs.Meminfo()
	if err != nil {
		return 0, 0, fmt.Errorf("read meminfo: %w", err)
	}
	if mi.MemTotal == nil || mi.MemAvailable == nil {
		return 0, 0, fmt.Errorf("meminfo missing MemTotal/MemAvailable")
	}
	total := *mi.MemTotal * 1024
	avail := *mi.MemAvailable * 1024
	if avail > total {
		avail = total
	}
	return total - avail, total, nil
}
