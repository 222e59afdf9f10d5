package memory

import (
	"os"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// gopsutilSampler is the default Sampler: current process RSS and
// system-wide available memory, both in MB.
type gopsutilSampler struct{}

func (gopsutilSampler) Sample() (rssMB, availableMB float64, err error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, 0, err
	}
	memInfo, err := proc.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, err
	}
	const mb = 1024 * 1024
	return float64(memInfo.RSS) / mb, float64(vm.Available) / mb, nil
}
