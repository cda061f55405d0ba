package resolve

// Source describes one input to a resolver Map: an ELF object, the
// running kernel, a live process, or a standalone GSYM file/buffer.
type Source interface {
	isSource()
}

// ElfSource is a single ELF object loaded at Base.
type ElfSource struct {
	Path string
	Base uint64
}

func (ElfSource) isSource() {}

// KernelSource combines an optional kernel image (for symbol sizes) with
// a kallsyms symbol list. Empty paths fall back to their defaults
// (DefaultKallsymsPath; no image).
type KernelSource struct {
	KallsymsPath string
	ImagePath    string
	// Range is the runtime address range covered by kernel addresses.
	// Defaults to the canonical x86-64 kernel half if unset.
	Range AddrRange
}

func (KernelSource) isSource() {}

// ProcessSource expands into one resolver per relevant proc-maps entry of
// the given process. PID of procmaps.SelfPID (0) means the calling
// process.
type ProcessSource struct {
	PID int
}

func (ProcessSource) isSource() {}

// GsymSource is a standalone GSYM file (Path) or in-memory buffer (Data),
// loaded at Base. Exactly one of Path or Data should be set.
type GsymSource struct {
	Path string
	Data []byte
	Base uint64
}

func (GsymSource) isSource() {}
