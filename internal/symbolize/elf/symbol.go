package elf

// SymbolType selects which kind of symbol a name/address lookup should
// match.
type SymbolType int

const (
	// SymbolUnknown matches any symbol type.
	SymbolUnknown SymbolType = iota
	// SymbolFunction requests function symbols. Name lookups do not
	// filter on st_type, so they return the same matches as
	// SymbolUnknown, each reported with this type.
	SymbolFunction
	// SymbolVariable requests STT_OBJECT symbols. Lookups for this type
	// are unsupported by this parser — see FindAddress.
	SymbolVariable
)

// FindAddrOpts controls name-to-address lookups.
type FindAddrOpts struct {
	// OffsetInFile requests file offsets rather than virtual addresses
	// where the two differ. No lookup in this module consults it: the
	// parser reports st_value, and ElfResolver adds its load base.
	OffsetInFile bool
	// ObjFileName requests the backing object's path with each result.
	// No lookup in this module consults it, and SymbolInfo carries no
	// path.
	ObjFileName bool
	// SymType selects the kind of lookup. SymbolVariable is rejected with
	// symerr.Unsupported; for any other value, every defined symbol whose
	// name matches is returned, whatever its st_type.
	SymType SymbolType
}

// SymbolInfo describes a symbol found by name or address.
type SymbolInfo struct {
	Name    string
	Address uint64
	Size    uint64
	Type    SymbolType
}
