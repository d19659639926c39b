package codegen

// ISAExtension names one x86-64 instruction-set extension an intrinsic
// method body may lower to directly.
type ISAExtension string

const (
	ExtSSE       ISAExtension = "Sse"
	ExtSSE2      ISAExtension = "Sse2"
	ExtSSE3      ISAExtension = "Sse3"
	ExtSSSE3     ISAExtension = "Ssse3"
	ExtSSE41     ISAExtension = "Sse41"
	ExtSSE42     ISAExtension = "Sse42"
	ExtAVX       ISAExtension = "Avx"
	ExtAVX2      ISAExtension = "Avx2"
	ExtAES       ISAExtension = "Aes"
	ExtPCLMULQDQ ISAExtension = "Pclmulqdq"
	ExtLZCNT     ISAExtension = "Lzcnt"
	ExtPOPCNT    ISAExtension = "Popcnt"
	ExtBMI1      ISAExtension = "Bmi1"
	ExtBMI2      ISAExtension = "Bmi2"
)

// runtimeCheckedExtensions is the longer of the two listings: on some
// baseline x86-64 targets these five cannot be assumed present, so code
// using them needs a runtime feature probe even when it was ahead-of-time
// compiled. Everything else enumerated above is treated as always present
// on the compile-time target and never needs one.
var runtimeCheckedExtensions = map[ISAExtension]bool{
	ExtAES:       true,
	ExtPCLMULQDQ: true,
	ExtSSE3:      true,
	ExtSSSE3:     true,
	ExtLZCNT:     true,
}

// HasKnownSupportLevelAtCompileTime reports whether ext's support level
// (baseline-present vs. runtime-checked) is one this backend has an answer
// for at all. An unlisted extension has no known support level and its
// intrinsic must be treated as requiring a runtime check.
func HasKnownSupportLevelAtCompileTime(ext ISAExtension) bool {
	switch ext {
	case ExtSSE, ExtSSE2, ExtSSE3, ExtSSSE3, ExtSSE41, ExtSSE42,
		ExtAVX, ExtAVX2, ExtAES, ExtPCLMULQDQ, ExtLZCNT, ExtPOPCNT, ExtBMI1, ExtBMI2:
		return true
	default:
		return false
	}
}

// IsKnownSupportedIntrinsicAtCompileTime reports whether ext is known to be
// present on the compile-time target without a runtime feature check.
func IsKnownSupportedIntrinsicAtCompileTime(ext ISAExtension) bool {
	return HasKnownSupportLevelAtCompileTime(ext) && !runtimeCheckedExtensions[ext]
}

// isaCheckHelperID is the ReadyToRunHelper id a runtime-checked intrinsic
// use lowers to: a fixed CPU-feature probe stub, one per extension, shared
// across every method that guards on the same extension.
func isaCheckHelperID(ext ISAExtension) string {
	return "IsaCheck_" + string(ext)
}
