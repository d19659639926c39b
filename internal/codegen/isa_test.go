package codegen

import "testing"

func TestRuntimeCheckedExtensionsMatchTheLongerListing(t *testing.T) {
	runtimeChecked := []ISAExtension{ExtAES, ExtPCLMULQDQ, ExtSSE3, ExtSSSE3, ExtLZCNT}
	for _, ext := range runtimeChecked {
		if IsKnownSupportedIntrinsicAtCompileTime(ext) {
			t.Fatalf("%s must be runtime-checked, not compile-time known", ext)
		}
	}

	compileTimeKnown := []ISAExtension{ExtSSE, ExtSSE2, ExtSSE41, ExtSSE42, ExtAVX, ExtAVX2, ExtPOPCNT, ExtBMI1, ExtBMI2}
	for _, ext := range compileTimeKnown {
		if !IsKnownSupportedIntrinsicAtCompileTime(ext) {
			t.Fatalf("%s must be compile-time known", ext)
		}
	}
}

func TestHasKnownSupportLevelAtCompileTimeRejectsUnlistedExtensions(t *testing.T) {
	if HasKnownSupportLevelAtCompileTime(ISAExtension("Avx512")) {
		t.Fatalf("an unenumerated extension must have no known support level")
	}
}
