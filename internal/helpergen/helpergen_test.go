package helpergen

import (
	"strings"
	"testing"
)

func TestTableSymbolFor(t *testing.T) {
	table := Table{
		{HelperID: "Throw", Symbol: "helpers.HelperThrow", ParamCount: 1},
		{HelperID: "NewObject", Symbol: "helpers.HelperNewObject", ParamCount: 2},
	}

	sym, ok := table.SymbolFor("NewObject")
	if !ok || sym != "helpers.HelperNewObject" {
		t.Errorf("SymbolFor(NewObject) = %q, %v", sym, ok)
	}

	if _, ok := table.SymbolFor("DoesNotExist"); ok {
		t.Errorf("SymbolFor(DoesNotExist) should not resolve")
	}
}

func TestGenerateSourceIsDeterministicAndSorted(t *testing.T) {
	table := Table{
		{HelperID: "Zeta", Symbol: "helpers.HelperZeta"},
		{HelperID: "Alpha", Symbol: "helpers.HelperAlpha"},
	}

	src := GenerateSource("generated", table)

	if !strings.HasPrefix(src, "// Code generated by helpergen. DO NOT EDIT.\n") {
		t.Errorf("expected generated-file header, got: %s", src)
	}
	if !strings.Contains(src, "package generated\n") {
		t.Errorf("expected package clause, got: %s", src)
	}

	alphaIdx := strings.Index(src, `"Alpha"`)
	zetaIdx := strings.Index(src, `"Zeta"`)
	if alphaIdx == -1 || zetaIdx == -1 || alphaIdx > zetaIdx {
		t.Errorf("expected Alpha before Zeta in sorted output, got: %s", src)
	}
}

func TestHelperFuncNameConvention(t *testing.T) {
	if got := helperFuncName("ThrowOverflow"); got != "HelperThrowOverflow" {
		t.Errorf("helperFuncName(ThrowOverflow) = %q", got)
	}
}
