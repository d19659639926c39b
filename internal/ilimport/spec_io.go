package ilimport

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadModuleSpecFile reads one ModuleSpec from a JSON file on disk. This is
// deliberately a stdlib encoding/json decode of ModuleSpec's own exported
// fields, not a domain parsing concern. LoadModule does not decode the
// data section: SectionReader serves RVA reads as plain byte slices, and
// the funbit-based directory-header decode lives in ValidateSection, which
// LoadModule does not call. This is only the on-disk
// fixture format a driver invocation points at in place of a real PE/R2R
// image.
func LoadModuleSpecFile(path string) (ModuleSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ModuleSpec{}, fmt.Errorf("ilimport: reading module spec %s: %w", path, err)
	}
	var spec ModuleSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return ModuleSpec{}, fmt.Errorf("ilimport: parsing module spec %s: %w", path, err)
	}
	return spec, nil
}
