// Package objwriter is the object-file writer that serializes the compiler
// pass's marked node set into a ready-to-run image. The writer owns section
// layout; the core only guarantees the marked-node order is topologically
// stable.
//
// Real PE/ELF/Mach-O encoding is out of scope; Writer lays out a minimal
// deterministic section image instead, sufficient to exercise the
// relocation-fixup contract end to end.
package objwriter

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"github.com/aot-native/ilc/internal/depgraph"
	"github.com/aot-native/ilc/internal/nodes"
	"github.com/aot-native/ilc/internal/typesystem"
)

// Writer is the object-file writer contract.
type Writer interface {
	EmitObject(primary *typesystem.ModuleDesc, outputPath string, marked []depgraph.Node, factory *nodes.Factory) error
}

const magic = "ILCIMG1\x00"

// StubWriter lays a text section out by walking marked in order, placing
// each compiled method's code sequentially, then patches every relocation
// against the resulting symbol table before writing the image.
type StubWriter struct{}

func New() *StubWriter { return &StubWriter{} }

// symbolEntry is one method's placement in the text section.
type symbolEntry struct {
	key    string
	offset uint32
	length uint32
}

func (w *StubWriter) EmitObject(primary *typesystem.ModuleDesc, outputPath string, marked []depgraph.Node, factory *nodes.Factory) error {
	var text bytes.Buffer
	symbols := make(map[string]symbolEntry, len(marked))
	var order []symbolEntry
	var pending []struct {
		key    string
		result nodes.CompileResult
	}

	for _, n := range marked {
		key := n.Key()
		result, ok := factory.ResultForKey(key)
		if !ok || len(result.Code) == 0 {
			continue
		}
		entry := symbolEntry{key: key, offset: uint32(text.Len()), length: uint32(len(result.Code))}
		text.Write(result.Code)
		symbols[key] = entry
		order = append(order, entry)
		pending = append(pending, struct {
			key    string
			result nodes.CompileResult
		}{key, result})
	}

	image := text.Bytes()
	for _, p := range pending {
		base := symbols[p.key].offset
		for _, reloc := range p.result.Relocs {
			target, ok := symbols[reloc.Target]
			if !ok {
				// The target was never compiled locally (extern, helper, or
				// left empty by a runtime-JIT degrade); the relocation is
				// resolved by the runtime loader instead, not here.
				continue
			}
			at := int(base) + reloc.Offset
			if at < 0 || at+4 > len(image) {
				return fmt.Errorf("objwriter: relocation for %s at offset %d runs past %s's code", reloc.Target, reloc.Offset, p.key)
			}
			binary.LittleEndian.PutUint32(image[at:at+4], target.offset)
		}
	}

	var out bytes.Buffer
	out.WriteString(magic)
	primaryName := ""
	if primary != nil {
		primaryName = primary.Name
	}
	writeLenString(&out, primaryName)
	binary.Write(&out, binary.LittleEndian, uint32(len(image)))
	out.Write(image)

	sort.Slice(order, func(i, j int) bool { return order[i].key < order[j].key })
	binary.Write(&out, binary.LittleEndian, uint32(len(order)))
	for _, e := range order {
		writeLenString(&out, e.key)
		binary.Write(&out, binary.LittleEndian, e.offset)
		binary.Write(&out, binary.LittleEndian, e.length)
	}

	return os.WriteFile(outputPath, out.Bytes(), 0o644)
}

func writeLenString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, uint32(len(s)))
	buf.WriteString(s)
}

var _ Writer = (*StubWriter)(nil)
