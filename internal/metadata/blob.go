package metadata

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/builder"
	"github.com/jhump/protoreflect/dynamic"
)

// Blob is the output of ComputeMetadata: a single serialized byte stream
// plus an offset table per entity kind, the way a native image's metadata
// section is one contiguous blob addressed by per-entity offsets.
type Blob struct {
	Bytes     []byte
	TypeMap   map[string]uint32
	MethodMap map[string]uint32
	FieldMap  map[string]uint32
}

// entryDescriptor is built once and reused for every record: a flat
// (kind, key, category) triple, encoded with protobuf instead of a
// hand-rolled binary layout.
var entryDescriptor = buildEntryDescriptor()

func buildEntryDescriptor() *desc.MessageDescriptor {
	md, err := builder.NewMessage("MetadataEntry").
		AddField(builder.NewField("kind", builder.FieldTypeString())).
		AddField(builder.NewField("key", builder.FieldTypeString())).
		AddField(builder.NewField("category", builder.FieldTypeInt32())).
		Build()
	if err != nil {
		// The descriptor is a fixed literal schema; a build failure here
		// means the schema itself is malformed, not a runtime condition.
		panic(fmt.Sprintf("metadata: MetadataEntry descriptor: %v", err))
	}
	return md
}

func encodeEntry(kind, key string, category Category) ([]byte, error) {
	msg := dynamic.NewMessage(entryDescriptor)
	if err := msg.SetFieldByName("kind", kind); err != nil {
		return nil, err
	}
	if err := msg.SetFieldByName("key", key); err != nil {
		return nil, err
	}
	if err := msg.SetFieldByName("category", int32(category)); err != nil {
		return nil, err
	}
	return msg.Marshal()
}

// ComputeMetadata serializes every entity with a non-zero category under p
// into one blob, length-prefixed record by record, and returns the offset
// each record starts at keyed by entity interning key. Entities are sorted
// by (kind, key) first so the blob is byte-for-byte deterministic across
// runs of the same compilation.
func ComputeMetadata(p Policy, entities []any) (*Blob, error) {
	type row struct {
		kind, key string
		category  Category
		entity    any
	}
	rows := make([]row, 0, len(entities))
	for _, e := range entities {
		cat := p.GetMetadataCategory(e)
		if cat == 0 {
			continue
		}
		kind, key := entityKey(e)
		rows = append(rows, row{kind: kind, key: key, category: cat, entity: e})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].kind != rows[j].kind {
			return rows[i].kind < rows[j].kind
		}
		return rows[i].key < rows[j].key
	})

	blob := &Blob{
		TypeMap:   make(map[string]uint32),
		MethodMap: make(map[string]uint32),
		FieldMap:  make(map[string]uint32),
	}
	var lenPrefix [binary.MaxVarintLen32]byte
	for _, r := range rows {
		encoded, err := encodeEntry(r.kind, r.key, r.category)
		if err != nil {
			return nil, fmt.Errorf("metadata: encoding %s %s: %w", r.kind, r.key, err)
		}
		offset := uint32(len(blob.Bytes))
		n := binary.PutUvarint(lenPrefix[:], uint64(len(encoded)))
		blob.Bytes = append(blob.Bytes, lenPrefix[:n]...)
		blob.Bytes = append(blob.Bytes, encoded...)

		switch r.kind {
		case "type":
			blob.TypeMap[r.key] = offset
		case "method":
			blob.MethodMap[r.key] = offset
		case "field":
			blob.FieldMap[r.key] = offset
		}
	}
	return blob, nil
}

// DecodeEntryAt reads one MetadataEntry record back out of a blob at the
// given offset, mirroring how a runtime metadata reader would resolve a
// stored offset back to (kind, key, category).
func DecodeEntryAt(blob []byte, offset uint32) (kind, key string, category Category, err error) {
	length, n := binary.Uvarint(blob[offset:])
	if n <= 0 {
		return "", "", 0, fmt.Errorf("metadata: malformed length prefix at offset %d", offset)
	}
	start := int(offset) + n
	end := start + int(length)
	if end > len(blob) {
		return "", "", 0, fmt.Errorf("metadata: record at offset %d runs past blob end", offset)
	}
	msg := dynamic.NewMessage(entryDescriptor)
	if err := msg.Unmarshal(blob[start:end]); err != nil {
		return "", "", 0, err
	}
	kindVal, _ := msg.TryGetFieldByName("kind")
	keyVal, _ := msg.TryGetFieldByName("key")
	catVal, _ := msg.TryGetFieldByName("category")
	kind, _ = kindVal.(string)
	key, _ = keyVal.(string)
	if c, ok := catVal.(int32); ok {
		category = Category(c)
	}
	return kind, key, category, nil
}
