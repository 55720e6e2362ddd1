package callDataDecoder

import "github.com/dorothy-zbornak/0x-user-clusters/pkg/types"

// Clean strips decoding artifacts from a value tree.
//
// Records made only of positional aliases (unnamed tuples) become sequences;
// every other record keeps its named fields in order. Scalars pass through.
// Clean is idempotent.
func Clean(v types.Value) types.Value {
	switch t := v.(type) {
	case types.Sequence:
		out := make(types.Sequence, len(t))
		for i, item := range t {
			out[i] = Clean(item)
		}
		return out
	case *types.Record:
		if t == nil {
			return t
		}
		if isPositional(t) {
			out := make(types.Sequence, 0, len(t.Fields))
			for _, f := range t.Fields {
				if f.Artifact && f.Key != types.LengthMarkerKey {
					out = append(out, Clean(f.Value))
				}
			}
			return out
		}
		out := types.NewRecord()
		for _, f := range t.Fields {
			if f.Artifact {
				continue
			}
			out.Add(f.Key, Clean(f.Value))
		}
		return out
	default:
		return v
	}
}

// CleanArguments cleans a decoded argument list and always returns a record.
// Argument lists without any named parameter clean to an empty record.
func CleanArguments(record *types.Record) *types.Record {
	if cleaned, ok := Clean(record).(*types.Record); ok && cleaned != nil {
		return cleaned
	}
	return types.NewRecord()
}

func isPositional(r *types.Record) bool {
	positional := 0
	for _, f := range r.Fields {
		if !f.Artifact {
			return false
		}
		if f.Key != types.LengthMarkerKey {
			positional++
		}
	}
	return positional > 0
}
