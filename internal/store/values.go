package store

import (
	"encoding/json"
	"fmt"
	"time"
)

const timestampKey = "__timestamp"

// Timestamp is the store-native instant representation. Entity codecs convert
// it to and from time.Time at the store boundary.
type Timestamp struct {
	Seconds int64
	Nanos   int32
}

func TimestampOf(t time.Time) Timestamp {
	t = t.UTC()
	return Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

func (ts Timestamp) AsTime() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC()
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{timestampKey: ts.AsTime().Format(time.RFC3339Nano)})
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw[timestampKey])
	if err != nil {
		return fmt.Errorf("parsing timestamp: %w", err)
	}
	*ts = TimestampOf(parsed)
	return nil
}

// Transform is a field value resolved against the stored value at commit time.
type Transform interface {
	apply(current any, now Timestamp) (value any, remove bool)
}

type serverTimestamp struct{}

func (serverTimestamp) apply(_ any, now Timestamp) (any, bool) { return now, false }

// ServerTimestamp resolves to the commit instant.
func ServerTimestamp() Transform { return serverTimestamp{} }

type deleteField struct{}

func (deleteField) apply(any, Timestamp) (any, bool) { return nil, true }

// DeleteField removes the field from the stored document.
func DeleteField() Transform { return deleteField{} }

type arrayUnion struct{ values []any }

func (u arrayUnion) apply(current any, _ Timestamp) (any, bool) {
	existing := asSlice(current)
	out := make([]any, 0, len(existing)+len(u.values))
	out = append(out, existing...)
	for _, v := range u.values {
		if !containsValue(out, v) {
			out = append(out, v)
		}
	}
	return out, false
}

// ArrayUnion adds each value to the array field unless already present.
func ArrayUnion(values ...any) Transform { return arrayUnion{values: values} }

type arrayRemove struct{ values []any }

func (r arrayRemove) apply(current any, _ Timestamp) (any, bool) {
	existing := asSlice(current)
	out := make([]any, 0, len(existing))
	for _, v := range existing {
		if !containsValue(r.values, v) {
			out = append(out, v)
		}
	}
	return out, false
}

// ArrayRemove removes every occurrence of each value from the array field.
func ArrayRemove(values ...any) Transform { return arrayRemove{values: values} }

// resolveCreate builds the stored body of a new document.
func resolveCreate(doc Document, now Timestamp) Document {
	return resolveMerge(nil, doc, now)
}

// resolveMerge applies fields on top of base and returns a new document body.
func resolveMerge(base, fields Document, now Timestamp) Document {
	out := make(Document, len(base)+len(fields))
	for k, v := range base {
		if k == FieldID {
			continue
		}
		out[k] = v
	}
	for k, v := range fields {
		if k == FieldID {
			continue
		}
		if t, ok := v.(Transform); ok {
			value, remove := t.apply(out[k], now)
			if remove {
				delete(out, k)
				continue
			}
			out[k] = value
			continue
		}
		out[k] = v
	}
	return out
}

func encodeBody(doc Document) ([]byte, error) {
	body := make(Document, len(doc))
	for k, v := range doc {
		if k == FieldID {
			continue
		}
		body[k] = v
	}
	return json.Marshal(body)
}

func decodeBody(id string, data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshaling document %s: %w", id, err)
	}
	if doc == nil {
		doc = Document{}
	}
	for k, v := range doc {
		doc[k] = restoreTimestamps(v)
	}
	doc[FieldID] = id
	return doc, nil
}

// UnmarshalJSON turns {"__timestamp": ...} objects back into Timestamp values.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		raw[k] = restoreTimestamps(v)
	}
	*d = raw
	return nil
}

func restoreTimestamps(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if raw, ok := val[timestampKey].(string); ok && len(val) == 1 {
			if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
				return TimestampOf(t)
			}
		}
		for k, item := range val {
			val[k] = restoreTimestamps(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = restoreTimestamps(item)
		}
		return val
	}
	return v
}
