package pipeline

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Lllllllleong/recordarchiver/internal/models"
)

// Archived documents are plain JSON where values JSON cannot represent without
// loss are wrapped in a single-key object naming their type:
//
//	{"$integer": "42"}
//	{"$double": "NaN"}
//	{"$timestamp": "2024-01-02T03:04:05.123456789Z"}
//	{"$bytes": "<base64>"}
//	{"$geopoint": {"latitude": 1.5, "longitude": 2.5}}
//	{"$reference": "projects/p/databases/d/documents/c/id"}
//	{"$vector": [0.5, 1.25]}
//	{"$map": {...}}   // a map whose own keys start with "$"
//
// Finite floats are written as JSON numbers. Keys are sorted, so encoding the
// same document twice yields identical bytes.
const (
	tagInteger   = "$integer"
	tagDouble    = "$double"
	tagTimestamp = "$timestamp"
	tagBytes     = "$bytes"
	tagGeoPoint  = "$geopoint"
	tagReference = "$reference"
	tagVector    = "$vector"
	tagMap       = "$map"
)

// An archive wraps the encoded document with the source document ID, so a
// document field named "id" can never shadow it:
//
//	{"fields": {...}, "id": "<document id>"}
const (
	archiveIDKey     = "id"
	archiveFieldsKey = "fields"
)

// EncodeDocument serializes document fields into the archive encoding.
func EncodeDocument(fields map[string]interface{}) ([]byte, error) {
	tree, err := encodeMap(fields)
	if err != nil {
		return nil, err
	}
	return marshalTree(tree)
}

// EncodeArchive serializes a document together with its source document ID.
func EncodeArchive(id string, fields map[string]interface{}) ([]byte, error) {
	tree, err := encodeMap(fields)
	if err != nil {
		return nil, err
	}
	return marshalTree(map[string]interface{}{
		archiveIDKey:     id,
		archiveFieldsKey: tree,
	})
}

func marshalTree(tree interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tree); err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func encodeValue(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case bool, string:
		return val, nil
	case int:
		return map[string]interface{}{tagInteger: strconv.FormatInt(int64(val), 10)}, nil
	case int32:
		return map[string]interface{}{tagInteger: strconv.FormatInt(int64(val), 10)}, nil
	case int64:
		return map[string]interface{}{tagInteger: strconv.FormatInt(val, 10)}, nil
	case float32:
		return encodeFloat(float64(val)), nil
	case float64:
		return encodeFloat(val), nil
	case time.Time:
		return map[string]interface{}{tagTimestamp: val.UTC().Format(time.RFC3339Nano)}, nil
	case []byte:
		return map[string]interface{}{tagBytes: base64.StdEncoding.EncodeToString(val)}, nil
	case models.GeoPoint:
		return map[string]interface{}{tagGeoPoint: map[string]interface{}{
			"latitude":  val.Latitude,
			"longitude": val.Longitude,
		}}, nil
	case *models.GeoPoint:
		if val == nil {
			return nil, nil
		}
		return encodeValue(*val)
	case models.Reference:
		return map[string]interface{}{tagReference: val.Path}, nil
	case *models.Reference:
		if val == nil {
			return nil, nil
		}
		return encodeValue(*val)
	case models.Vector:
		out := make([]interface{}, len(val))
		for i, f := range val {
			out[i] = encodeFloat(f)
		}
		return map[string]interface{}{tagVector: out}, nil
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, elem := range val {
			enc, err := encodeValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = enc
		}
		return out, nil
	case map[string]interface{}:
		return encodeMap(val)
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func encodeFloat(f float64) interface{} {
	switch {
	case math.IsNaN(f):
		return map[string]interface{}{tagDouble: "NaN"}
	case math.IsInf(f, 1):
		return map[string]interface{}{tagDouble: "Infinity"}
	case math.IsInf(f, -1):
		return map[string]interface{}{tagDouble: "-Infinity"}
	}
	return f
}

func encodeMap(m map[string]interface{}) (interface{}, error) {
	out := make(map[string]interface{}, len(m))
	escaped := false
	for k, v := range m {
		if strings.HasPrefix(k, "$") {
			escaped = true
		}
		enc, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = enc
	}
	if escaped {
		return map[string]interface{}{tagMap: out}, nil
	}
	return out, nil
}

// DecodeDocument parses an archived document back into store-native values:
// int64, float64, time.Time, []byte, models.GeoPoint, models.Reference and
// models.Vector.
func DecodeDocument(data []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	v, err := decodeValue(raw)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("archived document is %T, want an object", v)
	}
	return m, nil
}

// DecodeRecord parses an object written by EncodeArchive and recovers the
// record identity from its document ID and timestamp field.
func DecodeRecord(data []byte, timestampField string) (models.Record, error) {
	archive, err := DecodeDocument(data)
	if err != nil {
		return models.Record{}, err
	}
	id, _ := archive[archiveIDKey].(string)
	if id == "" {
		return models.Record{}, fmt.Errorf("archive has no document id")
	}
	fields, ok := archive[archiveFieldsKey].(map[string]interface{})
	if !ok {
		return models.Record{}, fmt.Errorf("archive %s has no fields object", id)
	}
	if timestampField == "" {
		timestampField = DefaultTimestampField
	}
	createdAt, ok := fields[timestampField].(time.Time)
	if !ok {
		return models.Record{}, fmt.Errorf("archived document %s has no timestamp field %q", id, timestampField)
	}
	return models.Record{ID: id, CreatedAt: createdAt, Fields: fields}, nil
}

func decodeValue(raw interface{}) (interface{}, error) {
	switch val := raw.(type) {
	case nil, bool, string:
		return val, nil
	case json.Number:
		f, err := strconv.ParseFloat(val.String(), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", val, err)
		}
		return f, nil
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, elem := range val {
			dec, err := decodeValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = dec
		}
		return out, nil
	case map[string]interface{}:
		if len(val) == 1 {
			for tag, inner := range val {
				if strings.HasPrefix(tag, "$") {
					return decodeTagged(tag, inner)
				}
			}
		}
		return decodeMap(val)
	default:
		return nil, fmt.Errorf("unexpected JSON value %T", raw)
	}
}

func decodeMap(m map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		dec, err := decodeValue(m[k])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = dec
	}
	return out, nil
}

func decodeTagged(tag string, inner interface{}) (interface{}, error) {
	switch tag {
	case tagInteger:
		s, ok := inner.(string)
		if !ok {
			return nil, fmt.Errorf("%s must be a string", tag)
		}
		return strconv.ParseInt(s, 10, 64)
	case tagDouble:
		switch inner {
		case "NaN":
			return math.NaN(), nil
		case "Infinity":
			return math.Inf(1), nil
		case "-Infinity":
			return math.Inf(-1), nil
		}
		return nil, fmt.Errorf("invalid %s value %v", tag, inner)
	case tagTimestamp:
		s, ok := inner.(string)
		if !ok {
			return nil, fmt.Errorf("%s must be a string", tag)
		}
		return time.Parse(time.RFC3339Nano, s)
	case tagBytes:
		s, ok := inner.(string)
		if !ok {
			return nil, fmt.Errorf("%s must be a string", tag)
		}
		return base64.StdEncoding.DecodeString(s)
	case tagGeoPoint:
		m, ok := inner.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%s must be an object", tag)
		}
		lat, err := jsonFloat(m["latitude"])
		if err != nil {
			return nil, fmt.Errorf("%s latitude: %w", tag, err)
		}
		lng, err := jsonFloat(m["longitude"])
		if err != nil {
			return nil, fmt.Errorf("%s longitude: %w", tag, err)
		}
		return models.GeoPoint{Latitude: lat, Longitude: lng}, nil
	case tagReference:
		s, ok := inner.(string)
		if !ok {
			return nil, fmt.Errorf("%s must be a string", tag)
		}
		return models.Reference{Path: s}, nil
	case tagVector:
		elems, ok := inner.([]interface{})
		if !ok {
			return nil, fmt.Errorf("%s must be an array", tag)
		}
		vec := make(models.Vector, len(elems))
		for i, elem := range elems {
			dec, err := decodeValue(elem)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", tag, i, err)
			}
			f, ok := dec.(float64)
			if !ok {
				return nil, fmt.Errorf("%s[%d] is %T, want a number", tag, i, dec)
			}
			vec[i] = f
		}
		return vec, nil
	case tagMap:
		m, ok := inner.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%s must be an object", tag)
		}
		return decodeMap(m)
	default:
		return nil, fmt.Errorf("unknown type tag %q", tag)
	}
}

func jsonFloat(v interface{}) (float64, error) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("want a number, got %T", v)
	}
	return strconv.ParseFloat(n.String(), 64)
}
