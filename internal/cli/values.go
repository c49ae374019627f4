package cli

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/iudanet/synccore/internal/crdt"
)

// parseAssignments converts name=value arguments into field changes.
//
// A value may carry an explicit kind prefix (number:, text:, bool:, timestamp:,
// bytes: with base64 payload). Without a prefix the kind is inferred:
// null, true/false, numbers and RFC 3339 times, anything else is text.
func parseAssignments(args []string) (map[string]crdt.FieldValue, error) {
	fields := make(map[string]crdt.FieldValue, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid assignment %q: expected name=value", arg)
		}
		if _, dup := fields[name]; dup {
			return nil, fmt.Errorf("field %q assigned twice", name)
		}

		value, err := parseValue(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		fields[name] = value
	}
	return fields, nil
}

func parseValue(raw string) (crdt.FieldValue, error) {
	if prefix, rest, ok := strings.Cut(raw, ":"); ok {
		if kind, err := crdt.ParseFieldKind(prefix); err == nil {
			return parseTyped(kind, rest)
		}
	}

	switch raw {
	case "null":
		return crdt.Null(), nil
	case "true", "false":
		return crdt.Bool(raw == "true"), nil
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
		return crdt.Number(n), nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return crdt.Timestamp(ts), nil
	}
	return crdt.Text(raw), nil
}

func parseTyped(kind crdt.FieldKind, raw string) (crdt.FieldValue, error) {
	switch kind {
	case crdt.KindNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return crdt.Null(), fmt.Errorf("invalid number %q", raw)
		}
		return crdt.Number(n), nil
	case crdt.KindText:
		return crdt.Text(raw), nil
	case crdt.KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return crdt.Null(), fmt.Errorf("invalid bool %q", raw)
		}
		return crdt.Bool(b), nil
	case crdt.KindTimestamp:
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return crdt.Null(), fmt.Errorf("invalid time %q: %w", raw, err)
		}
		return crdt.Timestamp(ts), nil
	case crdt.KindBytes:
		b, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return crdt.Null(), fmt.Errorf("invalid base64 payload: %w", err)
		}
		return crdt.Bytes(b), nil
	default:
		return crdt.Null(), nil
	}
}
