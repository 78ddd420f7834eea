package trace

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// DomainTrace separates trace digests from any other SHA-256 use.
const DomainTrace = "escalate/trace/v1"

// MarshalCanonical encodes events as canonical JSON: object keys sorted,
// strings NFC-normalized, no HTML escaping, no insignificant whitespace.
// Keys are ASCII, so byte order and UTF-16 order agree.
func MarshalCanonical(events []Event) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, e := range events {
		if i > 0 {
			buf.WriteByte(',')
		}
		obj := map[string]any{
			"seq":  e.Seq,
			"boot": int64(e.Boot),
			"kind": string(e.Kind),
			"text": e.Text,
		}
		if e.Level != "" {
			obj["level"] = e.Level
		}
		if err := writeObject(&buf, obj); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// Digest is the hex SHA-256 of the canonical encoding, domain separated.
func Digest(events []Event) (string, error) {
	data, err := MarshalCanonical(events)
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(DomainTrace))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeObject(buf *bytes.Buffer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		switch v := obj[k].(type) {
		case string:
			if err := writeString(buf, v); err != nil {
				return err
			}
		case int64:
			fmt.Fprintf(buf, "%d", v)
		default:
			return fmt.Errorf("key %q: unsupported type %T", k, v)
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}
