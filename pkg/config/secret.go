package config

// Secret wraps a credential so it cannot leak through formatting. Both Stringer
// and GoStringer print a redaction marker; only Value exposes the raw text.
type Secret struct {
	value string
}

// NewSecret wraps a credential string.
func NewSecret(value string) Secret { return Secret{value: value} }

// Value returns the raw credential.
func (s Secret) Value() string { return s.value }

// IsSet reports whether the secret carries a non-empty value.
func (s Secret) IsSet() bool { return s.value != "" }

func (s Secret) String() string { return "[REDACTED]" }

// GoString guards %#v output.
func (s Secret) GoString() string { return "config.Secret{[REDACTED]}" }

// MarshalJSON redacts the secret in serialized form as well.
func (s Secret) MarshalJSON() ([]byte, error) { return []byte(`"[REDACTED]"`), nil }
