package execution

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidExecutionID = errors.New("invalid execution id")

// nonceReplacer strips the separators so a Wid always splits the same way.
var nonceReplacer = strings.NewReplacer("-", "", "_", "")

// Wid identifies one firing of one watch. Its serialized form is
// watchID_nonce-executionTime with the time in RFC 3339. Two Wids are equal
// when their serialized values are equal.
type Wid struct {
	value   string
	watchID string
	nonce   string
}

// NewWid builds the id of a firing. The nonce loses any '-' or '_'.
func NewWid(watchID, nonce string, executionTime time.Time) Wid {
	nonce = nonceReplacer.Replace(nonce)

	return Wid{
		value:   watchID + "_" + nonce + "-" + executionTime.UTC().Format(time.RFC3339Nano),
		watchID: watchID,
		nonce:   nonce,
	}
}

// NewNonce returns a random nonce without separators.
func NewNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ParseWid splits value at its last '_'. The suffix must be nonce-timestamp.
func ParseWid(value string) (Wid, error) {
	index := strings.LastIndex(value, "_")
	if index <= 0 {
		return Wid{}, fmt.Errorf("%w [%s]", ErrInvalidExecutionID, value)
	}

	nonce, timestamp, found := strings.Cut(value[index+1:], "-")
	if !found {
		return Wid{}, fmt.Errorf("%w [%s]: missing timestamp", ErrInvalidExecutionID, value)
	}

	_, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return Wid{}, fmt.Errorf("%w [%s]: %w", ErrInvalidExecutionID, value, err)
	}

	return Wid{
		value:   value,
		watchID: value[:index],
		nonce:   nonce,
	}, nil
}

func (w Wid) String() string {
	return w.value
}

func (w Wid) WatchID() string {
	return w.watchID
}

func (w Wid) Nonce() string {
	return w.nonce
}

// ExecutionTime returns the time encoded in the id.
func (w Wid) ExecutionTime() time.Time {
	_, timestamp, _ := strings.Cut(w.value[strings.LastIndex(w.value, "_")+1:], "-")

	t, _ := time.Parse(time.RFC3339Nano, timestamp)

	return t
}

func (w Wid) IsZero() bool {
	return w.value == ""
}

func (w Wid) Equal(other Wid) bool {
	return w.value == other.value
}

func (w Wid) MarshalText() ([]byte, error) {
	return []byte(w.value), nil
}

func (w *Wid) UnmarshalText(text []byte) error {
	parsed, err := ParseWid(string(text))
	if err != nil {
		return err
	}

	*w = parsed

	return nil
}
