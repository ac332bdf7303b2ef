package errs

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestCodeErrorSentinelMatch(t *testing.T) {
	err := ErrValidation.WrapMsg("empty body", "field", "message")
	if !Is(err, ErrValidation) {
		t.Fatal("wrapped error must still match its sentinel")
	}
	if Is(err, ErrConnection) {
		t.Fatal("must not match a different code")
	}
}

func TestCodeErrorMatchThroughWrapping(t *testing.T) {
	err := WrapMsg(ErrGroupCreation.Wrap(), "while confirming")
	if !Is(err, ErrGroupCreation) {
		t.Fatal("double-wrapped error lost its code")
	}
}

func TestWithDetailDoesNotMutateSentinel(t *testing.T) {
	_ = ErrAuth.WithDetail("token expired")
	if ErrAuth.Detail != "" {
		t.Fatal("sentinel mutated by WithDetail")
	}
}

func TestWrapMsgFormatsKV(t *testing.T) {
	err := ErrConnection.WrapMsg("dial", "url", "ws://x", "attempt", 2)
	msg := err.Error()
	for _, want := range []string{"dial", "url=ws://x", "attempt=2"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("missing %q in %q", want, msg)
		}
	}
}

func TestUnwrapToCodeError(t *testing.T) {
	err := ErrProtocol.WrapMsg("bad frame")
	var ce *CodeError
	if !errors.As(err, &ce) {
		t.Fatal("errors.As should find the CodeError")
	}
	if ce.Code != ErrProtocol.Code {
		t.Fatalf("code lost: %d", ce.Code)
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil) != nil {
		t.Fatal("Wrap(nil) must be nil")
	}
	if WrapMsg(nil, "ctx") != nil {
		t.Fatal("WrapMsg(nil) must be nil")
	}
}
