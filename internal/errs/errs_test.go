package errs

import (
	"errors"
	"log/slog"
	"net/http"
	"testing"
)

var errSample = New(KindConflict, "waiting for consent")

func TestKindOfSurvivesWrapping(t *testing.T) {
	wrapped := Wrapf(Wrap(errSample, "start capture"), "session %s", "abc")

	if got := KindOf(wrapped); got != KindConflict {
		t.Fatalf("KindOf() = %v, want %v", got, KindConflict)
	}
	if !errors.Is(wrapped, errSample) {
		t.Fatalf("errors.Is() = false, want true")
	}
	if got := KindOf(wrapped).HTTPStatus(); got != http.StatusConflict {
		t.Fatalf("HTTPStatus() = %d", got)
	}
}

func TestKindOfPlainErrorIsInternal(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindInternal {
		t.Fatalf("KindOf() = %v, want internal", got)
	}
	if Public(errors.New("boom")) {
		t.Fatalf("Public() = true for plain error")
	}
	if KindOf(nil) != KindInternal {
		t.Fatalf("KindOf(nil) should be internal")
	}
}

func TestWrapNilReturnsNil(t *testing.T) {
	if Wrap(nil, "x") != nil || Wrapf(nil, "x %d", 1) != nil || WithStack(nil) != nil {
		t.Fatalf("nil errors must stay nil")
	}
}

func TestLoggableIncludesChainAndStack(t *testing.T) {
	err := Wrap(WithStack(errors.New("root")), "outer")

	value := Loggable(err).LogValue()
	if value.Kind() != slog.KindGroup {
		t.Fatalf("LogValue() kind = %v", value.Kind())
	}

	keys := map[string]bool{}
	for _, attr := range value.Group() {
		keys[attr.Key] = true
	}
	for _, want := range []string{"message", "chain", "stack"} {
		if !keys[want] {
			t.Fatalf("LogValue() missing %q in %v", want, keys)
		}
	}

	chain := ErrorChainStrings(err)
	if len(chain) < 2 || chain[0] != "outer: root" {
		t.Fatalf("ErrorChainStrings() = %v", chain)
	}
}
