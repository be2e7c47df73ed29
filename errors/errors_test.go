package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseDecode,
				Kind:   KindDanglingIndex,
				Path:   []string{"av", "source", "next"},
				Type:   "av_source_t",
				Detail: "index 9 never emitted",
			},
			contains: []string{"[decode]", "dangling_index", "av.source.next", "av_source_t", "index 9 never emitted"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseEncode,
				Kind:  KindBufferFull,
			},
			contains: []string{"[encode]", "buffer_full"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseDecode,
				Kind:   KindAllocation,
				Detail: "heap full",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[decode]", "allocation", "heap full", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseEncode,
		Kind:  KindMemory,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := BufferFull(12, 3)

	if !errors.Is(err, ErrBufferFull) {
		t.Error("BufferFull should match ErrBufferFull")
	}
	if errors.Is(err, ErrIncomplete) {
		t.Error("BufferFull should not match ErrIncomplete")
	}
	if !errors.Is(Incomplete(4, 1), ErrIncomplete) {
		t.Error("Incomplete should match ErrIncomplete")
	}

	wrapped := Wrap(PhaseSnapshot, KindInvalidData, err, "save")
	if !errors.Is(wrapped, ErrBufferFull) {
		t.Error("errors.Is should see through Cause")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseDecode, KindTypeMismatch).
		Path("root", "next").
		Type("node_t").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "node_t", "leaf_t").
		Build()

	if err.Phase != PhaseDecode {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseDecode)
	}
	if err.Kind != KindTypeMismatch {
		t.Errorf("Kind = %v, want %v", err.Kind, KindTypeMismatch)
	}
	if strings.Join(err.Path, ".") != "root.next" {
		t.Errorf("Path = %v", err.Path)
	}
	if err.Type != "node_t" {
		t.Errorf("Type = %q", err.Type)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v", err.Value)
	}
	if err.Cause != cause {
		t.Error("Cause not set")
	}
	if err.Detail != "expected node_t, got leaf_t" {
		t.Errorf("Detail = %q", err.Detail)
	}
}

func TestInvariantViolations(t *testing.T) {
	fatal := []*Error{
		Invariant(PhaseTraverse, "broken %s", "table"),
		UnknownType(PhaseInit, 40, 12),
		DisambiguatorOverflow("list_t", 300),
		InvalidDisambiguator(PhaseSize, "union_t", 3, 2),
		DuplicateObject(1, 0x40),
	}
	for _, e := range fatal {
		t.Run(string(e.Phase)+"/"+e.Detail, func(t *testing.T) {
			if !e.Fatal() {
				t.Error("expected fatal")
			}
			if !IsInvariantViolation(e) {
				t.Error("IsInvariantViolation should be true")
			}
			if IsRecoverable(e) {
				t.Error("invariant violation must not be recoverable")
			}
		})
	}

	if IsInvariantViolation("some panic") {
		t.Error("plain panic value is not an invariant violation")
	}
	if IsInvariantViolation(BufferFull(1, 0)) {
		t.Error("buffer full is not an invariant violation")
	}
}

func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		err  error
		name string
		want bool
	}{
		{nil, "nil", false},
		{BufferFull(1, 0), "buffer_full", true},
		{Incomplete(1, 0), "incomplete", true},
		{DanglingIndex(nil, 7, 3), "dangling", true},
		{errors.New("plain"), "plain", true},
		{UnknownType(PhaseDecode, 1, 1), "fatal", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRecoverable(tt.err); got != tt.want {
				t.Errorf("IsRecoverable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("DanglingIndex", func(t *testing.T) {
		err := DanglingIndex([]string{"a"}, 9, 4)
		if err.Kind != KindDanglingIndex || err.Value != uint32(9) {
			t.Errorf("unexpected %+v", err)
		}
	})
	t.Run("AllocationFailed", func(t *testing.T) {
		err := AllocationFailed(PhaseDecode, 64, 8, errors.New("oom"))
		if err.Kind != KindAllocation || !strings.Contains(err.Error(), "64 bytes") {
			t.Errorf("unexpected %v", err)
		}
	})
	t.Run("Overflow", func(t *testing.T) {
		err := Overflow(PhaseEncode, 300, "object index")
		if err.Kind != KindOverflow || !strings.Contains(err.Detail, "300") {
			t.Errorf("unexpected %v", err)
		}
	})
	t.Run("NotFound", func(t *testing.T) {
		err := NotFound(PhaseSnapshot, "snapshot", "boot")
		if !strings.Contains(err.Error(), `snapshot "boot" not found`) {
			t.Errorf("unexpected %v", err)
		}
	})
	t.Run("Unsupported", func(t *testing.T) {
		err := Unsupported(PhaseGenerate, []string{"rec", "name"}, "string")
		if err.Kind != KindUnsupported || strings.Join(err.Path, ".") != "rec.name" {
			t.Errorf("unexpected %v", err)
		}
	})
}
