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
				Subsystem: SubsystemConfigMgr,
				Kind:      KindNotFound,
				Code:      7331,
				Detail:    "config id 12345 not registered",
			},
			contains: []string{"[configmgr]", "not_found", "code 7331", "config id 12345"},
		},
		{
			name: "minimal error",
			err: &Error{
				Subsystem: SubsystemRuntime,
				Kind:      KindNotReady,
			},
			contains: []string{"[runtime]", "not_ready"},
		},
		{
			name: "error with cause",
			err: &Error{
				Subsystem: SubsystemRuntime,
				Kind:      KindInitialization,
				Detail:    "native setup failed",
				Cause:     errors.New("underlying error"),
			},
			contains: []string{"[runtime]", "initialization", "native setup failed", "caused by", "underlying error"},
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
		Subsystem: SubsystemRuntime,
		Kind:      KindConfig,
		Cause:     cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Subsystem: SubsystemEngine,
		Kind:      KindNotFound,
		Code:      33,
	}

	if !err.Is(&Error{Subsystem: SubsystemEngine, Kind: KindNotFound}) {
		t.Error("Is should match same subsystem and kind")
	}

	// Zero-valued target fields are wildcards
	if !err.Is(&Error{Kind: KindNotFound}) {
		t.Error("Is should match kind with subsystem wildcard")
	}
	if !err.Is(&Error{Code: 33}) {
		t.Error("Is should match code with other fields wild")
	}

	if err.Is(&Error{Subsystem: SubsystemConfig, Kind: KindNotFound}) {
		t.Error("Is should not match different subsystem")
	}
	if err.Is(&Error{Kind: KindNotReady}) {
		t.Error("Is should not match different kind")
	}
	if err.Is(&Error{Code: 37}) {
		t.Error("Is should not match different code")
	}

	if !errors.Is(err, &Error{Kind: KindNotFound}) {
		t.Error("errors.Is should match")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(SubsystemConfigMgr, KindConfig).
		Code(7245).
		Cause(cause).
		Detail("default config id is %d, not %d", 7, 9).
		Build()

	if err.Subsystem != SubsystemConfigMgr {
		t.Errorf("Subsystem = %v, want %v", err.Subsystem, SubsystemConfigMgr)
	}
	if err.Kind != KindConfig {
		t.Errorf("Kind = %v, want %v", err.Kind, KindConfig)
	}
	if err.Code != 7245 {
		t.Errorf("Code = %v, want 7245", err.Code)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "default config id is 7, not 9" {
		t.Errorf("Detail = %q", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("Initialization", func(t *testing.T) {
		cause := errors.New("bad json")
		err := Initialization("settings document rejected", cause)
		if err.Kind != KindInitialization {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInitialization)
		}
		if !errors.Is(err, &Error{Kind: KindInitialization}) {
			t.Error("errors.Is should match initialization")
		}
		if !errors.Is(err.Cause, cause) {
			t.Error("cause not preserved")
		}
	})

	t.Run("NotReady", func(t *testing.T) {
		err := NotReady("environment")
		if err.Kind != KindNotReady {
			t.Errorf("Kind = %v, want %v", err.Kind, KindNotReady)
		}
		if !strings.Contains(err.Detail, "environment") {
			t.Errorf("Detail = %q, should name the component", err.Detail)
		}
	})

	t.Run("Config", func(t *testing.T) {
		err := Config("missing PIPELINE section", nil)
		if err.Kind != KindConfig {
			t.Errorf("Kind = %v, want %v", err.Kind, KindConfig)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		err := NotFound("config", int64(99))
		if err.Kind != KindNotFound {
			t.Errorf("Kind = %v, want %v", err.Kind, KindNotFound)
		}
		if !strings.Contains(err.Detail, "99") {
			t.Errorf("Detail = %q, should contain the key", err.Detail)
		}
	})

	t.Run("BadInput", func(t *testing.T) {
		err := BadInput("empty data source code")
		if err.Kind != KindBadInput {
			t.Errorf("Kind = %v, want %v", err.Kind, KindBadInput)
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		cause := errors.New("inner")
		err := Wrap(SubsystemEngine, KindDatabase, cause, "add record")
		if err.Subsystem != SubsystemEngine || err.Kind != KindDatabase {
			t.Errorf("got [%v] %v", err.Subsystem, err.Kind)
		}
		if !errors.Is(err, cause) {
			t.Error("wrapped cause should match with errors.Is")
		}
	})
}

func TestFromRecord(t *testing.T) {
	t.Run("code from subsystem", func(t *testing.T) {
		err := FromRecord(SubsystemEngine, 33, Record{Code: "0033E", Message: "Unknown record ID"})
		if err.Code != 33 {
			t.Errorf("Code = %d, want 33", err.Code)
		}
		if err.Kind != KindNotFound {
			t.Errorf("Kind = %v, want %v", err.Kind, KindNotFound)
		}
		if err.Detail != "Unknown record ID" {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("code recovered from record token", func(t *testing.T) {
		err := FromRecord(SubsystemConfig, 0, Record{Code: "0027E", Message: "Unknown DATA_SOURCE"})
		if err.Code != 27 {
			t.Errorf("Code = %d, want 27", err.Code)
		}
		if err.Kind != KindBadInput {
			t.Errorf("Kind = %v, want %v", err.Kind, KindBadInput)
		}
	})

	t.Run("no code anywhere", func(t *testing.T) {
		err := FromRecord(SubsystemProduct, 0, Record{Message: "garbled"})
		if err.Code != 0 {
			t.Errorf("Code = %d, want 0", err.Code)
		}
		if err.Kind != KindUnknown {
			t.Errorf("Kind = %v, want %v", err.Kind, KindUnknown)
		}
	})
}

func TestIsKind_Chain(t *testing.T) {
	inner := Config("settings document is not valid JSON", nil)
	outer := Initialization("environment setup failed", inner)

	if !IsInitialization(outer) {
		t.Error("outer kind not detected")
	}
	if !IsConfig(outer) {
		t.Error("config kind should be found through the chain")
	}
	if IsNotReady(outer) {
		t.Error("not_ready should not match")
	}
}

func TestCodeOf(t *testing.T) {
	native := FromRecord(SubsystemEngine, 1007, Record{Message: "connection lost"})
	wrapped := Wrap(SubsystemRuntime, KindRetryable, native, "add record")

	if got := CodeOf(wrapped); got != 1007 {
		t.Errorf("CodeOf = %d, want 1007", got)
	}
	if got := CodeOf(errors.New("plain")); got != 0 {
		t.Errorf("CodeOf(plain) = %d, want 0", got)
	}
}

func TestClassifyCode(t *testing.T) {
	tests := []struct {
		code int64
		want Kind
	}{
		{27, KindBadInput},
		{33, KindNotFound},
		{37, KindNotFound},
		{48, KindUnrecoverable},
		{999, KindLicense},
		{1007, KindRetryable},
		{2089, KindRetryable},
		{7221, KindConfig},
		{7245, KindConfig},
		{7331, KindNotFound},
		// band fallbacks for codes outside the curated table
		{1234, KindDatabase},
		{2500, KindRetryable},
		{7777, KindConfig},
		{9123, KindLicense},
		{0, KindUnknown},
		{424242, KindUnknown},
	}

	for _, tt := range tests {
		if got := ClassifyCode(tt.code); got != tt.want {
			t.Errorf("ClassifyCode(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}
