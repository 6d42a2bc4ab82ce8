package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExecutor struct {
	deadline bool
}

func (s *stubExecutor) Execute(ctx context.Context, _ Request) error {
	_, s.deadline = ctx.Deadline()
	return nil
}
func (s *stubExecutor) Name() string { return "stub" }
func (s *stubExecutor) Close() error { return nil }

func TestUnknownExecutorError_Error(t *testing.T) {
	err := &UnknownExecutorError{
		Type:      "fake_cli",
		Available: []string{"duckdb", "snow"},
	}

	msg := err.Error()
	assert.Contains(t, msg, "fake_cli")
	assert.Contains(t, msg, "snow")
	assert.Contains(t, msg, "sqlbuild.yaml")
}

func TestRegister(t *testing.T) {
	Register("test_executor_internal", func(_ Config) (Executor, error) { return &stubExecutor{}, nil })

	assert.True(t, IsRegistered("test_executor_internal"))
	factory, ok := Get("test_executor_internal")
	assert.True(t, ok)
	assert.NotNil(t, factory)
}

func TestList_BuiltIns(t *testing.T) {
	names := List()
	for _, want := range []string{"duckdb", "postgres", "snow", "sqlite"} {
		assert.Contains(t, names, want)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
		check   func(t *testing.T, err error)
	}{
		{
			name:    "empty type",
			cfg:     Config{},
			wantErr: "executor type not specified",
		},
		{
			name: "unknown type",
			cfg:  Config{Type: "oracle"},
			check: func(t *testing.T, err error) {
				var unknown *UnknownExecutorError
				require.True(t, errors.As(err, &unknown))
				assert.Equal(t, "oracle", unknown.Type)
			},
		},
		{
			name:    "postgres without dsn",
			cfg:     Config{Type: "postgres"},
			wantErr: "requires a dsn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			require.Error(t, err)
			if tt.wantErr != "" {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, err)
			}
		})
	}
}

func TestNew_Snow(t *testing.T) {
	exec, err := New(Config{Type: "snow"})
	require.NoError(t, err)
	assert.Equal(t, "snow", exec.Name())
	assert.NoError(t, exec.Close())
}

func TestWithTimeout(t *testing.T) {
	stub := &stubExecutor{}

	assert.Same(t, Executor(stub), WithTimeout(stub, 0))

	wrapped := WithTimeout(stub, time.Minute)
	require.NoError(t, wrapped.Execute(context.Background(), Request{Table: "A"}))
	assert.True(t, stub.deadline, "context should carry a deadline")
	assert.Equal(t, "stub", wrapped.Name())
}
