package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendwise/internal/auth"
	"spendwise/internal/core"
	"spendwise/internal/storage/memory"
)

func TestRun(t *testing.T) {
	ctx := context.Background()
	hasher := auth.NewHasher(4)

	tests := []struct {
		name    string
		args    []string
		stdin   string
		wantErr string
	}{
		{name: "password flag", args: []string{"-name", "Ada", "-email", "ada@example.com", "-password", "secret1"}},
		{name: "password from stdin", args: []string{"-name", "Ada", "-email", "ada@example.com"}, stdin: "secret1\n"},
		{name: "missing email", args: []string{"-name", "Ada"}, wantErr: "missing required flags"},
		{name: "empty stdin", args: []string{"-name", "Ada", "-email", "ada@example.com"}, wantErr: "failed to read password"},
		{name: "blank password", args: []string{"-name", "Ada", "-email", "ada@example.com"}, stdin: "   \n", wantErr: "password cannot be empty"},
		{name: "short password", args: []string{"-name", "Ada", "-email", "ada@example.com", "-password", "abc"}, wantErr: "at least 6"},
		{name: "bad email", args: []string{"-name", "Ada", "-email", "nope", "-password", "secret1"}, wantErr: "Invalid email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := memory.New()
			var stdout, stderr bytes.Buffer

			err := run(ctx, tt.args, strings.NewReader(tt.stdin), &stdout, &stderr, repo, hasher)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, stdout.String(), "created successfully")

			u, err := repo.GetUserByEmail(ctx, "ada@example.com")
			require.NoError(t, err)
			assert.NoError(t, hasher.Check(u.PasswordHash, "secret1"))
		})
	}
}

func TestRunRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	hasher := auth.NewHasher(4)
	args := []string{"-name", "Ada", "-email", "ada@example.com", "-password", "secret1"}

	var out bytes.Buffer
	require.NoError(t, run(ctx, args, strings.NewReader(""), &out, &out, repo, hasher))

	err := run(ctx, args, strings.NewReader(""), &out, &out, repo, hasher)
	assert.ErrorIs(t, err, core.ErrEmailTaken)
}
