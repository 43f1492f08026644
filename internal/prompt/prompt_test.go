// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/fieldsync/internal/bidir"
	"github.com/pdiddy/fieldsync/pkg/types"
)

func TestPromptResolve(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    bidir.Resolution
		prompts int
	}{
		{name: "upload short", input: "u\n", want: bidir.Upload, prompts: 1},
		{name: "upload long", input: "Upload\n", want: bidir.Upload, prompts: 1},
		{name: "download short", input: "d\n", want: bidir.Download, prompts: 1},
		{name: "download padded", input: "  DOWNLOAD \n", want: bidir.Download, prompts: 1},
		{name: "retry on garbage", input: "what\n\nu\n", want: bidir.Upload, prompts: 3},
		{name: "eof", input: "", want: bidir.Download, prompts: 1},
		{name: "eof after garbage", input: "x\n", want: bidir.Download, prompts: 2},
		{name: "no trailing newline", input: "u", want: bidir.Upload, prompts: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out strings.Builder
			p := &Prompt{In: strings.NewReader(tt.input), Out: &out}

			assert.Equal(t, tt.want, p.Resolve("12_0_0001"))
			assert.Equal(t, tt.prompts, strings.Count(out.String(), "Span with sid 12_0_0001 has changed."))
		})
	}
}

func TestPromptReadsSuccessiveLines(t *testing.T) {
	var out strings.Builder
	p := &Prompt{In: strings.NewReader("u\nd\n"), Out: &out}
	assert.Equal(t, bidir.Upload, p.Resolve("a"))
	assert.Equal(t, bidir.Download, p.Resolve("b"))
	assert.Contains(t, out.String(), "sid a ")
	assert.Contains(t, out.String(), "sid b ")
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    types.ConflictPolicy
		wantErr bool
	}{
		{input: "", want: types.ConflictPrompt},
		{input: "prompt", want: types.ConflictPrompt},
		{input: "Upload", want: types.ConflictUpload},
		{input: "download", want: types.ConflictDownload},
		{input: "merge", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.input)
		if tt.wantErr {
			assert.Error(t, err, tt.input)
			continue
		}
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got)
	}
}

func TestForPolicy(t *testing.T) {
	assert.Equal(t, bidir.Upload, ForPolicy(types.ConflictUpload, nil, nil).Resolve("x"))
	assert.Equal(t, bidir.Download, ForPolicy(types.ConflictDownload, nil, nil).Resolve("x"))

	var out strings.Builder
	r := ForPolicy(types.ConflictPrompt, strings.NewReader("u\n"), &out)
	assert.IsType(t, &Prompt{}, r)
	assert.Equal(t, bidir.Upload, r.Resolve("x"))
}
