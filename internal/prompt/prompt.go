// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package prompt provides conflict resolvers for bidirectional sync: an
// interactive line prompt and fixed policies chosen from configuration.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/fieldsync/internal/bidir"
	"github.com/pdiddy/fieldsync/pkg/types"
)

// Prompt asks on Out and reads the answer from In, one line per question.
// Unrecognized answers repeat the question; end of input downloads.
type Prompt struct {
	In  io.Reader
	Out io.Writer

	scanner *bufio.Scanner
}

// Resolve implements bidir.Resolver.
func (p *Prompt) Resolve(sid string) bidir.Resolution {
	if p.scanner == nil {
		p.scanner = bufio.NewScanner(p.In)
	}
	for {
		fmt.Fprintf(p.Out, "Span with sid %s has changed. [u]pload/[d]ownload: ", sid)
		if !p.scanner.Scan() {
			fmt.Fprintln(p.Out)
			return bidir.Download
		}
		if r, ok := parseAnswer(p.scanner.Text()); ok {
			return r
		}
	}
}

func parseAnswer(s string) (bidir.Resolution, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "u", "upload":
		return bidir.Upload, true
	case "d", "download":
		return bidir.Download, true
	}
	return bidir.Download, false
}

// Fixed returns a resolver that always answers r.
func Fixed(r bidir.Resolution) bidir.Resolver {
	return bidir.Always(r)
}

// ParsePolicy validates a conflict policy name. The empty string selects
// the interactive prompt.
func ParsePolicy(s string) (types.ConflictPolicy, error) {
	switch p := types.ConflictPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", types.ConflictPrompt:
		return types.ConflictPrompt, nil
	case types.ConflictUpload, types.ConflictDownload:
		return p, nil
	}
	return "", fmt.Errorf("unknown conflict policy %q (want prompt, upload or download)", s)
}

// ForPolicy returns the resolver for a policy. The prompt reads in and
// writes out.
func ForPolicy(p types.ConflictPolicy, in io.Reader, out io.Writer) bidir.Resolver {
	switch p {
	case types.ConflictUpload:
		return Fixed(bidir.Upload)
	case types.ConflictDownload:
		return Fixed(bidir.Download)
	}
	return &Prompt{In: in, Out: out}
}
