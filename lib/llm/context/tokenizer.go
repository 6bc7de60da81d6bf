// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

package context

import (
	"errors"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer is the optional real-tokenizer capability injected into
// an [Estimator]. Implementations encode text into token ids; any
// error means "count unavailable" and the estimator falls back to its
// character heuristic. Token counting is advisory, so availability
// beats precision — a Tokenizer must never panic.
type Tokenizer interface {
	Encode(text string) ([]int, error)
}

// NoTokenizer is a null Tokenizer whose Encode always fails. Inject
// it to force the character-heuristic path, e.g. in tests that must
// not depend on BPE data files.
var NoTokenizer Tokenizer = noTokenizer{}

type noTokenizer struct{}

func (noTokenizer) Encode(string) ([]int, error) {
	return nil, errors.New("context: no tokenizer available")
}

// tiktokenTokenizer wraps a tiktoken encoding.
type tiktokenTokenizer struct {
	encoding *tiktoken.Tiktoken
}

func (tokenizer *tiktokenTokenizer) Encode(text string) ([]int, error) {
	return tokenizer.encoding.Encode(text, nil, nil), nil
}

// TokenizerForModel returns the best-available tokenizer for the
// given model identifier, or nil when no encoding could be loaded
// (missing BPE data, offline environment). Selection is by
// case-insensitive substring match on the model id.
//
// Claude has no public tokenizer; the GPT-4 encoding is close enough
// for estimation purposes. Everything unrecognized gets cl100k_base.
func TokenizerForModel(modelID string) Tokenizer {
	lower := strings.ToLower(modelID)

	var encoding *tiktoken.Tiktoken
	var err error
	switch {
	case strings.Contains(lower, "gpt-4"), strings.Contains(lower, "gpt-3.5"),
		strings.Contains(lower, "claude"), strings.Contains(lower, "anthropic"):
		encoding, err = tiktoken.EncodingForModel("gpt-4")
	default:
		encoding, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		return nil
	}
	return &tiktokenTokenizer{encoding: encoding}
}
