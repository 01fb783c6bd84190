package modelexec

import (
	"context"
	"errors"
)

// Fake is a deterministic, script-driven Executor for Runner tests
// (DESIGN.md scoping decision #4: no concrete provider SDK is wired).
// Each call to Generate consumes the next scripted result (or the last
// one repeated, if Repeat is set); Err, if non-nil at a given index,
// is returned instead of a result.
type Fake struct {
	Results []GenerateResult
	Errs    []error // parallel to Results; nil entries mean "no error"
	Repeat  bool

	calls int
	Inputs []GenerateRequest
}

// ErrFakeExhausted is returned once the script runs out and Repeat is
// false.
var ErrFakeExhausted = errors.New("modelexec: fake script exhausted")

func (f *Fake) next() (GenerateResult, error, bool) {
	scriptLen := len(f.Results)
	if len(f.Errs) > scriptLen {
		scriptLen = len(f.Errs)
	}
	idx := f.calls
	if idx >= scriptLen {
		if f.Repeat && scriptLen > 0 {
			idx = scriptLen - 1
		} else {
			return GenerateResult{}, ErrFakeExhausted, false
		}
	}
	f.calls++
	var result GenerateResult
	if idx < len(f.Results) {
		result = f.Results[idx]
	}
	var err error
	if idx < len(f.Errs) {
		err = f.Errs[idx]
	}
	return result, err, true
}

// Generate implements Executor.
func (f *Fake) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	f.Inputs = append(f.Inputs, req)
	res, err, ok := f.next()
	if !ok {
		return GenerateResult{}, err
	}
	return res, err
}

// Stream implements Executor by replaying Generate's scripted text as a
// single chunk, matching the contract's shape without a real streaming
// transport.
func (f *Fake) Stream(ctx context.Context, req GenerateRequest) (StreamHandle, error) {
	f.Inputs = append(f.Inputs, req)
	res, err, ok := f.next()
	ch := make(chan string, 1)
	if ok && err == nil && res.Text != "" {
		ch <- res.Text
	}
	close(ch)
	return StreamHandle{
		TextStream: ch,
		FinalResult: func(ctx context.Context) (GenerateResult, error) {
			return res, err
		},
	}, nil
}

// CallCount returns how many Generate/Stream calls have been made.
func (f *Fake) CallCount() int { return f.calls }
