package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/roach88/fieldcheck/internal/asset"
	"github.com/roach88/fieldcheck/internal/remote"
)

// RemoteCall records one call made against a FakeRemote.
type RemoteCall struct {
	Op    string // "get", "search" or "submit"
	Arg   string // identifier, query or asset id
	Check *asset.CheckRequest
}

// FakeRemote is a scriptable remote.Service.
//
// Assets answers GetAsset by id. Searchable answers SearchAssets by substring
// of asset id, name, serial or barcode. Submit errors are consumed in order
// from SubmitErrors; once exhausted every submission is accepted.
type FakeRemote struct {
	mu sync.Mutex

	Assets     map[string]asset.ResolvedAsset
	Searchable []asset.ResolvedAsset

	GetErr       error
	SearchErr    error
	SubmitErrors []error

	calls    []RemoteCall
	accepted []asset.CheckRequest
}

var _ remote.Service = (*FakeRemote)(nil)

// NewFakeRemote creates a remote that knows the given assets by id.
func NewFakeRemote(assets ...asset.ResolvedAsset) *FakeRemote {
	r := &FakeRemote{Assets: make(map[string]asset.ResolvedAsset)}
	for _, a := range assets {
		r.Assets[a.AssetID] = a
	}
	return r
}

// GetAsset implements remote.Service.
func (r *FakeRemote) GetAsset(_ context.Context, id string) (asset.ResolvedAsset, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, RemoteCall{Op: "get", Arg: id})
	if r.GetErr != nil {
		return asset.ResolvedAsset{}, false, r.GetErr
	}
	a, ok := r.Assets[id]
	return a, ok, nil
}

// SearchAssets implements remote.Service.
func (r *FakeRemote) SearchAssets(_ context.Context, query string, limit int) ([]asset.ResolvedAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, RemoteCall{Op: "search", Arg: query})
	if r.SearchErr != nil {
		return nil, r.SearchErr
	}
	out := []asset.ResolvedAsset{}
	for _, a := range r.Searchable {
		if limit > 0 && len(out) >= limit {
			break
		}
		if matches(a, query) {
			out = append(out, a)
		}
	}
	return out, nil
}

// SubmitCheck implements remote.Service.
func (r *FakeRemote) SubmitCheck(_ context.Context, req asset.CheckRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reqCopy := req
	r.calls = append(r.calls, RemoteCall{Op: "submit", Arg: req.AssetID, Check: &reqCopy})
	if len(r.SubmitErrors) > 0 {
		err := r.SubmitErrors[0]
		r.SubmitErrors = r.SubmitErrors[1:]
		if err != nil {
			return err
		}
	}
	r.accepted = append(r.accepted, req)
	return nil
}

// FailSubmits queues errors for the next submissions. A nil entry accepts.
func (r *FakeRemote) FailSubmits(errs ...error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.SubmitErrors = append(r.SubmitErrors, errs...)
}

// Calls returns a copy of every call made so far.
func (r *FakeRemote) Calls() []RemoteCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RemoteCall, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallCount returns the number of calls of the given op.
func (r *FakeRemote) CallCount(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Accepted returns the check requests the fake accepted, in order.
func (r *FakeRemote) Accepted() []asset.CheckRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]asset.CheckRequest, len(r.accepted))
	copy(out, r.accepted)
	return out
}

func matches(a asset.ResolvedAsset, q string) bool {
	if q == "" {
		return true
	}
	for _, f := range []string{a.AssetID, a.AssetName, a.SerialNumber, a.Barcode} {
		if f != "" && strings.Contains(f, q) {
			return true
		}
	}
	return false
}
