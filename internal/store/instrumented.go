package store

import (
	"context"
	"time"

	"github.com/vitaliisemenov/flagcore/internal/flagtypes"
	"github.com/vitaliisemenov/flagcore/internal/metrics"
	"github.com/vitaliisemenov/flagcore/internal/version"
)

// instrumented wraps a Store, recording operation counts/latencies and
// merge accept/reject counts to the shared metrics registry, so every
// backend is observed the same way without each reimplementing timing.
type instrumented struct {
	Store
	backend string
}

// Instrument wraps s so its operations are recorded under the given
// backend label. NewStore/NewFallbackStore apply this to whatever they
// construct.
func Instrument(s Store, backend string) Store {
	return &instrumented{Store: s, backend: backend}
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.RecordStoreOp(i.backend, op, result, time.Since(start).Seconds())
}

func (i *instrumented) Get(ctx context.Context, key string) (flagtypes.WithMeta, bool, error) {
	start := time.Now()
	v, ok, err := i.Store.Get(ctx, key)
	i.observe("get", start, err)
	return v, ok, err
}

func (i *instrumented) Set(ctx context.Context, key string, entry flagtypes.WithMeta) error {
	start := time.Now()
	err := i.Store.Set(ctx, key, entry)
	i.observe("set", start, err)
	return err
}

func (i *instrumented) Delete(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	ok, err := i.Store.Delete(ctx, key)
	i.observe("delete", start, err)
	return ok, err
}

func (i *instrumented) Has(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	ok, err := i.Store.Has(ctx, key)
	i.observe("has", start, err)
	return ok, err
}

func (i *instrumented) List(ctx context.Context) ([]flagtypes.WithMeta, error) {
	start := time.Now()
	v, err := i.Store.List(ctx)
	i.observe("list", start, err)
	return v, err
}

func (i *instrumented) Keys(ctx context.Context) ([]string, error) {
	start := time.Now()
	v, err := i.Store.Keys(ctx)
	i.observe("keys", start, err)
	return v, err
}

func (i *instrumented) Count(ctx context.Context) (int, error) {
	start := time.Now()
	v, err := i.Store.Count(ctx)
	i.observe("count", start, err)
	return v, err
}

func (i *instrumented) Clear(ctx context.Context) error {
	start := time.Now()
	err := i.Store.Clear(ctx)
	i.observe("clear", start, err)
	return err
}

func (i *instrumented) GetVersion(ctx context.Context) (version.Vector, error) {
	start := time.Now()
	v, err := i.Store.GetVersion(ctx)
	i.observe("get_version", start, err)
	return v, err
}

func (i *instrumented) SetVersion(ctx context.Context, v version.Vector) error {
	start := time.Now()
	err := i.Store.SetVersion(ctx, v)
	i.observe("set_version", start, err)
	return err
}

func (i *instrumented) Merge(ctx context.Context, remote []flagtypes.WithMeta) (int, error) {
	start := time.Now()
	accepted, err := i.Store.Merge(ctx, remote)
	i.observe("merge", start, err)
	if err == nil {
		metrics.RecordMerge(i.backend, accepted, len(remote)-accepted)
	}
	return accepted, err
}

func (i *instrumented) Compact(ctx context.Context) error {
	start := time.Now()
	err := i.Store.Compact(ctx)
	i.observe("compact", start, err)
	return err
}

func (i *instrumented) Flush(ctx context.Context) error {
	start := time.Now()
	err := i.Store.Flush(ctx)
	i.observe("flush", start, err)
	return err
}

func (i *instrumented) Close(ctx context.Context) error {
	start := time.Now()
	err := i.Store.Close(ctx)
	i.observe("close", start, err)
	return err
}
