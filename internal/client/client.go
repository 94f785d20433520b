// Package client implements the façade spec.md §4.6 describes: the
// public surface a host embeds, composing the store, the cache, the
// audit log, and the version vector behind one API so callers never
// touch those collaborators directly.
//
// Grounded on internal/config.DefaultConfigUpdateService's orchestration
// shape (validate -> write -> side effects, with every phase logged),
// generalized from a 4-phase config pipeline to flag CRUD + evaluation.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vitaliisemenov/flagcore/internal/audit"
	"github.com/vitaliisemenov/flagcore/internal/cache"
	"github.com/vitaliisemenov/flagcore/internal/evaluator"
	"github.com/vitaliisemenov/flagcore/internal/flagerrors"
	"github.com/vitaliisemenov/flagcore/internal/flagtypes"
	"github.com/vitaliisemenov/flagcore/internal/metrics"
	"github.com/vitaliisemenov/flagcore/internal/store"
	"github.com/vitaliisemenov/flagcore/internal/store/mergehelper"
	"github.com/vitaliisemenov/flagcore/internal/version"
)

// Client composes the store, cache, and audit log into spec.md §4.6's
// public operations. It owns no lock of its own: each collaborator
// already serializes its own mutable state (spec.md §5), and the
// façade's job is sequencing calls to them, not guarding new state.
type Client struct {
	store  store.Store
	cache  *cache.Manager
	audit  *audit.Log
	nodeID string
	logger *slog.Logger
	nowFn  version.Clock
}

// New constructs a Client. now defaults to wall-clock milliseconds when nil.
func New(nodeID string, st store.Store, cacheMgr *cache.Manager, auditLog *audit.Log, logger *slog.Logger, now version.Clock) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}
	return &Client{store: st, cache: cacheMgr, audit: auditLog, nodeID: nodeID, logger: logger, nowFn: now}
}

func (c *Client) nowTime() time.Time {
	return time.UnixMilli(c.nowFn())
}

// versionSeed ties a flag's per-entry checksum to its content, so two
// updates that happen to land in the same millisecond still produce
// distinct checksums (spec.md leaves the seed value to the caller).
func versionSeed(flag flagtypes.Flag) string {
	return flag.Key + ":" + flag.Value.AsString()
}

// bumpStoreVersion increments the store's top-level version, per
// spec.md §8's "store.get_version().version is strictly greater than
// its value before each mutation" -- every mutating façade operation
// below calls this after a successful store write.
func (c *Client) bumpStoreVersion(ctx context.Context, seed string) error {
	current, err := c.store.GetVersion(ctx)
	if err != nil {
		return flagerrors.Wrap(flagerrors.StorageError, "client: read store version for bump", err)
	}
	next := version.Increment(current, seed, c.nowFn)
	if err := c.store.SetVersion(ctx, next); err != nil {
		return flagerrors.Wrap(flagerrors.StorageError, "client: write bumped store version", err)
	}
	return nil
}

// CreateFlag validates and stores a new flag, seeding its version
// vector and writing the first audit record. Creating over an existing
// key is a Conflict.
func (c *Client) CreateFlag(ctx context.Context, flag flagtypes.Flag, actorID string) (flagtypes.WithMeta, error) {
	if err := flag.Validate(); err != nil {
		return flagtypes.WithMeta{}, flagerrors.Wrap(flagerrors.InvalidType, "client: invalid flag", err)
	}

	exists, err := c.store.Has(ctx, flag.Key)
	if err != nil {
		return flagtypes.WithMeta{}, flagerrors.Wrap(flagerrors.StorageError, "client: check existing flag", err)
	}
	if exists {
		return flagtypes.WithMeta{}, flagerrors.New(flagerrors.Conflict, fmt.Sprintf("client: flag %q already exists", flag.Key))
	}

	now := c.nowTime()
	entry := flagtypes.WithMeta{
		Flag: flag,
		Meta: flagtypes.Meta{
			CreatedAt:    now,
			UpdatedAt:    now,
			Version:      version.Make(c.nodeID, versionSeed(flag), c.nowFn),
			ExpiryPolicy: flagtypes.PolicyAbsolute,
		},
	}

	if err := c.store.Set(ctx, flag.Key, entry); err != nil {
		return flagtypes.WithMeta{}, flagerrors.Wrap(flagerrors.StorageError, "client: create flag", err)
	}
	if err := c.bumpStoreVersion(ctx, "create:"+flag.Key); err != nil {
		return flagtypes.WithMeta{}, err
	}

	c.cache.Put(ctx, flag.Key, entry, entry.Meta.ExpiryPolicy, &now)
	c.audit.LogCreated(flag.Key, c.actor(actorID), c.recordContext(""), flag.Value, map[string]interface{}{"kind": string(flag.Kind)})

	return entry, nil
}

// UpdateFlag replaces a flag's value, bumping both its own version and
// the store's. It reports found=false without error for an unknown key.
// The updated flag is validated as on create; an invalid result is an
// InvalidType error and nothing is written.
func (c *Client) UpdateFlag(ctx context.Context, key string, value flagtypes.Value, actorID string) (flagtypes.WithMeta, bool, error) {
	existing, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return flagtypes.WithMeta{}, false, flagerrors.Wrap(flagerrors.StorageError, "client: read flag for update", err)
	}
	if !ok {
		return flagtypes.WithMeta{}, false, nil
	}

	previousValue := existing.Flag.Value
	now := c.nowTime()
	existing.Flag.Value = value
	if err := existing.Flag.Validate(); err != nil {
		return flagtypes.WithMeta{}, false, flagerrors.Wrap(flagerrors.InvalidType, "client: invalid flag", err)
	}
	existing.Meta.UpdatedAt = now
	existing.Meta.Version = version.Increment(existing.Meta.Version, versionSeed(existing.Flag), c.nowFn)

	if err := c.store.Set(ctx, key, existing); err != nil {
		return flagtypes.WithMeta{}, false, flagerrors.Wrap(flagerrors.StorageError, "client: update flag", err)
	}
	if err := c.bumpStoreVersion(ctx, "update:"+key); err != nil {
		return flagtypes.WithMeta{}, false, err
	}

	c.cache.Put(ctx, key, existing, existing.Meta.ExpiryPolicy, &now)
	c.audit.LogUpdated(key, c.actor(actorID), c.recordContext(""), previousValue, value, nil)

	return existing, true, nil
}

// setState is the shared body of EnableFlag/DisableFlag.
func (c *Client) setState(ctx context.Context, key string, state flagtypes.State, actorID string) (bool, error) {
	existing, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return false, flagerrors.Wrap(flagerrors.StorageError, "client: read flag for state change", err)
	}
	if !ok {
		return false, nil
	}
	if existing.Flag.State == state {
		return true, nil
	}
	previousState := existing.Flag.State

	now := c.nowTime()
	existing.Flag.State = state
	existing.Meta.UpdatedAt = now
	existing.Meta.Version = version.Increment(existing.Meta.Version, versionSeed(existing.Flag), c.nowFn)

	if err := c.store.Set(ctx, key, existing); err != nil {
		return false, flagerrors.Wrap(flagerrors.StorageError, "client: write flag state change", err)
	}
	if err := c.bumpStoreVersion(ctx, "state:"+key); err != nil {
		return false, err
	}

	c.cache.Put(ctx, key, existing, existing.Meta.ExpiryPolicy, &now)
	c.audit.LogUpdated(key, c.actor(actorID), c.recordContext(""), existing.Flag.Value, existing.Flag.Value, map[string]interface{}{
		"previousState": string(previousState),
		"state":         string(state),
	})
	return true, nil
}

// EnableFlag transitions a flag to Enabled. Returns found=false for an
// unknown key; a no-op transition (already enabled) reports true.
func (c *Client) EnableFlag(ctx context.Context, key, actorID string) (bool, error) {
	return c.setState(ctx, key, flagtypes.StateEnabled, actorID)
}

// DisableFlag transitions a flag to Disabled.
func (c *Client) DisableFlag(ctx context.Context, key, actorID string) (bool, error) {
	return c.setState(ctx, key, flagtypes.StateDisabled, actorID)
}

// DeleteFlag removes a flag from the store and cache, reporting whether
// it existed.
func (c *Client) DeleteFlag(ctx context.Context, key, actorID string) (bool, error) {
	existing, _, _ := c.store.Get(ctx, key)

	ok, err := c.store.Delete(ctx, key)
	if err != nil {
		return false, flagerrors.Wrap(flagerrors.StorageError, "client: delete flag", err)
	}
	if !ok {
		return false, nil
	}
	if err := c.bumpStoreVersion(ctx, "delete:"+key); err != nil {
		return false, err
	}

	c.cache.Remove(ctx, key)
	c.audit.LogDeleted(key, c.actor(actorID), c.recordContext(""), existing.Flag.Value)
	return true, nil
}

// resolve is the shared cache-first, store-fallback read path behind
// GetFlag and Evaluate. A storage failure on the read path degrades to
// a miss rather than propagating, per spec.md §7's "translates
// persistent failures into None results for reads".
func (c *Client) resolve(ctx context.Context, key string) (entry flagtypes.WithMeta, found, cached, stale bool) {
	value, state, hit := c.cache.Get(ctx, key)
	if hit {
		return value, true, true, state == cache.StateStale
	}

	stored, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("client: store read failed, treating as miss", "key", key, "error", err)
		return flagtypes.WithMeta{}, false, false, false
	}
	if !ok {
		return flagtypes.WithMeta{}, false, false, false
	}

	updated := stored.Meta.UpdatedAt
	c.cache.Put(ctx, key, stored, stored.Meta.ExpiryPolicy, &updated)
	return stored, true, false, false
}

// GetFlag resolves a flag cache-first, falling back to the store and
// populating the cache on a store hit.
func (c *Client) GetFlag(ctx context.Context, key string) (flagtypes.WithMeta, bool) {
	entry, found, _, _ := c.resolve(ctx, key)
	return entry, found
}

// Evaluate resolves key and runs the pure evaluator against ctx. An
// unknown flag yields spec.md §7's well-formed "flag_not_found" result
// rather than an error; evaluate never fails.
func (c *Client) Evaluate(ctx context.Context, key string, evalCtx flagtypes.EvaluationContext) flagtypes.EvaluationResult {
	start := time.Now()
	entry, found, cached, stale := c.resolve(ctx, key)
	if !found {
		result := flagtypes.NotFoundResult(key)
		c.logEvaluation(key, evalCtx, result)
		metrics.RecordEvaluation("unknown", string(result.Reason), time.Since(start).Seconds())
		return result
	}

	result := evaluator.Evaluate(entry.Flag, evalCtx)
	result.Cached = cached
	result.Stale = stale
	c.logEvaluation(key, evalCtx, result)
	c.recordEvaluationMeta(ctx, key, entry)
	metrics.RecordEvaluation(string(entry.Flag.Kind), string(result.Reason), time.Since(start).Seconds())
	return result
}

func (c *Client) logEvaluation(key string, evalCtx flagtypes.EvaluationContext, result flagtypes.EvaluationResult) {
	c.audit.LogEvaluated(key, c.recordContext(evalCtx.CorrelationID), result)
}

// recordEvaluationMeta advances Meta.LastEvaluatedAt/EvaluationCount after
// every evaluation of a found flag, whether it came from the cache or the
// store, matching spec.md §3's bookkeeping fields without the pure
// evaluator (internal/evaluator) ever touching mutable state itself --
// only the façade, after the fact, writes the count back through the
// cache.
func (c *Client) recordEvaluationMeta(ctx context.Context, key string, entry flagtypes.WithMeta) {
	now := c.nowTime()
	entry.Meta.LastEvaluatedAt = &now
	entry.Meta.EvaluationCount++
	c.cache.Put(ctx, key, entry, entry.Meta.ExpiryPolicy, &entry.Meta.UpdatedAt)
}

// actor builds the Actor attribution for a façade-driven mutation. This
// transport has no real auth layer (internal/transport/http passes a
// caller-supplied header as actorID), so every façade caller is
// attributed as an API actor; a host with a verified principal would
// thread an ActorUser/ActorSystem classification through instead.
func (c *Client) actor(actorID string) audit.Actor {
	return audit.Actor{Type: audit.ActorAPI, ID: actorID}
}

// recordContext builds the ambient Context every audit record carries:
// this node's ID, the correlation ID threaded from the triggering
// request (when any), and no environment/user-agent -- the façade is
// environment-agnostic and this transport doesn't forward a user agent.
func (c *Client) recordContext(correlationID string) audit.Context {
	return audit.Context{NodeID: c.nodeID, CorrelationID: correlationID}
}

// EvaluateBool evaluates key and coerces the result to bool, falling
// back to defaultValue when the flag is unknown.
func (c *Client) EvaluateBool(ctx context.Context, key string, evalCtx flagtypes.EvaluationContext, defaultValue bool) bool {
	result := c.Evaluate(ctx, key, evalCtx)
	if result.Reason == flagtypes.ReasonFlagNotFound {
		return defaultValue
	}
	return result.Value.AsBool()
}

// EvaluateString evaluates key and coerces the result to string,
// falling back to defaultValue when the flag is unknown.
func (c *Client) EvaluateString(ctx context.Context, key string, evalCtx flagtypes.EvaluationContext, defaultValue string) string {
	result := c.Evaluate(ctx, key, evalCtx)
	if result.Reason == flagtypes.ReasonFlagNotFound {
		return defaultValue
	}
	return result.Value.AsString()
}

// EvaluateRollout evaluates a Rollout-kind flag and returns its
// inclusion boolean directly.
func (c *Client) EvaluateRollout(ctx context.Context, key string, evalCtx flagtypes.EvaluationContext) bool {
	result := c.Evaluate(ctx, key, evalCtx)
	return result.Value.AsBool()
}

// MergeRemote applies remote entries via the store's merge contract,
// then refreshes the cache and writes a Synced audit record for each
// entry the store actually accepted. Acceptance is recomputed locally
// (mirroring store's own mergehelper.Accept) purely to know which keys
// to refresh -- the store call itself is still the atomic source of
// truth for what was written.
func (c *Client) MergeRemote(ctx context.Context, remote []flagtypes.WithMeta, actorID string) (int, error) {
	accepted := make(map[string]struct{}, len(remote))
	for _, e := range remote {
		local, exists, err := c.store.Get(ctx, e.Flag.Key)
		if err != nil {
			continue
		}
		if mergehelper.Accept(local, exists, e) {
			accepted[e.Flag.Key] = struct{}{}
		}
	}

	count, err := c.store.Merge(ctx, remote)
	if err != nil {
		return 0, flagerrors.Wrap(flagerrors.StorageError, "client: merge remote entries", err)
	}

	for _, e := range remote {
		if _, ok := accepted[e.Flag.Key]; !ok {
			continue
		}
		updated, ok, err := c.store.Get(ctx, e.Flag.Key)
		if err != nil || !ok {
			continue
		}
		updatedAt := updated.Meta.UpdatedAt
		c.cache.Put(ctx, e.Flag.Key, updated, updated.Meta.ExpiryPolicy, &updatedAt)
		c.audit.LogSynced(e.Flag.Key, c.actor(actorID), c.recordContext(""), updated.Flag.Value, map[string]interface{}{"version": e.Meta.Version.String()})
	}

	return count, nil
}

// Snapshot exports every stored entry plus the store's current version,
// for out-of-band transfer (spec.md §4.6/§6).
func (c *Client) Snapshot(ctx context.Context) ([]flagtypes.WithMeta, version.Vector, error) {
	entries, err := c.store.List(ctx)
	if err != nil {
		return nil, version.Vector{}, flagerrors.Wrap(flagerrors.StorageError, "client: snapshot list", err)
	}
	v, err := c.store.GetVersion(ctx)
	if err != nil {
		return nil, version.Vector{}, flagerrors.Wrap(flagerrors.StorageError, "client: snapshot version", err)
	}
	return entries, v, nil
}

// Restore imports a previously exported entry set, overwriting any
// existing entries with the same key, and clears the cache so reads
// observe the restored state immediately.
func (c *Client) Restore(ctx context.Context, entries []flagtypes.WithMeta) error {
	for _, e := range entries {
		if err := c.store.Set(ctx, e.Flag.Key, e); err != nil {
			return flagerrors.Wrap(flagerrors.StorageError, "client: restore entry", err)
		}
	}
	if err := c.bumpStoreVersion(ctx, "restore"); err != nil {
		return err
	}
	c.cache.Clear()
	return nil
}

// PurgeCache drops expired cache entries, returning the count dropped.
func (c *Client) PurgeCache() int {
	return c.cache.PurgeExpired()
}

// PurgeAudit drops audit records past the log's retention window,
// returning the count dropped.
func (c *Client) PurgeAudit() int {
	return c.audit.Purge()
}
