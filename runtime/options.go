package runtime

import (
	"github.com/blockberries/blocksim"

	"github.com/inconshreveable/log15"
)

// Option configures a Runtime. Collaborators that are not set get
// the reference implementation of this module.
type Option func(*Runtime)

// WithEngine sets the state-transition function. If it also
// implements blocksim.Viewer it serves view calls unless WithViewer
// is given too.
func WithEngine(e blocksim.Engine) Option {
	return func(r *Runtime) { r.engine = e }
}

// WithViewer sets the view call interpreter.
func WithViewer(v blocksim.Viewer) Option {
	return func(r *Runtime) { r.viewer = v }
}

// WithTries sets the state storage. The runtime does not close it.
func WithTries(t blocksim.Tries) Option {
	return func(r *Runtime) { r.tries = t }
}

// WithTransactionPool sets the transaction pool.
func WithTransactionPool(p blocksim.TransactionPool) Option {
	return func(r *Runtime) { r.pool = p }
}

// WithArtifactCache sets the compiled artifact cache.
func WithArtifactCache(c blocksim.ArtifactCache) Option {
	return func(r *Runtime) {
		r.cache = c
		r.cacheDisabled = false
	}
}

// WithArtifactCacheDir keeps compiled artifacts in dir so they
// survive across runs.
func WithArtifactCacheDir(dir string) Option {
	return func(r *Runtime) {
		r.cacheDir = dir
		r.cacheDisabled = false
	}
}

// WithoutArtifactCache makes the engine compile contracts on every
// call.
func WithoutArtifactCache() Option {
	return func(r *Runtime) {
		r.cache = nil
		r.cacheDir = ""
		r.cacheDisabled = true
	}
}

// WithEpochInfoProvider sets the validator oracle.
func WithEpochInfoProvider(p blocksim.EpochInfoProvider) Option {
	return func(r *Runtime) { r.epoch = p }
}

// WithLogger sets the logger.
func WithLogger(l log15.Logger) Option {
	return func(r *Runtime) { r.log = l }
}
