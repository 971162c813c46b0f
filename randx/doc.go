// Package randx provides the random variate primitives the wcrp sampler
// consumes: uniform draws, gamma draws, in-place shuffles, and categorical
// draws from unnormalized log weights.
//
// The sampler depends only on the [Source] interface, so tests can
// substitute a deterministic implementation. [New] returns the default
// source backed by math/rand.
package randx
