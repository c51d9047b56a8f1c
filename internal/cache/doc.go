// Package cache stores synthesized speech so repeated sentences are not sent
// to the engine again. It pairs an in-memory LRU (L1) with a zstd-compressed
// disk store (L2) that survives restarts.
package cache
