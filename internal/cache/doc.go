// Package cache stores synthesized sentence audio so repeated sentences
// skip the engine. A memory LRU (L1) fronts a zstd-compressed directory of
// files (L2) that survives restarts and expires entries by age.
package cache
