// Package queue holds pending utterance batches between submitters and the
// delivery worker. It is bounded and never blocks producers: when it is
// full, new batches are refused rather than queued.
package queue
