// Package text turns raw assistant output into speakable sentences.
// It strips markup, splits on sentence boundaries and drops segments that
// are mostly symbols rather than prose.
package text
