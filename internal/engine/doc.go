// Package engine defines the synthesis backends that turn one sentence into
// PCM audio. Every engine reports the sample rate of the audio it returns;
// callers must play it at that rate.
package engine
