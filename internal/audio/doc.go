// Package audio plays synthesized speech and cue sounds through the system
// output device using oto/v3. All audio is handled as signed 16-bit little
// endian PCM; clips carry their own sample rate and are resampled to the
// device rate at playback.
package audio
