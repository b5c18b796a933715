// Package audio implements the raw PCM fallback capture path: frame
// accumulation, linear-interpolation resampling to the 16 kHz target rate,
// 16-bit quantization, and hand-built WAV container encoding.
package audio
