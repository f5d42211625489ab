// Package pipeline orchestrates one streaming pipeline: fusion, the
// transmission scheduler, recording and replay, under a single state
// machine.
//
// This package is the composition root: it imports fusion, transmit,
// recorder and oscenc, but none of those packages import pipeline.
// Each Pipeline is an isolated concurrency domain — its own channel
// state, filter state, scheduler and socket — even when two pipelines
// share a camera source.
package pipeline
