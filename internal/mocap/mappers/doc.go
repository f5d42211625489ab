// Package mappers converts raw tracking samples into partial channel
// updates against a capability profile.
//
// Every mapper follows one contract: it is a pure function of its sample,
// the profile and the pipeline scale, plus its own private filter state.
// A mapper never blocks, never touches another mapper's state, and returns
// in bounded time. Channels whose names are absent from the profile are
// dropped without error; an empty update is a normal outcome, not a
// failure.
package mappers
