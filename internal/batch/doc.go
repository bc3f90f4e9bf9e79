// Package batch drives bulk sends through the transport client with bounded
// concurrency, adaptive throttling, and resumable per-item progress.
//
// The Engine submits items in index order but lets them complete in any
// order. Item failures never abort the run; they are recorded and counted.
// When the upstream signals throttling, the effective concurrency cap is
// halved (floor of one) for subsequently scheduled items and never recovers
// within the run. Only a state-store failure is fatal, since progress can no
// longer be tracked safely once recording breaks.
package batch
