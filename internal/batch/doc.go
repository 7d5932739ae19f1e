// Package batch drives a document through a translation provider.
//
// An Orchestrator loads the document, skips units that a previous run
// already translated, sends the rest to the provider in chunks with
// rate-limit aware retries, records every finished unit in the progress
// store and finally renders the bilingual or single-language output next
// to the input. A run moves through the states Idle, Loading, Translating,
// Finalizing and Done, or ends in Failed.
//
// ReadQueueFile lists several documents for one invocation.
package batch
