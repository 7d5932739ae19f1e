// Package progress persists per-document translation state so an
// interrupted run can resume where it stopped. A document is identified by
// DocumentKey: the hash of its bytes, the target language and the render
// mode. Completed units keep their translated text so a resumed run can
// rebuild the output without calling the provider again.
package progress
