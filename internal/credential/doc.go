// Package credential rotates through a pool of API keys. A pool is parsed
// from a comma-separated string and cycled round-robin, either on every call
// or only after a failure that is attributable to the current key.
package credential
