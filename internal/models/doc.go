// Package models lists the models a provider can translate with: the
// built-in lists shipped with bookmaker and, for OpenAI-compatible
// backends, the live list reported by the API.
package models
