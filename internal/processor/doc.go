// Package processor contains the application logic behind the commands. It
// turns flags and configuration into a provider, a progress store and
// notifiers, runs the batch orchestrator for every input file and prints
// the results. This package serves as the main coordinator between all
// other components.
package processor
