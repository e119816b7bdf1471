// Package vocab holds the versioned vocabulary of event names, record
// fields, operators, and action types the engine evaluates against.
//
// The vocabulary is owned by the surrounding application and injected into
// the engine as configuration: new modules register new events and fields
// by shipping a vocabulary file, without touching the engine core. The
// Registry supports atomic hot reload from a YAML file watched with
// fsnotify, so the admin UI and the engine always agree on the legal
// field and event sets.
package vocab
