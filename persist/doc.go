// Package persist provides durable string key/value backends for the credential store:
// in-process memory, Redis, a JSON file, and a SQL key/value table.
//
// Every backend satisfies credential.Persistence structurally and also implements
// SetMany so the three credential values are written as one unit.
//
// # What this package must NOT do
//
//   - Import authsession or credential.
//   - Interpret stored values.
package persist
