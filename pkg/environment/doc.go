// Package environment names the deployment environment and carries it in
// context.Context. The logger uses it to pick per-environment defaults.
package environment
