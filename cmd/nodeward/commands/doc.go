// Package commands implements the nodeward CLI: operator commands against a
// node's control endpoint, configured through a nodeward config root.
package commands
