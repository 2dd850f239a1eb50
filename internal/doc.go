// Package internal holds crypto-random identifier and code generation shared
// by the identity engine. Nothing here is part of the public API.
package internal
