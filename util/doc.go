// Package util provides small generic helpers shared across batchkit
// packages: pointer construction for optional fields and map key
// extraction.
package util
