// Package registry maps model names to their parameter schema and computation.
package registry
