// Package observation defines the record produced by one probe cycle and the
// payload pushed to every connected viewer.
package observation
