// Package dashboard serves the viewer page and the current status snapshot.
package dashboard
