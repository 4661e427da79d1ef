// Package fetch downloads remotely referenced audio into the local download
// directory so that workers only ever see local file paths.
package fetch
