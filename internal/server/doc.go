// Package server assembles the HTTP server: routing, middleware and the
// lifecycle of the script engine it fronts.
package server
