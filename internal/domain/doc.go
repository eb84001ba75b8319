// Package domain holds the render request/result types and the error taxonomy.
// Keep this package free of transport (HTTP) and browser concerns.
package domain
