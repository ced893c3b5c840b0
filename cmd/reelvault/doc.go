// Command reelvault manages a footage library: importing camera files,
// deduplicating by content, identifying source cameras, and running
// background analysis jobs.
package main
