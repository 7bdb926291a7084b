// Package cache holds fetched result image bytes for the lifetime of the process.
//
// The cache is keyed by result image id. It is unbounded and has no expiry: a
// job has a handful of images and the whole cache is dropped with [ImageCache.ClearAll]
// whenever a re-roll replaces the current job.
package cache
