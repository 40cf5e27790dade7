// Package watcher turns OS directory notifications for one hot folder into a
// stream of RawFileEvent values.
//
// A Watcher covers exactly one directory and one glob pattern. It forwards
// created, modified and renamed notifications for matching files in the
// order the OS reports them and makes no attempt to suppress duplicates: a
// single logical write routinely produces several notifications, and
// deduplication belongs to the consumer.
//
// Failure is loud. New fails if the directory is missing, and a directory
// that disappears while being watched is reported on Errors as an error
// matching ErrWatchFailure, after which the event channel is closed.
package watcher
