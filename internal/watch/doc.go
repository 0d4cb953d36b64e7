// Package watch drives the injector from filesystem change notifications.
// It watches a source tree recursively, groups rapid notifications into
// batches, drops the notifications caused by the injector's own writes and
// hands every other changed path to the builder, one at a time.
package watch
