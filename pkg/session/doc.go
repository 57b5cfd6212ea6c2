/*
Package session manages workspaces: named intent lifecycles that share one
snapshot store, replicator and distributed locker.

A workspace is opened lazily. Opening hydrates it from the store and, when a
replicator is configured, follows sibling replicas until the Manager is closed.
*/
package session
