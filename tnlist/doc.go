// Package tnlist implements the intrusive circular doubly linked list that
// every queue in the kernel (ready-queue slots, wait-queues, the all-tasks
// list) is built from.
//
// A list never allocates. Every [Node] that ever appears in a list is
// already owned by the entity that embeds it (a task, typically); "linking"
// a node into a list is a handful of pointer writes, "unlinking" it is the
// same in reverse, and a node belongs to at most one list at a time.
package tnlist
