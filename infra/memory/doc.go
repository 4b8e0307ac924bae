// Package memory provides typed object pools for scratch state that is
// reused across requests, such as the encode buffers of the execution
// report outbox.
package memory
