// Package realtime subscribes to row changes of the backend tables over the
// realtime websocket (Phoenix channel frames) and reports every change by
// table name. The connection is re-established with backoff until Teardown.
package realtime
