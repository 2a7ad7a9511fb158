// Package daemon wires the long-running services together: the HTTP API
// listener, the inbox watcher, and the retention sweeper. A flock-based
// lock file in the log directory keeps a host to a single instance.
package daemon
