// Package briefboard provides the shared Redis data model for published
// synthesis results. Briefs and their validation results are stored as
// instance-namespaced Redis hashes, and Brief publication is announced over
// Pub/Sub so dashboards and downstream tooling can react in real time.
//
// All keys and channels follow the pattern peerlens:{instance}:... so that
// multiple deployments can safely share a single Redis server.
package briefboard
