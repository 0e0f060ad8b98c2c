/*
Package observability exposes the service's Prometheus metrics.

Metrics are updated through domain.LifecycleHooks, so the data layer and the
engine stay unaware of Prometheus. Hooks combines metric updates with
structured logging of every run transition.
*/
package observability
