/*
Package lease serializes work on a model run.

A Manager hands out one exclusive lease per run id within the process and,
when a ports.DistributedLocker is configured, across every worker sharing that
locker. Leases are reference counted so idle run ids do not accumulate.
*/
package lease
