/*
Package ports defines the driven ports (interfaces) of the record store and
the model-run engine.

These interfaces decouple the core logic from external implementations, allowing
the stores and workers to run over various databases, queues and model runners.

# Key Interfaces

  - Collection: a document-oriented backing database holding one record kind.
  - Dispatcher: hands a run to a worker without waiting for it to finish.
  - Model: the opaque, long-running predictive computation.
  - DistributedLocker: exclusive access to a run across worker instances.
  - ArchiveMirror: optional replication of result archives to external storage.
*/
package ports
