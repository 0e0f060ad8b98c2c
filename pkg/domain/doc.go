/*
Package domain contains the core records and rules of the research record store.

It defines the entities persisted by the object stores, the model-run state
machine and the error taxonomy shared by every layer. This package is kept
pure and free of I/O or persistence, following Hexagonal Architecture
principles.

# Key Entities

  - Record: the common shape of every stored object (id, kind, timestamp, properties, active flag).
  - Entity: a closed union over Subject, Image, ImageGroup, Experiment, FunctionalData and ModelRun.
  - RunState: the Idle/Running/Success/Failed lifecycle of a model run.
  - RunRequest: the message handed to workers by every dispatch transport.
*/
package domain
