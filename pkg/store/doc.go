/*
Package store implements the object stores: create, get, list, soft delete,
replace and property upsert for one record kind over a ports.Collection.

ObjectStore is the generic part. DataStore adds a storage directory per
record, derived from the identifier and never persisted, so the storage root
can move without migrating documents. The kind stores (SubjectStore,
ImageStore, ImageGroupStore, ExperimentStore, FunctionalDataStore and
ModelRunStore) add creation rules and kind-specific fields.

Stores offer last-writer-wins replace semantics. Two writers replacing the
same record concurrently may lose one update; model runs are safe because a
single worker owns a run's state at a time.
*/
package store
