/*
Package datastore composes the object stores into the service's data layer.

It enforces what no single store can: references between records, the
cascade from experiments to their functional data, argument validation
against the model registry, and the hand-off of new model runs to a
dispatcher.
*/
package datastore
